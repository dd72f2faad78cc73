package scheduler

import (
	"context"
	"fmt"

	"github.com/clinrota/clinrota-api/internal/models"
)

// Algorithm is the closed set of solver strategies. The coordinator selects a
// strategy by exhaustive switch, not by passing raw strings around.
type Algorithm string

const (
	AlgorithmGreedy           Algorithm = "greedy"
	AlgorithmConstraintSearch Algorithm = "constraint_search"
	AlgorithmRelaxation       Algorithm = "relaxation"
	AlgorithmHybrid           Algorithm = "hybrid"
)

// ParseAlgorithm validates a caller-supplied algorithm name.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch Algorithm(raw) {
	case AlgorithmGreedy, AlgorithmConstraintSearch, AlgorithmRelaxation, AlgorithmHybrid:
		return Algorithm(raw), nil
	case "":
		return AlgorithmGreedy, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q", raw)
	}
}

// Problem is the solver input: the narrowed search space plus the data needed
// by the feasibility oracle. Strategies never mutate caller-owned structures;
// everything they touch lives in their own search state.
type Problem struct {
	Blocks     []models.Block
	Candidates *CandidateSet
	People     map[string]models.Person
	Templates  map[string]models.RotationTemplate
	Absences   models.AbsenceIndex
	// ResidentsPerBlock is the demand each block must cover.
	ResidentsPerBlock int
	StrictRest        bool
}

func (p *Problem) residentsPerBlock() int {
	if p.ResidentsPerBlock <= 0 {
		return 1
	}
	return p.ResidentsPerBlock
}

// Solution is the common strategy output: the assignment set found, the block
// ids left uncovered, and search statistics.
type Solution struct {
	Assignments []models.Assignment
	Unfilled    []string
	Stats       models.SolverStats
}

// Strategy is the contract every solver flavour implements. The context
// carries the wall-clock budget; on expiry a strategy returns its best
// incumbent rather than failing.
type Strategy interface {
	Name() Algorithm
	Solve(ctx context.Context, problem *Problem) Solution
}

// StrategyFor returns the solver implementing the given algorithm. The switch
// is exhaustive over the Algorithm constants.
func StrategyFor(alg Algorithm) Strategy {
	switch alg {
	case AlgorithmConstraintSearch:
		return &constraintSearchStrategy{}
	case AlgorithmRelaxation:
		return &relaxationStrategy{}
	case AlgorithmHybrid:
		return &hybridStrategy{}
	case AlgorithmGreedy:
		fallthrough
	default:
		return &greedyStrategy{}
	}
}

func budgetExpired(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

package scheduler

import (
	"context"

	"github.com/clinrota/clinrota-api/internal/models"
)

// hybridStrategy runs greedy to secure a feasible incumbent fast, then spends
// the remaining budget on constraint search seeded from that incumbent.
// Whatever the refinement finds, the returned solution never regresses below
// the greedy result.
type hybridStrategy struct{}

func (h *hybridStrategy) Name() Algorithm { return AlgorithmHybrid }

func (h *hybridStrategy) Solve(ctx context.Context, problem *Problem) Solution {
	greedy := (&greedyStrategy{}).Solve(ctx, problem)
	if budgetExpired(ctx) {
		greedy.Stats.Algorithm = string(AlgorithmHybrid)
		greedy.Stats.TimedOut = true
		return greedy
	}

	seed := greedy
	refined := (&constraintSearchStrategy{seed: &seed}).Solve(ctx, problem)

	best := refined
	if best.Stats.Objective > greedy.Stats.Objective {
		best = greedy
	}
	return Solution{
		Assignments: best.Assignments,
		Unfilled:    best.Unfilled,
		Stats: models.SolverStats{
			Algorithm:  string(AlgorithmHybrid),
			Branches:   refined.Stats.Branches,
			Conflicts:  refined.Stats.Conflicts,
			Iterations: greedy.Stats.Iterations,
			Objective:  best.Stats.Objective,
			TimedOut:   refined.Stats.TimedOut,
		},
	}
}

package scheduler

import (
	"context"

	"github.com/clinrota/clinrota-api/internal/models"
)

// constraintSearchStrategy explores block decisions with backtracking and
// branch-and-bound pruning. Hard constraints are enforced through the
// incremental oracle at every branch; the workload-balance objective is
// minimised under the wall-clock budget. On timeout the best incumbent found
// so far is returned, possibly partial.
type constraintSearchStrategy struct {
	// seed, when set, is installed as the initial incumbent so refinement
	// never regresses below an already-known feasible solution.
	seed *Solution
}

func (c *constraintSearchStrategy) Name() Algorithm { return AlgorithmConstraintSearch }

func (c *constraintSearchStrategy) Solve(ctx context.Context, problem *Problem) Solution {
	search := &backtracker{
		ctx:     ctx,
		problem: problem,
		state:   newSearchState(problem),
		best:    c.seed,
	}
	search.run(0, 0)

	stats := models.SolverStats{
		Algorithm: string(AlgorithmConstraintSearch),
		Branches:  search.branches,
		Conflicts: search.conflicts,
		TimedOut:  search.timedOut,
	}
	if search.best == nil {
		// Nothing feasible explored before the budget ran out; report every
		// block as a gap rather than fabricating an infeasible schedule.
		var unfilled []string
		for _, bc := range problem.Candidates.Blocks {
			unfilled = append(unfilled, bc.Block.ID)
		}
		stats.Objective = search.state.objective(len(unfilled))
		return Solution{Unfilled: sortedUnfilled(unfilled), Stats: stats}
	}
	best := *search.best
	stats.Objective = best.Stats.Objective
	best.Stats = stats
	return best
}

type backtracker struct {
	ctx     context.Context
	problem *Problem
	state   *searchState

	best      *Solution
	branches  int
	conflicts int
	timedOut  bool
}

// run explores block index idx with unfilled blocks accumulated so far.
func (b *backtracker) run(idx, unfilled int) {
	if b.timedOut {
		return
	}
	if b.branches%64 == 0 && budgetExpired(b.ctx) {
		b.timedOut = true
		return
	}

	blocks := b.problem.Candidates.Blocks
	if idx == len(blocks) {
		b.record(unfilled)
		return
	}

	// Bound: even filling every remaining block cannot beat the incumbent.
	if b.best != nil && b.state.objective(unfilled) >= b.best.Stats.Objective {
		b.conflicts++
		return
	}

	bc := &blocks[idx]
	b.branches++

	// Branch 1: fill the block with the demanded residents + supervisors.
	mark := b.state.mark()
	var dummy int
	if fillBlockGreedy(b.state, bc, &dummy) {
		b.run(idx+1, unfilled)
		b.state.unplaceTo(mark)
		// Alternate branch: swap the first-choice resident for the next
		// acceptable one, widening the search beyond the greedy ordering.
		if b.exploreAlternate(bc, mark) {
			b.run(idx+1, unfilled)
			b.state.unplaceTo(mark)
		}
	} else {
		b.conflicts++
	}

	// Branch 2: leave the block unfilled. Only worth exploring when the
	// filled branch did not already produce a complete incumbent.
	if b.best == nil || b.best.Stats.Objective > 0 {
		b.run(idx+1, unfilled+1)
	}
}

// exploreAlternate refills the block skipping the first resident choice.
// Returns false when no alternate composition exists.
func (b *backtracker) exploreAlternate(bc *BlockCandidates, mark int) bool {
	demand := b.problem.residentsPerBlock()
	if demand > len(bc.Residents) {
		demand = len(bc.Residents)
	}
	if demand == 0 || len(bc.Residents) <= demand {
		return false
	}

	needed := supervisorsNeeded(demand, bc)
	placed := 0
	for _, c := range b.state.orderedSupervisors(bc) {
		if placed == needed {
			break
		}
		if b.state.canPlaceSupervisor(bc, c) {
			b.state.place(bc, c, models.BlockRoleSupervisor)
			placed++
		}
	}
	if placed < needed {
		b.state.unplaceTo(mark)
		return false
	}

	ordered := b.state.orderedResidents(bc)
	placedResidents := 0
	skippedFirst := false
	for _, c := range ordered {
		if placedResidents == demand {
			break
		}
		if !b.state.canPlaceResident(bc, c) {
			continue
		}
		if !skippedFirst {
			skippedFirst = true
			continue
		}
		b.state.place(bc, c, models.BlockRoleResident)
		placedResidents++
	}
	if placedResidents < demand {
		b.state.unplaceTo(mark)
		return false
	}
	return true
}

// record keeps the current state as incumbent when it improves the objective.
func (b *backtracker) record(unfilled int) {
	objective := b.state.objective(unfilled)
	if b.best != nil && objective >= b.best.Stats.Objective {
		return
	}
	var gaps []string
	covered := make(map[string]bool)
	for _, a := range b.state.placed {
		covered[a.BlockID] = true
	}
	for _, bc := range b.problem.Candidates.Blocks {
		if !covered[bc.Block.ID] {
			gaps = append(gaps, bc.Block.ID)
		}
	}
	b.best = &Solution{
		Assignments: b.state.snapshotAssignments(),
		Unfilled:    sortedUnfilled(gaps),
		Stats:       models.SolverStats{Objective: objective},
	}
}

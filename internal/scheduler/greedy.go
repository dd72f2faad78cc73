package scheduler

import (
	"context"
	"sort"

	"github.com/clinrota/clinrota-api/internal/models"
)

// greedyStrategy processes blocks in candidate-scarcity order and takes the
// first oracle-accepted candidate for each demand slot. Blocks with no
// acceptable candidate are recorded as coverage gaps, never force-filled.
type greedyStrategy struct{}

func (g *greedyStrategy) Name() Algorithm { return AlgorithmGreedy }

func (g *greedyStrategy) Solve(ctx context.Context, problem *Problem) Solution {
	state := newSearchState(problem)
	var unfilled []string
	var iterations int
	timedOut := false

	for i := range problem.Candidates.Blocks {
		if budgetExpired(ctx) {
			timedOut = true
			for _, bc := range problem.Candidates.Blocks[i:] {
				unfilled = append(unfilled, bc.Block.ID)
			}
			break
		}
		bc := &problem.Candidates.Blocks[i]
		if !fillBlockGreedy(state, bc, &iterations) {
			unfilled = append(unfilled, bc.Block.ID)
		}
	}

	return Solution{
		Assignments: state.snapshotAssignments(),
		Unfilled:    sortedUnfilled(unfilled),
		Stats: models.SolverStats{
			Algorithm:  string(AlgorithmGreedy),
			Iterations: iterations,
			Objective:  state.objective(len(unfilled)),
			TimedOut:   timedOut,
		},
	}
}

// fillBlockGreedy places the block's resident demand and the supervisors the
// ratio requires. Placement is all-or-nothing per block: a block that cannot
// meet its full demand is rolled back and reported unfilled.
func fillBlockGreedy(state *searchState, bc *BlockCandidates, iterations *int) bool {
	mark := state.mark()
	demand := state.problem.residentsPerBlock()
	if demand > len(bc.Residents) {
		demand = len(bc.Residents)
	}
	if demand == 0 {
		return false
	}

	// Supervisors first, so the supervision invariant holds at every step.
	needed := supervisorsNeeded(demand, bc)
	placedSupers := 0
	for _, c := range state.orderedSupervisors(bc) {
		if placedSupers == needed {
			break
		}
		*iterations++
		if state.canPlaceSupervisor(bc, c) {
			state.place(bc, c, models.BlockRoleSupervisor)
			placedSupers++
		}
	}
	if placedSupers < needed {
		state.unplaceTo(mark)
		return false
	}

	placedResidents := 0
	for _, c := range state.orderedResidents(bc) {
		if placedResidents == demand {
			break
		}
		*iterations++
		if state.canPlaceResident(bc, c) {
			state.place(bc, c, models.BlockRoleResident)
			placedResidents++
		}
	}
	if placedResidents < demand {
		state.unplaceTo(mark)
		return false
	}
	return true
}

func sortedUnfilled(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

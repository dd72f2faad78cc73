package scheduler

import (
	"context"

	"github.com/clinrota/clinrota-api/internal/models"
)

// relaxationStrategy solves a continuous relaxation of the assignment model:
// each (block, resident) pair carries a fractional weight, iteratively
// rebalanced so heavily loaded residents shed weight to lighter ones. The
// fractional solution is then rounded to discrete assignments in weight
// order, and any rounding-induced hard-constraint breaches are repaired by a
// greedy pass before the result is finalised.
type relaxationStrategy struct{}

const relaxationRounds = 8

func (r *relaxationStrategy) Name() Algorithm { return AlgorithmRelaxation }

func (r *relaxationStrategy) Solve(ctx context.Context, problem *Problem) Solution {
	weights := r.relax(ctx, problem)

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
		if !r.roundBlock(state, bc, weights, &iterations) {
			unfilled = append(unfilled, bc.Block.ID)
		}
	}

	// Repair: retry gaps with the plain greedy ordering. Rounding may have
	// starved a block that a different composition can still cover.
	if !timedOut {
		unfilled = repairGaps(ctx, state, unfilled, &iterations)
	}

	return Solution{
		Assignments: state.snapshotAssignments(),
		Unfilled:    sortedUnfilled(unfilled),
		Stats: models.SolverStats{
			Algorithm:  string(AlgorithmRelaxation),
			Iterations: iterations,
			Objective:  state.objective(len(unfilled)),
			TimedOut:   timedOut,
		},
	}
}

type pairKey struct {
	blockID  string
	personID string
}

// relax computes fractional assignment weights. Weights start uniform per
// block and are rebalanced each round against projected resident load, a
// lightweight stand-in for an LP relaxation that preserves determinism.
func (r *relaxationStrategy) relax(ctx context.Context, problem *Problem) map[pairKey]float64 {
	weights := make(map[pairKey]float64)
	load := make(map[string]float64)

	for _, bc := range problem.Candidates.Blocks {
		if len(bc.Residents) == 0 {
			continue
		}
		w := 1.0 / float64(len(bc.Residents))
		for _, c := range bc.Residents {
			weights[pairKey{bc.Block.ID, c.Person.ID}] = w
			load[c.Person.ID] += w * bc.Block.Hours
		}
	}

	for round := 0; round < relaxationRounds; round++ {
		if budgetExpired(ctx) {
			break
		}
		var mean float64
		var n int
		for _, p := range problem.People {
			if p.IsResident() {
				mean += load[p.ID]
				n++
			}
		}
		if n == 0 {
			break
		}
		mean /= float64(n)

		next := make(map[string]float64, len(load))
		for _, bc := range problem.Candidates.Blocks {
			if len(bc.Residents) == 0 {
				continue
			}
			var total float64
			for _, c := range bc.Residents {
				key := pairKey{bc.Block.ID, c.Person.ID}
				w := weights[key]
				// Shift weight away from residents projected above the mean.
				if load[c.Person.ID] > mean {
					w *= mean / load[c.Person.ID]
				}
				weights[key] = w
				total += w
			}
			if total == 0 {
				continue
			}
			for _, c := range bc.Residents {
				key := pairKey{bc.Block.ID, c.Person.ID}
				weights[key] /= total
				next[c.Person.ID] += weights[key] * bc.Block.Hours
			}
		}
		load = next
	}
	return weights
}

// roundBlock places the block's demand picking residents by descending
// fractional weight, subject to the same feasibility oracle as every other
// strategy.
func (r *relaxationStrategy) roundBlock(state *searchState, bc *BlockCandidates, weights map[pairKey]float64, iterations *int) bool {
	mark := state.mark()
	demand := state.problem.residentsPerBlock()
	if demand > len(bc.Residents) {
		demand = len(bc.Residents)
	}
	if demand == 0 {
		return false
	}

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

	ordered := make([]Candidate, len(bc.Residents))
	copy(ordered, bc.Residents)
	sortByWeight(ordered, bc.Block.ID, weights)

	placed := 0
	for _, c := range ordered {
		if placed == demand {
			break
		}
		*iterations++
		if state.canPlaceResident(bc, c) {
			state.place(bc, c, models.BlockRoleResident)
			placed++
		}
	}
	if placed < demand {
		state.unplaceTo(mark)
		return false
	}
	return true
}

func sortByWeight(candidates []Candidate, blockID string, weights map[pairKey]float64) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			wa := weights[pairKey{blockID, candidates[j].Person.ID}]
			wb := weights[pairKey{blockID, candidates[j-1].Person.ID}]
			if wa > wb {
				candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
			} else {
				break
			}
		}
	}
}

// repairGaps retries unfilled blocks with the greedy composition once the
// rest of the schedule is in place.
func repairGaps(ctx context.Context, state *searchState, unfilled []string, iterations *int) []string {
	var remaining []string
	for _, id := range unfilled {
		if budgetExpired(ctx) {
			remaining = append(remaining, id)
			continue
		}
		bc, ok := state.problem.Candidates.ForBlock(id)
		if !ok || !fillBlockGreedy(state, bc, iterations) {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

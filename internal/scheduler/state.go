package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/clinrota/clinrota-api/internal/models"
)

// unfilledPenalty dominates the balance term so strategies always prefer
// covering a block over improving workload spread.
const unfilledPenalty = 10000.0

// searchState is the mutable working set shared by all solver strategies. It
// supports place/unplace pairs for backtracking and answers the incremental
// feasibility questions through the hour ledger, so strategies and the batch
// validator agree on every window.
type searchState struct {
	problem   *Problem
	ledger    *HourLedger
	onBlock   map[string]map[string]bool
	residents map[string]int
	supers    map[string]int
	hours     map[string]float64
	placed    []models.Assignment
}

func newSearchState(p *Problem) *searchState {
	start, end := blockSpan(p.Blocks)
	return &searchState{
		problem:   p,
		ledger:    NewHourLedger(start, end),
		onBlock:   make(map[string]map[string]bool),
		residents: make(map[string]int),
		supers:    make(map[string]int),
		hours:     make(map[string]float64),
	}
}

func blockSpan(blocks []models.Block) (time.Time, time.Time) {
	if len(blocks) == 0 {
		now := models.DateOnly(time.Now())
		return now, now
	}
	start, end := blocks[0].Date, blocks[0].Date
	for _, b := range blocks[1:] {
		if b.Date.Before(start) {
			start = b.Date
		}
		if b.Date.After(end) {
			end = b.Date
		}
	}
	return start, end
}

// canPlaceResident applies the incremental oracle: no double booking, duty
// hours inside every touched window, rest cadence preserved. Absence,
// credential and PGY constraints were already filtered by the candidate
// generator.
func (s *searchState) canPlaceResident(bc *BlockCandidates, c Candidate) bool {
	if s.onBlock[bc.Block.ID][c.Person.ID] {
		return false
	}
	dayIdx := s.ledger.DayIndex(bc.Block.Date)
	if dayIdx < 0 {
		return false
	}
	weeklyCap := c.Person.WeeklyHourCap(WeeklyHourCap)
	if s.ledger.WouldExceedDuty(c.Person.ID, dayIdx, bc.Block.Hours, weeklyCap) {
		return false
	}
	if s.ledger.WouldBreakRest(c.Person.ID, dayIdx) {
		return false
	}
	if s.problem.StrictRest && s.wouldBreakStrictRest(c.Person.ID, dayIdx) {
		return false
	}
	return true
}

// wouldBreakStrictRest checks the optional per-week rest requirement.
func (s *searchState) wouldBreakStrictRest(personID string, dayIdx int) bool {
	if s.ledger.HoursOn(personID, dayIdx) > 0 {
		return false
	}
	for from := dayIdx - RestWindowDays + 1; from <= dayIdx; from++ {
		to := from + RestWindowDays - 1
		if from < 0 || to >= s.ledger.Days() {
			continue
		}
		if s.ledger.RestDays(personID, from, to)-1 < 1 {
			return true
		}
	}
	return false
}

func (s *searchState) canPlaceSupervisor(bc *BlockCandidates, c Candidate) bool {
	return !s.onBlock[bc.Block.ID][c.Person.ID]
}

func (s *searchState) place(bc *BlockCandidates, c Candidate, role models.BlockRole) models.Assignment {
	if s.onBlock[bc.Block.ID] == nil {
		s.onBlock[bc.Block.ID] = make(map[string]bool)
	}
	s.onBlock[bc.Block.ID][c.Person.ID] = true
	s.ledger.Add(c.Person.ID, bc.Block.Date, bc.Block.Hours)
	s.hours[c.Person.ID] += bc.Block.Hours
	if role == models.BlockRoleResident {
		s.residents[bc.Block.ID]++
	} else {
		s.supers[bc.Block.ID]++
	}
	a := models.Assignment{
		ID:         bc.Block.ID + ":" + c.Person.ID,
		BlockID:    bc.Block.ID,
		PersonID:   c.Person.ID,
		TemplateID: c.Template.ID,
		Role:       role,
		Version:    1,
	}
	s.placed = append(s.placed, a)
	return a
}

// unplace reverses the most recent placements down to the given mark.
func (s *searchState) unplaceTo(mark int) {
	for len(s.placed) > mark {
		a := s.placed[len(s.placed)-1]
		s.placed = s.placed[:len(s.placed)-1]
		delete(s.onBlock[a.BlockID], a.PersonID)
		bc, _ := s.problem.Candidates.ForBlock(a.BlockID)
		s.ledger.Remove(a.PersonID, bc.Block.Date, bc.Block.Hours)
		s.hours[a.PersonID] -= bc.Block.Hours
		if a.Role == models.BlockRoleResident {
			s.residents[a.BlockID]--
		} else {
			s.supers[a.BlockID]--
		}
	}
}

func (s *searchState) mark() int { return len(s.placed) }

// supervisorsNeeded computes the faculty headcount required to cover the
// resident demand under the block's governing ratio.
func supervisorsNeeded(residents int, bc *BlockCandidates) int {
	ratio := bc.Template.SupervisionRatio
	if ratio <= 0 {
		ratio = 1
	}
	return (residents + ratio - 1) / ratio
}

// orderedResidents returns the block's resident candidates re-ranked by the
// load-balancing tie-break: lower cumulative assigned hours first, scarcity
// and input order preserved beyond that.
func (s *searchState) orderedResidents(bc *BlockCandidates) []Candidate {
	out := make([]Candidate, len(bc.Residents))
	copy(out, bc.Residents)
	sort.SliceStable(out, func(i, j int) bool {
		return s.hours[out[i].Person.ID] < s.hours[out[j].Person.ID]
	})
	return out
}

func (s *searchState) orderedSupervisors(bc *BlockCandidates) []Candidate {
	out := make([]Candidate, len(bc.Supervisors))
	copy(out, bc.Supervisors)
	sort.SliceStable(out, func(i, j int) bool {
		return s.hours[out[i].Person.ID] < s.hours[out[j].Person.ID]
	})
	return out
}

// objective scores the current state: unfilled demand dominates, workload
// variance across residents breaks ties. Lower is better.
func (s *searchState) objective(unfilled int) float64 {
	var residentHours []float64
	for id, p := range s.problem.People {
		if p.IsResident() {
			residentHours = append(residentHours, s.hours[id])
		}
	}
	if len(residentHours) == 0 {
		return float64(unfilled) * unfilledPenalty
	}
	var mean float64
	for _, h := range residentHours {
		mean += h
	}
	mean /= float64(len(residentHours))
	var variance float64
	for _, h := range residentHours {
		variance += (h - mean) * (h - mean)
	}
	variance /= float64(len(residentHours))
	return float64(unfilled)*unfilledPenalty + math.Sqrt(variance)
}

// snapshotAssignments copies the current placements in deterministic order.
func (s *searchState) snapshotAssignments() []models.Assignment {
	out := make([]models.Assignment, len(s.placed))
	copy(out, s.placed)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockID != out[j].BlockID {
			return out[i].BlockID < out[j].BlockID
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

package scheduler

import (
	"fmt"
	"sort"

	"github.com/clinrota/clinrota-api/internal/models"
)

// Snapshot is the in-memory view of the schedule under evaluation. The core
// never reads persistence directly; the caller supplies everything here.
type Snapshot struct {
	Blocks      []models.Block
	People      map[string]models.Person
	Templates   map[string]models.RotationTemplate
	Absences    models.AbsenceIndex
	Assignments []models.Assignment
}

// BlockByID returns the block with the given id, if present.
func (s *Snapshot) BlockByID(id string) (models.Block, bool) {
	for _, b := range s.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return models.Block{}, false
}

// Validator audits a schedule against duty-hour, rest-day, supervision and
// structural rules. Pure and deterministic, no I/O.
type Validator struct {
	// StrictRest additionally enforces one rest day in every rolling 7-day
	// window, on top of the averaged 4-per-28-days contract.
	StrictRest bool
}

// Validate evaluates every rule over the snapshot and returns all violations
// found plus aggregate statistics. Violations are never truncated.
func (v Validator) Validate(snap *Snapshot) ([]models.Violation, models.ScheduleStats) {
	blockByID := make(map[string]models.Block, len(snap.Blocks))
	for _, b := range snap.Blocks {
		blockByID[b.ID] = b
	}

	ledger := buildLedger(snap, blockByID)

	var violations []models.Violation
	violations = append(violations, v.structuralViolations(snap, blockByID)...)
	violations = append(violations, v.dutyHourViolations(snap, ledger)...)
	violations = append(violations, v.restDayViolations(snap, ledger)...)
	violations = append(violations, v.supervisionViolations(snap, blockByID)...)

	return violations, v.stats(snap, ledger)
}

func buildLedger(snap *Snapshot, blockByID map[string]models.Block) *HourLedger {
	if len(snap.Blocks) == 0 {
		return NewHourLedger(models.DateOnly(nowUTC()), models.DateOnly(nowUTC()))
	}
	start, end := snap.Blocks[0].Date, snap.Blocks[0].Date
	for _, b := range snap.Blocks[1:] {
		if b.Date.Before(start) {
			start = b.Date
		}
		if b.Date.After(end) {
			end = b.Date
		}
	}
	ledger := NewHourLedger(start, end)
	for _, a := range snap.Assignments {
		if b, ok := blockByID[a.BlockID]; ok {
			ledger.Add(a.PersonID, b.Date, b.Hours)
		}
	}
	return ledger
}

// structuralViolations covers double-booking, eligibility and absence rules.
func (v Validator) structuralViolations(snap *Snapshot, blockByID map[string]models.Block) []models.Violation {
	var out []models.Violation
	seen := make(map[string]map[string]int)
	for _, a := range snap.Assignments {
		block, ok := blockByID[a.BlockID]
		if !ok {
			continue
		}
		if seen[a.PersonID] == nil {
			seen[a.PersonID] = make(map[string]int)
		}
		seen[a.PersonID][a.BlockID]++
		if seen[a.PersonID][a.BlockID] == 2 {
			out = append(out, models.Violation{
				Type:     models.ViolationDoubleBooking,
				Severity: models.SeverityCritical,
				PersonID: a.PersonID,
				BlockID:  a.BlockID,
				Message:  fmt.Sprintf("person %s holds multiple assignments on block %s", a.PersonID, a.BlockID),
			})
		}

		person, ok := snap.People[a.PersonID]
		if !ok {
			continue
		}
		if tmpl, ok := snap.Templates[a.TemplateID]; ok && !tmpl.EligiblePerson(person, block.Date) {
			out = append(out, models.Violation{
				Type:     models.ViolationEligibility,
				Severity: models.SeverityCritical,
				PersonID: a.PersonID,
				BlockID:  a.BlockID,
				Message:  fmt.Sprintf("person %s does not meet template %s requirements on %s", a.PersonID, a.TemplateID, block.Date.Format("2006-01-02")),
			})
		}
		if snap.Absences.Absent(a.PersonID, block.Date) {
			out = append(out, models.Violation{
				Type:     models.ViolationAbsence,
				Severity: models.SeverityCritical,
				PersonID: a.PersonID,
				BlockID:  a.BlockID,
				Message:  fmt.Sprintf("person %s is assigned during an absence on %s", a.PersonID, block.Date.Format("2006-01-02")),
			})
		}
	}
	return out
}

// dutyHourViolations slides a 28-day window in daily steps per resident and
// flags windows whose average weekly hours exceed the cap.
func (v Validator) dutyHourViolations(snap *Snapshot, ledger *HourLedger) []models.Violation {
	var out []models.Violation
	window := ledger.dutyWindow()
	weeks := float64(window) / 7.0
	for _, personID := range sortedResidentIDs(snap) {
		weeklyCap := snap.People[personID].WeeklyHourCap(WeeklyHourCap)
		for from := 0; from+window <= ledger.Days(); from++ {
			to := from + window - 1
			avgWeekly := ledger.WindowHours(personID, from, to) / weeks
			if avgWeekly > weeklyCap {
				ws := ledger.Start().AddDate(0, 0, from)
				we := ledger.Start().AddDate(0, 0, to)
				out = append(out, models.Violation{
					Type:        models.ViolationDutyHours,
					Severity:    models.SeverityCritical,
					PersonID:    personID,
					WindowStart: &ws,
					WindowEnd:   &we,
					Actual:      avgWeekly,
					Limit:       weeklyCap,
					Message:     fmt.Sprintf("resident %s averages %.1f weekly hours in window %s..%s, limit %.0f", personID, avgWeekly, ws.Format("2006-01-02"), we.Format("2006-01-02"), weeklyCap),
				})
			}
		}
	}
	return out
}

// restDayViolations enforces the averaged rest-day contract: every duty
// window must contain at least one qualifying rest day per seven days. Strict
// mode additionally checks every rolling 7-day window.
func (v Validator) restDayViolations(snap *Snapshot, ledger *HourLedger) []models.Violation {
	var out []models.Violation
	window := ledger.dutyWindow()
	required := window / RestWindowDays
	for _, personID := range sortedResidentIDs(snap) {
		if required > 0 {
			for from := 0; from+window <= ledger.Days(); from++ {
				to := from + window - 1
				if rest := ledger.RestDays(personID, from, to); rest < required {
					ws := ledger.Start().AddDate(0, 0, from)
					we := ledger.Start().AddDate(0, 0, to)
					out = append(out, models.Violation{
						Type:        models.ViolationRestDay,
						Severity:    models.SeverityHigh,
						PersonID:    personID,
						WindowStart: &ws,
						WindowEnd:   &we,
						Actual:      float64(rest),
						Limit:       float64(required),
						Message:     fmt.Sprintf("resident %s has %d rest days in window %s..%s, %d required", personID, rest, ws.Format("2006-01-02"), we.Format("2006-01-02"), required),
					})
				}
			}
		}
		if v.StrictRest && ledger.Days() >= RestWindowDays {
			for from := 0; from+RestWindowDays <= ledger.Days(); from++ {
				to := from + RestWindowDays - 1
				if ledger.RestDays(personID, from, to) == 0 {
					ws := ledger.Start().AddDate(0, 0, from)
					we := ledger.Start().AddDate(0, 0, to)
					out = append(out, models.Violation{
						Type:        models.ViolationRestDay,
						Severity:    models.SeverityHigh,
						PersonID:    personID,
						WindowStart: &ws,
						WindowEnd:   &we,
						Limit:       1,
						Message:     fmt.Sprintf("resident %s has no rest day in week %s..%s", personID, ws.Format("2006-01-02"), we.Format("2006-01-02")),
					})
				}
			}
		}
	}
	return out
}

// supervisionViolations checks the resident/faculty ratio per block against
// the governing rotation template.
func (v Validator) supervisionViolations(snap *Snapshot, blockByID map[string]models.Block) []models.Violation {
	type blockTally struct {
		residents   int
		supervisors int
		ratio       int
	}
	tallies := make(map[string]*blockTally)
	for _, a := range snap.Assignments {
		if _, ok := blockByID[a.BlockID]; !ok {
			continue
		}
		t := tallies[a.BlockID]
		if t == nil {
			t = &blockTally{}
			tallies[a.BlockID] = t
		}
		person, ok := snap.People[a.PersonID]
		if ok && !person.IsResident() {
			t.supervisors++
		} else {
			t.residents++
		}
		if tmpl, ok := snap.Templates[a.TemplateID]; ok && tmpl.SupervisionRatio > 0 {
			// The most restrictive template present governs the block.
			if t.ratio == 0 || tmpl.SupervisionRatio < t.ratio {
				t.ratio = tmpl.SupervisionRatio
			}
		}
	}

	blockIDs := make([]string, 0, len(tallies))
	for id := range tallies {
		blockIDs = append(blockIDs, id)
	}
	sort.Strings(blockIDs)

	var out []models.Violation
	for _, id := range blockIDs {
		t := tallies[id]
		if t.residents == 0 {
			continue
		}
		ratio := t.ratio
		if ratio == 0 {
			ratio = 1
		}
		if t.residents > t.supervisors*ratio {
			actual := float64(t.residents)
			if t.supervisors > 0 {
				actual = float64(t.residents) / float64(t.supervisors)
			}
			out = append(out, models.Violation{
				Type:     models.ViolationSupervision,
				Severity: models.SeverityHigh,
				BlockID:  id,
				Actual:   actual,
				Limit:    float64(ratio),
				Message:  fmt.Sprintf("block %s has %d residents covered by %d supervisors, ratio limit %d", id, t.residents, t.supervisors, ratio),
			})
		}
	}
	return out
}

func (v Validator) stats(snap *Snapshot, ledger *HourLedger) models.ScheduleStats {
	stats := models.ScheduleStats{TotalBlocks: len(snap.Blocks)}
	assignedBlocks := make(map[string]bool)
	for _, a := range snap.Assignments {
		assignedBlocks[a.BlockID] = true
	}
	stats.AssignedBlocks = len(assignedBlocks)
	if stats.TotalBlocks > 0 {
		stats.CoverageRate = float64(stats.AssignedBlocks) / float64(stats.TotalBlocks)
	}

	weeks := float64(ledger.Days()) / 7.0
	residents := sortedResidentIDs(snap)
	if len(residents) == 0 || weeks == 0 {
		return stats
	}
	var total float64
	min, max := -1.0, 0.0
	for _, id := range residents {
		weekly := ledger.TotalHours(id) / weeks
		total += weekly
		if min < 0 || weekly < min {
			min = weekly
		}
		if weekly > max {
			max = weekly
		}
	}
	stats.AvgWeeklyHours = total / float64(len(residents))
	stats.MinWeeklyHours = min
	stats.MaxWeeklyHours = max
	return stats
}

func sortedResidentIDs(snap *Snapshot) []string {
	ids := make([]string, 0, len(snap.People))
	for id, p := range snap.People {
		if p.IsResident() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

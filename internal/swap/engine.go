// Package swap validates and executes exchanges of rotation weeks between
// two people, with a bounded rollback window. It depends only on the domain
// model; persistence of the resulting assignments is the caller's concern.
package swap

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/models"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

// DefaultRollbackWindow bounds how long after execution a swap may be undone.
const DefaultRollbackWindow = 24 * time.Hour

// allocationSkewFactor is the tolerance above the group's average weekly
// allocation before a swap draws a skew warning.
const allocationSkewFactor = 1.25

// Proposal describes one requested exchange.
type Proposal struct {
	SourcePersonID  string          `json:"source_person_id"`
	SourceWeekStart time.Time       `json:"source_week_start"`
	TargetPersonID  string          `json:"target_person_id"`
	TargetWeekStart time.Time       `json:"target_week_start"`
	Kind            models.SwapKind `json:"kind"`
	Reason          string          `json:"reason,omitempty"`
}

// ValidationResult reports the outcome of every swap rule. Errors block
// execution; warnings do not.
type ValidationResult struct {
	Valid              bool     `json:"valid"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
	BackToBackConflict bool     `json:"back_to_back_conflict"`
	ExternalConflict   bool     `json:"external_conflict"`
}

// Schedule is the in-memory view the engine operates on.
type Schedule struct {
	Blocks      map[string]models.Block
	Assignments []models.Assignment
	Absences    models.AbsenceIndex
	People      map[string]models.Person
}

// Config tunes engine behaviour.
type Config struct {
	RollbackWindow time.Duration
	Logger         *zap.Logger
	// Clock is injectable for tests; defaults to time.Now in UTC.
	Clock func() time.Time
}

// Engine executes validated swaps atomically and journals them so they can
// be rolled back within the window.
type Engine struct {
	mu       sync.Mutex
	window   time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	executed map[string]*journalEntry
}

type journalEntry struct {
	record models.SwapRecord
	// prior holds the exact assignments replaced by the swap, so rollback
	// restores the same person/block/version triples.
	prior   []models.Assignment
	applied []models.Assignment
}

// NewEngine builds a swap engine.
func NewEngine(cfg Config) *Engine {
	if cfg.RollbackWindow <= 0 {
		cfg.RollbackWindow = DefaultRollbackWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		window:   cfg.RollbackWindow,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		executed: make(map[string]*journalEntry),
	}
}

// WeekStart normalises a date to the Monday starting its week.
func WeekStart(date time.Time) time.Time {
	d := models.DateOnly(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Validate applies every swap rule to the proposal against the schedule.
func (e *Engine) Validate(p Proposal, sched *Schedule) ValidationResult {
	result := ValidationResult{Valid: true}

	sourceWeek := WeekStart(p.SourceWeekStart)
	targetWeek := WeekStart(p.TargetWeekStart)

	sourceAssignments := assignmentsInWeek(sched, p.SourcePersonID, sourceWeek)
	if len(sourceAssignments) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s holds no assignments in week %s", p.SourcePersonID, sourceWeek.Format("2006-01-02")))
	}
	targetAssignments := assignmentsInWeek(sched, p.TargetPersonID, targetWeek)
	if p.Kind == models.SwapOneToOne && len(targetAssignments) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s holds no assignments in week %s", p.TargetPersonID, targetWeek.Format("2006-01-02")))
	}
	if p.SourcePersonID == p.TargetPersonID {
		result.Valid = false
		result.Errors = append(result.Errors, "source and target must be different people")
	}

	// Back-to-back: after the swap, neither party may end up holding the
	// received week adjacent to a week they already work.
	if e.createsBackToBack(sched, p.TargetPersonID, sourceWeek, p, sourceWeek, targetWeek) {
		result.Valid = false
		result.BackToBackConflict = true
		result.Errors = append(result.Errors,
			fmt.Sprintf("swap would give %s back-to-back rotation weeks around %s", p.TargetPersonID, sourceWeek.Format("2006-01-02")))
	}
	if p.Kind == models.SwapOneToOne && e.createsBackToBack(sched, p.SourcePersonID, targetWeek, p, sourceWeek, targetWeek) {
		result.Valid = false
		result.BackToBackConflict = true
		result.Errors = append(result.Errors,
			fmt.Sprintf("swap would give %s back-to-back rotation weeks around %s", p.SourcePersonID, targetWeek.Format("2006-01-02")))
	}

	// External conflict: the receiving party must not be absent during the
	// received week.
	if absentDuringWeek(sched, p.TargetPersonID, sourceWeek) {
		result.Valid = false
		result.ExternalConflict = true
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s has an absence overlapping week %s", p.TargetPersonID, sourceWeek.Format("2006-01-02")))
	}
	if p.Kind == models.SwapOneToOne && absentDuringWeek(sched, p.SourcePersonID, targetWeek) {
		result.Valid = false
		result.ExternalConflict = true
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s has an absence overlapping week %s", p.SourcePersonID, targetWeek.Format("2006-01-02")))
	}

	// Occupancy: a moved block must not land on a person already assigned to
	// it, or execution would double-book the block.
	if receivedBlocksCollide(sched, p, p.TargetPersonID, sourceAssignments) {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s already holds assignments during week %s", p.TargetPersonID, sourceWeek.Format("2006-01-02")))
	}
	if p.Kind == models.SwapOneToOne && receivedBlocksCollide(sched, p, p.SourcePersonID, targetAssignments) {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("person %s already holds assignments during week %s", p.SourcePersonID, targetWeek.Format("2006-01-02")))
	}

	// Allocation skew: warn, but never refuse, when the swap pushes a party
	// materially above the group's average weekly allocation.
	if p.Kind == models.SwapAbsorb {
		if msg := e.allocationSkew(sched, p.TargetPersonID, 1); msg != "" {
			result.Warnings = append(result.Warnings, msg)
		}
	}

	if result.Errors == nil {
		result.Errors = []string{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return result
}

// Execute validates the proposal and, when it passes, applies the exchange
// atomically: both sides change or neither does. The returned assignment set
// is the full post-swap schedule.
func (e *Engine) Execute(p Proposal, sched *Schedule) (models.SwapRecord, []models.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	record := models.SwapRecord{
		ID:              uuid.NewString(),
		SourcePersonID:  p.SourcePersonID,
		SourceWeekStart: WeekStart(p.SourceWeekStart),
		TargetPersonID:  p.TargetPersonID,
		TargetWeekStart: WeekStart(p.TargetWeekStart),
		Kind:            p.Kind,
		Status:          models.SwapPending,
		Reason:          p.Reason,
		RequestedAt:     now,
	}

	validation := e.Validate(p, sched)
	if !validation.Valid {
		record.Status = models.SwapFailed
		e.logger.Warn("swap refused",
			zap.String("swap_id", record.ID),
			zap.Strings("errors", validation.Errors))
		return record, nil, appErrors.Clone(appErrors.ErrSwapValidation,
			fmt.Sprintf("swap refused: %v", validation.Errors))
	}

	prior, applied, updated := e.apply(p, sched, now)

	executedAt := now
	record.Status = models.SwapExecuted
	record.ExecutedAt = &executedAt
	e.executed[record.ID] = &journalEntry{record: record, prior: prior, applied: applied}

	e.logger.Info("swap executed",
		zap.String("swap_id", record.ID),
		zap.String("kind", string(p.Kind)),
		zap.Int("assignments_moved", len(applied)))
	return record, updated, nil
}

// Rollback restores the pre-swap assignments exactly. Permitted only while
// the record is EXECUTED and the rollback window has not elapsed; anything
// else is a rejected operation, not a silent no-op.
func (e *Engine) Rollback(id string, sched *Schedule) (models.SwapRecord, []models.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.executed[id]
	if !ok {
		return models.SwapRecord{}, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("swap %s not found", id))
	}
	if entry.record.Status != models.SwapExecuted {
		return entry.record, nil, appErrors.Clone(appErrors.ErrSwapState,
			fmt.Sprintf("swap %s is %s, only EXECUTED swaps can be rolled back", id, entry.record.Status))
	}
	if e.clock().Sub(*entry.record.ExecutedAt) >= e.window {
		return entry.record, nil, appErrors.Clone(appErrors.ErrRollbackWindow,
			fmt.Sprintf("swap %s executed at %s, rollback window of %s has elapsed",
				id, entry.record.ExecutedAt.Format(time.RFC3339), e.window))
	}

	removed := make(map[string]bool, len(entry.applied))
	for _, a := range entry.applied {
		removed[a.ID] = true
	}
	updated := make([]models.Assignment, 0, len(sched.Assignments))
	for _, a := range sched.Assignments {
		if !removed[a.ID] {
			updated = append(updated, a)
		}
	}
	updated = append(updated, entry.prior...)

	if !entry.record.Status.CanTransition(models.SwapRolledBack) {
		return entry.record, nil, appErrors.Clone(appErrors.ErrSwapState, "illegal swap state transition")
	}
	entry.record.Status = models.SwapRolledBack
	sched.Assignments = updated

	e.logger.Info("swap rolled back", zap.String("swap_id", id))
	return entry.record, updated, nil
}

// Record returns the journal entry for a swap id.
func (e *Engine) Record(id string) (models.SwapRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.executed[id]; ok {
		return entry.record, true
	}
	return models.SwapRecord{}, false
}

// apply performs the reciprocal (or absorb) replacement and returns the
// replaced originals, their replacements, and the full updated set.
func (e *Engine) apply(p Proposal, sched *Schedule, now time.Time) (prior, applied, updated []models.Assignment) {
	sourceWeek := WeekStart(p.SourceWeekStart)
	targetWeek := WeekStart(p.TargetWeekStart)

	move := func(a models.Assignment, toPerson string) models.Assignment {
		next := a
		next.ID = a.BlockID + ":" + toPerson
		next.PersonID = toPerson
		next.Version = a.Version + 1
		next.UpdatedAt = now
		return next
	}

	touched := make(map[string]bool)
	for _, a := range sched.Assignments {
		block, ok := sched.Blocks[a.BlockID]
		if !ok {
			continue
		}
		week := WeekStart(block.Date)
		switch {
		case a.PersonID == p.SourcePersonID && week.Equal(sourceWeek):
			prior = append(prior, a)
			applied = append(applied, move(a, p.TargetPersonID))
			touched[a.ID] = true
		case p.Kind == models.SwapOneToOne && a.PersonID == p.TargetPersonID && week.Equal(targetWeek):
			prior = append(prior, a)
			applied = append(applied, move(a, p.SourcePersonID))
			touched[a.ID] = true
		}
	}

	updated = make([]models.Assignment, 0, len(sched.Assignments))
	for _, a := range sched.Assignments {
		if !touched[a.ID] {
			updated = append(updated, a)
		}
	}
	updated = append(updated, applied...)
	sched.Assignments = updated
	return prior, applied, updated
}

// createsBackToBack reports whether giving receivedWeek to the person leaves
// them with an adjacent worked week once the swap's outgoing week is
// accounted for.
func (e *Engine) createsBackToBack(sched *Schedule, personID string, receivedWeek time.Time, p Proposal, sourceWeek, targetWeek time.Time) bool {
	weeks := make(map[time.Time]bool)
	for _, a := range sched.Assignments {
		if a.PersonID != personID {
			continue
		}
		block, ok := sched.Blocks[a.BlockID]
		if !ok {
			continue
		}
		weeks[WeekStart(block.Date)] = true
	}
	// A one-to-one swap also removes the week the person gives away.
	if p.Kind == models.SwapOneToOne {
		if personID == p.SourcePersonID {
			delete(weeks, sourceWeek)
		}
		if personID == p.TargetPersonID {
			delete(weeks, targetWeek)
		}
	}
	return weeks[receivedWeek.AddDate(0, 0, -7)] || weeks[receivedWeek.AddDate(0, 0, 7)]
}

func (e *Engine) allocationSkew(sched *Schedule, personID string, gainedWeeks int) string {
	weeksByPerson := make(map[string]map[time.Time]bool)
	for _, a := range sched.Assignments {
		block, ok := sched.Blocks[a.BlockID]
		if !ok {
			continue
		}
		if weeksByPerson[a.PersonID] == nil {
			weeksByPerson[a.PersonID] = make(map[time.Time]bool)
		}
		weeksByPerson[a.PersonID][WeekStart(block.Date)] = true
	}
	if len(weeksByPerson) == 0 {
		return ""
	}
	var total int
	for _, weeks := range weeksByPerson {
		total += len(weeks)
	}
	target := float64(total) / float64(len(weeksByPerson))
	after := float64(len(weeksByPerson[personID]) + gainedWeeks)
	if after > target*allocationSkewFactor {
		return fmt.Sprintf("person %s would hold %.0f weeks against a group target of %.1f", personID, after, target)
	}
	return ""
}

func absentDuringWeek(sched *Schedule, personID string, weekStart time.Time) bool {
	for i := 0; i < 7; i++ {
		if sched.Absences.Absent(personID, weekStart.AddDate(0, 0, i)) {
			return true
		}
	}
	return false
}

// receivedBlocksCollide reports whether the receiver already holds one of the
// incoming blocks, discounting assignments that leave their schedule in the
// same reciprocal exchange.
func receivedBlocksCollide(sched *Schedule, p Proposal, receiverID string, incoming []models.Assignment) bool {
	blockIDs := make(map[string]bool, len(incoming))
	for _, a := range incoming {
		blockIDs[a.BlockID] = true
	}
	for _, a := range sched.Assignments {
		if a.PersonID != receiverID || !blockIDs[a.BlockID] {
			continue
		}
		if p.Kind == models.SwapOneToOne {
			block, ok := sched.Blocks[a.BlockID]
			if !ok {
				continue
			}
			week := WeekStart(block.Date)
			if receiverID == p.SourcePersonID && week.Equal(WeekStart(p.SourceWeekStart)) {
				continue
			}
			if receiverID == p.TargetPersonID && week.Equal(WeekStart(p.TargetWeekStart)) {
				continue
			}
		}
		return true
	}
	return false
}

func assignmentsInWeek(sched *Schedule, personID string, weekStart time.Time) []models.Assignment {
	weekEnd := weekStart.AddDate(0, 0, 6)
	var out []models.Assignment
	for _, a := range sched.Assignments {
		if a.PersonID != personID {
			continue
		}
		block, ok := sched.Blocks[a.BlockID]
		if !ok {
			continue
		}
		d := models.DateOnly(block.Date)
		if !d.Before(weekStart) && !d.After(weekEnd) {
			out = append(out, a)
		}
	}
	return out
}

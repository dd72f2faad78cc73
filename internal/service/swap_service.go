package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/dto"
	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/swap"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

type swapStore interface {
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, record *models.SwapRecord) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SwapStatus) error
	FindByID(ctx context.Context, id string) (*models.SwapRecord, error)
}

type swapAssignmentStore interface {
	ListByRange(ctx context.Context, start, end time.Time) ([]models.Assignment, error)
	ReplaceForSwapWithTx(ctx context.Context, tx *sqlx.Tx, removed, inserted []models.Assignment) error
}

// SwapService runs swap proposals through the engine and keeps the stored
// schedule in step with the engine's in-memory view.
type SwapService struct {
	engine      *swap.Engine
	roster      rosterReader
	assignments swapAssignmentStore
	swaps       swapStore
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewSwapService wires the swap pipeline.
func NewSwapService(
	engine *swap.Engine,
	roster rosterReader,
	assignments swapAssignmentStore,
	swaps swapStore,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapService{
		engine:      engine,
		roster:      roster,
		assignments: assignments,
		swaps:       swaps,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
	}
}

// Validate runs every swap rule without changing any state.
func (s *SwapService) Validate(ctx context.Context, req dto.SwapRequest) (*dto.SwapResponse, error) {
	proposal, err := s.proposal(req)
	if err != nil {
		return nil, err
	}
	sched, err := s.loadSchedule(ctx, proposal)
	if err != nil {
		return nil, err
	}
	result := s.engine.Validate(proposal, sched)
	return &dto.SwapResponse{Success: result.Valid, Validation: &result}, nil
}

// Execute validates and applies a swap, then persists both the swap record
// and the moved assignments in one transaction. A proposal that fails
// validation is journalled as FAILED and reported without an error; the
// caller inspects Success.
func (s *SwapService) Execute(ctx context.Context, req dto.SwapRequest) (*dto.SwapResponse, error) {
	proposal, err := s.proposal(req)
	if err != nil {
		return nil, err
	}
	sched, err := s.loadSchedule(ctx, proposal)
	if err != nil {
		return nil, err
	}

	validation := s.engine.Validate(proposal, sched)
	before := indexByID(sched.Assignments)

	record, updated, execErr := s.engine.Execute(proposal, sched)
	if s.metrics != nil {
		s.metrics.ObserveSwap(string(proposal.Kind), string(record.Status))
	}
	if execErr != nil {
		if appErr := appErrors.FromError(execErr); appErr.Code == appErrors.ErrSwapValidation.Code {
			if err := s.persistRecord(ctx, &record); err != nil {
				return nil, err
			}
			return &dto.SwapResponse{
				Success:    false,
				SwapID:     record.ID,
				Status:     string(record.Status),
				Validation: &validation,
			}, nil
		}
		return nil, execErr
	}

	removed, inserted := diffAssignments(before, updated)
	if err := s.persistSwap(ctx, &record, removed, inserted); err != nil {
		return nil, err
	}

	s.logger.Info("swap persisted",
		zap.String("swap_id", record.ID),
		zap.Int("assignments_replaced", len(inserted)))
	return &dto.SwapResponse{
		Success:    true,
		SwapID:     record.ID,
		Status:     string(record.Status),
		Validation: &validation,
	}, nil
}

// Rollback undoes an executed swap while its rollback window is open and
// restores the stored assignments to their pre-swap state.
func (s *SwapService) Rollback(ctx context.Context, swapID string) (*dto.SwapResponse, error) {
	record, ok := s.engine.Record(swapID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "swap "+swapID+" not found")
	}

	sched, err := s.loadScheduleForWeeks(ctx, record.SourceWeekStart, record.TargetWeekStart)
	if err != nil {
		return nil, err
	}
	before := indexByID(sched.Assignments)

	rolled, updated, err := s.engine.Rollback(swapID, sched)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveSwap(string(rolled.Kind), string(rolled.Status))
	}

	removed, inserted := diffAssignments(before, updated)
	if err := s.persistRollback(ctx, rolled.ID, removed, inserted); err != nil {
		return nil, err
	}

	s.logger.Info("swap rollback persisted", zap.String("swap_id", rolled.ID))
	return &dto.SwapResponse{
		Success: true,
		SwapID:  rolled.ID,
		Status:  string(rolled.Status),
	}, nil
}

// Status reports the stored record for a swap, falling back to the engine
// journal when the database has no row yet.
func (s *SwapService) Status(ctx context.Context, swapID string) (*models.SwapRecord, error) {
	if s.swaps != nil {
		if record, err := s.swaps.FindByID(ctx, swapID); err == nil {
			return record, nil
		}
	}
	if record, ok := s.engine.Record(swapID); ok {
		return &record, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "swap "+swapID+" not found")
}

func (s *SwapService) proposal(req dto.SwapRequest) (swap.Proposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return swap.Proposal{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	proposal, err := req.ToProposal()
	if err != nil {
		return swap.Proposal{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap week dates")
	}
	return proposal, nil
}

func (s *SwapService) loadSchedule(ctx context.Context, p swap.Proposal) (*swap.Schedule, error) {
	return s.loadScheduleForWeeks(ctx, p.SourceWeekStart, p.TargetWeekStart)
}

// loadScheduleForWeeks widens the range by a week on each side so adjacency
// checks see the neighbouring rotations.
func (s *SwapService) loadScheduleForWeeks(ctx context.Context, weeks ...time.Time) (*swap.Schedule, error) {
	start := swap.WeekStart(weeks[0])
	end := start
	for _, w := range weeks[1:] {
		ws := swap.WeekStart(w)
		if ws.Before(start) {
			start = ws
		}
		if ws.After(end) {
			end = ws
		}
	}
	start = start.AddDate(0, 0, -7)
	end = end.AddDate(0, 0, 13)

	assignments, err := s.assignments.ListByRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	people, err := s.roster.ListPeople(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	absences, err := s.roster.ListAbsences(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}

	blocks := make(map[string]models.Block)
	for _, b := range models.BlocksForRange(start, end) {
		blocks[b.ID] = b
	}
	peopleByID := make(map[string]models.Person, len(people))
	for _, p := range people {
		peopleByID[p.ID] = p
	}
	return &swap.Schedule{
		Blocks:      blocks,
		Assignments: assignments,
		Absences:    models.NewAbsenceIndex(absences),
		People:      peopleByID,
	}, nil
}

func (s *SwapService) persistRecord(ctx context.Context, record *models.SwapRecord) error {
	if s.tx == nil || s.swaps == nil {
		return nil
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err := s.swaps.CreateWithTx(ctx, tx, record); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist swap record")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap record")
	}
	return nil
}

func (s *SwapService) persistSwap(ctx context.Context, record *models.SwapRecord, removed, inserted []models.Assignment) error {
	if s.tx == nil || s.swaps == nil {
		return nil
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err := s.swaps.CreateWithTx(ctx, tx, record); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist swap record")
	}
	if err := s.assignments.ReplaceForSwapWithTx(ctx, tx, removed, inserted); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap")
	}
	return nil
}

func (s *SwapService) persistRollback(ctx context.Context, swapID string, removed, inserted []models.Assignment) error {
	if s.tx == nil || s.swaps == nil {
		return nil
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err := s.swaps.UpdateStatus(ctx, tx, swapID, models.SwapRolledBack); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update swap status")
	}
	if err := s.assignments.ReplaceForSwapWithTx(ctx, tx, removed, inserted); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rollback")
	}
	return nil
}

func indexByID(assignments []models.Assignment) map[string]models.Assignment {
	out := make(map[string]models.Assignment, len(assignments))
	for _, a := range assignments {
		out[a.ID] = a
	}
	return out
}

// diffAssignments splits a post-change set against the pre-change index into
// the rows to delete and the rows to insert.
func diffAssignments(before map[string]models.Assignment, after []models.Assignment) (removed, inserted []models.Assignment) {
	afterIDs := make(map[string]bool, len(after))
	for _, a := range after {
		afterIDs[a.ID] = true
		if _, ok := before[a.ID]; !ok {
			inserted = append(inserted, a)
		}
	}
	for id, a := range before {
		if !afterIDs[id] {
			removed = append(removed, a)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	sort.Slice(inserted, func(i, j int) bool { return inserted[i].ID < inserted[j].ID })
	return removed, inserted
}

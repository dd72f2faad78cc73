package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/dto"
	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/scheduler"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

type rosterReader interface {
	ListPeople(ctx context.Context) ([]models.Person, error)
	ListTemplates(ctx context.Context) ([]models.RotationTemplate, error)
	ListAbsences(ctx context.Context, start, end time.Time) ([]models.Absence, error)
}

type assignmentWriter interface {
	ListByRange(ctx context.Context, start, end time.Time) ([]models.Assignment, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, assignments []models.Assignment) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ScheduleService loads the roster snapshot, runs the generation coordinator
// and persists accepted schedules.
type ScheduleService struct {
	roster      rosterReader
	assignments assignmentWriter
	coordinator *scheduler.Coordinator
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewScheduleService wires the generation pipeline.
func NewScheduleService(
	roster rosterReader,
	assignments assignmentWriter,
	coordinator *scheduler.Coordinator,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		roster:      roster,
		assignments: assignments,
		coordinator: coordinator,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
	}
}

// Generate runs one schedule generation and persists the result when any
// assignments were produced. Partial results are persisted too; the caller
// distinguishes them by status.
func (s *ScheduleService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	coreReq, err := req.ToCoreRequest()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}

	people, err := s.roster.ListPeople(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	templates, err := s.roster.ListTemplates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation templates")
	}
	absences, err := s.roster.ListAbsences(ctx, coreReq.Start, coreReq.End)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}
	existing, err := s.assignments.ListByRange(ctx, coreReq.Start, coreReq.End)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}

	started := time.Now()
	result, err := s.coordinator.Generate(ctx, coreReq, scheduler.Roster{
		People:    people,
		Templates: templates,
		Absences:  absences,
		Existing:  existing,
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(result.Replayed)
		s.metrics.ObserveGeneration(string(coreReq.Algorithm), string(result.Status), time.Since(started))
	}

	if len(result.Assignments) > 0 && !result.Replayed && s.tx != nil {
		if err := s.persist(ctx, result.Assignments); err != nil {
			return nil, err
		}
	}

	resp := dto.FromResult(result)
	return &resp, nil
}

// Run returns a completed generation run while its result is retained.
func (s *ScheduleService) Run(runID string) (*dto.GenerateScheduleResponse, error) {
	result, ok := s.coordinator.ResultByRun(runID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation run "+runID+" not found")
	}
	resp := dto.FromResult(result)
	return &resp, nil
}

func (s *ScheduleService) persist(ctx context.Context, assignments []models.Assignment) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err := s.assignments.BulkCreateWithTx(ctx, tx, assignments); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignments")
	}
	return nil
}

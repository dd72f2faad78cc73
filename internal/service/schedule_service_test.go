package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinrota/clinrota-api/internal/dto"
	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/scheduler"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

type rosterStub struct {
	people    []models.Person
	templates []models.RotationTemplate
	absences  []models.Absence
}

func (s *rosterStub) ListPeople(ctx context.Context) ([]models.Person, error) {
	return s.people, nil
}

func (s *rosterStub) ListTemplates(ctx context.Context) ([]models.RotationTemplate, error) {
	return s.templates, nil
}

func (s *rosterStub) ListAbsences(ctx context.Context, start, end time.Time) ([]models.Absence, error) {
	return s.absences, nil
}

type assignmentStoreStub struct {
	existing []models.Assignment
	created  [][]models.Assignment
	removed  []models.Assignment
	inserted []models.Assignment
}

func (s *assignmentStoreStub) ListByRange(ctx context.Context, start, end time.Time) ([]models.Assignment, error) {
	return s.existing, nil
}

func (s *assignmentStoreStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, assignments []models.Assignment) error {
	s.created = append(s.created, assignments)
	return nil
}

// ReplaceForSwapWithTx applies the delta to the in-memory set so follow-up
// loads see the post-swap schedule, the way reads after a committed
// transaction would.
func (s *assignmentStoreStub) ReplaceForSwapWithTx(ctx context.Context, tx *sqlx.Tx, removed, inserted []models.Assignment) error {
	s.removed = append(s.removed, removed...)
	s.inserted = append(s.inserted, inserted...)

	drop := make(map[string]bool, len(removed))
	for _, a := range removed {
		drop[a.ID] = true
	}
	kept := make([]models.Assignment, 0, len(s.existing))
	for _, a := range s.existing {
		if !drop[a.ID] {
			kept = append(kept, a)
		}
	}
	s.existing = append(kept, inserted...)
	return nil
}

func newTxProviderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testPeople() []models.Person {
	var people []models.Person
	n := 0
	for level := 1; level <= 3; level++ {
		for i := 0; i < 3; i++ {
			n++
			id := "r" + strconv.Itoa(n)
			people = append(people, models.Person{ID: id, Name: id, Role: models.RoleResident, PGYLevel: level})
		}
	}
	for i := 1; i <= 12; i++ {
		id := "f" + strconv.Itoa(i)
		people = append(people, models.Person{ID: id, Name: id, Role: models.RoleFaculty})
	}
	return people
}

func testTemplates() []models.RotationTemplate {
	return []models.RotationTemplate{{
		ID: "ward", Activity: "ward rounds", SupervisionRatio: 4, MinPGYLevel: 1,
	}}
}

func newScheduleServiceFixture(t *testing.T, tx txProvider) (*ScheduleService, *assignmentStoreStub, *MetricsService) {
	t.Helper()
	store := &assignmentStoreStub{}
	coordinator := scheduler.NewCoordinator(scheduler.CoordinatorConfig{})
	metrics := NewMetricsService()
	svc := NewScheduleService(
		&rosterStub{people: testPeople(), templates: testTemplates()},
		store, coordinator, tx, nil, zap.NewNop(), metrics)
	return svc, store, metrics
}

func TestScheduleServiceGenerateSuccess(t *testing.T) {
	db, mock := newTxProviderMock(t)
	svc, store, _ := newScheduleServiceFixture(t, db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{
		StartDate: "2026-01-05",
		EndDate:   "2026-01-11",
		Algorithm: "greedy",
	})
	require.NoError(t, err)

	assert.Equal(t, string(models.GenerationSuccess), resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1.0, resp.CoverageRate)
	require.Len(t, store.created, 1)
	assert.Equal(t, resp.Assignments, store.created[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleServiceGenerateRejectsBadPayload(t *testing.T) {
	svc, store, _ := newScheduleServiceFixture(t, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{
		StartDate: "05-01-2026",
		EndDate:   "2026-01-11",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.created)
}

func TestScheduleServiceGenerateRejectsUnknownAlgorithm(t *testing.T) {
	svc, _, _ := newScheduleServiceFixture(t, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{
		StartDate: "2026-01-05",
		EndDate:   "2026-01-11",
		Algorithm: "tabu_search",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceIdempotentReplay(t *testing.T) {
	db, mock := newTxProviderMock(t)
	svc, store, metrics := newScheduleServiceFixture(t, db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	req := dto.GenerateScheduleRequest{
		StartDate:      "2026-01-05",
		EndDate:        "2026-01-11",
		IdempotencyKey: "req-7",
	}
	first, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	// The replay serves the cached result; nothing is persisted twice.
	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Assignments, second.Assignments)
	require.Len(t, store.created, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleServiceRunLookup(t *testing.T) {
	db, mock := newTxProviderMock(t)
	svc, _, _ := newScheduleServiceFixture(t, db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{
		StartDate: "2026-01-05",
		EndDate:   "2026-01-11",
	})
	require.NoError(t, err)

	found, err := svc.Run(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, resp.RunID, found.RunID)

	_, err = svc.Run("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

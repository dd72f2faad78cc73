package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinrota/clinrota-api/internal/models"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
)

// AssignmentRepository persists schedule assignments with optimistic
// versioning.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByRange returns the assignments whose blocks fall inside the inclusive
// date range.
func (r *AssignmentRepository) ListByRange(ctx context.Context, start, end time.Time) ([]models.Assignment, error) {
	const query = `
SELECT a.id, a.block_id, a.person_id, a.template_id, a.role, a.version, a.created_at, a.updated_at
FROM assignments a
JOIN blocks b ON b.id = a.block_id
WHERE b.date BETWEEN $1 AND $2
ORDER BY a.block_id ASC, a.person_id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, models.DateOnly(start), models.DateOnly(end)); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// BulkCreateWithTx inserts generated assignments inside a transaction with
// their initial version.
func (r *AssignmentRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, assignments []models.Assignment) error {
	const query = `
INSERT INTO assignments (id, block_id, person_id, template_id, role, version, created_at, updated_at)
VALUES (:id, :block_id, :person_id, :template_id, :role, :version, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		if assignments[i].Version == 0 {
			assignments[i].Version = 1
		}
		assignments[i].CreatedAt = now
		assignments[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, assignments[i]); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("assignment %s already exists", assignments[i].ID))
			}
			return fmt.Errorf("insert assignment %s: %w", assignments[i].ID, err)
		}
	}
	return nil
}

// UpdateWithVersion applies a compare-and-swap update: the write succeeds
// only when the stored version matches the one the caller read. A mismatch
// is surfaced as a conflict, never silently overwritten.
func (r *AssignmentRepository) UpdateWithVersion(ctx context.Context, exec sqlx.ExtContext, a models.Assignment) error {
	const query = `
UPDATE assignments
SET person_id = $1, template_id = $2, role = $3, version = version + 1, updated_at = $4
WHERE id = $5 AND version = $6`
	result, err := exec.ExecContext(ctx, query, a.PersonID, a.TemplateID, a.Role, time.Now().UTC(), a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := sqlx.GetContext(ctx, exec, &exists, `SELECT 1 FROM assignments WHERE id = $1`, a.ID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assignment %s not found", a.ID))
			}
			return fmt.Errorf("check assignment existence: %w", err)
		}
		return appErrors.Clone(appErrors.ErrStaleVersion,
			fmt.Sprintf("assignment %s was updated concurrently, expected version %d", a.ID, a.Version))
	}
	return nil
}

// ReplaceForSwapWithTx removes the swapped-out assignments and inserts their
// replacements atomically within the caller's transaction.
func (r *AssignmentRepository) ReplaceForSwapWithTx(ctx context.Context, tx *sqlx.Tx, removed, inserted []models.Assignment) error {
	for _, a := range removed {
		result, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1 AND version = $2`, a.ID, a.Version)
		if err != nil {
			return fmt.Errorf("delete assignment %s: %w", a.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check deleted assignment rows: %w", err)
		}
		if affected == 0 {
			return appErrors.Clone(appErrors.ErrStaleVersion,
				fmt.Sprintf("assignment %s changed since the swap was validated", a.ID))
		}
	}
	return r.BulkCreateWithTx(ctx, tx, inserted)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinrota/clinrota-api/internal/models"
)

// SwapRepository persists swap records and their status transitions.
type SwapRepository struct {
	db *sqlx.DB
}

// NewSwapRepository constructs the repository.
func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// CreateWithTx inserts a swap record inside the caller's transaction.
func (r *SwapRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, record *models.SwapRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `
INSERT INTO swap_records (id, source_person_id, source_week_start, target_person_id, target_week_start,
                          kind, status, reason, requested_at, executed_at)
VALUES (:id, :source_person_id, :source_week_start, :target_person_id, :target_week_start,
        :kind, :status, :reason, :requested_at, :executed_at)`
	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert swap record: %w", err)
	}
	return nil
}

// UpdateStatus transitions a stored swap record.
func (r *SwapRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SwapStatus) error {
	result, err := exec.ExecContext(ctx, `UPDATE swap_records SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update swap status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated swap rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a swap record.
func (r *SwapRepository) FindByID(ctx context.Context, id string) (*models.SwapRecord, error) {
	const query = `
SELECT id, source_person_id, source_week_start, target_person_id, target_week_start,
       kind, status, reason, requested_at, executed_at
FROM swap_records
WHERE id = $1`
	var record models.SwapRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("find swap record: %w", err)
	}
	return &record, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinrota/clinrota-api/internal/models"
)

// RosterRepository loads the roster snapshot a generation run operates on.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListPeople returns every roster member with their credentials attached.
func (r *RosterRepository) ListPeople(ctx context.Context) ([]models.Person, error) {
	const peopleQuery = `
SELECT id, name, role, pgy_level, max_weekly_hours
FROM people
ORDER BY created_at ASC, id ASC`
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, peopleQuery); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	const credentialQuery = `
SELECT person_id, tag, valid_from, valid_until
FROM credentials
ORDER BY person_id ASC, tag ASC`
	var rows []struct {
		PersonID   string    `db:"person_id"`
		Tag        string    `db:"tag"`
		ValidFrom  time.Time `db:"valid_from"`
		ValidUntil time.Time `db:"valid_until"`
	}
	if err := r.db.SelectContext(ctx, &rows, credentialQuery); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	byPerson := make(map[string][]models.Credential, len(people))
	for _, row := range rows {
		byPerson[row.PersonID] = append(byPerson[row.PersonID], models.Credential{
			Tag:        row.Tag,
			ValidFrom:  row.ValidFrom,
			ValidUntil: row.ValidUntil,
		})
	}
	for i := range people {
		people[i].Credentials = byPerson[people[i].ID]
	}
	return people, nil
}

// ListTemplates returns all rotation templates.
func (r *RosterRepository) ListTemplates(ctx context.Context) ([]models.RotationTemplate, error) {
	const query = `
SELECT id, activity, required_credential, supervision_ratio, min_pgy_level
FROM rotation_templates
ORDER BY id ASC`
	var templates []models.RotationTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list rotation templates: %w", err)
	}
	return templates, nil
}

// ListAbsences returns absences overlapping the inclusive date range.
func (r *RosterRepository) ListAbsences(ctx context.Context, start, end time.Time) ([]models.Absence, error) {
	const query = `
SELECT id, person_id, start_date, end_date, type
FROM absences
WHERE start_date <= $2 AND end_date >= $1
ORDER BY person_id ASC, start_date ASC`
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, query, models.DateOnly(start), models.DateOnly(end)); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return absences, nil
}

package dto

import (
	"time"

	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/scheduler"
)

// GenerateScheduleRequest instructs the coordinator to build a schedule for
// the date range.
type GenerateScheduleRequest struct {
	StartDate         string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Algorithm         string   `json:"algorithm" validate:"omitempty,oneof=greedy constraint_search relaxation hybrid"`
	PGYLevels         []int    `json:"pgyLevels" validate:"omitempty,dive,min=1,max=3"`
	TemplateIDs       []string `json:"rotationTemplateIds"`
	TimeoutSeconds    int      `json:"timeoutSeconds" validate:"omitempty,min=5,max=300"`
	ResidentsPerBlock int      `json:"residentsPerBlock" validate:"omitempty,min=1,max=16"`
	IdempotencyKey    string   `json:"idempotencyKey"`
}

// ToCoreRequest converts the transport payload into the scheduler request.
func (r GenerateScheduleRequest) ToCoreRequest() (scheduler.Request, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return scheduler.Request{}, err
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return scheduler.Request{}, err
	}
	alg, err := scheduler.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return scheduler.Request{}, err
	}
	return scheduler.Request{
		Start:             start,
		End:               end,
		Algorithm:         alg,
		PGYLevels:         r.PGYLevels,
		TemplateIDs:       r.TemplateIDs,
		ResidentsPerBlock: r.ResidentsPerBlock,
		Timeout:           time.Duration(r.TimeoutSeconds) * time.Second,
		IdempotencyKey:    r.IdempotencyKey,
	}, nil
}

// GenerateScheduleResponse mirrors the coordinator result for transport.
type GenerateScheduleResponse struct {
	RunID        string              `json:"runId"`
	Status       string              `json:"status"`
	Assignments  []models.Assignment `json:"assignments"`
	Violations   []models.Violation  `json:"violations"`
	CoverageRate float64             `json:"coverageRate"`
	Unfilled     []string            `json:"unfilled,omitempty"`
	SolverStats  models.SolverStats  `json:"solverStats"`
	GeneratedAt  time.Time           `json:"generatedAt"`
}

// FromResult maps a coordinator result onto the response payload.
func FromResult(result *scheduler.Result) GenerateScheduleResponse {
	return GenerateScheduleResponse{
		RunID:        result.RunID,
		Status:       string(result.Status),
		Assignments:  result.Assignments,
		Violations:   result.Violations,
		CoverageRate: result.CoverageRate,
		Unfilled:     result.Unfilled,
		SolverStats:  result.Stats,
		GeneratedAt:  result.GeneratedAt,
	}
}

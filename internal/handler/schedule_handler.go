package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/clinrota-api/internal/dto"
	"github.com/clinrota/clinrota-api/internal/models"
	"github.com/clinrota/clinrota-api/internal/service"
	appErrors "github.com/clinrota/clinrota-api/pkg/errors"
	"github.com/clinrota/clinrota-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	Run(runID string) (*dto.GenerateScheduleResponse, error)
}

// ScheduleHandler exposes the schedule generation endpoints.
type ScheduleHandler struct {
	service scheduleGenerator
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Generate builds a schedule for the requested range. An Idempotency-Key
// header takes precedence over the body field, so retried requests replay
// the original result.
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	switch result.Status {
	case string(models.GenerationFailed):
		// The run produced no usable schedule; the body still carries the
		// violations and coverage gaps so the caller can see why.
		response.ErrorWithData(c, appErrors.Clone(appErrors.ErrInfeasible, ""), result)
	case string(models.GenerationPartial):
		response.JSON(c, http.StatusMultiStatus, result, nil)
	default:
		response.JSON(c, http.StatusOK, result, nil)
	}
}

// Run returns a completed generation run by id.
func (h *ScheduleHandler) Run(c *gin.Context) {
	result, err := h.service.Run(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

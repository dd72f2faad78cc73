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

type swapRunner interface {
	Validate(ctx context.Context, req dto.SwapRequest) (*dto.SwapResponse, error)
	Execute(ctx context.Context, req dto.SwapRequest) (*dto.SwapResponse, error)
	Rollback(ctx context.Context, swapID string) (*dto.SwapResponse, error)
	Status(ctx context.Context, swapID string) (*models.SwapRecord, error)
}

// SwapHandler exposes the swap endpoints.
type SwapHandler struct {
	service swapRunner
}

// NewSwapHandler constructs the handler.
func NewSwapHandler(svc *service.SwapService) *SwapHandler {
	return &SwapHandler{service: svc}
}

// Validate dry-runs a swap proposal and reports every rule outcome.
func (h *SwapHandler) Validate(c *gin.Context) {
	var req dto.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Execute applies a swap. A proposal that fails validation comes back with
// 422 and the full validation result so the caller can see every broken rule.
func (h *SwapHandler) Execute(c *gin.Context) {
	var req dto.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	result, err := h.service.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		response.JSON(c, http.StatusUnprocessableEntity, result, nil)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Rollback undoes an executed swap within its rollback window.
func (h *SwapHandler) Rollback(c *gin.Context) {
	result, err := h.service.Rollback(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status reports the record for a swap.
func (h *SwapHandler) Status(c *gin.Context) {
	record, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

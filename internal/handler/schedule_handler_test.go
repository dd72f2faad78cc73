package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota-api/internal/dto"
	"github.com/clinrota/clinrota-api/internal/models"
)

type scheduleGeneratorMock struct {
	captured dto.GenerateScheduleRequest
	result   *dto.GenerateScheduleResponse
	err      error
}

func (m *scheduleGeneratorMock) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	m.captured = req
	return m.result, m.err
}

func (m *scheduleGeneratorMock) Run(runID string) (*dto.GenerateScheduleResponse, error) {
	return m.result, m.err
}

func generateContext(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	req, err := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

const validGeneratePayload = `{"startDate":"2026-01-05","endDate":"2026-01-11"}`

func TestScheduleHandlerGenerateSuccess(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{result: &dto.GenerateScheduleResponse{
		RunID:  "run-1",
		Status: string(models.GenerationSuccess),
	}}
	handler := &ScheduleHandler{service: mockSvc}
	c, w := generateContext(t, validGeneratePayload)

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2026-01-05", mockSvc.captured.StartDate)
}

func TestScheduleHandlerGeneratePartialIsMultiStatus(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{result: &dto.GenerateScheduleResponse{
		RunID:        "run-2",
		Status:       string(models.GenerationPartial),
		CoverageRate: 0.8,
	}}
	handler := &ScheduleHandler{service: mockSvc}
	c, w := generateContext(t, validGeneratePayload)

	handler.Generate(c)

	require.Equal(t, http.StatusMultiStatus, w.Code)
}

func TestScheduleHandlerGenerateFailedIsInfeasible(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{result: &dto.GenerateScheduleResponse{
		RunID:    "run-3",
		Status:   string(models.GenerationFailed),
		Unfilled: []string{"2026-01-05-AM"},
	}}
	handler := &ScheduleHandler{service: mockSvc}
	c, w := generateContext(t, validGeneratePayload)

	handler.Generate(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var envelope struct {
		Data  dto.GenerateScheduleResponse `json:"data"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "INFEASIBLE", envelope.Error.Code)
	require.Equal(t, []string{"2026-01-05-AM"}, envelope.Data.Unfilled)
}

func TestScheduleHandlerGenerateValidation(t *testing.T) {
	handler := &ScheduleHandler{service: &scheduleGeneratorMock{}}
	c, w := generateContext(t, `{"startDate":`)

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerGenerateHeaderOverridesBodyKey(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{result: &dto.GenerateScheduleResponse{
		Status: string(models.GenerationSuccess),
	}}
	handler := &ScheduleHandler{service: mockSvc}
	c, w := generateContext(t, `{"startDate":"2026-01-05","endDate":"2026-01-11","idempotencyKey":"body-key"}`)
	c.Request.Header.Set("Idempotency-Key", "header-key")

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "header-key", mockSvc.captured.IdempotencyKey)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/extraction"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/orchestrator"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedCode   string
	}{
		{"validation", services.ErrEmptyInput, http.StatusBadRequest, "bad_request", "validation"},
		{"unauthorized", services.ErrInvalidIdentity, http.StatusUnauthorized, "unauthorized", "unauthorized"},
		{"unsupported media", services.ErrUnsupportedMIME, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media"},
		{"cancelled", services.ErrCancelled, http.StatusRequestTimeout, "request_timeout", "cancelled"},
		{"budget", services.ErrBudgetExceeded, http.StatusTooManyRequests, "rate_limit_exceeded", "budget_exceeded"},
		{"no eligible providers", services.ErrNoEligibleProviders, http.StatusServiceUnavailable, "service_unavailable", "capability_mismatch"},
		{"provider failure", services.ErrAllProvidersFailed, http.StatusBadGateway, "bad_gateway", "provider_failure"},
		{"fetch failure", services.ErrDocumentFetchFailed, http.StatusBadGateway, "bad_gateway", "fetch_failure"},
		{"wrapped domain error", fmt.Errorf("outer: %w", services.ErrEmptyInput), http.StatusBadRequest, "bad_request", "validation"},
		{"internal", services.WrapInternal("usage log unavailable", errors.New("dial")), http.StatusInternalServerError, "internal_error", "internal"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestHandleServiceError_HidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.WrapInternal("connection string postgres://u:p@db", errors.New("dial")), zap.NewNop())

	assert.NotContains(t, w.Body.String(), "postgres://")
	assert.Contains(t, w.Body.String(), "An internal error occurred")
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		err := utils.ValidateStruct(&TextExtractionRequest{})
		w := httptest.NewRecorder()
		HandleValidationError(w, err, zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "text is required", response.Details["text"])
	})

	t.Run("body too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, utils.ErrBodyTooLarge, zap.NewNop())
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("request body is empty"), zap.NewNop())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "request body is empty")
	})
}

func TestStatusForErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{orchestrator.CodeNoProvidersConfigured, http.StatusServiceUnavailable},
		{orchestrator.CodeNoEligibleProviders, http.StatusServiceUnavailable},
		{orchestrator.CodeBudgetExceeded, http.StatusTooManyRequests},
		{orchestrator.CodeAllProvidersFailed, http.StatusBadGateway},
		{extraction.CodeFetchFailed, http.StatusBadGateway},
		{extraction.CodeUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{extraction.CodeEmptyInput, http.StatusBadRequest},
		{extraction.CodeCancelled, http.StatusRequestTimeout},
		{"something_new", http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(ErrorForCode(tt.code, "")), tt.code)
	}
}

func TestErrorForCode(t *testing.T) {
	tests := []struct {
		code     string
		wantType services.ErrorType
	}{
		{orchestrator.CodeNoProvidersConfigured, services.ErrorTypeCapabilityMismatch},
		{orchestrator.CodeNoEligibleProviders, services.ErrorTypeCapabilityMismatch},
		{orchestrator.CodeBudgetExceeded, services.ErrorTypeBudgetExceeded},
		{orchestrator.CodeAllProvidersFailed, services.ErrorTypeProviderFailure},
		{extraction.CodeFetchFailed, services.ErrorTypeFetchFailure},
		{extraction.CodeUnsupportedMediaType, services.ErrorTypeUnsupportedMedia},
		{extraction.CodeEmptyInput, services.ErrorTypeValidation},
		{extraction.CodeCancelled, services.ErrorTypeCancelled},
		{"something_new", services.ErrorTypeProviderFailure},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ErrorForCode(tt.code, "upstream said no")
			assert.Equal(t, tt.wantType, err.Type)
			assert.Contains(t, err.Error(), "upstream said no")
		})
	}

	t.Run("sentinels stay untouched", func(t *testing.T) {
		err := ErrorForCode(orchestrator.CodeBudgetExceeded, "daily")
		err.WithDetail("scope", "daily")
		assert.True(t, errors.Is(err, services.ErrBudgetExceeded))
		assert.Nil(t, services.ErrBudgetExceeded.Err)
		assert.NotContains(t, services.ErrBudgetExceeded.Details, "scope")
	})
}

func TestWriteCodedFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeCodedFailure(w, extraction.CodeFetchFailed, "document download failed: 404",
		map[string]interface{}{"extraction_id": "ext-1"}, zap.NewNop())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, extraction.CodeFetchFailed, response.Code)
	assert.Equal(t, "fetch_failure", response.Details["error_type"])
	assert.Equal(t, "ext-1", response.Details["extraction_id"])
}

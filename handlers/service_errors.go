package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/extraction"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/orchestrator"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	status := statusForError(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		// Internal and unknown errors never leak their message
		logger.Error("internal server error",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		message = "An internal error occurred"
		details = nil
	}

	if err := utils.WriteCodedError(w, status, string(services.GetErrorType(err)), message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

func statusForError(err error) int {
	switch {
	case services.IsValidationError(err):
		return http.StatusBadRequest
	case services.IsUnauthorizedError(err):
		return http.StatusUnauthorized
	case services.IsUnsupportedMediaError(err):
		return http.StatusUnsupportedMediaType
	case services.IsCancelledError(err):
		return http.StatusRequestTimeout
	case services.IsBudgetError(err):
		return http.StatusTooManyRequests
	case services.IsCapabilityMismatchError(err):
		return http.StatusServiceUnavailable
	case services.IsProviderFailureError(err), services.IsFetchFailureError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	status := http.StatusBadRequest
	if errors.Is(err, utils.ErrBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	if err := utils.WriteError(w, status, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// codeErrors places gateway and pipeline error codes in the domain taxonomy
var codeErrors = map[string]*services.DomainError{
	orchestrator.CodeNoProvidersConfigured: services.ErrNoProvidersConfigured,
	orchestrator.CodeNoEligibleProviders:   services.ErrNoEligibleProviders,
	orchestrator.CodeBudgetExceeded:        services.ErrBudgetExceeded,
	orchestrator.CodeAllProvidersFailed:    services.ErrAllProvidersFailed,
	extraction.CodeEmptyInput:              services.ErrEmptyInput,
	extraction.CodeUnsupportedMediaType:    services.ErrUnsupportedMIME,
	extraction.CodeFetchFailed:             services.ErrDocumentFetchFailed,
	extraction.CodeCancelled:               services.ErrCancelled,
}

// ErrorForCode builds a DomainError for a gateway or pipeline error code.
// Unknown codes are provider failures.
func ErrorForCode(code, message string) *services.DomainError {
	base, ok := codeErrors[code]
	if !ok {
		base = services.ErrAllProvidersFailed
	}
	var cause error
	if message != "" {
		cause = errors.New(message)
	}
	return services.NewDomainError(base.Type, base.Message, cause)
}

// writeCodedFailure answers with the status of code's domain error. The
// body keeps the pipeline code and names the error type in details.
func writeCodedFailure(w http.ResponseWriter, code, message string, details map[string]interface{}, logger *zap.Logger) {
	domainErr := ErrorForCode(code, message)
	if details == nil {
		details = make(map[string]interface{}, 1)
	}
	details["error_type"] = string(domainErr.Type)
	if err := utils.WriteCodedError(w, statusForError(domainErr), code, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

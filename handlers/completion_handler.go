package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
	"github.com/Mustafabeshara/Dashboard2-sub000/services"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// CompletionRequest is the body of POST /api/v1/completions
type CompletionRequest struct {
	Prompt       string               `json:"prompt" validate:"required"`
	SystemPrompt string               `json:"system_prompt,omitempty"`
	TaskType     string               `json:"task_type,omitempty" validate:"omitempty,oneof=documentExtraction summarization vision complexAnalysis general"`
	MaxTokens    int                  `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=32768"`
	Temperature  *float64             `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Providers    []string             `json:"providers,omitempty" validate:"omitempty,dive,oneof=groq openai gemini anthropic"`
	Images       []providers.Image    `json:"images,omitempty" validate:"omitempty,max=8,dive"`
	Documents    []providers.Document `json:"documents,omitempty" validate:"omitempty,max=4,dive"`
	NoCache      bool                 `json:"no_cache,omitempty"`
}

// CompletionResponse is the success body of POST /api/v1/completions
type CompletionResponse struct {
	RequestID string `json:"request_id,omitempty"`
	providers.AIResponse
}

// Completer runs a request through the provider fallback chain
type Completer interface {
	Complete(ctx context.Context, req providers.AIRequest) providers.AIResponse
}

// LogScrubber makes user text safe for log fields
type LogScrubber interface {
	SafeForLog(text string) string
}

// CompletionHandler handles direct gateway completions
type CompletionHandler struct {
	completer Completer
	scrubber  LogScrubber
	maxBody   int64
	logger    *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler
func NewCompletionHandler(completer Completer, scrubber LogScrubber, maxBody int64, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		completer: completer,
		scrubber:  scrubber,
		maxBody:   maxBody,
		logger:    logger,
	}
}

// HandleComplete handles POST /api/v1/completions
func (h *CompletionHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body CompletionRequest
	if err := utils.DecodeJSON(r, &body, h.maxBody); err != nil {
		h.logger.Warn("invalid completion request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	req, err := body.toAIRequest(middleware.GetUserIDFromContext(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("processing completion",
		zap.String("request_id", requestID),
		zap.String("task_type", string(req.TaskType)),
		zap.String("prompt", h.scrubber.SafeForLog(req.Prompt)))

	resp := h.completer.Complete(ctx, req)
	if !resp.Success {
		h.logger.Warn("completion failed",
			zap.String("request_id", requestID),
			zap.String("error_code", resp.ErrorCode),
			zap.String("error", h.scrubber.SafeForLog(resp.Error)))
		details := map[string]interface{}{}
		if resp.StatusCode != 0 {
			details["provider_status"] = resp.StatusCode
		}
		writeCodedFailure(w, resp.ErrorCode, resp.Error, details, h.logger)
		return
	}

	if err := utils.WriteOK(w, CompletionResponse{RequestID: requestID, AIResponse: resp}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func (b CompletionRequest) toAIRequest(userID string) (providers.AIRequest, error) {
	req := providers.AIRequest{
		Prompt:       b.Prompt,
		SystemPrompt: b.SystemPrompt,
		Images:       b.Images,
		Documents:    b.Documents,
		MaxTokens:    b.MaxTokens,
		Temperature:  b.Temperature,
		TaskType:     providers.TaskType(b.TaskType),
		UserID:       userID,
		SkipCache:    b.NoCache,
	}
	for _, name := range b.Providers {
		kind, err := providers.ParseKind(name)
		if err != nil {
			return providers.AIRequest{}, services.WrapError(services.ErrorTypeValidation, "unknown provider "+name, err)
		}
		req.Preferred = append(req.Preferred, kind)
	}
	for _, doc := range req.Documents {
		if doc.Data == "" && doc.URL == "" {
			return providers.AIRequest{}, services.NewDomainError(services.ErrorTypeValidation, "invalid input", nil).WithDetail("documents", "each document needs data or url")
		}
	}
	return req, nil
}

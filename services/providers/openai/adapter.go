// Package openai implements the chat-completions wire format shared by
// OpenAI and Groq.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGroqBaseURL   = "https://api.groq.com/openai/v1"

	maxErrorBody = 4096
)

// Adapter implements providers.Adapter for chat-completions endpoints
type Adapter struct {
	kind       providers.Kind
	httpClient *http.Client
}

// NewAdapter creates a chat-completions adapter for kind (KindOpenAI or KindGroq)
func NewAdapter(kind providers.Kind, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		kind:       kind,
		httpClient: httpClient,
	}
}

// Kind returns the provider kind served by this adapter
func (a *Adapter) Kind() providers.Kind {
	return a.kind
}

// Complete performs a chat completion request
func (a *Adapter) Complete(ctx context.Context, cfg providers.ProviderConfig, req providers.AIRequest) providers.AIResponse {
	startTime := time.Now()

	if req.HasDocuments() {
		err := providers.NewProviderError(a.kind.String(), "UNSUPPORTED_INPUT", "file inputs are not supported", 0, false, nil)
		return providers.Failure(cfg, err, time.Since(startTime))
	}

	body, err := json.Marshal(a.buildChatRequest(cfg, req))
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err), time.Since(startTime))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL(cfg)+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "REQUEST_ERROR", "failed to create request", 0, false, err), time.Since(startTime))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "HTTP_ERROR", "HTTP request failed", 0, true, err), time.Since(startTime))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "READ_ERROR", "failed to read response", httpResp.StatusCode, true, err), time.Since(startTime))
	}

	if httpResp.StatusCode != http.StatusOK {
		return providers.Failure(cfg, a.handleErrorResponse(httpResp.StatusCode, respBody), time.Since(startTime))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "UNMARSHAL_ERROR", "malformed provider reply", httpResp.StatusCode, true, err), time.Since(startTime))
	}
	if len(chatResp.Choices) == 0 {
		return providers.Failure(cfg, providers.NewProviderError(a.kind.String(), "EMPTY_RESPONSE", "reply contained no choices", httpResp.StatusCode, true, nil), time.Since(startTime))
	}

	return a.convertToUnifiedResponse(cfg, &chatResp, time.Since(startTime))
}

func (a *Adapter) baseURL(cfg providers.ProviderConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if a.kind == providers.KindGroq {
		return defaultGroqBaseURL
	}
	return defaultOpenAIBaseURL
}

// buildChatRequest converts the normalized request to the chat-completions format
func (a *Adapter) buildChatRequest(cfg providers.ProviderConfig, req providers.AIRequest) *ChatRequest {
	chatReq := &ChatRequest{
		Model: cfg.Model,
	}

	if req.SystemPrompt != "" {
		chatReq.Messages = append(chatReq.Messages, Message{Role: "system", Content: req.SystemPrompt})
	}

	if req.HasImages() {
		parts := []ContentPart{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)},
			})
		}
		chatReq.Messages = append(chatReq.Messages, Message{Role: "user", Content: parts})
	} else {
		chatReq.Messages = append(chatReq.Messages, Message{Role: "user", Content: req.Prompt})
	}

	maxTokens := cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		chatReq.MaxTokens = &maxTokens
	}

	temperature := cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	chatReq.Temperature = &temperature

	return chatReq
}

// convertToUnifiedResponse converts a chat-completions reply to the normalized shape
func (a *Adapter) convertToUnifiedResponse(cfg providers.ProviderConfig, chatResp *ChatResponse, latency time.Duration) providers.AIResponse {
	model := chatResp.Model
	if model == "" {
		model = cfg.Model
	}
	return providers.AIResponse{
		Success:  true,
		Content:  chatResp.Choices[0].Message.Content,
		Provider: a.kind.String(),
		Model:    model,
		Usage: providers.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
		StatusCode: http.StatusOK,
		Latency:    latency,
	}
}

// handleErrorResponse maps an error reply to a ProviderError
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := providers.IsTransientStatus(statusCode)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.kind.String(), "HTTP_STATUS", fmt.Sprintf("HTTP %d: %s", statusCode, string(body)), statusCode, retryable, nil)
	}

	return providers.NewProviderError(
		a.kind.String(),
		errResp.Error.Type,
		fmt.Sprintf("HTTP %d", statusCode),
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Chat-completions request/response types

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Message content is either a string or a []ContentPart
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      ReplyMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

type ReplyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Package gemini implements the generateContent wire format
// (contents/parts, query-string API key).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	maxErrorBody   = 4096
)

// Adapter implements providers.Adapter for Gemini
type Adapter struct {
	httpClient *http.Client
}

// NewAdapter creates a Gemini adapter
func NewAdapter(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{httpClient: httpClient}
}

// Kind returns providers.KindGemini
func (a *Adapter) Kind() providers.Kind {
	return providers.KindGemini
}

// Complete performs a generateContent request
func (a *Adapter) Complete(ctx context.Context, cfg providers.ProviderConfig, req providers.AIRequest) providers.AIResponse {
	startTime := time.Now()
	name := a.Kind().String()

	gemReq, err := a.buildRequest(cfg, req)
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(name, "UNSUPPORTED_INPUT", err.Error(), 0, false, err), time.Since(startTime))
	}

	body, err := json.Marshal(gemReq)
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(name, "MARSHAL_ERROR", "failed to marshal request", 0, false, err), time.Since(startTime))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(name, "REQUEST_ERROR", "failed to create request", 0, false, err), time.Since(startTime))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		// the URL carries the key, keep it out of the error text
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return providers.Failure(cfg, providers.NewProviderError(name, "HTTP_ERROR", "HTTP request failed", 0, true, err), time.Since(startTime))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return providers.Failure(cfg, providers.NewProviderError(name, "READ_ERROR", "failed to read response", httpResp.StatusCode, true, err), time.Since(startTime))
	}

	if httpResp.StatusCode != http.StatusOK {
		return providers.Failure(cfg, handleErrorResponse(httpResp.StatusCode, respBody), time.Since(startTime))
	}

	var gemResp GenerateResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return providers.Failure(cfg, providers.NewProviderError(name, "UNMARSHAL_ERROR", "malformed provider reply", httpResp.StatusCode, true, err), time.Since(startTime))
	}

	text := gemResp.Text()
	if text == "" {
		reason := "reply contained no text"
		if gemResp.PromptFeedback != nil && gemResp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + gemResp.PromptFeedback.BlockReason
		}
		return providers.Failure(cfg, providers.NewProviderError(name, "EMPTY_RESPONSE", reason, httpResp.StatusCode, true, nil), time.Since(startTime))
	}

	return providers.AIResponse{
		Success:  true,
		Content:  text,
		Provider: name,
		Model:    cfg.Model,
		Usage: providers.Usage{
			InputTokens:  gemResp.UsageMetadata.PromptTokenCount,
			OutputTokens: gemResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  gemResp.UsageMetadata.TotalTokenCount,
		},
		StatusCode: http.StatusOK,
		Latency:    time.Since(startTime),
	}
}

func (a *Adapter) endpoint(cfg providers.ProviderConfig) string {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(base, "/"), url.PathEscape(cfg.Model), url.QueryEscape(cfg.APIKey))
}

// buildRequest converts the normalized request into contents/parts
func (a *Adapter) buildRequest(cfg providers.ProviderConfig, req providers.AIRequest) (*GenerateRequest, error) {
	parts := []Part{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, Part{InlineData: &InlineData{MimeType: img.MimeType, Data: img.Data}})
	}
	for _, doc := range req.Documents {
		if doc.Data == "" {
			return nil, errors.New("document must be inlined for gemini")
		}
		parts = append(parts, Part{InlineData: &InlineData{MimeType: doc.MimeType, Data: doc.Data}})
	}

	gemReq := &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
	}
	if req.SystemPrompt != "" {
		gemReq.SystemInstruction = &Content{Parts: []Part{{Text: req.SystemPrompt}}}
	}

	genCfg := GenerationConfig{Temperature: cfg.Temperature, MaxOutputTokens: cfg.MaxTokens}
	if req.Temperature != nil {
		genCfg.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = req.MaxTokens
	}
	gemReq.GenerationConfig = &genCfg

	return gemReq, nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	retryable := providers.IsTransientStatus(statusCode)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError("gemini", "HTTP_STATUS", fmt.Sprintf("HTTP %d: %s", statusCode, string(body)), statusCode, retryable, nil)
	}
	return providers.NewProviderError("gemini", errResp.Error.Status, fmt.Sprintf("HTTP %d", statusCode), statusCode, retryable, errors.New(errResp.Error.Message))
}

// Gemini request/response types

type GenerateRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type GenerateResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	UsageMetadata  UsageMetadata   `json:"usageMetadata"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Text concatenates the text parts of the first candidate
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

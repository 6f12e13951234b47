package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a provider variant. The set is closed; every Kind has
// exactly one Adapter in the registry table.
type Kind int

const (
	KindGroq Kind = iota
	KindOpenAI
	KindGemini
	KindAnthropic

	kindCount
)

var kindNames = [kindCount]string{
	KindGroq:      "groq",
	KindOpenAI:    "openai",
	KindGemini:    "gemini",
	KindAnthropic: "anthropic",
}

// String returns the provider identifier used in config and logs
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds
func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

// ParseKind resolves a provider identifier
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown provider %q", name)
}

// AllKinds returns every declared kind in declaration order
func AllKinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Adapter translates a normalized request into one vendor's wire format.
// Complete never returns an error: failures come back as a non-success
// AIResponse carrying the HTTP status and body.
type Adapter interface {
	Kind() Kind
	Complete(ctx context.Context, cfg ProviderConfig, req AIRequest) AIResponse
}

// TaskType is a logical category of request used for provider preference
type TaskType string

const (
	TaskDocumentExtraction TaskType = "documentExtraction"
	TaskSummarization      TaskType = "summarization"
	TaskVision             TaskType = "vision"
	TaskComplexAnalysis    TaskType = "complexAnalysis"
	TaskGeneral            TaskType = "general"
)

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	switch t {
	case TaskDocumentExtraction, TaskSummarization, TaskVision, TaskComplexAnalysis, TaskGeneral:
		return true
	}
	return false
}

// Capabilities are the feature flags a provider advertises
type Capabilities struct {
	Vision    bool `json:"vision"`
	Bilingual bool `json:"bilingual"`
	NativePDF bool `json:"native_pdf"`
}

// ProviderConfig describes one configured provider. Immutable after start.
type ProviderConfig struct {
	Kind    Kind
	APIKey  string
	BaseURL string
	Model   string

	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	RateLimitPerMinute int
	RateLimitPerDay    int

	// Priority orders providers, lower is tried first
	Priority int

	Capabilities Capabilities
	Enabled      bool

	// Pricing in USD per 1000 tokens
	InputPricePer1K  float64
	OutputPricePer1K float64
}

// Name returns the provider identifier
func (c ProviderConfig) Name() string {
	return c.Kind.String()
}

// Image is a base64-encoded image attached to a request
type Image struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Document is a file attached to a request. Providers with native PDF
// ingestion receive it as a file block; Data is base64.
type Document struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// AIRequest is the provider-agnostic request
type AIRequest struct {
	Prompt       string     `json:"prompt"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
	Images       []Image    `json:"images,omitempty"`
	Documents    []Document `json:"documents,omitempty"`
	MaxTokens    int        `json:"max_tokens,omitempty"`
	Temperature  *float64   `json:"temperature,omitempty"`
	TaskType     TaskType   `json:"task_type,omitempty"`
	UserID       string     `json:"user_id,omitempty"`

	// Preferred overrides the task preference table when set
	Preferred []Kind `json:"-"`

	// SkipCache forces a fresh provider call; the result is still cached
	SkipCache bool `json:"-"`
}

type userIDKey struct{}

// ContextWithUserID tags ctx with the caller identity charged for requests
// built further down the call chain
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the identity set by ContextWithUserID
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// HasImages reports whether the request carries image inputs
func (r AIRequest) HasImages() bool {
	return len(r.Images) > 0
}

// HasDocuments reports whether the request carries file inputs
func (r AIRequest) HasDocuments() bool {
	return len(r.Documents) > 0
}

// Usage is the normalized token usage breakdown
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// AIResponse is the normalized reply
type AIResponse struct {
	Success       bool          `json:"success"`
	Content       string        `json:"content"`
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	Usage         Usage         `json:"usage"`
	EstimatedCost float64       `json:"estimated_cost,omitempty"`
	Cached        bool          `json:"cached"`
	Error         string        `json:"error,omitempty"`
	ErrorCode     string        `json:"error_code,omitempty"`
	StatusCode    int           `json:"status_code,omitempty"`
	Retryable     bool          `json:"retryable,omitempty"`
	Latency       time.Duration `json:"latency"`
}

// Failure builds a non-success response from a provider error
func Failure(cfg ProviderConfig, err error, latency time.Duration) AIResponse {
	resp := AIResponse{
		Success:  false,
		Provider: cfg.Name(),
		Model:    cfg.Model,
		Error:    err.Error(),
		Latency:  latency,
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		resp.StatusCode = provErr.StatusCode
		resp.Retryable = provErr.Retryable
	}
	return resp
}

// Cost computes the USD cost of a usage breakdown under cfg's pricing
func (c ProviderConfig) Cost(u Usage) float64 {
	return float64(u.InputTokens)/1000*c.InputPricePer1K + float64(u.OutputTokens)/1000*c.OutputPricePer1K
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsTransientStatus reports HTTP statuses worth retrying
func IsTransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

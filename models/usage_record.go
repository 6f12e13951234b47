package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one completed provider call in the usage log
type UsageRecord struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RequestID string    `json:"request_id" db:"request_id"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`

	// Provider details
	Provider string `json:"provider" db:"provider"`
	Model    string `json:"model" db:"model"`
	TaskType string `json:"task_type" db:"task_type"`

	// Metrics
	InputTokens  int     `json:"input_tokens" db:"input_tokens"`
	OutputTokens int     `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int     `json:"total_tokens" db:"total_tokens"`
	Cost         float64 `json:"cost" db:"cost"`
	LatencyMs    int     `json:"latency_ms" db:"latency_ms"`

	Success      bool    `json:"success" db:"success"`
	StatusCode   int     `json:"status_code" db:"status_code"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UsageRecord model
func (UsageRecord) TableName() string {
	return "ai_usage_logs"
}

// NewUsageRecord creates a usage record for a provider call
func NewUsageRecord(requestID, provider, model, taskType string) *UsageRecord {
	return &UsageRecord{
		ID:        uuid.New(),
		RequestID: requestID,
		Provider:  provider,
		Model:     model,
		TaskType:  taskType,
		CreatedAt: time.Now().UTC(),
	}
}

// SetUser sets the user ID; empty ids are stored as NULL
func (r *UsageRecord) SetUser(userID string) {
	if userID == "" {
		r.UserID = nil
		return
	}
	r.UserID = &userID
}

// MarkAsCompleted records token counts and cost of a successful call
func (r *UsageRecord) MarkAsCompleted(inputTokens, outputTokens int, cost float64, latency time.Duration) {
	r.Success = true
	r.InputTokens = inputTokens
	r.OutputTokens = outputTokens
	r.TotalTokens = inputTokens + outputTokens
	r.Cost = cost
	r.LatencyMs = int(latency.Milliseconds())
	r.ErrorMessage = nil
}

// MarkAsFailed records a failed call
func (r *UsageRecord) MarkAsFailed(statusCode int, errorMessage string, latency time.Duration) {
	r.Success = false
	r.StatusCode = statusCode
	r.ErrorMessage = &errorMessage
	r.LatencyMs = int(latency.Milliseconds())
}

// TokenAggregate is the summed usage for one provider/model pair
type TokenAggregate struct {
	Provider     string `json:"provider" db:"provider"`
	Model        string `json:"model" db:"model"`
	InputTokens  int64  `json:"input_tokens" db:"input_tokens"`
	OutputTokens int64  `json:"output_tokens" db:"output_tokens"`
	Requests     int64  `json:"requests" db:"requests"`
}

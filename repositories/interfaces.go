package repositories

import (
	"context"
	"time"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
)

// UsageLogRepository is the append-only log of completed provider calls.
// The budget governor reads spend back from it.
type UsageLogRepository interface {
	// Append inserts a usage record
	Append(ctx context.Context, rec *models.UsageRecord) error

	// AggregateTokens sums successful calls in [from, to) per provider/model.
	// An empty userID aggregates across all users.
	AggregateTokens(ctx context.Context, from, to time.Time, userID string) ([]models.TokenAggregate, error)

	// DeleteOlderThan removes records created before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	UsageLogs UsageLogRepository
}

package postgres

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
	"github.com/Mustafabeshara/Dashboard2-sub000/repositories"
)

// UsageLogRepository implements the repositories.UsageLogRepository interface
type UsageLogRepository struct {
	db     Executor
	logger *zap.Logger
}

// NewUsageLogRepository creates a new usage log repository
func NewUsageLogRepository(db Executor, logger *zap.Logger) repositories.UsageLogRepository {
	return &UsageLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a usage record
func (r *UsageLogRepository) Append(ctx context.Context, rec *models.UsageRecord) error {
	query := `
		INSERT INTO ai_usage_logs (
			id, request_id, user_id, provider, model, task_type,
			input_tokens, output_tokens, total_tokens, cost, latency_ms,
			success, status_code, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.UserID,
		rec.Provider,
		rec.Model,
		rec.TaskType,
		rec.InputTokens,
		rec.OutputTokens,
		rec.TotalTokens,
		rec.Cost,
		rec.LatencyMs,
		rec.Success,
		rec.StatusCode,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "failed to append usage record")
	}

	r.logger.Debug("usage record appended",
		zap.String("id", rec.ID.String()),
		zap.String("provider", rec.Provider),
		zap.Bool("success", rec.Success),
	)
	return nil
}

// AggregateTokens sums successful calls in [from, to) per provider/model
func (r *UsageLogRepository) AggregateTokens(ctx context.Context, from, to time.Time, userID string) ([]models.TokenAggregate, error) {
	query := `
		SELECT provider, model,
		       COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COUNT(*)
		FROM ai_usage_logs
		WHERE success = true AND created_at >= $1 AND created_at < $2
	`
	args := []interface{}{from, to}
	if userID != "" {
		query += ` AND user_id = $3`
		args = append(args, userID)
	}
	query += ` GROUP BY provider, model ORDER BY provider, model`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to aggregate usage")
	}
	defer rows.Close()

	aggregates := make([]models.TokenAggregate, 0)
	for rows.Next() {
		var agg models.TokenAggregate
		if err := rows.Scan(&agg.Provider, &agg.Model, &agg.InputTokens, &agg.OutputTokens, &agg.Requests); err != nil {
			return nil, eris.Wrap(err, "failed to scan usage aggregate")
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating usage aggregates")
	}

	return aggregates, nil
}

// DeleteOlderThan removes records created before cutoff
func (r *UsageLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ai_usage_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "failed to delete old usage records")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "failed to get rows affected")
	}
	r.logger.Info("deleted old usage records", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}

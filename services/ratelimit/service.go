package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
)

// RateLimitWindow represents the time window for rate limiting
type RateLimitWindow string

const (
	WindowMinute RateLimitWindow = "minute"
	WindowDay    RateLimitWindow = "day"
)

// Duration returns the window length
func (w RateLimitWindow) Duration() time.Duration {
	if w == WindowDay {
		return 24 * time.Hour
	}
	return time.Minute
}

// RateLimitResult represents the result of an eligibility check
type RateLimitResult struct {
	Allowed           bool
	RequestsRemaining int
	ResetAt           time.Time
	ViolatedWindow    RateLimitWindow
	ViolationReason   string
}

// RateLimitStatus is the per-provider tracker view
type RateLimitStatus struct {
	Provider           string    `json:"provider"`
	RequestsThisMinute int       `json:"requests_this_minute"`
	MinuteLimit        int       `json:"minute_limit"`
	MinuteResetAt      time.Time `json:"minute_reset_at,omitempty"`
	RequestsToday      int       `json:"requests_today"`
	DayLimit           int       `json:"day_limit"`
	DayResetAt         time.Time `json:"day_reset_at,omitempty"`
	Eligible           bool      `json:"eligible"`
}

// RateLimitService tracks per-provider request counts in a store.
// Windows open on the first counted request and reset lazily once their
// end has passed; no timer is needed for correctness.
type RateLimitService struct {
	store  store.Store
	logger *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(st store.Store, logger *zap.Logger) *RateLimitService {
	return &RateLimitService{
		store:  st,
		logger: logger,
	}
}

// CheckLimit reports whether cfg's provider is below both its minute and day limits
func (s *RateLimitService) CheckLimit(ctx context.Context, cfg providers.ProviderConfig) (*RateLimitResult, error) {
	windows := []struct {
		window RateLimitWindow
		limit  int
	}{
		{WindowMinute, cfg.RateLimitPerMinute},
		{WindowDay, cfg.RateLimitPerDay},
	}

	result := &RateLimitResult{Allowed: true, RequestsRemaining: -1}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, resetAt, err := s.current(ctx, cfg.Name(), w.window)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s window: %w", w.window, err)
		}
		remaining := w.limit - count
		if remaining <= 0 {
			return &RateLimitResult{
				Allowed:           false,
				RequestsRemaining: 0,
				ResetAt:           resetAt,
				ViolatedWindow:    w.window,
				ViolationReason:   fmt.Sprintf("exceeded %d requests per %s", w.limit, w.window),
			}, nil
		}
		if result.RequestsRemaining < 0 || remaining < result.RequestsRemaining {
			result.RequestsRemaining = remaining
			result.ResetAt = resetAt
		}
	}
	return result, nil
}

// IsEligible is CheckLimit reduced to a bool. A store failure is logged and
// treated as eligible so a broken counter store cannot block every provider.
func (s *RateLimitService) IsEligible(ctx context.Context, cfg providers.ProviderConfig) bool {
	result, err := s.CheckLimit(ctx, cfg)
	if err != nil {
		s.logger.Warn("rate limit check failed",
			zap.String("provider", cfg.Name()),
			zap.Error(err),
		)
		return true
	}
	if !result.Allowed {
		s.logger.Debug("provider rate limited",
			zap.String("provider", cfg.Name()),
			zap.String("window", string(result.ViolatedWindow)),
			zap.Time("reset_at", result.ResetAt),
		)
	}
	return result.Allowed
}

// RecordSuccess counts one successful call against both windows
func (s *RateLimitService) RecordSuccess(ctx context.Context, cfg providers.ProviderConfig) error {
	for _, w := range []RateLimitWindow{WindowMinute, WindowDay} {
		if _, err := s.store.Increment(ctx, s.buildKey(cfg.Name(), w), w.Duration()); err != nil {
			return fmt.Errorf("failed to increment %s counter: %w", w, err)
		}
	}
	return nil
}

// Status returns the tracker view for each provider
func (s *RateLimitService) Status(ctx context.Context, configs []providers.ProviderConfig) ([]RateLimitStatus, error) {
	statuses := make([]RateLimitStatus, 0, len(configs))
	for _, cfg := range configs {
		minute, minuteReset, err := s.current(ctx, cfg.Name(), WindowMinute)
		if err != nil {
			return nil, err
		}
		day, dayReset, err := s.current(ctx, cfg.Name(), WindowDay)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, RateLimitStatus{
			Provider:           cfg.Name(),
			RequestsThisMinute: minute,
			MinuteLimit:        cfg.RateLimitPerMinute,
			MinuteResetAt:      minuteReset,
			RequestsToday:      day,
			DayLimit:           cfg.RateLimitPerDay,
			DayResetAt:         dayReset,
			Eligible: (cfg.RateLimitPerMinute <= 0 || minute < cfg.RateLimitPerMinute) &&
				(cfg.RateLimitPerDay <= 0 || day < cfg.RateLimitPerDay),
		})
	}
	return statuses, nil
}

// current returns the live count for a window; an expired window reads as zero
func (s *RateLimitService) current(ctx context.Context, provider string, window RateLimitWindow) (int, time.Time, error) {
	item, ok, err := s.store.Get(ctx, s.buildKey(provider, window))
	if err != nil {
		return 0, time.Time{}, err
	}
	if !ok {
		return 0, time.Time{}, nil
	}
	return int(item.Count), item.ExpiresAt, nil
}

// buildKey constructs the store key for a provider window
func (s *RateLimitService) buildKey(provider string, window RateLimitWindow) string {
	return "ratelimit:" + provider + ":" + string(window)
}

// Package orchestrator runs a request across providers with per-provider
// retries and provider fallback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/budget"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

// Error codes set on non-success responses produced by the orchestrator
const (
	CodeNoProvidersConfigured = "no_providers_configured"
	CodeNoEligibleProviders   = "no_eligible_providers"
	CodeAllProvidersFailed    = "all_providers_failed"
	CodeBudgetExceeded        = "budget_exceeded"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
)

// ProviderSet is the configured provider table
type ProviderSet interface {
	Providers() []providers.ProviderConfig
	Complete(ctx context.Context, cfg providers.ProviderConfig, req providers.AIRequest) providers.AIResponse
}

// RateLimiter gates providers on their quota
type RateLimiter interface {
	IsEligible(ctx context.Context, cfg providers.ProviderConfig) bool
	RecordSuccess(ctx context.Context, cfg providers.ProviderConfig) error
}

// ResponseCache short-circuits repeated requests
type ResponseCache interface {
	Get(ctx context.Context, req providers.AIRequest) (providers.AIResponse, bool)
	Set(ctx context.Context, req providers.AIRequest, resp providers.AIResponse)
}

// BudgetGate prices and admits requests
type BudgetGate interface {
	EstimateRequestCost(cfg providers.ProviderConfig, req providers.AIRequest) float64
	CanMakeRequest(ctx context.Context, check budget.BudgetCheck) budget.BudgetDecision
}

// UsageRecorder appends completed calls to the usage log
type UsageRecorder interface {
	RecordUsage(ctx context.Context, requestID string, req providers.AIRequest, resp providers.AIResponse) error
}

// Config controls retries and provider preference
type Config struct {
	// MaxAttempts is the number of calls per provider, including the first
	MaxAttempts int
	BackoffBase time.Duration
	Preferences Preferences
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSleep replaces the backoff sleep
func WithSleep(sleep SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithBudget enables the pre-flight budget gate
func WithBudget(gate BudgetGate) Option {
	return func(o *Orchestrator) {
		o.budget = gate
	}
}

// WithUsageRecorder enables usage logging of every provider call
func WithUsageRecorder(rec UsageRecorder) Option {
	return func(o *Orchestrator) {
		o.usage = rec
	}
}

// Orchestrator selects eligible providers and tries them in order
type Orchestrator struct {
	providers ProviderSet
	limiter   RateLimiter
	cache     ResponseCache
	budget    BudgetGate
	usage     UsageRecorder
	config    Config
	sleep     SleepFunc
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator. Budget gating and usage logging
// are optional and enabled through options.
func NewOrchestrator(set ProviderSet, limiter RateLimiter, cache ResponseCache, config Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = defaultBackoffBase
	}
	if config.Preferences == nil {
		config.Preferences = DefaultPreferences()
	}
	o := &Orchestrator{
		providers: set,
		limiter:   limiter,
		cache:     cache,
		config:    config,
		sleep:     ContextSleep,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Complete serves req from the cache or the first provider that succeeds.
// It never returns an error: every failure is a non-success response with
// ErrorCode set.
func (o *Orchestrator) Complete(ctx context.Context, req providers.AIRequest) providers.AIResponse {
	requestID := uuid.NewString()
	if req.TaskType == "" {
		req.TaskType = providers.TaskGeneral
	}
	if req.UserID == "" {
		req.UserID = providers.UserIDFromContext(ctx)
	}

	// Step 1: cache
	if !req.SkipCache {
		if resp, ok := o.cache.Get(ctx, req); ok {
			o.logger.Debug("cache hit",
				zap.String("request_id", requestID),
				zap.String("provider", resp.Provider))
			return resp
		}
	}

	// Step 2: candidate selection
	configured := o.providers.Providers()
	if len(configured) == 0 {
		return failure(CodeNoProvidersConfigured, "no providers configured")
	}
	candidates := o.Candidates(ctx, req)
	if len(candidates) == 0 {
		return failure(CodeNoEligibleProviders, o.ineligibleReason(req))
	}

	// Step 3: budget gate, priced against the first candidate
	if o.budget != nil {
		estimate := o.budget.EstimateRequestCost(candidates[0], req)
		decision := o.budget.CanMakeRequest(ctx, budget.BudgetCheck{EstimatedCost: estimate, UserID: req.UserID})
		if !decision.Allowed {
			return failure(CodeBudgetExceeded, fmt.Sprintf("budget exceeded (%s): %s", decision.Scope, decision.Reason))
		}
	}

	// Step 4: sequential trial
	backoff := LinearBackoff(o.config.BackoffBase)
	var failures []string
	var last providers.AIResponse
	for _, cfg := range candidates {
		o.logger.Debug("trying provider",
			zap.String("request_id", requestID),
			zap.String("provider", cfg.Name()),
			zap.String("task_type", string(req.TaskType)))

		attempts, err := Retry(ctx, func(ctx context.Context, attempt int) error {
			last = o.providers.Complete(ctx, cfg, req)
			o.recordUsage(ctx, requestID, req, last)
			if last.Success {
				return nil
			}
			callErr := errors.New(last.Error)
			if !last.Retryable {
				return Permanent(callErr)
			}
			o.logger.Debug("provider attempt failed",
				zap.String("request_id", requestID),
				zap.String("provider", cfg.Name()),
				zap.Int("attempt", attempt),
				zap.Int("status_code", last.StatusCode))
			return callErr
		}, o.config.MaxAttempts, backoff, o.sleep)

		if err == nil {
			// Step 5: only successes consume quota
			if recErr := o.limiter.RecordSuccess(ctx, cfg); recErr != nil {
				o.logger.Warn("failed to record rate limit", zap.String("provider", cfg.Name()), zap.Error(recErr))
			}
			o.cache.Set(ctx, req, last)
			o.logger.Info("completion served",
				zap.String("request_id", requestID),
				zap.String("provider", last.Provider),
				zap.Int("attempts", attempts),
				zap.Int("tokens", last.Usage.TotalTokens),
				zap.Duration("latency", last.Latency))
			return last
		}

		failures = append(failures, fmt.Sprintf("%s: %s", cfg.Name(), err.Error()))
		o.logger.Warn("provider exhausted, falling back",
			zap.String("request_id", requestID),
			zap.String("provider", cfg.Name()),
			zap.Int("attempts", attempts))

		if ctx.Err() != nil {
			break
		}
	}

	resp := failure(CodeAllProvidersFailed, "all providers failed: "+strings.Join(failures, "; "))
	resp.StatusCode = last.StatusCode
	return resp
}

// Candidates returns the providers eligible for req in trial order
func (o *Orchestrator) Candidates(ctx context.Context, req providers.AIRequest) []providers.ProviderConfig {
	preferred := req.Preferred
	if len(preferred) == 0 {
		taskType := req.TaskType
		if taskType == "" {
			taskType = providers.TaskGeneral
		}
		preferred = o.config.Preferences[taskType]
	}

	var out []providers.ProviderConfig
	for _, cfg := range order(o.providers.Providers(), preferred) {
		if !capable(cfg, req) {
			continue
		}
		if !o.limiter.IsEligible(ctx, cfg) {
			continue
		}
		out = append(out, cfg)
	}
	return out
}

func capable(cfg providers.ProviderConfig, req providers.AIRequest) bool {
	if req.HasImages() && !cfg.Capabilities.Vision {
		return false
	}
	if req.HasDocuments() && !cfg.Capabilities.NativePDF {
		return false
	}
	return true
}

func (o *Orchestrator) ineligibleReason(req providers.AIRequest) string {
	switch {
	case req.HasDocuments():
		return "no eligible providers: none with native document support is available"
	case req.HasImages():
		return "no eligible providers: none with vision support is available"
	default:
		return "no eligible providers: all providers are rate limited"
	}
}

func (o *Orchestrator) recordUsage(ctx context.Context, requestID string, req providers.AIRequest, resp providers.AIResponse) {
	if o.usage == nil {
		return
	}
	if err := o.usage.RecordUsage(context.WithoutCancel(ctx), requestID, req, resp); err != nil {
		o.logger.Warn("failed to record usage", zap.String("request_id", requestID), zap.Error(err))
	}
}

func failure(code, message string) providers.AIResponse {
	return providers.AIResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
	}
}

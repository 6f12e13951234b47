package budget

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
	"github.com/Mustafabeshara/Dashboard2-sub000/repositories"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

// DefaultWarningPercent is used when no warning threshold is configured
const DefaultWarningPercent = 80.0

// Price is USD per 1000 tokens
type Price struct {
	InputPer1K  float64
	OutputPer1K float64
}

// BudgetCheck is a pre-flight budget question
type BudgetCheck struct {
	EstimatedCost float64
	UserID        string
}

// BudgetDecision is the governor's answer. A refusal is a decision, not an error.
type BudgetDecision struct {
	Allowed  bool                  `json:"allowed"`
	Reason   string                `json:"reason,omitempty"`
	Scope    models.BudgetScope    `json:"scope,omitempty"`
	Statuses []models.BudgetStatus `json:"statuses,omitempty"`
}

// Option configures a BudgetService
type Option func(*BudgetService)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *BudgetService) {
		s.now = now
	}
}

// BudgetService estimates request cost and enforces the spend ceilings.
// Spend is always recomputed from the usage log; nothing is cached here.
type BudgetService struct {
	usage  repositories.UsageLogRepository
	config models.BudgetConfig
	prices map[string]Price
	now    func() time.Time
	logger *zap.Logger
}

// NewBudgetService creates a new BudgetService instance. Pricing comes from
// the provider configs and is keyed by provider name and provider/model.
func NewBudgetService(usage repositories.UsageLogRepository, cfg models.BudgetConfig, pricing []providers.ProviderConfig, logger *zap.Logger, opts ...Option) *BudgetService {
	if cfg.WarningPercent <= 0 {
		cfg.WarningPercent = DefaultWarningPercent
	}
	prices := make(map[string]Price, len(pricing)*2)
	for _, p := range pricing {
		price := Price{InputPer1K: p.InputPricePer1K, OutputPer1K: p.OutputPricePer1K}
		prices[p.Name()] = price
		if p.Model != "" {
			prices[p.Name()+"/"+p.Model] = price
		}
	}
	s := &BudgetService{
		usage:  usage,
		config: cfg,
		prices: prices,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the configured ceilings
func (s *BudgetService) Config() models.BudgetConfig {
	return s.config
}

// EstimateCost prices a token count under the provider's per-1000-token rates.
// An unknown provider costs nothing.
func (s *BudgetService) EstimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	price, ok := s.prices[provider+"/"+model]
	if !ok {
		price = s.prices[provider]
	}
	return float64(inputTokens)/1000*price.InputPer1K + float64(outputTokens)/1000*price.OutputPer1K
}

// EstimateRequestCost prices a request before it is sent to cfg
func (s *BudgetService) EstimateRequestCost(cfg providers.ProviderConfig, req providers.AIRequest) float64 {
	in, out := EstimateRequestTokens(cfg, req)
	return s.EstimateCost(cfg.Name(), cfg.Model, in, out)
}

// CanMakeRequest gates a request against every configured ceiling. The
// per-request ceiling is checked first and never touches the usage log.
// Daily and monthly spend are then read concurrently, followed by the
// per-user daily spend when a user is given. Usage log failures are logged
// and the request is allowed.
func (s *BudgetService) CanMakeRequest(ctx context.Context, check BudgetCheck) BudgetDecision {
	cfg := s.config

	if cfg.MaxCostPerRequest > 0 && check.EstimatedCost > cfg.MaxCostPerRequest {
		return s.refuse(models.BudgetScopeRequest,
			fmt.Sprintf("estimated cost $%.4f exceeds per-request limit of $%.2f", check.EstimatedCost, cfg.MaxCostPerRequest),
			[]models.BudgetStatus{models.NewBudgetStatus(models.BudgetScopeRequest, check.EstimatedCost, cfg.MaxCostPerRequest, cfg.WarningPercent)})
	}

	decision := BudgetDecision{Allowed: true}
	if cfg.MaxDailyCost <= 0 && cfg.MaxMonthlyCost <= 0 && (check.UserID == "" || cfg.MaxUserDailyCost <= 0) {
		return decision
	}

	now := s.now().UTC()
	var daily, monthly float64
	g, gctx := errgroup.WithContext(ctx)
	if cfg.MaxDailyCost > 0 {
		g.Go(func() error {
			var err error
			daily, err = s.periodSpend(gctx, models.BudgetScopeDaily, now, "")
			return err
		})
	}
	if cfg.MaxMonthlyCost > 0 {
		g.Go(func() error {
			var err error
			monthly, err = s.periodSpend(gctx, models.BudgetScopeMonthly, now, "")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("budget spend lookup failed, allowing request", zap.Error(err))
		return decision
	}

	if cfg.MaxDailyCost > 0 {
		status := models.NewBudgetStatus(models.BudgetScopeDaily, daily, cfg.MaxDailyCost, cfg.WarningPercent)
		decision.Statuses = append(decision.Statuses, status)
		if daily+check.EstimatedCost > cfg.MaxDailyCost {
			return s.refuse(models.BudgetScopeDaily,
				fmt.Sprintf("would exceed daily budget of $%.2f (current: $%.4f, request: $%.4f)", cfg.MaxDailyCost, daily, check.EstimatedCost),
				decision.Statuses)
		}
	}
	if cfg.MaxMonthlyCost > 0 {
		status := models.NewBudgetStatus(models.BudgetScopeMonthly, monthly, cfg.MaxMonthlyCost, cfg.WarningPercent)
		decision.Statuses = append(decision.Statuses, status)
		if monthly+check.EstimatedCost > cfg.MaxMonthlyCost {
			return s.refuse(models.BudgetScopeMonthly,
				fmt.Sprintf("would exceed monthly budget of $%.2f (current: $%.4f, request: $%.4f)", cfg.MaxMonthlyCost, monthly, check.EstimatedCost),
				decision.Statuses)
		}
	}

	if check.UserID != "" && cfg.MaxUserDailyCost > 0 {
		userSpend, err := s.periodSpend(ctx, models.BudgetScopeUser, now, check.UserID)
		if err != nil {
			s.logger.Error("user spend lookup failed, allowing request",
				zap.String("user_id", check.UserID),
				zap.Error(err),
			)
			return decision
		}
		status := models.NewBudgetStatus(models.BudgetScopeUser, userSpend, cfg.MaxUserDailyCost, cfg.WarningPercent)
		decision.Statuses = append(decision.Statuses, status)
		if userSpend+check.EstimatedCost > cfg.MaxUserDailyCost {
			return s.refuse(models.BudgetScopeUser,
				fmt.Sprintf("would exceed per-user daily budget of $%.2f (current: $%.4f, request: $%.4f)", cfg.MaxUserDailyCost, userSpend, check.EstimatedCost),
				decision.Statuses)
		}
	}

	s.warn(decision.Statuses)
	return decision
}

// GetBudgetStatus returns the status of every configured scope
func (s *BudgetService) GetBudgetStatus(ctx context.Context, userID string) ([]models.BudgetStatus, error) {
	cfg := s.config
	now := s.now().UTC()

	var daily, monthly, user float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = s.periodSpend(gctx, models.BudgetScopeDaily, now, "")
		return err
	})
	g.Go(func() error {
		var err error
		monthly, err = s.periodSpend(gctx, models.BudgetScopeMonthly, now, "")
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			user, err = s.periodSpend(gctx, models.BudgetScopeUser, now, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get budget status: %w", err)
	}

	statuses := []models.BudgetStatus{
		models.NewBudgetStatus(models.BudgetScopeRequest, 0, cfg.MaxCostPerRequest, cfg.WarningPercent),
		models.NewBudgetStatus(models.BudgetScopeDaily, daily, cfg.MaxDailyCost, cfg.WarningPercent),
		models.NewBudgetStatus(models.BudgetScopeMonthly, monthly, cfg.MaxMonthlyCost, cfg.WarningPercent),
	}
	if userID != "" {
		statuses = append(statuses, models.NewBudgetStatus(models.BudgetScopeUser, user, cfg.MaxUserDailyCost, cfg.WarningPercent))
	}
	return statuses, nil
}

// RecordUsage appends a completed provider call to the usage log
func (s *BudgetService) RecordUsage(ctx context.Context, requestID string, req providers.AIRequest, resp providers.AIResponse) error {
	rec := models.NewUsageRecord(requestID, resp.Provider, resp.Model, string(req.TaskType))
	rec.SetUser(req.UserID)
	if resp.Success {
		cost := resp.EstimatedCost
		if cost == 0 {
			cost = s.EstimateCost(resp.Provider, resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
		rec.MarkAsCompleted(resp.Usage.InputTokens, resp.Usage.OutputTokens, cost, resp.Latency)
		rec.StatusCode = resp.StatusCode
	} else {
		rec.MarkAsFailed(resp.StatusCode, resp.Error, resp.Latency)
	}
	if err := s.usage.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// CleanupOldData removes usage records older than the retention period
func (s *BudgetService) CleanupOldData(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	n, err := s.usage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old usage data: %w", err)
	}
	return n, nil
}

// StartCleanupWorker periodically removes old usage records until ctx is done
func (s *BudgetService) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started usage cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldData(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup old usage data", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping usage cleanup worker")
			return
		}
	}
}

// periodSpend recomputes the spend of a scope from logged token counts
func (s *BudgetService) periodSpend(ctx context.Context, scope models.BudgetScope, now time.Time, userID string) (float64, error) {
	from, to := periodBounds(scope, now)
	aggregates, err := s.usage.AggregateTokens(ctx, from, to, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s spend: %w", scope, err)
	}
	var total float64
	for _, agg := range aggregates {
		total += s.EstimateCost(agg.Provider, agg.Model, int(agg.InputTokens), int(agg.OutputTokens))
	}
	return total, nil
}

// periodBounds returns the UTC calendar day or month containing now
func periodBounds(scope models.BudgetScope, now time.Time) (time.Time, time.Time) {
	if scope == models.BudgetScopeMonthly {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (s *BudgetService) refuse(scope models.BudgetScope, reason string, statuses []models.BudgetStatus) BudgetDecision {
	s.logger.Warn("budget refused request",
		zap.String("scope", string(scope)),
		zap.String("reason", reason),
	)
	return BudgetDecision{
		Allowed:  false,
		Reason:   reason,
		Scope:    scope,
		Statuses: statuses,
	}
}

func (s *BudgetService) warn(statuses []models.BudgetStatus) {
	for _, st := range statuses {
		if st.Warning {
			s.logger.Warn("budget warning threshold reached",
				zap.String("scope", string(st.Scope)),
				zap.Float64("percent_used", st.PercentUsed),
				zap.Float64("limit", st.Limit),
			)
		}
	}
}

package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
	"github.com/Mustafabeshara/Dashboard2-sub000/models"
	"github.com/Mustafabeshara/Dashboard2-sub000/services"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/ratelimit"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// ProviderLister exposes the configured providers
type ProviderLister interface {
	Providers() []providers.ProviderConfig
}

// RateLimitReporter reports per-provider quota usage
type RateLimitReporter interface {
	Status(ctx context.Context, configs []providers.ProviderConfig) ([]ratelimit.RateLimitStatus, error)
}

// BudgetReporter reports spend against the configured ceilings
type BudgetReporter interface {
	GetBudgetStatus(ctx context.Context, userID string) ([]models.BudgetStatus, error)
	Config() models.BudgetConfig
}

// ProviderInfo is the public view of a configured provider. Keys never leave the process.
type ProviderInfo struct {
	Name               string                 `json:"name"`
	Model              string                 `json:"model"`
	Priority           int                    `json:"priority"`
	Capabilities       providers.Capabilities `json:"capabilities"`
	RateLimitPerMinute int                    `json:"rate_limit_per_minute"`
	RateLimitPerDay    int                    `json:"rate_limit_per_day"`
	InputPricePer1K    float64                `json:"input_price_per_1k"`
	OutputPricePer1K   float64                `json:"output_price_per_1k"`
}

// BudgetResponse is the body of GET /api/v1/budget
type BudgetResponse struct {
	Currency string                `json:"currency"`
	Statuses []models.BudgetStatus `json:"statuses"`
}

// StatusHandler serves the read-only operational views
type StatusHandler struct {
	providers ProviderLister
	limits    RateLimitReporter
	budget    BudgetReporter
	logger    *zap.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(lister ProviderLister, limits RateLimitReporter, budget BudgetReporter, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		providers: lister,
		limits:    limits,
		budget:    budget,
		logger:    logger,
	}
}

// HandleProviders handles GET /api/v1/providers
func (h *StatusHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	configs := h.providers.Providers()
	out := make([]ProviderInfo, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, ProviderInfo{
			Name:               cfg.Name(),
			Model:              cfg.Model,
			Priority:           cfg.Priority,
			Capabilities:       cfg.Capabilities,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			RateLimitPerDay:    cfg.RateLimitPerDay,
			InputPricePer1K:    cfg.InputPricePer1K,
			OutputPricePer1K:   cfg.OutputPricePer1K,
		})
	}
	_ = utils.WriteOK(w, out)
}

// HandleRateLimits handles GET /api/v1/ratelimits
func (h *StatusHandler) HandleRateLimits(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.limits.Status(r.Context(), h.providers.Providers())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("rate limit status unavailable", err), h.logger)
		return
	}
	_ = utils.WriteOK(w, statuses)
}

// HandleBudget handles GET /api/v1/budget. The per-user scope is included
// for authenticated callers.
func (h *StatusHandler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	statuses, err := h.budget.GetBudgetStatus(ctx, middleware.GetUserIDFromContext(ctx))
	if err != nil {
		HandleServiceError(w, services.WrapInternal("budget status unavailable", err), h.logger)
		return
	}

	currency := h.budget.Config().Currency
	if currency == "" {
		currency = "USD"
	}
	_ = utils.WriteOK(w, BudgetResponse{Currency: currency, Statuses: statuses})
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Mustafabeshara/Dashboard2-sub000/config"
	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
	"github.com/Mustafabeshara/Dashboard2-sub000/repositories"
	"github.com/Mustafabeshara/Dashboard2-sub000/repositories/postgres"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/budget"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/cache"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/extraction"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/orchestrator"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/prompt"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers/builtin"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/ratelimit"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	RepoFactory *postgres.RepositoryFactory
	UsageLogs   repositories.UsageLogRepository

	// Gateway
	Store        *store.MemoryStore
	Providers    *providers.Registry
	RateLimiter  *ratelimit.RateLimitService
	Cache        *cache.ResponseCache
	Budget       *budget.BudgetService
	Orchestrator *orchestrator.Orchestrator

	// Extraction
	Prompt     *prompt.PromptService
	Fetcher    *extraction.DocumentFetcher
	Extraction *extraction.ExtractionService

	AuthMiddleware *middleware.AuthMiddleware
	TokenSigner    *middleware.JWTValidator

	stopCh   chan struct{}
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	stopOnce sync.Once
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := newDependencies(cfg, logger)

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.wire(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("all dependencies initialized successfully",
		zap.Int("providers", deps.Providers.Count()))
	return deps, nil
}

func newDependencies(cfg *config.Config, logger *zap.Logger) *Dependencies {
	return &Dependencies{
		Config: cfg,
		Logger: logger,
		stopCh: make(chan struct{}),
	}
}

// wire builds everything above the usage log
func (d *Dependencies) wire(cfg *config.Config) error {
	if err := d.initGateway(cfg); err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	if err := d.initExtraction(cfg); err != nil {
		return fmt.Errorf("failed to initialize extraction: %w", err)
	}
	d.initAuth(cfg)
	return nil
}

// initDatabase opens the usage log store
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.UsageLogs = factory.NewRepositories().UsageLogs
	return nil
}

// initGateway builds the provider chain: store, limiter, cache, budget, orchestrator
func (d *Dependencies) initGateway(cfg *config.Config) error {
	configs := cfg.ProviderConfigs()

	registry, err := builtin.NewRegistry(configs, &http.Client{})
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	d.Providers = registry
	if registry.Count() == 0 {
		d.Logger.Warn("no LLM providers configured")
	}
	for _, p := range registry.Providers() {
		d.Logger.Info("provider registered",
			zap.String("provider", p.Name()),
			zap.String("model", p.Model),
			zap.Int("priority", p.Priority))
	}

	d.Store = store.NewMemoryStore(cfg.Cache.MaxEntries)
	d.RateLimiter = ratelimit.NewRateLimitService(d.Store, d.Logger)
	d.Cache = cache.NewResponseCache(d.Store, cfg.Cache.TTL, d.Logger)
	d.Budget = budget.NewBudgetService(d.UsageLogs, cfg.BudgetLimits(), configs, d.Logger)

	d.Orchestrator = orchestrator.NewOrchestrator(
		registry,
		d.RateLimiter,
		d.Cache,
		orchestrator.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BackoffBase: cfg.Retry.BackoffBase,
		},
		d.Logger,
		orchestrator.WithBudget(d.Budget),
		orchestrator.WithUsageRecorder(d.Budget),
	)
	return nil
}

// initExtraction builds the tender pipeline over the orchestrator
func (d *Dependencies) initExtraction(cfg *config.Config) error {
	promptCfg := prompt.DefaultConfig()
	promptCfg.MaxInputLength = cfg.Extraction.MaxInputLength
	d.Prompt = prompt.NewPromptService(promptCfg, d.Logger)

	catalog, err := extraction.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load extraction prompts: %w", err)
	}

	d.Fetcher = extraction.NewDocumentFetcher(extraction.FetcherOptions{
		Timeout:              cfg.Extraction.FetchTimeout,
		MaxBytes:             cfg.Extraction.FetchMaxBytes,
		RatePerHost:          rate.Limit(cfg.Extraction.FetchRatePerSec),
		AllowPrivateNetworks: cfg.Extraction.FetchAllowPrivate,
	}, nil, d.Logger)

	extCfg := extraction.DefaultConfig()
	extCfg.MaxAttempts = cfg.Extraction.MaxAttempts
	extCfg.MinConfidence = cfg.Extraction.MinConfidence
	extCfg.MaxTokens = cfg.Extraction.MaxTokens
	extCfg.Review.Overall = cfg.Extraction.ReviewThreshold

	d.Extraction = extraction.NewExtractionService(d.Orchestrator, d.Fetcher, catalog, d.Prompt, extCfg, d.Logger)
	return nil
}

// initAuth sets up bearer token identification
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, requests are anonymous")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, cfg.Auth.Required, d.Logger)
		return
	}
	d.TokenSigner = middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenSigner, cfg.Auth.Required, d.Logger)
	d.Logger.Info("auth initialized", zap.Bool("required", cfg.Auth.Required))
}

// StartWorkers launches the cache sweeper and the usage retention job.
// They stop when ctx is cancelled or Close is called.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.workers.Add(2)
	go func() {
		defer d.workers.Done()
		d.Store.StartCleanupWorker(d.Config.Cache.CleanupInterval, d.stopCh)
	}()
	go func() {
		defer d.workers.Done()
		d.Budget.StartCleanupWorker(ctx, d.Config.Usage.CleanupInterval, d.Config.Usage.Retention)
	}()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		close(d.stopCh)
	})

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.Logger.Warn("background workers did not stop before deadline")
	case <-time.After(5 * time.Second):
		d.Logger.Warn("background workers did not stop in time")
	}

	var errs []error
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Mustafabeshara/Dashboard2-sub000/models"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	Budget        BudgetConfig
	Cache         CacheConfig
	Retry         RetryConfig
	Extraction    ExtractionConfig
	Usage         UsageConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL configuration for the usage log.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProviderSettings configures one LLM provider
type ProviderSettings struct {
	APIKey             string
	BaseURL            string
	Model              string
	MaxTokens          int
	Temperature        float64
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitPerDay    int
	Priority           int
	InputPricePer1K    float64
	OutputPricePer1K   float64
	Enabled            bool
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	Groq      ProviderSettings
	OpenAI    ProviderSettings
	Gemini    ProviderSettings
	Anthropic ProviderSettings
}

// BudgetConfig holds cost ceilings in USD. Zero disables a ceiling.
type BudgetConfig struct {
	MaxCostPerRequest float64
	MaxDailyCost      float64
	MaxMonthlyCost    float64
	MaxUserDailyCost  float64
	WarningPercent    float64
}

// CacheConfig holds response cache and counter store settings
type CacheConfig struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// RetryConfig holds per-provider retry settings
type RetryConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// ExtractionConfig holds tender extraction settings
type ExtractionConfig struct {
	MaxAttempts     int
	MinConfidence   float64
	ReviewThreshold float64
	MaxTokens       int
	MaxInputLength  int
	FetchTimeout    time.Duration
	FetchMaxBytes   int64
	FetchRatePerSec float64

	// FetchAllowPrivate lets document URLs reach loopback, link-local and
	// private addresses
	FetchAllowPrivate bool
}

// UsageConfig holds usage log retention settings
type UsageConfig struct {
	Retention       time.Duration
	CleanupInterval time.Duration
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Required  bool
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			Groq: loadProvider("GROQ", ProviderSettings{
				Model: "llama-3.3-70b-versatile", MaxTokens: 4096, Temperature: 0.1,
				RateLimitPerMinute: 30, RateLimitPerDay: 14400, Priority: 1,
				InputPricePer1K: 0.00059, OutputPricePer1K: 0.00079,
			}),
			Gemini: loadProvider("GEMINI", ProviderSettings{
				Model: "gemini-1.5-flash", MaxTokens: 8192, Temperature: 0.1,
				RateLimitPerMinute: 15, RateLimitPerDay: 1500, Priority: 2,
				InputPricePer1K: 0.000075, OutputPricePer1K: 0.0003,
			}),
			OpenAI: loadProvider("OPENAI", ProviderSettings{
				Model: "gpt-4o-mini", MaxTokens: 4096, Temperature: 0.1,
				RateLimitPerMinute: 500, RateLimitPerDay: 10000, Priority: 3,
				InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006,
			}),
			Anthropic: loadProvider("ANTHROPIC", ProviderSettings{
				Model: "claude-3-5-sonnet-latest", MaxTokens: 4096, Temperature: 0.1,
				RateLimitPerMinute: 50, RateLimitPerDay: 1000, Priority: 4,
				InputPricePer1K: 0.003, OutputPricePer1K: 0.015,
			}),
		},
		Budget: BudgetConfig{
			MaxCostPerRequest: getEnvAsFloat("BUDGET_MAX_COST_PER_REQUEST", 0.5),
			MaxDailyCost:      getEnvAsFloat("BUDGET_MAX_DAILY_COST", 50),
			MaxMonthlyCost:    getEnvAsFloat("BUDGET_MAX_MONTHLY_COST", 1000),
			MaxUserDailyCost:  getEnvAsFloat("BUDGET_MAX_USER_DAILY_COST", 10),
			WarningPercent:    getEnvAsFloat("BUDGET_WARNING_PERCENT", 80),
		},
		Cache: CacheConfig{
			TTL:             getEnvAsDuration("CACHE_TTL", time.Hour),
			MaxEntries:      getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BackoffBase: getEnvAsDuration("RETRY_BACKOFF_BASE", time.Second),
		},
		Extraction: ExtractionConfig{
			MaxAttempts:     getEnvAsInt("EXTRACTION_MAX_ATTEMPTS", 3),
			MinConfidence:   getEnvAsFloat("EXTRACTION_MIN_CONFIDENCE", 0.3),
			ReviewThreshold: getEnvAsFloat("EXTRACTION_REVIEW_THRESHOLD", 0.7),
			MaxTokens:       getEnvAsInt("EXTRACTION_MAX_TOKENS", 4096),
			MaxInputLength:  getEnvAsInt("EXTRACTION_MAX_INPUT_LENGTH", 50000),
			FetchTimeout:    getEnvAsDuration("FETCH_TIMEOUT", 60*time.Second),
			FetchMaxBytes:   int64(getEnvAsInt("FETCH_MAX_BYTES", 20<<20)),
			FetchRatePerSec: getEnvAsFloat("FETCH_RATE_PER_HOST", 2),

			FetchAllowPrivate: getEnvAsBool("FETCH_ALLOW_PRIVATE", false),
		},
		Usage: UsageConfig{
			Retention:       getEnvAsDuration("USAGE_RETENTION", 90*24*time.Hour),
			CleanupInterval: getEnvAsDuration("USAGE_CLEANUP_INTERVAL", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Required:  getEnvAsBool("AUTH_REQUIRED", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.IsProduction() {
		if len(c.ProviderConfigs()) == 0 {
			return fmt.Errorf("at least one LLM provider must be configured in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required in production")
		}
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required when auth is required")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Budget.WarningPercent <= 0 || c.Budget.WarningPercent > 100 {
		return fmt.Errorf("budget warning percent must be in (0, 100]")
	}
	if c.Extraction.MinConfidence < 0 || c.Extraction.MinConfidence > 1 {
		return fmt.Errorf("extraction min confidence must be in [0, 1]")
	}
	if c.Extraction.ReviewThreshold < c.Extraction.MinConfidence || c.Extraction.ReviewThreshold > 1 {
		return fmt.Errorf("extraction review threshold must be between min confidence and 1")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// ProviderConfigs returns the enabled providers. Capabilities are fixed per kind.
func (c *Config) ProviderConfigs() []providers.ProviderConfig {
	entries := []struct {
		kind         providers.Kind
		settings     ProviderSettings
		capabilities providers.Capabilities
	}{
		{providers.KindGroq, c.Providers.Groq, providers.Capabilities{Bilingual: true}},
		{providers.KindGemini, c.Providers.Gemini, providers.Capabilities{Vision: true, Bilingual: true, NativePDF: true}},
		{providers.KindOpenAI, c.Providers.OpenAI, providers.Capabilities{Vision: true, Bilingual: true}},
		{providers.KindAnthropic, c.Providers.Anthropic, providers.Capabilities{Vision: true, Bilingual: true, NativePDF: true}},
	}

	var out []providers.ProviderConfig
	for _, e := range entries {
		s := e.settings
		if !s.Enabled || s.APIKey == "" {
			continue
		}
		out = append(out, providers.ProviderConfig{
			Kind:               e.kind,
			APIKey:             s.APIKey,
			BaseURL:            s.BaseURL,
			Model:              s.Model,
			MaxTokens:          s.MaxTokens,
			Temperature:        s.Temperature,
			Timeout:            s.Timeout,
			RateLimitPerMinute: s.RateLimitPerMinute,
			RateLimitPerDay:    s.RateLimitPerDay,
			Priority:           s.Priority,
			Capabilities:       e.capabilities,
			Enabled:            true,
			InputPricePer1K:    s.InputPricePer1K,
			OutputPricePer1K:   s.OutputPricePer1K,
		})
	}
	return out
}

// BudgetLimits converts the budget section to the governor's config
func (c *Config) BudgetLimits() models.BudgetConfig {
	return models.BudgetConfig{
		MaxCostPerRequest: c.Budget.MaxCostPerRequest,
		MaxDailyCost:      c.Budget.MaxDailyCost,
		MaxMonthlyCost:    c.Budget.MaxMonthlyCost,
		MaxUserDailyCost:  c.Budget.MaxUserDailyCost,
		WarningPercent:    c.Budget.WarningPercent,
		Currency:          "USD",
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "dev"),
		Database:        getEnv("DB_NAME", "tenders"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProvider reads <PREFIX>_* variables over the given defaults
func loadProvider(prefix string, defaults ProviderSettings) ProviderSettings {
	return ProviderSettings{
		APIKey:             getEnv(prefix+"_API_KEY", ""),
		BaseURL:            getEnv(prefix+"_BASE_URL", defaults.BaseURL),
		Model:              getEnv(prefix+"_MODEL", defaults.Model),
		MaxTokens:          getEnvAsInt(prefix+"_MAX_TOKENS", defaults.MaxTokens),
		Temperature:        getEnvAsFloat(prefix+"_TEMPERATURE", defaults.Temperature),
		Timeout:            getEnvAsDuration(prefix+"_TIMEOUT", 30*time.Second),
		RateLimitPerMinute: getEnvAsInt(prefix+"_RATE_LIMIT_PER_MINUTE", defaults.RateLimitPerMinute),
		RateLimitPerDay:    getEnvAsInt(prefix+"_RATE_LIMIT_PER_DAY", defaults.RateLimitPerDay),
		Priority:           getEnvAsInt(prefix+"_PRIORITY", defaults.Priority),
		InputPricePer1K:    getEnvAsFloat(prefix+"_INPUT_PRICE_PER_1K", defaults.InputPricePer1K),
		OutputPricePer1K:   getEnvAsFloat(prefix+"_OUTPUT_PRICE_PER_1K", defaults.OutputPricePer1K),
		Enabled:            getEnvAsBool(prefix+"_ENABLED", true),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

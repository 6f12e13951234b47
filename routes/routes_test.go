package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/app"
	"github.com/Mustafabeshara/Dashboard2-sub000/config"
	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/cache"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/orchestrator"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/prompt"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/ratelimit"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

const testSecret = "routes-test-secret"

func testRouter(t *testing.T, authRequired bool) (http.Handler, *middleware.JWTValidator) {
	t.Helper()
	logger := zap.NewNop()

	registry, err := providers.NewRegistry(nil)
	require.NoError(t, err)

	st := store.NewMemoryStore(100)
	limiter := ratelimit.NewRateLimitService(st, logger)
	responses := cache.NewResponseCache(st, time.Hour, logger)
	validator := middleware.NewJWTValidator(testSecret, "")

	deps := &app.Dependencies{
		Config: &config.Config{
			Server: config.ServerConfig{AllowedOrigins: []string{"https://tenders.example.com"}},
		},
		Logger:         logger,
		Providers:      registry,
		RateLimiter:    limiter,
		Cache:          responses,
		Orchestrator:   orchestrator.NewOrchestrator(registry, limiter, responses, orchestrator.Config{}, logger),
		Prompt:         prompt.NewPromptService(prompt.DefaultConfig(), logger),
		AuthMiddleware: middleware.NewAuthMiddleware(validator, authRequired, logger),
		TokenSigner:    validator,
	}
	return SetupRoutes(deps), validator
}

func TestSetupRoutes_Health(t *testing.T) {
	router, _ := testRouter(t, false)

	for _, path := range []string{"/health", "/health/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSetupRoutes_NotFound(t *testing.T) {
	router, _ := testRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "endpoint not found", response.Message)
}

func TestSetupRoutes_Auth(t *testing.T) {
	tests := []struct {
		name         string
		authRequired bool
		header       func(v *middleware.JWTValidator) string
		wantStatus   int
	}{
		{
			name:         "anonymous allowed",
			authRequired: false,
			header:       func(*middleware.JWTValidator) string { return "" },
			wantStatus:   http.StatusOK,
		},
		{
			name:         "anonymous rejected when required",
			authRequired: true,
			header:       func(*middleware.JWTValidator) string { return "" },
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "bad token always rejected",
			authRequired: false,
			header:       func(*middleware.JWTValidator) string { return "Bearer not-a-jwt" },
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "valid token",
			authRequired: true,
			header: func(v *middleware.JWTValidator) string {
				token, err := v.SignToken("user-1", time.Minute)
				if err != nil {
					return ""
				}
				return "Bearer " + token
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, validator := testRouter(t, tt.authRequired)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
			if h := tt.header(validator); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSetupRoutes_CompletionWithoutProviders(t *testing.T) {
	router, _ := testRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/completions", strings.NewReader(`{"prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, orchestrator.CodeNoProvidersConfigured, response.Code)
}

func TestSetupRoutes_CORS(t *testing.T) {
	router, _ := testRouter(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/completions", nil)
	req.Header.Set("Origin", "https://tenders.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://tenders.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/completions", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

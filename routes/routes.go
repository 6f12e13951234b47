package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Mustafabeshara/Dashboard2-sub000/app"
	"github.com/Mustafabeshara/Dashboard2-sub000/handlers"
	"github.com/Mustafabeshara/Dashboard2-sub000/internal/observability"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// requestTimeout bounds a whole request; document extraction can take
// several provider rounds
const requestTimeout = 3 * time.Minute

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}

	health := handlers.NewHealthHandler(db, deps.Providers, deps.Logger)
	completions := handlers.NewCompletionHandler(deps.Orchestrator, deps.Prompt, utils.DefaultMaxBodyBytes, deps.Logger)
	extractions := handlers.NewExtractionHandler(deps.Extraction, utils.DefaultMaxBodyBytes, deps.Logger)
	status := handlers.NewStatusHandler(deps.Providers, deps.RateLimiter, deps.Budget, deps.Logger)

	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.Identify)

		r.Post("/completions", completions.HandleComplete)

		r.Route("/extractions", func(r chi.Router) {
			r.Post("/text", extractions.HandleText)
			r.Post("/document", extractions.HandleDocument)
		})

		r.Get("/providers", status.HandleProviders)
		r.Get("/ratelimits", status.HandleRateLimits)
		r.Get("/budget", status.HandleBudget)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", nil)
	})

	return r
}

func allowedOrigins(deps *app.Dependencies) []string {
	if deps.Config == nil || len(deps.Config.Server.AllowedOrigins) == 0 {
		return []string{"http://localhost:*"}
	}
	return deps.Config.Server.AllowedOrigins
}

package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/character-chat/app"
	"github.com/upb/character-chat/handlers"
	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/models"
)

const requestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(middleware.Metrics(deps.Metrics))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(readinessChecks(deps), deps.Logger)
	chat := handlers.NewChatHandler(deps.Chat, deps.Logger)
	history := handlers.NewHistoryHandler(deps.History, deps.Logger)
	catalog := handlers.NewCatalogHandler(deps.Catalog, deps.Logger)

	// Health check endpoints
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// API v1 routes, all authenticated
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/chat", chat.HandleChat)
		r.Get("/characters", chat.HandleListCharacters)

		r.With(deps.AuthMiddleware.RequireRole(models.RoleAdmin)).Post("/rag", chat.HandleRAG)

		// Provisioning (require admin role)
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
			r.Post("/users", catalog.HandleCreateUser)
			r.Post("/characters", catalog.HandleCreateCharacter)
			r.Put("/characters/{characterID}", catalog.HandleUpdateCharacter)
			r.Post("/characters/{characterID}/owners", catalog.HandleGrantCharacter)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/me", history.HandleMyHistory)
			r.Put("/feedback", history.HandleFeedback)

			// Other users' history (require admin role)
			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
				r.Get("/users/{userID}", history.HandleUserHistory)
				r.Get("/characters/{characterID}", history.HandleCharacterHistory)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// readinessChecks pings the database and the knowledge store when present
func readinessChecks(deps *app.Dependencies) map[string]handlers.Checker {
	checks := make(map[string]handlers.Checker)
	if deps.DB != nil {
		checks["database"] = deps.DB.HealthCheck
	}
	if deps.VectorStore != nil {
		checks["vector_store"] = deps.VectorStore.Ping
	}
	return checks
}

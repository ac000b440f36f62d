package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hiramGL/CriolloListApp/internal/api/middleware"
	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/handlers"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// NewRouter creates and configures the HTTP router. The redis store and
// task client may be nil; realtime and queued indexing are then disabled.
func NewRouter(logger zerolog.Logger, db store.DataStore, redisStore *store.RedisStore, chatSvc *chat.Service, tasks *asynq.Client, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the web client is served from another origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, chatSvc, tasks, logger)
	auth := middleware.NewAuthMiddleware(db, jwtSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/categories", h.ListCategories)
	r.Get("/services", h.ListServices)
	r.Get("/services/{id}", h.GetService)
	r.Get("/events", h.ListEvents)
	r.Get("/users/{id}", h.GetUser)

	// Authenticated routes (require a bearer token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/me", h.GetMyProfile)
		r.Patch("/me", h.UpdateMyProfile)

		r.Post("/conversations", h.ResolveConversation)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{id}/messages", h.ListMessages)
		r.Post("/conversations/{id}/messages", h.SendMessage)

		r.Post("/services", h.CreateService)
		r.Get("/me/services", h.ListMyServices)
		r.Delete("/services/{id}", h.DeleteService)

		r.Post("/events", h.CreateEvent)

		r.Get("/ws", h.ChatSocket)
	})

	return r
}

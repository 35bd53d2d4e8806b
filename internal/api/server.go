package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/bumpstory/internal/auth"
	"github.com/terra-clan/bumpstory/internal/cache"
	"github.com/terra-clan/bumpstory/internal/catalog"
	"github.com/terra-clan/bumpstory/internal/config"
	"github.com/terra-clan/bumpstory/internal/services"
	"github.com/terra-clan/bumpstory/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	catalog        *catalog.Loader
	repo           storage.Repository
	auth           *auth.Service
	progress       *cache.ProgressCache
	registry       *services.Registry
	authMiddleware *AuthMiddleware
	authLimiter    *RateLimiter
	now            func() time.Time
}

// NewServer creates a new API server. progress may be nil when Redis is disabled.
func NewServer(
	cfg *config.Config,
	loader *catalog.Loader,
	repo storage.Repository,
	authSvc *auth.Service,
	progress *cache.ProgressCache,
	registry *services.Registry,
) *Server {
	if registry == nil {
		registry = services.NewRegistry()
	}
	s := &Server{
		config:         cfg,
		catalog:        loader,
		repo:           repo,
		auth:           authSvc,
		progress:       progress,
		registry:       registry,
		authMiddleware: NewAuthMiddleware(authSvc),
		authLimiter:    NewRateLimiter(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst),
		now:            time.Now,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases background resources held by the server
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           s.config.CORS.MaxAge,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Live kick counting holds the connection open, so it skips the request timeout
		r.With(s.authMiddleware.Authenticate).Get("/me/kicks/{id}/live", s.handleKickLive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// Catalog (guests welcome; signed-in users get their own progress)
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware.OptionalAuth)

				r.Get("/stories", s.handleListStories)
				r.Get("/stories/{id}", s.handleGetStory)
				r.Get("/categories", s.handleListCategories)
				r.Get("/catalog/stats", s.handleCatalogStats)
				r.Get("/presets", s.handleListPresets)
				r.Get("/paths", s.handleListPaths)
				r.Get("/paths/{id}", s.handleGetPath)
				r.Get("/trimester", s.handleTrimester)
			})

			// Credentials
			r.Route("/auth", func(r chi.Router) {
				r.With(s.authLimiter.Limit).Post("/register", s.handleRegister)
				r.With(s.authLimiter.Limit).Post("/login", s.handleLogin)
				r.With(s.authMiddleware.Authenticate).Post("/logout", s.handleLogout)
			})

			// Per-user state
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware.Authenticate)

				r.Get("/me", s.handleMe)
				r.Get("/me/preferences", s.handleGetPreferences)
				r.Put("/me/preferences", s.handleUpdatePreferences)
				r.Get("/me/trimester", s.handleMyTrimester)

				r.Get("/me/progress", s.handleGetProgress)
				r.Post("/me/progress/{id}/toggle", s.handleToggleCompletion)
				r.Put("/me/progress/{id}", s.handleUpdateProgress)
				r.Get("/me/paths/{id}", s.handleGetPath)

				r.Get("/me/journal", s.handleListJournal)
				r.Post("/me/journal", s.handleCreateJournal)
				r.Get("/me/journal/{id}", s.handleGetJournal)
				r.Put("/me/journal/{id}", s.handleUpdateJournal)
				r.Delete("/me/journal/{id}", s.handleDeleteJournal)

				r.Get("/me/kicks", s.handleListKickSessions)
				r.Post("/me/kicks", s.handleStartKickSession)
				r.Get("/me/kicks/{id}", s.handleGetKickSession)
				r.Post("/me/kicks/{id}/kick", s.handleRecordKick)
				r.Post("/me/kicks/{id}/finish", s.handleFinishKickSession)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/gophauth/internal/server/middleware"
	"github.com/iudanet/gophauth/internal/server/token"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Logger   *slog.Logger
	Verifier middleware.Verifier
	Auth     *AuthHandler
	Health   *HealthHandler
	// Metrics serves /metrics when set
	Metrics  http.Handler
	Recorder middleware.HTTPRecorder
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware(cfg.Logger))
	r.Use(middleware.LoggingWithSkip(cfg.Logger, cfg.Recorder, []string{"/api/v1/health", "/metrics"}))

	requireAccess := middleware.RequireToken(cfg.Logger, cfg.Verifier, token.KindAccess)
	requireRefresh := middleware.RequireToken(cfg.Logger, cfg.Verifier, token.KindRefresh)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		sendError(cfg.Logger, w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		sendError(cfg.Logger, w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", cfg.Health.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", cfg.Auth.Signup)
			r.Post("/signin", cfg.Auth.Signin)
			r.With(requireAccess).Post("/signout", cfg.Auth.Signout)
			r.With(requireRefresh).Post("/refresh", cfg.Auth.Refresh)
		})

		r.With(requireAccess).Get("/users/me", cfg.Auth.Me)
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r
}

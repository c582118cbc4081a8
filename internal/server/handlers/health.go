package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/gophauth/pkg/api"
)

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	version string
	pingers []Pinger
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, version string, pingers ...Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		version: version,
		pingers: pingers,
	}
}

// Health обрабатывает GET /api/v1/health
// Health check endpoint для мониторинга
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", slog.Any("error", err))
			sendJSON(h.logger, w, api.HealthResponse{Status: "unavailable", Version: h.version}, http.StatusServiceUnavailable)
			return
		}
	}

	sendJSON(h.logger, w, api.HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the state of the database and the embedding server.
type HealthHandler struct {
	db        Pinger
	extractor FaceExtractor
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler. Nil dependencies are skipped.
func NewHealthHandler(db Pinger, ex FaceExtractor, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, extractor: ex, logger: logger}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Extractor string `json:"extractor,omitempty"`
}

// Get answers 200 when every dependency is up and 503 otherwise.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy"}
	if h.db != nil {
		resp.Database = "ok"
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("database health check failed", "error", err)
			resp.Database = "unavailable"
			resp.Status = "degraded"
		}
	}
	if h.extractor != nil {
		resp.Extractor = "ok"
		if err := h.extractor.Health(ctx); err != nil {
			h.logger.Warn("extractor health check failed", "error", err)
			resp.Extractor = "unavailable"
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

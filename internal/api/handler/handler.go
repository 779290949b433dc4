// Package handler provides the dashboard's HTTP handlers. Handlers read
// stored documents through the storage collaborator and pass the JSON
// through; nothing here mutates records.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gridironlab/gridiron-data/internal/api/respond"
	"github.com/gridironlab/gridiron-data/internal/cache"
	"github.com/gridironlab/gridiron-data/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store  store.Store
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(st store.Store, c *cache.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: st, cache: c, logger: logger}
}

// Root serves service info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Gridiron Data Dashboard",
		"version": "1.0.0",
		"status":  "running",
		"endpoints": []string{
			"/api/v1/players",
			"/api/v1/players/{id}",
			"/api/v1/summary",
		},
	})
}

// HealthCheck returns basic health status plus cache statistics.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

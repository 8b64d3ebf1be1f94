package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	db    *sql.DB
	cache *redis.Client
}

// NewHealthHandler wires the readiness dependencies. cache may be nil when
// the FX cache is disabled.
func NewHealthHandler(db *sql.DB, cache *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	httpStatus := http.StatusOK

	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		dbStatus = "down"
		httpStatus = http.StatusServiceUnavailable
	}
	checks["database"] = dbStatus

	if h.cache != nil {
		cacheStatus := "ok"
		if err := h.cache.Ping(r.Context()).Err(); err != nil {
			// A dead cache degrades FX lookups but does not stop the service.
			slog.Warn("readiness check: redis unreachable", "error", err)
			cacheStatus = "down"
		}
		checks["cache"] = cacheStatus
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/jmoiron/sqlx"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

type HealthHandler struct {
	db    *sqlx.DB
	rules rules.Provider
}

func NewHealthHandler(db *sqlx.DB, provider rules.Provider) *HealthHandler {
	return &HealthHandler{db: db, rules: provider}
}

// Ping reports liveness only.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Check reports readiness: the database answers and a valid settlement rule
// set is in force.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": timed(func() (string, map[string]any, error) {
			if err := h.db.PingContext(ctx); err != nil {
				return "", nil, err
			}
			stats := h.db.Stats()
			return "", map[string]any{"open_connections": stats.OpenConnections, "in_use": stats.InUse}, nil
		}),
		"settlement_rules": timed(func() (string, map[string]any, error) {
			if h.rules == nil {
				return "", nil, rules.ErrNotConfigured
			}
			s, err := h.rules.Current(ctx)
			if err != nil {
				return "", nil, err
			}
			return "", map[string]any{"version": s.Version}, nil
		}),
	}

	resp := HealthResponse{Status: HealthHealthy, CheckedAt: time.Now(), Components: components}
	statusCode := http.StatusOK
	for _, entry := range components {
		if entry.Status == HealthUnhealthy {
			resp.Status = HealthUnhealthy
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeHealthJSON(w, statusCode, resp)
}

func timed(check func() (string, map[string]any, error)) CheckEntry {
	start := time.Now()
	msg, details, err := check()

	entry := CheckEntry{
		Status:     HealthHealthy,
		Message:    msg,
		Details:    details,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

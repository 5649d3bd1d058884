package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/json"
)

const checkTimeout = 2 * time.Second

// Check pings one dependency.
type Check func(ctx context.Context) error

type Handler struct {
	startTime time.Time
	healthy   atomic.Bool
	checks    map[string]Check
}

func NewHandler(checks map[string]Check) *Handler {
	h := &Handler{
		startTime: time.Now(),
		checks:    checks,
	}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips liveness, e.g. while draining on shutdown.
func (h *Handler) SetHealthy(ok bool) {
	h.healthy.Store(ok)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API, including uptime and current timestamp
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if !h.healthy.Load() {
		json.Write(w, http.StatusServiceUnavailable, h.response("unhealthy", nil))
		return
	}

	json.Write(w, http.StatusOK, h.response("ok", nil))
}

// GetReady godoc
// @Summary      Readiness check
// @Description  Pings the database and the optional backends
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "All dependencies reachable"
// @Failure      503 {object} healthResponse "A dependency is unreachable"
// @Router       /ready [get]
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if !h.healthy.Load() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	json.Write(w, code, h.response(status, results))
}

func (h *Handler) response(status string, checks map[string]string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}

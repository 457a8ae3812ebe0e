package handler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"clinic-management-api/internal/httpx"
)

type Check func(ctx context.Context) error

// Health reports dependency status on /health and start-up readiness on /ready.
type Health struct {
	checks map[string]Check
	ready  atomic.Bool
}

func NewHealth() *Health {
	return &Health{checks: make(map[string]Check)}
}

func (h *Health) Add(name string, c Check) {
	h.checks[name] = c
}

func (h *Health) SetReady(v bool) { h.ready.Store(v) }

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *Health) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(h.checks)),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Services[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	httpx.JSON(w, status, resp)
}

func (h *Health) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		httpx.Fail(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	httpx.Message(w, "ready")
}

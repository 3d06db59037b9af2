package http

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Health is the state /healthz reports. Recovery failures keep the process
// serving but mark it degraded.
type Health struct {
	mu          sync.RWMutex
	recoveryErr error
	providers   func() map[string]bool
	timers      func() int
}

func NewHealth() *Health { return &Health{} }

func (h *Health) SetRecovery(err error) {
	h.mu.Lock()
	h.recoveryErr = err
	h.mu.Unlock()
}

func (h *Health) WithProviders(fn func() map[string]bool) *Health {
	h.providers = fn
	return h
}

func (h *Health) WithTimers(fn func() int) *Health {
	h.timers = fn
	return h
}

func (h *Health) report() map[string]any {
	h.mu.RLock()
	recoveryErr := h.recoveryErr
	h.mu.RUnlock()

	out := map[string]any{"status": "ok", "recovery": "ok"}
	if recoveryErr != nil {
		out["status"] = "degraded"
		out["recovery"] = recoveryErr.Error()
	}
	if h.providers != nil {
		out["providers"] = h.providers()
	}
	if h.timers != nil {
		out["timers_armed"] = h.timers()
	}
	return out
}

func healthHandler(h *Health) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, h.report())
	}
}

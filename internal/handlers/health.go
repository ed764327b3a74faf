package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// Pinger is any backing store the health check probes.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the state of each named dependency.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler probes deps by name. A nil Pinger is skipped.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	clean := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			clean[name] = p
		}
	}
	return &HealthHandler{deps: clean}
}

// Health handles GET /health and /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "healthy"}
	status := http.StatusOK
	for name, p := range h.deps {
		if err := p.HealthCheck(ctx); err != nil {
			body[name] = "down"
			body["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "up"
	}

	pkghttp.WriteJSON(w, status, body)
}

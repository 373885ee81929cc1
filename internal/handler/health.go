package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout bounds all dependency pings in one /readyz call.
const readinessTimeout = 5 * time.Second

// HealthChecker is anything /readyz can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependency is a named HealthChecker. A nil Checker reports "not configured"
// and does not fail readiness.
type Dependency struct {
	Name    string
	Checker HealthChecker
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps   []Dependency
	logger *slog.Logger
}

// NewHealthHandler returns probes over deps, checked in parallel.
func NewHealthHandler(logger *slog.Logger, deps ...Dependency) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{deps: deps, logger: logger}
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is serving. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz returns 200 only when every configured dependency answers a ping.
// Failure details go to the log, not the response.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]string, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.check(ctx, dep)
		}()
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK
	for i, dep := range h.deps {
		resp.Checks[dep.Name] = results[i]
		if results[i] == "unavailable" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

func (h *HealthHandler) check(ctx context.Context, dep Dependency) string {
	if dep.Checker == nil {
		return "not configured"
	}
	if err := dep.Checker.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed",
			slog.String("dependency", dep.Name),
			slog.String("error", err.Error()),
		)
		return "unavailable"
	}
	return "ok"
}

package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

func NewHealthHandler(service string, checks map[string]HealthCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, logger: logger}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ServeHTTP runs every check concurrently and answers 503 if any fails
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(h.checks))
	healthy := true

	var g errgroup.Group
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = "unavailable"
				h.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "healthy", Service: h.service, Checks: results}
	statusCode := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	respondWithJSON(w, statusCode, resp)
}

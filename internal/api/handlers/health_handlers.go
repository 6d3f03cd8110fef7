package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Network   string            `json:"network,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks    map[string]CheckFunc
	network   string
	version   string
	startTime time.Time
	logger    *zap.Logger
}

// NewHealthHandler creates a new health handler. checks are run by
// Readiness.
func NewHealthHandler(checks map[string]CheckFunc, network, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		network:   network,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Liveness handles the liveness check
// @Summary Liveness check
// @Description Returns 200 if the process is serving requests
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, h.response("ok", nil))
}

// Readiness handles the readiness check
// @Summary Readiness check
// @Description Returns 200 when every dependency answers
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, check := i, h.checks[name]
		g.Go(func() error {
			results[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := "ok"
	checks := make(map[string]string, len(names))
	for i, name := range names {
		if results[i] != nil {
			status = "unavailable"
			checks[name] = results[i].Error()
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(results[i]))
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h.response(status, checks))
}

func (h *HealthHandler) response(status string, checks map[string]string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Network:   h.network,
		Checks:    checks,
	}
}

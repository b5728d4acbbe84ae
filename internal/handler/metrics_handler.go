package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/service"
)

// ReadinessCheck probes a downstream dependency for the /ready endpoint.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics   *service.MetricsService
	readiness []ReadinessCheck
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, checks ...ReadinessCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, readiness: checks}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness probes.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings downstream dependencies and reports per-component status. Any
// failing check yields 503.
func (h *MetricsHandler) Ready(c *gin.Context) {
	components := make(map[string]string, len(h.readiness))
	status := http.StatusOK
	for _, check := range h.readiness {
		if err := check.Check(c.Request.Context()); err != nil {
			components[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[check.Name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "components": components})
}

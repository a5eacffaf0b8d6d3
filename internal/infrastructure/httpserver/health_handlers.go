package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	healthCheckTimeout = 2 * time.Second

	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

type healthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies"`
}

// healthCheck reports each backing dependency of the engine. Any failing dependency turns the
// response into 503 so load balancers stop routing redemptions here.
func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:       statusHealthy,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Service:      "tenancy-engine",
		Dependencies: make(map[string]string, len(s.healthCheckers)),
	}
	for _, hc := range s.healthCheckers {
		if hc == nil {
			continue
		}
		err := hc.Check(ctx)
		if err == nil {
			resp.Dependencies[hc.Name()] = statusHealthy
			continue
		}
		resp.Dependencies[hc.Name()] = statusUnhealthy
		resp.Status = statusDegraded
		if s.logger != nil {
			s.logger.WithError(err).WithField("dependency", hc.Name()).Warn("health check failed")
		}
	}

	code := http.StatusOK
	if resp.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

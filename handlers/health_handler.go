package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/utils"
	"go.uber.org/zap"
)

// HealthChecker is implemented by dependencies that can report reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	checks map[string]HealthChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are reported as disabled.
func NewHealthHandler(checks map[string]HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

// HandleLiveness handles GET /healthz
// Always returns 200 while the process is serving
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, models.Health{
		Status: models.StatusOK,
		Time:   time.Now().UTC(),
	})
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that optional dependencies are reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true

	for name, checker := range h.checks {
		if checker == nil {
			checks[name] = "disabled"
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
			checks[name] = "unhealthy"
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}

	response := models.Health{
		Status: models.StatusOK,
		Time:   time.Now().UTC(),
		Checks: checks,
	}
	httpStatus := http.StatusOK
	if !healthy {
		response.Status = models.StatusDegraded
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 5 * time.Second

type HealthHandler struct {
	logger   *slog.Logger
	service  string
	checkers map[string]HealthChecker
	now      func() time.Time
}

func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:   deps.Logger,
		service:  deps.ServiceName,
		checkers: deps.HealthCheck,
		now:      deps.clock(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Checks:  make(map[string]string, len(h.checkers)),
		Checked: formatTime(h.now()),
	}

	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			resp.Checks[name] = "unhealthy"
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

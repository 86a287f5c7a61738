package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/health"
)

type HealthHandler struct {
	checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth reports 200 while the service can answer, 503 when a
// dependency is down.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	current := h.checker.Current(c.Request.Context())

	status := http.StatusOK
	if current.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, current)
}

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dev.frostline.agent/internal/services"
)

// HealthHandler handles service health HTTP requests
type HealthHandler struct {
	predictions *services.PredictionService
	version     string
	startedAt   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc *services.PredictionService, version string) *HealthHandler {
	return &HealthHandler{
		predictions: svc,
		version:     version,
		startedAt:   time.Now(),
	}
}

// HealthResponse represents overall service health
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components"`
}

// Health godoc
// @Summary Get service health
// @Description Get overall status, uptime, and per-component checks
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	components := map[string]string{
		"weather_source":   "ok",
		"specialist_panel": fmt.Sprintf("%d specialists", len(h.predictions.Roles())),
	}

	if store := h.predictions.Store(); store == nil {
		components["ledger"] = "disabled"
	} else if err := store.Ping(c.Request.Context()); err != nil {
		components["ledger"] = "unreachable: " + err.Error()
		status = "degraded"
	} else {
		components["ledger"] = "ok"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     status,
		Version:    h.version,
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Components: components,
	})
}

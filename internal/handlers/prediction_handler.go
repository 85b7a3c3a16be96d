package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/decision"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/services"
	"dev.frostline.agent/internal/weather"
)

// ErrorResponse is the uniform error envelope for the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PredictionHandler handles prediction HTTP requests
type PredictionHandler struct {
	predictions *services.PredictionService
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(svc *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{
		predictions: svc,
	}
}

// PredictRequest represents a prediction request
type PredictRequest struct {
	Location string `json:"location" binding:"required"`
	Date     string `json:"date"`
	Seed     int64  `json:"seed"`
	Scenario string `json:"scenario"`
}

// PredictResponse represents the full output of one prediction run
type PredictResponse struct {
	RunID           string                  `json:"run_id"`
	Location        string                  `json:"location"`
	Date            string                  `json:"date"`
	Probability     float64                 `json:"probability"`
	ConfidenceLevel string                  `json:"confidence_level"`
	Rationale       string                  `json:"rationale"`
	PrimaryFactors  []string                `json:"primary_factors"`
	Contributions   []decision.Contribution `json:"contributions"`
	ExitReason      string                  `json:"exit_reason,omitempty"`
	GeneratedAt     string                  `json:"generated_at"`
	Recorded        bool                    `json:"recorded"`
	Weather         *weather.Context        `json:"weather"`
	Analyses        panel.AnalysisSet       `json:"analyses"`
	Collaboration   *debate.Collaboration   `json:"collaboration,omitempty"`
}

// Predict godoc
// @Summary Run a cancellation prediction
// @Description Run the specialist panel, debate, and synthesis pipeline for one school day
// @Tags predictions
// @Accept json
// @Produce json
// @Param request body PredictRequest true "Prediction request"
// @Success 200 {object} PredictResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/predictions [post]
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.predictions.Predict(c.Request.Context(), services.PredictRequest{
		Location: req.Location,
		Date:     req.Date,
		Seed:     req.Seed,
		Scenario: req.Scenario,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	p := result.Prediction
	c.JSON(http.StatusOK, PredictResponse{
		RunID:           p.RunID,
		Location:        p.Location,
		Date:            result.Date,
		Probability:     p.Probability,
		ConfidenceLevel: string(p.ConfidenceLevel),
		Rationale:       p.Rationale,
		PrimaryFactors:  p.PrimaryFactors,
		Contributions:   p.Contributions,
		ExitReason:      string(p.ExitReason),
		GeneratedAt:     p.GeneratedAt.Format("2006-01-02T15:04:05Z"),
		Recorded:        result.Entry != nil,
		Weather:         result.Context,
		Analyses:        result.Analyses,
		Collaboration:   result.Collaboration,
	})
}

// Latest godoc
// @Summary Get the most recent recorded prediction
// @Description Get the newest ledger entry across all dates
// @Tags predictions
// @Produce json
// @Success 200 {object} EntryResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/predictions/latest [get]
func (h *PredictionHandler) Latest(c *gin.Context) {
	store := h.predictions.Store()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "ledger is not configured"})
		return
	}

	entries, err := store.ListRecent(c.Request.Context(), 1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no predictions recorded yet"})
		return
	}

	c.JSON(http.StatusOK, newEntryResponse(entries[0]))
}

// RegisterPredictionRoutes registers prediction routes
func RegisterPredictionRoutes(r *gin.RouterGroup, h *PredictionHandler) {
	predictions := r.Group("/predictions")
	{
		predictions.POST("", h.Predict)
		predictions.GET("/latest", h.Latest)
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dev.frostline.agent/internal/ledger"
)

// LedgerHandler handles outcome ledger HTTP requests
type LedgerHandler struct {
	store *ledger.Store
}

// NewLedgerHandler creates a new ledger handler. A nil store leaves the
// routes registered but answering 503.
func NewLedgerHandler(store *ledger.Store) *LedgerHandler {
	return &LedgerHandler{
		store: store,
	}
}

// EntryResponse represents one ledger entry
type EntryResponse struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Location        string  `json:"location"`
	Probability     float64 `json:"probability"`
	ConfidenceLevel string  `json:"confidence_level"`
	ExitReason      string  `json:"exit_reason,omitempty"`
	ActualOutcome   *bool   `json:"actual_outcome,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func newEntryResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:              e.ID,
		Date:            e.Date,
		Location:        e.Location,
		Probability:     e.Probability,
		ConfidenceLevel: e.ConfidenceLevel,
		ExitReason:      e.ExitReason,
		ActualOutcome:   e.ActualOutcome,
		CreatedAt:       e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ListEntriesResponse represents a page of ledger entries
type ListEntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	Count   int             `json:"count"`
}

// List godoc
// @Summary List recent ledger entries
// @Description List recorded predictions, newest first
// @Tags ledger
// @Produce json
// @Param limit query int false "Maximum entries to return (default 20)"
// @Success 200 {object} ListEntriesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/ledger [get]
func (h *LedgerHandler) List(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ListEntriesResponse{
		Entries: make([]EntryResponse, len(entries)),
		Count:   len(entries),
	}
	for i, e := range entries {
		resp.Entries[i] = newEntryResponse(e)
	}

	c.JSON(http.StatusOK, resp)
}

// GetByDate godoc
// @Summary Get the ledger entry for a date
// @Description Get the most recent prediction recorded for one school day
// @Tags ledger
// @Produce json
// @Param date path string true "School day (YYYY-MM-DD)"
// @Success 200 {object} EntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/ledger/{date} [get]
func (h *LedgerHandler) GetByDate(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	date, ok := datePath(c)
	if !ok {
		return
	}

	entry, err := h.store.GetByDate(c.Request.Context(), date)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, newEntryResponse(entry))
}

// RecordOutcomeRequest represents an outcome recording request. Canceled is
// a pointer so an explicit false still binds.
type RecordOutcomeRequest struct {
	Canceled *bool `json:"canceled" binding:"required"`
}

// RecordOutcome godoc
// @Summary Record the actual outcome for a date
// @Description Record whether school actually closed, across every prediction for the date
// @Tags ledger
// @Accept json
// @Produce json
// @Param date path string true "School day (YYYY-MM-DD)"
// @Param request body RecordOutcomeRequest true "Actual outcome"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/ledger/{date}/outcome [post]
func (h *LedgerHandler) RecordOutcome(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	date, ok := datePath(c)
	if !ok {
		return
	}

	var req RecordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err := h.store.RecordOutcome(c.Request.Context(), date, *req.Canceled)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Outcome recorded",
		"date":     date,
		"canceled": *req.Canceled,
	})
}

func (h *LedgerHandler) ready(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "ledger is not configured"})
		return false
	}
	return true
}

func datePath(c *gin.Context) (string, bool) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD"})
		return "", false
	}
	return date, true
}

// RegisterLedgerRoutes registers outcome ledger routes
func RegisterLedgerRoutes(r *gin.RouterGroup, h *LedgerHandler) {
	entries := r.Group("/ledger")
	{
		entries.GET("", h.List)
		entries.GET("/:date", h.GetByDate)
		entries.POST("/:date/outcome", h.RecordOutcome)
	}
}

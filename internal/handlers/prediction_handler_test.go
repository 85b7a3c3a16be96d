package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/decision"
	"dev.frostline.agent/internal/ledger"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/panel/simulated"
	"dev.frostline.agent/internal/services"
	"dev.frostline.agent/internal/weather"
)

// ============================================================================
// Test Helpers
// ============================================================================

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestService(t *testing.T, withStore bool) *services.PredictionService {
	t.Helper()
	log := quietLogger()

	stage, err := panel.NewStage(simulated.Bench(simulated.WithSeed(42)), panel.DefaultStageConfig(), log)
	require.NoError(t, err)

	engine, err := debate.NewEngine(stage, debate.DefaultConfig(), log)
	require.NoError(t, err)

	coordinator, err := decision.NewCoordinator(stage, decision.DefaultConfig(), log)
	require.NoError(t, err)

	var store *ledger.Store
	if withStore {
		store, err = ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.CreateTable(context.Background()))
	}

	svc, err := services.NewPredictionService(
		weather.NewScenarioGenerator(42), stage, engine, coordinator, store,
		services.Config{}, log)
	require.NoError(t, err)
	return svc
}

func setupPredictionServer(t *testing.T, withStore bool) (*gin.Engine, *services.PredictionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, withStore)
	h := NewPredictionHandler(svc)
	r := gin.New()

	api := r.Group("/api/v1")
	RegisterPredictionRoutes(api, h)

	return r, svc
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	r.ServeHTTP(w, req)
	return w
}

// ============================================================================
// Predict Tests
// ============================================================================

func TestNewPredictionHandler(t *testing.T) {
	svc := newTestService(t, false)
	h := NewPredictionHandler(svc)

	assert.NotNil(t, h)
	assert.Equal(t, svc, h.predictions)
}

func TestPredict_Success(t *testing.T) {
	r, _ := setupPredictionServer(t, true)

	w := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH",
		"date":     "2026-01-15",
		"seed":     11,
		"scenario": "heavy_snow",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "Candia, NH", resp.Location)
	assert.Equal(t, "2026-01-15", resp.Date)
	assert.GreaterOrEqual(t, resp.Probability, 0.0)
	assert.LessOrEqual(t, resp.Probability, 100.0)
	assert.NotEmpty(t, resp.Rationale)
	assert.NotEmpty(t, resp.PrimaryFactors)
	assert.NotEmpty(t, resp.GeneratedAt)
	assert.Len(t, resp.Analyses, 7)
	require.NotNil(t, resp.Collaboration)
	assert.GreaterOrEqual(t, resp.Collaboration.TotalRounds, 1)
	assert.True(t, resp.Recorded, "a run with a ledger lands in it")
}

func TestPredict_MissingLocation(t *testing.T) {
	r, _ := setupPredictionServer(t, false)

	w := postJSON(t, r, "/api/v1/predictions", gin.H{"date": "2026-01-15"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestPredict_MalformedDate(t *testing.T) {
	r, _ := setupPredictionServer(t, false)

	w := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH",
		"date":     "01/15/2026",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_UnknownScenario(t *testing.T) {
	r, _ := setupPredictionServer(t, false)

	w := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH",
		"scenario": "heat_wave",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "heat_wave")
}

func TestPredict_WithoutStore(t *testing.T) {
	r, _ := setupPredictionServer(t, false)

	w := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH",
		"scenario": "flurries",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Recorded, "no ledger, nothing recorded")
}

// ============================================================================
// Latest Tests
// ============================================================================

func TestLatest_ReturnsNewestEntry(t *testing.T) {
	r, _ := setupPredictionServer(t, true)

	first := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH", "date": "2026-01-15", "scenario": "flurries",
	})
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, r, "/api/v1/predictions", gin.H{
		"location": "Candia, NH", "date": "2026-01-16", "scenario": "clear_cold",
	})
	require.Equal(t, http.StatusOK, second.Code)

	w := getPath(t, r, "/api/v1/predictions/latest")
	require.Equal(t, http.StatusOK, w.Code)

	var resp EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2026-01-16", resp.Date)
	assert.Equal(t, "Candia, NH", resp.Location)
	assert.NotEmpty(t, resp.CreatedAt)
	assert.Nil(t, resp.ActualOutcome, "no outcome recorded yet")
}

func TestLatest_EmptyLedger(t *testing.T) {
	r, _ := setupPredictionServer(t, true)

	w := getPath(t, r, "/api/v1/predictions/latest")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLatest_WithoutStore(t *testing.T) {
	r, _ := setupPredictionServer(t, false)

	w := getPath(t, r, "/api/v1/predictions/latest")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

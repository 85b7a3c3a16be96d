package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/decision"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/panel/simulated"
	"dev.frostline.agent/internal/services"
	"dev.frostline.agent/internal/weather"
)

func setupServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	stage, err := panel.NewStage(simulated.Bench(simulated.WithSeed(7)), panel.DefaultStageConfig(), log)
	require.NoError(t, err)

	engine, err := debate.NewEngine(stage, debate.DefaultConfig(), log)
	require.NoError(t, err)

	coordinator, err := decision.NewCoordinator(stage, decision.DefaultConfig(), log)
	require.NoError(t, err)

	svc, err := services.NewPredictionService(
		weather.NewScenarioGenerator(7), stage, engine, coordinator, nil,
		services.Config{}, log)
	require.NoError(t, err)

	return SetupRouter(svc, "test")
}

func TestRouterServesHealth(t *testing.T) {
	r := setupServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouterServesMetrics(t *testing.T) {
	r := setupServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "frostline_prediction_probability")
}

func TestRouterRunsPrediction(t *testing.T) {
	r := setupServer(t)

	body := bytes.NewBufferString(`{"location": "Candia, NH", "scenario": "flurries"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/predictions", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "probability")
	assert.Contains(t, w.Body.String(), "collaboration")
}

func TestRouterCORSPreflight(t *testing.T) {
	r := setupServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/api/v1/predictions", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterUnknownRoute(t *testing.T) {
	r := setupServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v2/predictions", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

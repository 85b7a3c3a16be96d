package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.frostline.agent/internal/services"
)

func setupHealthServer(t *testing.T, withStore bool) (*gin.Engine, *services.PredictionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, withStore)
	r := gin.New()
	r.GET("/health", NewHealthHandler(svc, "test").Health)

	return r, svc
}

func TestHealth_AllComponentsOK(t *testing.T) {
	r, _ := setupHealthServer(t, true)

	w := getPath(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.Equal(t, "ok", resp.Components["weather_source"])
	assert.Equal(t, "ok", resp.Components["ledger"])
	assert.Equal(t, "7 specialists", resp.Components["specialist_panel"])
}

func TestHealth_LedgerDisabled(t *testing.T) {
	r, _ := setupHealthServer(t, false)

	w := getPath(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "healthy", resp.Status, "running without a ledger is a choice, not a fault")
	assert.Equal(t, "disabled", resp.Components["ledger"])
}

func TestHealth_LedgerUnreachable(t *testing.T) {
	r, svc := setupHealthServer(t, true)
	require.NoError(t, svc.Store().Close())

	w := getPath(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Components["ledger"], "unreachable")
}

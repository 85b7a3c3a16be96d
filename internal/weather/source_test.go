package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Timeout:     time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return client
}

// ============================================================================
// Provider Client Tests
// ============================================================================

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "http://localhost"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "Rochester, NY", r.URL.Query().Get("location"))

		json.NewEncoder(w).Encode(Snapshot{
			TemperatureF:       12,
			FeelsLikeF:         -2,
			ExpectedSnowfallIn: 9,
			Alerts:             []string{"Winter Storm Warning"},
		})
	}))
	defer server.Close()

	snap, err := testClient(t, server.URL).Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)

	assert.Equal(t, 12.0, snap.TemperatureF)
	assert.Equal(t, -2.0, snap.FeelsLikeF)
	assert.Equal(t, 9.0, snap.ExpectedSnowfallIn)
	assert.Equal(t, []string{"Winter Storm Warning"}, snap.Alerts)
}

func TestClientFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Snapshot{TemperatureF: 25})
	}))
	defer server.Close()

	snap, err := testClient(t, server.URL).Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)

	assert.Equal(t, 25.0, snap.TemperatureF)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientFetch_RetriesRateLimits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(Snapshot{TemperatureF: 30})
	}))
	defer server.Close()

	snap, err := testClient(t, server.URL).Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	assert.Equal(t, 30.0, snap.TemperatureF)
}

func TestClientFetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown location", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Fetch(context.Background(), "Nowhere")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientFetch_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Fetch(context.Background(), "Rochester, NY")
	assert.Error(t, err)
}

func TestClientFetch_CanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		MaxRetries:  5,
		BaseBackoff: time.Minute,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Fetch(ctx, "Rochester, NY")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

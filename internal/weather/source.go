package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Source produces a weather snapshot for a location. Implementations include
// the provider-backed Client, the seeded ScenarioGenerator, and the redis
// CachedSource decorator.
type Source interface {
	Fetch(ctx context.Context, location string) (*Snapshot, error)
}

// ErrMissingAPIKey is returned by NewClient when no provider credential is
// configured. Callers treat it as fatal; there is no point retrying.
var ErrMissingAPIKey = errors.New("weather provider API key is not configured")

// ClientConfig holds configuration for the weather provider client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

// Client fetches snapshots from the weather provider's HTTP API with retry
// and exponential backoff.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	log         *logrus.Logger
}

// NewClient creates a provider client. A missing API key is a precondition
// failure and is reported immediately.
func NewClient(config ClientConfig, log *logrus.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if log == nil {
		log = logrus.New()
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	baseBackoff := config.BaseBackoff
	if baseBackoff == 0 {
		baseBackoff = time.Second
	}

	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		log:         log,
	}, nil
}

// Fetch retrieves current conditions for location, retrying on server errors
// and rate limits.
func (c *Client) Fetch(ctx context.Context, location string) (*Snapshot, error) {
	endpoint := fmt.Sprintf("%s/v1/conditions?location=%s&units=imperial",
		c.baseURL, url.QueryEscape(location))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to reach weather provider: %w", err)
			if attempt < c.maxRetries {
				if err := c.backoff(ctx, attempt, false); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var snap Snapshot
			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				resp.Body.Close()
				return nil, fmt.Errorf("failed to decode provider response: %w", err)
			}
			resp.Body.Close()
			return &snap, nil
		}

		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("weather provider returned status %d: %s", resp.StatusCode, string(bodyBytes))

		// Retry on server errors or rate limits
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			if attempt < c.maxRetries {
				c.log.WithFields(logrus.Fields{
					"status":  resp.StatusCode,
					"attempt": attempt + 1,
				}).Debug("Retrying weather provider request")
				if err := c.backoff(ctx, attempt, resp.StatusCode == http.StatusTooManyRequests); err != nil {
					return nil, err
				}
				continue
			}
		}

		return nil, lastErr
	}

	return nil, lastErr
}

func (c *Client) backoff(ctx context.Context, attempt int, rateLimited bool) error {
	backoff := c.baseBackoff * time.Duration(1<<attempt)
	if rateLimited {
		// For rate limits, use longer backoff
		backoff *= 2
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

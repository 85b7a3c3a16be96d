package weather

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheConfig holds redis connection settings for the snapshot cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedSource decorates a Source with a redis snapshot cache. Cache misses
// and redis errors fall through to the wrapped source, so the cache can only
// improve latency, never availability.
type CachedSource struct {
	inner  Source
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewCachedSource wraps inner with a redis cache.
func NewCachedSource(inner Source, cfg CacheConfig, log *logrus.Logger) *CachedSource {
	if log == nil {
		log = logrus.New()
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &CachedSource{inner: inner, client: rdb, ttl: ttl, log: log}
}

func cacheKey(location string) string {
	return "frostline:wx:" + location
}

// Fetch returns the cached snapshot for location when present, otherwise
// fetches from the wrapped source and stores the result best-effort.
func (s *CachedSource) Fetch(ctx context.Context, location string) (*Snapshot, error) {
	key := cacheKey(location)

	data, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err == nil {
			s.log.WithFields(logrus.Fields{
				"location": location,
				"key":      key,
			}).Debug("Snapshot cache hit")
			return &snap, nil
		}
	}

	snap, err := s.inner.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.log.WithError(err).Debug("Snapshot cache write failed")
		}
	}

	return snap, nil
}

// Ping verifies the redis connection.
func (s *CachedSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the redis connection.
func (s *CachedSource) Close() error {
	return s.client.Close()
}

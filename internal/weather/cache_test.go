package weather

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Cached Source Tests
// ============================================================================

func TestCachedSource_MissThenHit(t *testing.T) {
	mr := miniredis.RunT(t)

	inner := &staticSource{snap: Snapshot{TemperatureF: 18, ExpectedSnowfallIn: 4}}
	src := NewCachedSource(inner, CacheConfig{Addr: mr.Addr(), TTL: time.Minute}, nil)
	defer src.Close()

	first, err := src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	assert.Equal(t, 18.0, first.TemperatureF)
	assert.Equal(t, 1, inner.calls)

	second, err := src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	assert.Equal(t, 18.0, second.TemperatureF)
	assert.Equal(t, 1, inner.calls, "second fetch should be served from cache")
}

func TestCachedSource_KeysPerLocation(t *testing.T) {
	mr := miniredis.RunT(t)

	inner := &staticSource{snap: Snapshot{TemperatureF: 22}}
	src := NewCachedSource(inner, CacheConfig{Addr: mr.Addr(), TTL: time.Minute}, nil)
	defer src.Close()

	_, err := src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), "Buffalo, NY")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.True(t, mr.Exists("frostline:wx:Rochester, NY"))
	assert.True(t, mr.Exists("frostline:wx:Buffalo, NY"))
}

func TestCachedSource_ExpiredEntryRefetches(t *testing.T) {
	mr := miniredis.RunT(t)

	inner := &staticSource{snap: Snapshot{TemperatureF: 22}}
	src := NewCachedSource(inner, CacheConfig{Addr: mr.Addr(), TTL: time.Minute}, nil)
	defer src.Close()

	_, err := src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	inner := &staticSource{snap: Snapshot{TemperatureF: 10}}
	src := NewCachedSource(inner, CacheConfig{Addr: addr, TTL: time.Minute}, nil)
	defer src.Close()

	snap, err := src.Fetch(context.Background(), "Rochester, NY")
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.TemperatureF)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSource_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	src := NewCachedSource(&staticSource{}, CacheConfig{Addr: mr.Addr()}, nil)
	defer src.Close()

	assert.NoError(t, src.Ping(context.Background()))
}

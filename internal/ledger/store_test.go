package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

func openTestStore(t *testing.T) *Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateTable(context.Background()))
	return store
}

func sampleEntry(date string) *Entry {
	return &Entry{
		Date:            date,
		Location:        "Candia, NH",
		Probability:     72.5,
		ConfidenceLevel: "high",
		ExitReason:      "consensus",
	}
}

// ============================================================================
// Append / Get Tests
// ============================================================================

func TestAppendAndGetByDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("2026-01-15")
	require.NoError(t, store.Append(ctx, entry))

	assert.NotEmpty(t, entry.ID, "append stamps an ID")
	assert.False(t, entry.CreatedAt.IsZero(), "append stamps a creation time")

	got, err := store.GetByDate(ctx, "2026-01-15")
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "2026-01-15", got.Date)
	assert.Equal(t, "Candia, NH", got.Location)
	assert.InDelta(t, 72.5, got.Probability, 1e-9)
	assert.Equal(t, "high", got.ConfidenceLevel)
	assert.Equal(t, "consensus", got.ExitReason)
	assert.Nil(t, got.ActualOutcome, "outcome is unknown until recorded")
}

func TestAppendRequiresDate(t *testing.T) {
	store := openTestStore(t)

	err := store.Append(context.Background(), &Entry{Location: "Candia, NH"})
	assert.Error(t, err)
}

func TestAppendPreservesEmptyExitReason(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("2026-01-16")
	entry.ExitReason = ""
	require.NoError(t, store.Append(ctx, entry))

	got, err := store.GetByDate(ctx, "2026-01-16")
	require.NoError(t, err)
	assert.Empty(t, got.ExitReason)
}

func TestGetByDateReturnsLatestRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	early := sampleEntry("2026-01-20")
	early.Probability = 40
	early.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Append(ctx, early))

	late := sampleEntry("2026-01-20")
	late.Probability = 85
	require.NoError(t, store.Append(ctx, late))

	got, err := store.GetByDate(ctx, "2026-01-20")
	require.NoError(t, err)
	assert.InDelta(t, 85.0, got.Probability, 1e-9, "the newest run wins")
}

func TestGetByDateMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetByDate(context.Background(), "2026-02-30")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// Outcome Tests
// ============================================================================

func TestRecordOutcomeScoresEveryRunForTheDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleEntry("2026-01-22")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, sampleEntry("2026-01-22")))

	require.NoError(t, store.RecordOutcome(ctx, "2026-01-22", true))

	entries, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NotNil(t, e.ActualOutcome)
		assert.True(t, *e.ActualOutcome)
	}
}

func TestRecordOutcomeFlipsOnCorrection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, sampleEntry("2026-01-23")))
	require.NoError(t, store.RecordOutcome(ctx, "2026-01-23", true))
	require.NoError(t, store.RecordOutcome(ctx, "2026-01-23", false))

	got, err := store.GetByDate(ctx, "2026-01-23")
	require.NoError(t, err)
	require.NotNil(t, got.ActualOutcome)
	assert.False(t, *got.ActualOutcome)
}

func TestRecordOutcomeMissingDate(t *testing.T) {
	store := openTestStore(t)

	err := store.RecordOutcome(context.Background(), "2026-03-01", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// Listing Tests
// ============================================================================

func TestListRecentNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-3 * time.Hour)
	for i, date := range []string{"2026-01-05", "2026-01-06", "2026-01-07"} {
		entry := sampleEntry(date)
		entry.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Append(ctx, entry))
	}

	entries, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-01-07", entries[0].Date)
	assert.Equal(t, "2026-01-06", entries[1].Date)
}

func TestListRecentDefaultsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, sampleEntry("2026-01-09")))

	entries, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListRecentEmptyLedger(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ============================================================================
// Schema Tests
// ============================================================================

func TestCreateTableIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTable(ctx))
	require.NoError(t, store.Append(ctx, sampleEntry("2026-01-11")))
	require.NoError(t, store.CreateTable(ctx), "re-creating must not clobber data")

	got, err := store.GetByDate(ctx, "2026-01-11")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-11", got.Date)
}

func TestPingReportsClosedStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(ctx))
}

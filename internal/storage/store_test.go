package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webtime/internal/activity"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func segment(url string, start, end int64) activity.Segment {
	return activity.Segment{
		URL:        url,
		Title:      "Title " + url,
		FaviconURL: url + "/favicon.ico",
		StartTime:  start,
		EndTime:    end,
	}
}

func ptr(v int64) *int64 { return &v }

// --- CreateActivityRecord + GetRecord roundtrip ---

func TestCreateActivityRecord_GetRecord_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateActivityRecord(ctx, segment("https://Example.com/article", 1000, 61000))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "ACT-"), "record ID should have ACT- prefix")

	got, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "https://Example.com/article", got.URL)
	assert.Equal(t, "Title https://Example.com/article", got.Title)
	assert.Equal(t, "https://Example.com/article/favicon.ico", got.FaviconURL)
	assert.Equal(t, "example.com", got.Domain)
	assert.Equal(t, SourceTracker, got.Source)
	assert.Equal(t, int64(1000), got.StartTime)
	assert.Equal(t, int64(61000), got.EndTime)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestAddRecord_ManualSource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.AddRecord(ctx, segment("https://example.com", 0, 10), SourceManual)
	require.NoError(t, err)

	got, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, got.Source)
}

func TestAddRecord_RejectsInvalidSegments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.CreateActivityRecord(ctx, segment("", 0, 10))
	assert.True(t, errors.Is(err, ErrInvalidSegment))

	_, err = store.CreateActivityRecord(ctx, segment("https://example.com", 10, 0))
	assert.True(t, errors.Is(err, ErrInvalidSegment))
}

func TestGetRecord_NotFound(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetRecord(context.Background(), "ACT-nonexistent")
	assert.Error(t, err)
	assert.Nil(t, got)
}

// --- Exclusions ---

func TestCreateActivityRecord_ExcludedDomainSkipped(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateActivityRecord(ctx, segment("https://www.chase.com/account", 0, 10))
	require.NoError(t, err)
	assert.Empty(t, id)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRecords)
}

func TestAddExclusions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.False(t, store.IsExcluded("news.example.org"))

	require.NoError(t, store.AddExclusions(ctx, []string{"Example.org"}, []string{`^intranet\.`}))

	assert.True(t, store.IsExcluded("example.org"))
	assert.True(t, store.IsExcluded("news.example.org"))
	assert.True(t, store.IsExcluded("intranet.corp"))
	assert.False(t, store.IsExcluded("notexample.org"))

	// Re-adding is harmless.
	require.NoError(t, store.AddExclusions(ctx, []string{"example.org"}, nil))
}

func TestAddExclusions_InvalidPattern(t *testing.T) {
	store := openTestStore(t)
	err := store.AddExclusions(context.Background(), nil, []string{"("})
	assert.Error(t, err)
}

// --- ListRecords ---

func seedRecords(t *testing.T, store *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for _, seg := range []activity.Segment{
		segment("https://a.com/1", 1000, 2000),
		segment("https://b.com/1", 2001, 5000),
		segment("https://a.com/2", 5001, 9000),
		segment("https://c.com/1", 9001, 9500),
	} {
		_, err := store.CreateActivityRecord(ctx, seg)
		require.NoError(t, err)
	}
}

func TestListRecords_All(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	records, err := store.ListRecords(context.Background(), RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].StartTime, records[i].StartTime, "records should be oldest first")
	}
}

func TestListRecords_RangeOverlap(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	records, err := store.ListRecords(context.Background(), RecordQuery{
		Range: activity.TimeRange{Start: ptr(4000), End: ptr(6000)},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://b.com/1", records[0].URL)
	assert.Equal(t, "https://a.com/2", records[1].URL)
}

func TestListRecords_ByDomain(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	records, err := store.ListRecords(context.Background(), RecordQuery{Domain: "A.com"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "a.com", r.Domain)
	}
}

func TestListRecords_Pagination(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)
	ctx := context.Background()

	page1, err := store.ListRecords(ctx, RecordQuery{Limit: 2})
	require.NoError(t, err)
	page2, err := store.ListRecords(ctx, RecordQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestListRecords_OffsetWithoutLimit(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	records, err := store.ListRecords(context.Background(), RecordQuery{Offset: 3})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://c.com/1", records[0].URL)

	records, err = store.ListRecords(context.Background(), RecordQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListRecords_EmptyIsNotNil(t *testing.T) {
	store := openTestStore(t)

	records, err := store.ListRecords(context.Background(), RecordQuery{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSegments(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	records, err := store.ListRecords(context.Background(), RecordQuery{})
	require.NoError(t, err)

	segs := Segments(records)
	require.Len(t, segs, 4)
	assert.Equal(t, segment("https://a.com/1", 1000, 2000), segs[0])
}

// --- DeleteRecord ---

func TestDeleteRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateActivityRecord(ctx, segment("https://example.com", 0, 10))
	require.NoError(t, err)

	require.NoError(t, store.DeleteRecord(ctx, id))

	_, err = store.GetRecord(ctx, id)
	assert.Error(t, err)

	err = store.DeleteRecord(ctx, id)
	assert.Error(t, err, "deleting twice should report not found")
}

// --- Prune / Purge ---

func TestPruneExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-60 * 24 * time.Hour).UnixMilli()
	recent := now.Add(-time.Hour).UnixMilli()
	for i := 0; i < 3; i++ {
		_, err := store.CreateActivityRecord(ctx, segment(fmt.Sprintf("https://old%d.com", i), old, old+1000))
		require.NoError(t, err)
	}
	_, err := store.CreateActivityRecord(ctx, segment("https://recent.com", recent, recent+1000))
	require.NoError(t, err)

	cutoff := now.Add(-30 * 24 * time.Hour)
	n, err := store.CountExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.PruneExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	records, err := store.ListRecords(ctx, RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://recent.com", records[0].URL)
}

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)
	ctx := context.Background()

	require.NoError(t, store.PurgeAll(ctx))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRecords)

	// Exclusions survive a purge.
	assert.True(t, store.IsExcluded("paypal.com"))
}

// --- GetStats ---

func TestGetStats(t *testing.T) {
	store := openTestStore(t)
	seedRecords(t, store)

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalRecords)
	assert.Equal(t, time.Duration(1000+2999+3999+499)*time.Millisecond, stats.TotalDuration)
	assert.Equal(t, int64(1000), stats.OldestRecord.UnixMilli())
	assert.Equal(t, int64(9500), stats.NewestRecord.UnixMilli())

	require.Len(t, stats.TopDomains, 3)
	assert.Equal(t, "a.com", stats.TopDomains[0].Domain)
	assert.Equal(t, int64(2), stats.TopDomains[0].Records)
	assert.Equal(t, 4999*time.Millisecond, stats.TopDomains[0].Duration)
	assert.Equal(t, "b.com", stats.TopDomains[1].Domain)
}

func TestGetStats_Empty(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRecords)
	assert.True(t, stats.OldestRecord.IsZero())
	assert.Empty(t, stats.TopDomains)
}

var _ Store = (*SQLiteStore)(nil)

func TestDatabaseSizeAndSchemaVersion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	size, err := store.DatabaseSize(ctx)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	v, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

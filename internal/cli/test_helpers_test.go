package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/config"
	"github.com/runnerr0/webtime/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestStore creates a migrated in-memory store.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// testDeps wires a fresh in-memory store, default config in UTC, and a
// silent logger.
func testDeps(t *testing.T) deps {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Report.Timezone = "UTC"
	return deps{
		cfg:    cfg,
		store:  openTestStore(t),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// addSegment stores a tracker record for url between start and end.
func addSegment(t *testing.T, store storage.Store, url string, start, end int64) string {
	t.Helper()
	id, err := store.CreateActivityRecord(context.Background(), activity.Segment{
		URL:       url,
		Title:     "Title " + url,
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return id
}

// tempEnv writes a default config into a temp dir and returns global args
// pointing --config and --db at it.
func tempEnv(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err := config.LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	return []string{"--config", cfgPath, "--db", filepath.Join(dir, "webtime.db")}
}

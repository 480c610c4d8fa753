package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/webtime/internal/config"
	"github.com/runnerr0/webtime/internal/storage"
)

// resolve loads the config, opens the store and builds the logger unless
// they were injected. The returned cleanup closes only what resolve opened.
func (d *deps) resolve(g *GlobalFlags) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if d.cfg == nil {
		cfg, err := loadConfig(g)
		if err != nil {
			return cleanup, err
		}
		d.cfg = cfg
	}

	if d.store == nil {
		dbPath, err := databasePath(g, d.cfg)
		if err != nil {
			return cleanup, err
		}
		store, db, err := openStore(dbPath, d.cfg)
		if err != nil {
			return cleanup, err
		}
		d.store = store
		closers = append(closers, func() {
			store.Close()
			db.Close()
			d.store = nil
		})
	}

	if d.logger == nil {
		logger, closer, err := newLogger(d.cfg.Logging, g != nil && g.Verbose)
		if err != nil {
			return cleanup, err
		}
		d.logger = logger
		closers = append(closers, func() {
			closer.Close()
			d.logger = nil
		})
	}

	if d.stdin == nil {
		d.stdin = os.Stdin
	}
	return cleanup, nil
}

// loadConfig reads --config when given, otherwise the default config file,
// creating it with defaults on first run.
func loadConfig(g *GlobalFlags) (*config.Config, error) {
	if g != nil && g.Config != "" {
		return config.Load(g.Config)
	}
	return config.LoadOrCreate()
}

// databasePath returns --db when given, otherwise the configured path.
func databasePath(g *GlobalFlags, cfg *config.Config) (string, error) {
	if g != nil && g.DB != "" {
		return config.ExpandPath(g.DB)
	}
	return cfg.DatabasePath()
}

// openStore opens the database at dbPath, runs migrations, merges the
// configured denylist into the exclusion rules, and returns a ready-to-use
// store and the underlying *sql.DB.
func openStore(dbPath string, cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	if err := store.AddExclusions(context.Background(), cfg.Capture.DenylistDomains, cfg.Capture.DenylistRegex); err != nil {
		store.Close()
		db.Close()
		return nil, nil, fmt.Errorf("apply denylist: %w", err)
	}

	return store, db, nil
}

// newLogger builds a text logger from the logging config. --verbose forces
// debug level. The returned closer releases the log file, if any.
func newLogger(cfg config.LoggingConfig, verbose bool) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.WriteCloser = nopCloser{os.Stderr}
	if cfg.File != "" {
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, out, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatMillis renders a millisecond count as "1h 02m", "3m 04s" or "5s".
func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// readAnswer prints prompt and returns the next trimmed line from in.
func readAnswer(in io.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return "", fmt.Errorf("aborted: no input received")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

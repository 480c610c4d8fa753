package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/webtime/internal/activity"
)

// ErrInvalidSegment is returned when a segment is the empty sentinel or ends
// before it starts.
var ErrInvalidSegment = errors.New("invalid activity segment")

// Store defines the interface for webtime data operations.
type Store interface {
	activity.RecordSink
	AddRecord(ctx context.Context, seg activity.Segment, source string) (string, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	ListRecords(ctx context.Context, q RecordQuery) ([]Record, error)
	DeleteRecord(ctx context.Context, id string) error
	CountExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	AddExclusions(ctx context.Context, domains, patterns []string) error
	IsExcluded(domain string) bool
	DatabaseSize(ctx context.Context) (int64, error)
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertRecord *sql.Stmt
	getRecord    *sql.Stmt
	deleteRecord *sql.Stmt

	// Cached exclusion rules
	domainExclusions []string
	regexExclusions  []*regexp.Regexp
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.loadExclusions(); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertRecord, err = s.db.Prepare(`
		INSERT INTO activity_records (id, url, favicon_url, title, domain, source, start_ms, end_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getRecord, err = s.db.Prepare(`
		SELECT id, url, favicon_url, title, domain, source, start_ms, end_ms, created_at
		FROM activity_records WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.deleteRecord, err = s.db.Prepare(`DELETE FROM activity_records WHERE id = ?`)
	return err
}

// loadExclusions (re)loads domain and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions() error {
	rows, err := s.db.Query("SELECT rule_type, rule_value FROM exclusions")
	if err != nil {
		return err
	}
	defer rows.Close()

	var domains []string
	var regexes []*regexp.Regexp
	for rows.Next() {
		var ruleType, ruleValue string
		if err := rows.Scan(&ruleType, &ruleValue); err != nil {
			return err
		}
		switch ruleType {
		case "domain":
			domains = append(domains, ruleValue)
		case "regex":
			re, err := regexp.Compile(ruleValue)
			if err != nil {
				continue // skip invalid regex
			}
			regexes = append(regexes, re)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.domainExclusions = domains
	s.regexExclusions = regexes
	return nil
}

// AddExclusions stores extra domain and regex rules (e.g. from the config
// file) and refreshes the cached rule set. Existing rules are kept.
func (s *SQLiteStore) AddExclusions(ctx context.Context, domains, patterns []string) error {
	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, 'config', 0)`

	for _, d := range domains {
		if _, err := s.db.ExecContext(ctx, insertSQL, "domain", strings.ToLower(d)); err != nil {
			return fmt.Errorf("add domain exclusion %q: %w", d, err)
		}
	}
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid exclusion pattern %q: %w", p, err)
		}
		if _, err := s.db.ExecContext(ctx, insertSQL, "regex", p); err != nil {
			return fmt.Errorf("add regex exclusion %q: %w", p, err)
		}
	}
	return s.loadExclusions()
}

// IsExcluded checks if a domain, or any parent domain, is blocked by exclusion rules.
func (s *SQLiteStore) IsExcluded(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range s.domainExclusions {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// generateID creates a record ID: ACT- + a random UUID.
func generateID() string {
	return "ACT-" + uuid.NewString()
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// extractDomain pulls the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// CreateActivityRecord stores a segment emitted by the tracker.
func (s *SQLiteStore) CreateActivityRecord(ctx context.Context, seg activity.Segment) (string, error) {
	return s.AddRecord(ctx, seg, SourceTracker)
}

// AddRecord inserts a completed segment and returns its ID. If the domain is
// excluded, the segment is silently skipped (empty ID, no error).
func (s *SQLiteStore) AddRecord(ctx context.Context, seg activity.Segment, source string) (string, error) {
	if !seg.Valid() {
		return "", fmt.Errorf("%w: url=%q start=%d end=%d", ErrInvalidSegment, seg.URL, seg.StartTime, seg.EndTime)
	}

	domain := extractDomain(seg.URL)
	if s.IsExcluded(domain) {
		return "", nil // silently skip
	}

	id := generateID()
	_, err := s.insertRecord.ExecContext(ctx,
		id, seg.URL, seg.FaviconURL, seg.Title, domain, source, seg.StartTime, seg.EndTime,
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// GetRecord retrieves a single record by ID.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.getRecord.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s not found", id)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

// ListRecords returns records overlapping q.Range, oldest first.
func (s *SQLiteStore) ListRecords(ctx context.Context, q RecordQuery) ([]Record, error) {
	var clauses []string
	var args []interface{}

	if q.Range.Start != nil {
		clauses = append(clauses, "end_ms >= ?")
		args = append(args, *q.Range.Start)
	}
	if q.Range.End != nil {
		clauses = append(clauses, "start_ms <= ?")
		args = append(args, *q.Range.End)
	}
	if q.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, strings.ToLower(q.Domain))
	}

	query := `
		SELECT id, url, favicon_url, title, domain, source, start_ms, end_ms, created_at
		FROM activity_records
	`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_ms ASC, id ASC"
	switch {
	case q.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var createdAt string
	if err := row.Scan(
		&r.ID, &r.URL, &r.FaviconURL, &r.Title, &r.Domain, &r.Source,
		&r.StartTime, &r.EndTime, &createdAt,
	); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = parseTimestamp(createdAt)
	return &r, nil
}

// Segments strips storage metadata for aggregation.
func Segments(records []Record) []activity.Segment {
	out := make([]activity.Segment, len(records))
	for i, r := range records {
		out[i] = r.Segment
	}
	return out
}

// DeleteRecord removes a record by ID.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.deleteRecord.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}

// CountExpired reports how many records ended before olderThan.
func (s *SQLiteStore) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_records WHERE end_ms < ?", olderThan.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired: %w", err)
	}
	return n, nil
}

// PruneExpired deletes records that ended before olderThan.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM activity_records WHERE end_ms < ?", olderThan.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAll deletes every activity record. Exclusion rules are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM activity_records"); err != nil {
		return fmt.Errorf("purge records: %w", err)
	}
	return nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var totalMs int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(end_ms - start_ms), 0) FROM activity_records",
	).Scan(&stats.TotalRecords, &totalMs)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	stats.TotalDuration = time.Duration(totalMs) * time.Millisecond

	// Oldest and newest (handle empty DB)
	if stats.TotalRecords > 0 {
		var oldest, newest int64
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(start_ms), MAX(end_ms) FROM activity_records",
		).Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("record time range: %w", err)
		}
		stats.OldestRecord = time.UnixMilli(oldest)
		stats.NewestRecord = time.UnixMilli(newest)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, COUNT(*), SUM(end_ms - start_ms) AS total
		FROM activity_records
		GROUP BY domain
		ORDER BY total DESC, domain ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dt DomainTotal
		var ms int64
		if err := rows.Scan(&dt.Domain, &dt.Records, &ms); err != nil {
			return nil, err
		}
		dt.Duration = time.Duration(ms) * time.Millisecond
		stats.TopDomains = append(stats.TopDomains, dt)
	}

	return stats, rows.Err()
}

// DatabaseSize returns page_count * page_size, which also works for
// in-memory databases.
func (s *SQLiteStore) DatabaseSize(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	return NewMigrationRunner(s.db).Version(ctx)
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertRecord, s.getRecord, s.deleteRecord}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the activity record and exclusion tables. Every
// statement uses IF NOT EXISTS for idempotency.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// start_ms/end_ms are Unix milliseconds; end_ms >= start_ms.
		`CREATE TABLE IF NOT EXISTS activity_records (
			id          TEXT PRIMARY KEY,
			url         TEXT NOT NULL,
			favicon_url TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			domain      TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL DEFAULT 'tracker',
			start_ms    INTEGER NOT NULL,
			end_ms      INTEGER NOT NULL CHECK (end_ms >= start_ms),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('domain', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_records_start       ON activity_records(start_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_records_end         ON activity_records(end_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_records_domain      ON activity_records(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_records_domain_time ON activity_records(domain, start_ms)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 seeds the privacy denylist: time spent on these sites is never
// recorded. Uses INSERT OR IGNORE so re-running is safe.
func migrateV002(ctx context.Context, tx *sql.Tx) error {
	type rule struct {
		RuleType  string
		RuleValue string
		Reason    string
	}

	defaults := []rule{
		{"domain", "chase.com", "Banking"},
		{"domain", "bankofamerica.com", "Banking"},
		{"domain", "wellsfargo.com", "Banking"},
		{"domain", "paypal.com", "Payment"},
		{"domain", "1password.com", "Password manager"},
		{"domain", "bitwarden.com", "Password manager"},
		{"domain", "lastpass.com", "Password manager"},
		{"domain", "accounts.google.com", "Auth provider"},
		{"domain", "login.microsoftonline.com", "Auth provider"},
		{"domain", "okta.com", "Auth provider"},
		{"domain", "mychart.com", "Healthcare"},
		{"domain", "irs.gov", "Tax"},
		{"regex", `.*\.xxx$`, "Adult content"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, 1)`

	for _, r := range defaults {
		if _, err := tx.ExecContext(ctx, insertSQL, r.RuleType, r.RuleValue, r.Reason); err != nil {
			return err
		}
	}
	return nil
}

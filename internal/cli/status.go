package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/webtime/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version              string            `json:"version"`
	DatabasePath         string            `json:"database_path"`
	DatabaseSizeBytes    int64             `json:"database_size_bytes"`
	SchemaVersion        int               `json:"schema_version"`
	TotalRecords         int64             `json:"total_records"`
	TotalDurationMs      int64             `json:"total_duration_ms"`
	OldestRecord         string            `json:"oldest_record,omitempty"`
	NewestRecord         string            `json:"newest_record,omitempty"`
	RetentionDays        int               `json:"retention_days"`
	IdleDetectionSeconds int               `json:"idle_detection_seconds"`
	Timezone             string            `json:"timezone"`
	TopDomains           []domainTotalJSON `json:"top_domains"`
}

type domainTotalJSON struct {
	Domain     string `json:"domain"`
	Records    int64  `json:"records"`
	DurationMs int64  `json:"duration_ms"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background())
}

func (c *StatusCommand) run(ctx context.Context) error {
	store, cfg := c.deps.store, c.deps.cfg

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbPath, err := databasePath(c.globals, cfg)
	if err != nil {
		return err
	}
	dbSize, err := store.DatabaseSize(ctx)
	if err != nil {
		return err
	}
	schema, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbPath, dbSize, schema)
	}
	return c.printStatusHuman(stats, dbPath, dbSize, schema)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, dbSize int64, schema int) error {
	cfg := c.deps.cfg

	fmt.Println("webtime status")
	fmt.Println("==============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s, schema v%d)\n", dbPath, formatBytes(dbSize), schema)
	fmt.Printf("Records:       %s\n", formatNumber(stats.TotalRecords))
	fmt.Printf("Tracked:       %s\n", formatMillis(stats.TotalDuration.Milliseconds()))

	if stats.TotalRecords > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestRecord.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestRecord.Local().Format("2006-01-02"))
	}

	fmt.Printf("Retention:     %d days\n", cfg.Retention.Days)
	fmt.Printf("Idle after:    %s\n", formatDurationHuman(time.Duration(cfg.Tracking.IdleDetectionSeconds)*time.Second))
	fmt.Printf("Timezone:      %s\n", cfg.Report.Timezone)

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-24s %10s  (%s records)\n", d.Domain, formatMillis(d.Duration.Milliseconds()), formatNumber(d.Records))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, dbSize int64, schema int) error {
	cfg := c.deps.cfg
	out := statusJSON{
		Version:              c.version,
		DatabasePath:         dbPath,
		DatabaseSizeBytes:    dbSize,
		SchemaVersion:        schema,
		TotalRecords:         stats.TotalRecords,
		TotalDurationMs:      stats.TotalDuration.Milliseconds(),
		RetentionDays:        cfg.Retention.Days,
		IdleDetectionSeconds: cfg.Tracking.IdleDetectionSeconds,
		Timezone:             cfg.Report.Timezone,
		TopDomains:           make([]domainTotalJSON, len(stats.TopDomains)),
	}

	if stats.TotalRecords > 0 {
		out.OldestRecord = stats.OldestRecord.UTC().Format(time.RFC3339)
		out.NewestRecord = stats.NewestRecord.UTC().Format(time.RFC3339)
	}

	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainTotalJSON{Domain: d.Domain, Records: d.Records, DurationMs: d.Duration.Milliseconds()}
	}

	return printJSON(out)
}

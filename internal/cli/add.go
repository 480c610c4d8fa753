package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for add command")
	}
	if c.Title == "" {
		return fmt.Errorf("--title is required for add command")
	}
	if c.Start == "" || c.End == "" {
		return fmt.Errorf("--start and --end are required for add command")
	}

	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background())
}

func (c *AddCommand) run(ctx context.Context) error {
	store := c.deps.store

	// Validate URL format
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	start, err := time.Parse(time.RFC3339, c.Start)
	if err != nil {
		return fmt.Errorf("invalid --start %q: %w", c.Start, err)
	}
	end, err := time.Parse(time.RFC3339, c.End)
	if err != nil {
		return fmt.Errorf("invalid --end %q: %w", c.End, err)
	}
	if end.Before(start) {
		return fmt.Errorf("--end %s is before --start %s", c.End, c.Start)
	}

	// Check exclusion before calling store (store silently skips, but we want
	// an explicit error for the CLI user)
	domain := parsed.Hostname()
	if store.IsExcluded(domain) {
		return fmt.Errorf("domain %q is excluded by exclusion rules", domain)
	}

	seg := activity.Segment{
		URL:        c.URL,
		Title:      c.Title,
		FaviconURL: c.Favicon,
		StartTime:  start.UnixMilli(),
		EndTime:    end.UnixMilli(),
	}
	id, err := store.AddRecord(ctx, seg, storage.SourceManual)
	if err != nil {
		return fmt.Errorf("storing record: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"id":          id,
			"url":         seg.URL,
			"title":       seg.Title,
			"start":       start.UTC().Format(time.RFC3339),
			"end":         end.UTC().Format(time.RFC3339),
			"duration_ms": seg.Duration(),
		})
	}

	fmt.Printf("Added record %s\n", id)
	fmt.Printf("  URL: %s\n", seg.URL)
	fmt.Printf("  Title: %s\n", seg.Title)
	fmt.Printf("  Time: %s - %s (%s)\n", start.Local().Format("2006-01-02 15:04:05"), end.Local().Format("15:04:05"), formatMillis(seg.Duration()))

	return nil
}

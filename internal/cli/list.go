package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/storage"
)

// Execute implements the go-flags Commander interface for ListCommand.
func (c *ListCommand) Execute(args []string) error {
	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background())
}

func (c *ListCommand) run(ctx context.Context) error {
	q := storage.RecordQuery{
		Domain: c.Domain,
		Limit:  c.Limit,
		Offset: c.Offset,
	}
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		now := time.Now()
		q.Range = activity.NewTimeRange(now.Add(-dur), time.Time{})
	}

	records, err := c.deps.store.ListRecords(ctx, q)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(records)
	}
	return c.printHuman(records)
}

func (c *ListCommand) printHuman(records []storage.Record) error {
	if len(records) == 0 {
		fmt.Printf("No records found (since %s)\n", c.Since)
		return nil
	}

	word := "records"
	if len(records) == 1 {
		word = "record"
	}
	fmt.Printf("Found %d %s (since %s)\n\n", len(records), word, c.Since)

	for i, r := range records {
		fmt.Printf("%d. %s", i+1+c.Offset, r.Title)
		if r.Domain != "" {
			fmt.Printf(" (%s)", r.Domain)
		}
		fmt.Println()

		fmt.Printf("   %s\n", r.URL)

		meta := fmt.Sprintf("%s - %s · %s",
			r.Start().Local().Format("2006-01-02 15:04:05"),
			r.End().Local().Format("15:04:05"),
			formatMillis(r.Duration()))
		if r.Source != storage.SourceTracker {
			meta += " · " + r.Source
		}
		fmt.Printf("   %s\n", meta)

		if i < len(records)-1 {
			fmt.Println()
		}
	}

	return nil
}

type jsonRecord struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	FaviconURL string `json:"favicon_url,omitempty"`
	Domain     string `json:"domain"`
	Source     string `json:"source"`
	Start      string `json:"start"`
	End        string `json:"end"`
	DurationMs int64  `json:"duration_ms"`
}

type jsonListOutput struct {
	Count   int          `json:"count"`
	Records []jsonRecord `json:"records"`
}

func (c *ListCommand) printJSON(records []storage.Record) error {
	out := jsonListOutput{
		Count:   len(records),
		Records: make([]jsonRecord, len(records)),
	}

	for i, r := range records {
		out.Records[i] = jsonRecord{
			ID:         r.ID,
			URL:        r.URL,
			Title:      r.Title,
			FaviconURL: r.FaviconURL,
			Domain:     r.Domain,
			Source:     r.Source,
			Start:      r.Start().UTC().Format(time.RFC3339Nano),
			End:        r.End().UTC().Format(time.RFC3339Nano),
			DurationMs: r.Duration(),
		}
	}

	return printJSON(out)
}

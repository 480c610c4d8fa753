package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/aggregate"
	"github.com/runnerr0/webtime/internal/storage"
	"github.com/runnerr0/webtime/internal/timesplit"
)

const (
	dateLayout    = "2006-01-02"
	barWidth      = 30
	topDomainRows = 10
)

// report is the JSON output structure for the report command. Durations are
// in milliseconds.
type report struct {
	From         string                         `json:"from"`
	To           string                         `json:"to"`
	Timezone     string                         `json:"timezone"`
	Records      int                            `json:"records"`
	Total        int64                          `json:"total"`
	ByDate       []aggregate.DateDuration       `json:"by_date,omitempty"`
	ByWeekday    []aggregate.DayOfWeekDuration  `json:"by_weekday,omitempty"`
	ByHourOfWeek []aggregate.HourOfWeekDuration `json:"by_hour_of_week,omitempty"`
	ByDuration   []aggregate.BucketDuration     `json:"by_duration,omitempty"`
	ByDomain     []aggregate.DomainDuration     `json:"by_domain,omitempty"`
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	if c.Since != "" && (c.From != "" || c.To != "") {
		return fmt.Errorf("--since cannot be combined with --from/--to")
	}

	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background(), time.Now())
}

// selectedRange turns the flags into a possibly open-ended range.
func (c *ReportCommand) selectedRange(now time.Time, loc *time.Location) (activity.TimeRange, error) {
	if c.From != "" || c.To != "" {
		var start, end time.Time
		if c.From != "" {
			t, err := time.ParseInLocation(dateLayout, c.From, loc)
			if err != nil {
				return activity.TimeRange{}, fmt.Errorf("invalid --from %q: %w", c.From, err)
			}
			start = t
		}
		if c.To != "" {
			t, err := time.ParseInLocation(dateLayout, c.To, loc)
			if err != nil {
				return activity.TimeRange{}, fmt.Errorf("invalid --to %q: %w", c.To, err)
			}
			end = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			return activity.TimeRange{}, fmt.Errorf("--to %s is before --from %s", c.To, c.From)
		}
		return activity.NewTimeRange(start, end), nil
	}

	since := c.Since
	if since == "" {
		since = c.deps.cfg.Report.DefaultSince
	}
	dur, err := parseDuration(since)
	if err != nil {
		return activity.TimeRange{}, fmt.Errorf("invalid --since value %q: %w", since, err)
	}
	return activity.NewTimeRange(now.Add(-dur), now), nil
}

func (c *ReportCommand) run(ctx context.Context, now time.Time) error {
	cfg := c.deps.cfg
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	selected, err := c.selectedRange(now, loc)
	if err != nil {
		return err
	}

	records, err := c.deps.store.ListRecords(ctx, storage.RecordQuery{Range: selected})
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	segs := storage.Segments(records)

	rng, ok := aggregate.EffectiveRange(segs, selected)
	if !ok || len(records) == 0 {
		if c.globals != nil && c.globals.JSON {
			return printJSON(report{Timezone: loc.String()})
		}
		fmt.Println("No activity recorded.")
		return nil
	}

	// Per-date breakdowns cover whole dates up to and including the last one.
	days := activity.DefiniteTimeRange{
		Start: rng.Start,
		End:   timesplit.NextBoundary(rng.End, timesplit.Day, loc),
	}

	out := report{
		From:     time.UnixMilli(rng.Start).In(loc).Format(dateLayout),
		To:       time.UnixMilli(rng.End).In(loc).Format(dateLayout),
		Timezone: loc.String(),
		Records:  len(records),
		Total:    aggregate.TotalDuration(segs, rng, loc),
	}
	if c.wants("date") {
		out.ByDate = aggregate.TotalDurationByDate(segs, days, loc)
	}
	if c.wants("weekday") {
		out.ByWeekday = aggregate.TotalDurationByDayOfWeek(segs, days, loc)
	}
	if c.wants("hour") {
		out.ByHourOfWeek = aggregate.AverageDurationByHourOfWeek(segs, days, loc)
	}
	if c.wants("duration") {
		out.ByDuration = aggregate.TotalDurationByDurationBuckets(segs, rng, cfg.Report.DurationBucketMs, cfg.Report.DurationBucketCount)
	}
	if c.wants("domain") {
		out.ByDomain = aggregate.TotalDurationByDomain(segs, rng)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	c.printHuman(out, cfg.Report.DurationBucketMs)
	return nil
}

func (c *ReportCommand) wants(kind string) bool {
	return c.Kind == "" || c.Kind == "all" || c.Kind == kind
}

func (c *ReportCommand) printHuman(r report, bucketSize int64) {
	fmt.Printf("Report %s to %s (%s)\n", r.From, r.To, r.Timezone)
	fmt.Printf("Total:  %s across %d records\n", formatMillis(r.Total), r.Records)

	if len(r.ByDate) > 0 {
		fmt.Println()
		fmt.Println("By date:")
		peak := int64(0)
		for _, d := range r.ByDate {
			peak = max(peak, d.Duration)
		}
		for _, d := range r.ByDate {
			fmt.Printf("  %s %s %9s  %s\n", d.Date.Format(dateLayout), d.Date.Format("Mon"), formatMillis(d.Duration), bar(d.Duration, peak))
		}
	}

	if len(r.ByWeekday) > 0 {
		fmt.Println()
		fmt.Println("By weekday:")
		peak := int64(0)
		for _, d := range r.ByWeekday {
			peak = max(peak, d.Duration)
		}
		for _, d := range r.ByWeekday {
			fmt.Printf("  %-9s %9s  %s\n", d.Day, formatMillis(d.Duration), bar(d.Duration, peak))
		}
	}

	if len(r.ByHourOfWeek) > 0 {
		fmt.Println()
		fmt.Println("Average by hour of week:")
		printHeatmap(r.ByHourOfWeek)
	}

	if len(r.ByDuration) > 0 {
		fmt.Println()
		fmt.Println("By segment length:")
		peak := int64(0)
		for _, b := range r.ByDuration {
			peak = max(peak, b.Duration)
		}
		last := len(r.ByDuration) - 1
		for _, b := range r.ByDuration {
			if b.Duration == 0 {
				continue
			}
			fmt.Printf("  %-18s %9s  %s\n", bucketLabel(b.Bucket, last, bucketSize), formatMillis(b.Duration), bar(b.Duration, peak))
		}
	}

	if len(r.ByDomain) > 0 {
		fmt.Println()
		fmt.Println("Top sites:")
		peak := r.ByDomain[0].Duration
		for i, d := range r.ByDomain {
			if i == topDomainRows {
				fmt.Printf("  ... and %d more\n", len(r.ByDomain)-topDomainRows)
				break
			}
			fmt.Printf("  %-28s %9s  %s\n", d.Domain, formatMillis(d.Duration), bar(d.Duration, peak))
		}
	}
}

func bar(v, peak int64) string {
	if peak <= 0 || v <= 0 {
		return ""
	}
	n := int(v * barWidth / peak)
	return strings.Repeat("#", max(n, 1))
}

func bucketLabel(i, last int, size int64) string {
	lo := formatMillis(int64(i) * size)
	if i == last {
		return lo + " or more"
	}
	return lo + " - " + formatMillis(int64(i+1)*size)
}

// printHeatmap prints a 7x24 grid, one row per weekday, shaded relative to
// the busiest hour.
func printHeatmap(hours []aggregate.HourOfWeekDuration) {
	const shades = " .:-=+*#%@"

	peak := int64(0)
	for _, h := range hours {
		peak = max(peak, h.Duration)
	}

	fmt.Printf("       %s\n", "0     6     12    18   23")
	var grid [7][24]int64
	for _, h := range hours {
		grid[h.Day][h.Hour] = h.Duration
	}
	for day := 0; day < 7; day++ {
		var row strings.Builder
		for hour := 0; hour < 24; hour++ {
			idx := 0
			if peak > 0 {
				idx = int(grid[day][hour] * int64(len(shades)-1) / peak)
			}
			row.WriteByte(shades[idx])
		}
		fmt.Printf("  %s  %s\n", time.Weekday(day).String()[:3], row.String())
	}
}

// Package aggregate turns activity segments into time-bucketed usage totals.
// Every function is pure; outputs are zero filled and returned in a fixed
// canonical order.
package aggregate

import (
	"net/url"
	"sort"
	"time"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/timesplit"
)

const (
	// DayMillis caps a single date's total.
	DayMillis = int64(24 * time.Hour / time.Millisecond)

	DefaultBucketSize  = int64(60_000)
	DefaultBucketCount = 61
)

// DateDuration is the total for one local date.
type DateDuration struct {
	Date     time.Time `json:"date"`
	Duration int64     `json:"duration"`
}

// DayOfWeekDuration is the total for one weekday.
type DayOfWeekDuration struct {
	Day      time.Weekday `json:"day"`
	Duration int64        `json:"duration"`
}

// HourOfWeek identifies one of the 168 hours of a week.
type HourOfWeek struct {
	Day  time.Weekday `json:"day"`
	Hour int          `json:"hour"`
}

// HourOfWeekDuration is the average time spent in one hour of the week.
type HourOfWeekDuration struct {
	HourOfWeek
	Duration int64 `json:"duration"`
}

// BucketDuration is the total for one duration bucket.
type BucketDuration struct {
	Bucket   int   `json:"bucket"`
	Duration int64 `json:"duration"`
}

// DomainDuration is the total time spent on one host.
type DomainDuration struct {
	Domain   string `json:"domain"`
	Duration int64  `json:"duration"`
}

// valid drops sentinel and inverted records.
func valid(records []activity.Segment) []activity.Segment {
	out := make([]activity.Segment, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// EffectiveRange intersects the selected range with the span covered by the
// valid records. It returns false when there are no valid records and a bound
// is missing.
func EffectiveRange(records []activity.Segment, selected activity.TimeRange) (activity.DefiniteTimeRange, bool) {
	recs := valid(records)

	var lo, hi int64
	for i, r := range recs {
		if i == 0 || r.StartTime < lo {
			lo = r.StartTime
		}
		if i == 0 || r.EndTime > hi {
			hi = r.EndTime
		}
	}

	var rng activity.DefiniteTimeRange
	switch {
	case selected.Start != nil && len(recs) > 0:
		rng.Start = max(*selected.Start, lo)
	case selected.Start != nil:
		rng.Start = *selected.Start
	case len(recs) > 0:
		rng.Start = lo
	default:
		return activity.DefiniteTimeRange{}, false
	}
	switch {
	case selected.End != nil && len(recs) > 0:
		rng.End = min(*selected.End, hi)
	case selected.End != nil:
		rng.End = *selected.End
	case len(recs) > 0:
		rng.End = hi
	default:
		return activity.DefiniteTimeRange{}, false
	}
	return rng, true
}

// TotalDuration sums the day-split pieces whose day lies in
// [floor(start), floor(end)], both ends inclusive.
func TotalDuration(records []activity.Segment, rng activity.DefiniteTimeRange, loc *time.Location) int64 {
	if rng.Degenerate() {
		return 0
	}
	first := timesplit.Floor(rng.Start, timesplit.Day, loc)
	last := timesplit.Floor(rng.End, timesplit.Day, loc)

	var total int64
	for _, r := range valid(records) {
		for _, p := range timesplit.Split(r.StartTime, r.EndTime, timesplit.Day, loc) {
			day := timesplit.Floor(p.Start, timesplit.Day, loc)
			if day >= first && day <= last {
				total += p.Duration()
			}
		}
	}
	return total
}

// dates lists local midnights in [floor(start), floor(end)).
func dates(rng activity.DefiniteTimeRange, loc *time.Location) []int64 {
	if rng.Degenerate() {
		return nil
	}
	var out []int64
	last := timesplit.Floor(rng.End, timesplit.Day, loc)
	for d := timesplit.Floor(rng.Start, timesplit.Day, loc); d < last; d = timesplit.NextBoundary(d, timesplit.Day, loc) {
		out = append(out, d)
	}
	return out
}

// dayTotals sums day-split pieces per local midnight.
func dayTotals(records []activity.Segment, loc *time.Location) map[int64]int64 {
	totals := make(map[int64]int64)
	for _, r := range valid(records) {
		for _, p := range timesplit.Split(r.StartTime, r.EndTime, timesplit.Day, loc) {
			totals[timesplit.Floor(p.Start, timesplit.Day, loc)] += p.Duration()
		}
	}
	return totals
}

// TotalDurationByDate returns one entry per date in [floor(start), floor(end)),
// oldest first, zero filled and capped at 24h per date.
func TotalDurationByDate(records []activity.Segment, rng activity.DefiniteTimeRange, loc *time.Location) []DateDuration {
	totals := dayTotals(records, loc)
	days := dates(rng, loc)

	out := make([]DateDuration, 0, len(days))
	for _, d := range days {
		out = append(out, DateDuration{
			Date:     time.UnixMilli(d).In(locOrLocal(loc)),
			Duration: min(totals[d], DayMillis),
		})
	}
	return out
}

// TotalDurationByDayOfWeek returns seven entries, Sunday first, summed over
// the same dates as TotalDurationByDate.
func TotalDurationByDayOfWeek(records []activity.Segment, rng activity.DefiniteTimeRange, loc *time.Location) []DayOfWeekDuration {
	totals := dayTotals(records, loc)

	var sums [7]int64
	for _, d := range dates(rng, loc) {
		sums[time.UnixMilli(d).In(locOrLocal(loc)).Weekday()] += totals[d]
	}

	out := make([]DayOfWeekDuration, 7)
	for i := range out {
		out[i] = DayOfWeekDuration{Day: time.Weekday(i), Duration: sums[i]}
	}
	return out
}

// AverageDurationByHourOfWeek returns 168 entries ordered by (day, hour). Each
// is the time attributed to that hour across the range divided by how many
// times its weekday occurs in the range (at least 1).
func AverageDurationByHourOfWeek(records []activity.Segment, rng activity.DefiniteTimeRange, loc *time.Location) []HourOfWeekDuration {
	l := locOrLocal(loc)
	days := dates(rng, loc)

	inRange := make(map[int64]bool, len(days))
	var occurrences [7]int64
	for _, d := range days {
		inRange[d] = true
		occurrences[time.UnixMilli(d).In(l).Weekday()]++
	}

	var sums [7][24]int64
	for _, r := range valid(records) {
		for _, p := range timesplit.Split(r.StartTime, r.EndTime, timesplit.HourOfWeek, loc) {
			if !inRange[timesplit.Floor(p.Start, timesplit.Day, loc)] {
				continue
			}
			t := time.UnixMilli(p.Start).In(l)
			sums[t.Weekday()][t.Hour()] += p.Duration()
		}
	}

	out := make([]HourOfWeekDuration, 0, 7*24)
	for day := 0; day < 7; day++ {
		n := max(occurrences[day], 1)
		for hour := 0; hour < 24; hour++ {
			out = append(out, HourOfWeekDuration{
				HourOfWeek: HourOfWeek{Day: time.Weekday(day), Hour: hour},
				Duration:   sums[day][hour] / n,
			})
		}
	}
	return out
}

// TotalDurationByDurationBuckets clips each record to the range and adds its
// whole duration to bucket min(d/size, count-1). All count buckets are
// returned in ascending order.
func TotalDurationByDurationBuckets(records []activity.Segment, rng activity.DefiniteTimeRange, size int64, count int) []BucketDuration {
	if size <= 0 {
		size = DefaultBucketSize
	}
	if count <= 0 {
		count = DefaultBucketCount
	}

	out := make([]BucketDuration, count)
	for i := range out {
		out[i].Bucket = i
	}
	if rng.Degenerate() {
		return out
	}

	for _, r := range valid(records) {
		d, ok := clippedDuration(r, rng)
		if !ok {
			continue
		}
		idx := int(min(d/size, int64(count-1)))
		out[idx].Duration += d
	}
	return out
}

// TotalDurationByDomain sums clipped durations per host, largest first.
func TotalDurationByDomain(records []activity.Segment, rng activity.DefiniteTimeRange) []DomainDuration {
	if rng.Degenerate() {
		return []DomainDuration{}
	}

	totals := make(map[string]int64)
	for _, r := range valid(records) {
		d, ok := clippedDuration(r, rng)
		if !ok {
			continue
		}
		totals[Domain(r.URL)] += d
	}

	out := make([]DomainDuration, 0, len(totals))
	for domain, d := range totals {
		out = append(out, DomainDuration{Domain: domain, Duration: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Domain pulls the hostname from a URL, falling back to the raw string.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

func clippedDuration(r activity.Segment, rng activity.DefiniteTimeRange) (int64, bool) {
	start := max(r.StartTime, rng.Start)
	end := min(r.EndTime, rng.End)
	if end < start {
		return 0, false
	}
	return end - start, true
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webtime/internal/activity"
)

func at(day, hour, minute int) int64 {
	// April 2019: the 28th is a Sunday.
	return time.Date(2019, time.April, day, hour, minute, 0, 0, time.UTC).UnixMilli()
}

func seg(url string, start, end int64) activity.Segment {
	return activity.Segment{URL: url, Title: url, StartTime: start, EndTime: end}
}

func rangeOf(start, end int64) activity.DefiniteTimeRange {
	return activity.DefiniteTimeRange{Start: start, End: end}
}

const hourMs = int64(60 * 60 * 1000)

// --- TotalDurationByDate ---

func TestTotalDurationByDate_ZeroFilled(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(28, 10, 0), at(28, 11, 0)),
		seg("https://b.com", at(30, 9, 0), at(30, 9, 30)),
	}

	// April 31st normalises to May 1st; the end date itself is excluded.
	got := TotalDurationByDate(records, rangeOf(at(27, 12, 0), at(31, 8, 0)), time.UTC)

	require.Len(t, got, 4)
	assert.Equal(t, at(27, 0, 0), got[0].Date.UnixMilli())
	assert.Equal(t, int64(0), got[0].Duration)
	assert.Equal(t, hourMs, got[1].Duration)
	assert.Equal(t, int64(0), got[2].Duration)
	assert.Equal(t, hourMs/2, got[3].Duration)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Date.Before(got[i].Date), "dates must be ascending")
	}
}

func TestTotalDurationByDate_SplitsAcrossMidnight(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(28, 23, 0), at(29, 2, 0)),
	}

	got := TotalDurationByDate(records, rangeOf(at(28, 0, 0), at(30, 0, 0)), time.UTC)

	require.Len(t, got, 2)
	assert.Equal(t, hourMs, got[0].Duration)
	assert.Equal(t, 2*hourMs, got[1].Duration)
}

func TestTotalDurationByDate_CapsAt24h(t *testing.T) {
	full := seg("https://a.com", at(28, 0, 0), at(28, 23, 0))
	records := []activity.Segment{full, full, full}

	got := TotalDurationByDate(records, rangeOf(at(28, 0, 0), at(29, 0, 0)), time.UTC)

	require.Len(t, got, 1)
	assert.Equal(t, DayMillis, got[0].Duration)
}

func TestTotalDurationByDate_IgnoresMalformed(t *testing.T) {
	records := []activity.Segment{
		seg("", at(28, 1, 0), at(28, 2, 0)),
		seg("https://a.com", at(28, 5, 0), at(28, 4, 0)),
		seg("https://b.com", at(28, 6, 0), at(28, 7, 0)),
	}

	got := TotalDurationByDate(records, rangeOf(at(28, 0, 0), at(29, 0, 0)), time.UTC)

	require.Len(t, got, 1)
	assert.Equal(t, hourMs, got[0].Duration)
}

func TestTotalDurationByDate_DegenerateRange(t *testing.T) {
	records := []activity.Segment{seg("https://a.com", at(28, 1, 0), at(28, 2, 0))}

	got := TotalDurationByDate(records, rangeOf(at(29, 0, 0), at(28, 0, 0)), time.UTC)

	assert.Empty(t, got)
}

// --- TotalDuration ---

func TestTotalDuration_IncludesEndDay(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(28, 23, 0), at(29, 1, 0)),
		seg("https://b.com", at(30, 10, 0), at(30, 11, 0)),
	}

	assert.Equal(t, 2*hourMs, TotalDuration(records, rangeOf(at(28, 12, 0), at(29, 12, 0)), time.UTC))
	assert.Equal(t, hourMs, TotalDuration(records, rangeOf(at(29, 0, 0), at(29, 12, 0)), time.UTC))
	assert.Equal(t, int64(0), TotalDuration(records, rangeOf(at(30, 0, 0), at(28, 0, 0)), time.UTC))
}

// --- TotalDurationByDayOfWeek ---

func TestTotalDurationByDayOfWeek(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(28, 10, 0), at(28, 11, 0)),  // Sunday
		seg("https://a.com", at(29, 10, 0), at(29, 10, 30)), // Monday
		seg("https://a.com", at(21, 10, 0), at(21, 12, 0)),  // previous Sunday
	}

	got := TotalDurationByDayOfWeek(records, rangeOf(at(21, 0, 0), at(30, 0, 0)), time.UTC)

	require.Len(t, got, 7)
	for i, d := range got {
		assert.Equal(t, time.Weekday(i), d.Day)
	}
	assert.Equal(t, 3*hourMs, got[time.Sunday].Duration)
	assert.Equal(t, hourMs/2, got[time.Monday].Duration)
	assert.Equal(t, int64(0), got[time.Friday].Duration)
}

func TestTotalDurationByDayOfWeek_DegenerateRangeIsZeroFilled(t *testing.T) {
	got := TotalDurationByDayOfWeek(nil, rangeOf(10, 5), time.UTC)
	require.Len(t, got, 7)
	for _, d := range got {
		assert.Equal(t, int64(0), d.Duration)
	}
}

// --- AverageDurationByHourOfWeek ---

func TestAverageDurationByHourOfWeek_Complete(t *testing.T) {
	got := AverageDurationByHourOfWeek(nil, rangeOf(at(28, 0, 0), at(29, 0, 0)), time.UTC)

	require.Len(t, got, 168)
	for i, h := range got {
		assert.Equal(t, time.Weekday(i/24), h.Day)
		assert.Equal(t, i%24, h.Hour)
		assert.Equal(t, int64(0), h.Duration)
	}
}

func TestAverageDurationByHourOfWeek_AveragesOverWeekdayOccurrences(t *testing.T) {
	records := []activity.Segment{
		// Two Sundays in range, 10:00-10:30 on one and 10:00-11:30 on the other.
		seg("https://a.com", at(21, 10, 0), at(21, 10, 30)),
		seg("https://a.com", at(28, 10, 0), at(28, 11, 30)),
	}

	got := AverageDurationByHourOfWeek(records, rangeOf(at(21, 0, 0), at(29, 0, 0)), time.UTC)

	require.Len(t, got, 168)
	sun10 := got[int(time.Sunday)*24+10]
	sun11 := got[int(time.Sunday)*24+11]
	assert.Equal(t, HourOfWeek{Day: time.Sunday, Hour: 10}, sun10.HourOfWeek)
	assert.Equal(t, (hourMs/2+hourMs)/2, sun10.Duration)
	assert.Equal(t, (hourMs/2)/2, sun11.Duration)
}

func TestAverageDurationByHourOfWeek_ExcludesOutOfRangeDays(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(14, 10, 0), at(14, 11, 0)),
	}

	got := AverageDurationByHourOfWeek(records, rangeOf(at(21, 0, 0), at(29, 0, 0)), time.UTC)

	assert.Equal(t, int64(0), got[int(time.Sunday)*24+10].Duration)
}

// --- TotalDurationByDurationBuckets ---

func TestTotalDurationByDurationBuckets(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(28, 10, 0), at(28, 10, 0)+30_000), // bucket 0
		seg("https://a.com", at(28, 11, 0), at(28, 11, 5)),        // bucket 5
		seg("https://a.com", at(28, 12, 0), at(28, 14, 0)),        // overflow
		seg("https://a.com", at(27, 23, 58), at(28, 0, 1)),        // clipped to 1 minute
		seg("https://b.com", at(26, 10, 0), at(26, 11, 0)),        // outside range
	}

	got := TotalDurationByDurationBuckets(records, rangeOf(at(28, 0, 0), at(29, 0, 0)), 60_000, 61)

	require.Len(t, got, 61)
	for i, b := range got {
		assert.Equal(t, i, b.Bucket)
	}
	assert.Equal(t, int64(30_000), got[0].Duration)
	assert.Equal(t, int64(60_000), got[1].Duration)
	assert.Equal(t, int64(5*60_000), got[5].Duration)
	assert.Equal(t, 2*hourMs, got[60].Duration)
}

func TestTotalDurationByDurationBuckets_Defaults(t *testing.T) {
	got := TotalDurationByDurationBuckets(nil, rangeOf(0, 1), 0, 0)
	assert.Len(t, got, DefaultBucketCount)
}

// --- TotalDurationByDomain ---

func TestTotalDurationByDomain(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com/x", at(28, 10, 0), at(28, 11, 0)),
		seg("https://a.com/y", at(28, 12, 0), at(28, 12, 30)),
		seg("https://b.com/", at(28, 13, 0), at(28, 15, 0)),
		seg("https://c.com/", at(28, 16, 0), at(28, 17, 30)),
	}

	got := TotalDurationByDomain(records, rangeOf(at(28, 0, 0), at(29, 0, 0)))

	assert.Equal(t, []DomainDuration{
		{Domain: "b.com", Duration: 2 * hourMs},
		{Domain: "a.com", Duration: hourMs + hourMs/2},
		{Domain: "c.com", Duration: hourMs + hourMs/2},
	}, got)
}

// --- EffectiveRange ---

func TestEffectiveRange(t *testing.T) {
	records := []activity.Segment{
		seg("https://a.com", at(20, 10, 0), at(20, 11, 0)),
		seg("https://a.com", at(25, 10, 0), at(25, 11, 0)),
		seg("", at(1, 0, 0), at(30, 0, 0)),
	}

	rng, ok := EffectiveRange(records, activity.TimeRange{})
	require.True(t, ok)
	assert.Equal(t, rangeOf(at(20, 10, 0), at(25, 11, 0)), rng)

	start, end := at(22, 0, 0), at(29, 0, 0)
	rng, ok = EffectiveRange(records, activity.TimeRange{Start: &start, End: &end})
	require.True(t, ok)
	assert.Equal(t, rangeOf(at(22, 0, 0), at(25, 11, 0)), rng)

	_, ok = EffectiveRange(nil, activity.TimeRange{Start: &start})
	assert.False(t, ok)

	rng, ok = EffectiveRange(nil, activity.TimeRange{Start: &start, End: &end})
	require.True(t, ok)
	assert.Equal(t, rangeOf(start, end), rng)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("https://example.com/path?q=1"))
	assert.Equal(t, "not a url", Domain("not a url"))
}

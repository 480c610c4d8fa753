package storage

import (
	"time"

	"github.com/runnerr0/webtime/internal/activity"
)

// Record sources.
const (
	SourceTracker = "tracker"
	SourceManual  = "manual"
)

// Record is a stored activity segment.
type Record struct {
	ID     string
	Domain string
	Source string
	activity.Segment
	CreatedAt time.Time
}

// RecordQuery filters records. Range selects records overlapping it; a
// Limit of zero or less returns every match after the first Offset.
type RecordQuery struct {
	Range  activity.TimeRange
	Domain string
	Limit  int
	Offset int
}

// Stats holds aggregate statistics about the webtime database.
type Stats struct {
	TotalRecords  int64
	TotalDuration time.Duration
	OldestRecord  time.Time
	NewestRecord  time.Time
	TopDomains    []DomainTotal
}

// DomainTotal pairs a domain with its record count and tracked time.
type DomainTotal struct {
	Domain   string
	Records  int64
	Duration time.Duration
}

package activity

import "time"

// Segment is one URL visited for a contiguous span of time. Times are Unix
// milliseconds. A segment with an empty URL is the "no activity" sentinel and
// is never handed to a RecordSink.
type Segment struct {
	URL        string `json:"url"`
	FaviconURL string `json:"favicon_url"`
	Title      string `json:"title"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
}

// Duration returns EndTime - StartTime in milliseconds.
func (s Segment) Duration() int64 {
	return s.EndTime - s.StartTime
}

// Valid reports whether s is a completed, well-formed segment.
func (s Segment) Valid() bool {
	return s.URL != "" && s.EndTime >= s.StartTime
}

// Start returns the segment start as a time.Time.
func (s Segment) Start() time.Time { return time.UnixMilli(s.StartTime) }

// End returns the segment end as a time.Time.
func (s Segment) End() time.Time { return time.UnixMilli(s.EndTime) }

// TimeRange is a possibly unbounded range of Unix milliseconds. A nil bound
// means unbounded on that side.
type TimeRange struct {
	Start *int64
	End   *int64
}

// NewTimeRange builds a TimeRange from optional bounds; zero times are
// treated as unbounded.
func NewTimeRange(start, end time.Time) TimeRange {
	var r TimeRange
	if !start.IsZero() {
		ms := start.UnixMilli()
		r.Start = &ms
	}
	if !end.IsZero() {
		ms := end.UnixMilli()
		r.End = &ms
	}
	return r
}

// DefiniteTimeRange is a TimeRange with both bounds known.
type DefiniteTimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Degenerate reports whether the range is inverted.
func (r DefiniteTimeRange) Degenerate() bool {
	return r.Start > r.End
}

// IdleState mirrors the idle detector's three states.
type IdleState string

const (
	IdleStateActive IdleState = "active"
	IdleStateIdle   IdleState = "idle"
	IdleStateLocked IdleState = "locked"
)

// WindowIDNone is the window ID reported when focus leaves every browser window.
const WindowIDNone = -1

// Tab is the browser's view of a tab. Pointer fields are nil when the browser
// did not report them (e.g. a tab that is still loading).
type Tab struct {
	ID         int     `json:"id"`
	WindowID   int     `json:"window_id"`
	Active     bool    `json:"active"`
	FavIconURL *string `json:"fav_icon_url,omitempty"`
	Title      *string `json:"title,omitempty"`
	URL        *string `json:"url,omitempty"`
}

// Window is the browser's view of a window and its tabs.
type Window struct {
	ID   int   `json:"id"`
	Tabs []Tab `json:"tabs,omitempty"`
}

// ChangeInfo lists the tab properties that changed in a tab update.
type ChangeInfo struct {
	Status     string  `json:"status,omitempty"`
	URL        *string `json:"url,omitempty"`
	Title      *string `json:"title,omitempty"`
	FavIconURL *string `json:"fav_icon_url,omitempty"`
}

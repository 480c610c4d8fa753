package activity

// ValidatedTab is a tab that qualifies as a switch target: it is the active
// tab of its window and carries a URL, title and favicon.
type ValidatedTab struct {
	URL        string
	Title      string
	FaviconURL string
}

// ValidateTab narrows a browser Tab to a ValidatedTab.
func ValidateTab(tab Tab) (ValidatedTab, bool) {
	if !tab.Active || tab.FavIconURL == nil || tab.Title == nil || tab.URL == nil {
		return ValidatedTab{}, false
	}
	if *tab.URL == "" {
		return ValidatedTab{}, false
	}
	return ValidatedTab{
		URL:        *tab.URL,
		Title:      *tab.Title,
		FaviconURL: *tab.FavIconURL,
	}, true
}

// State is either Idle or Open.
type State interface {
	isState()
}

// Idle means no segment is open.
type Idle struct{}

// Open holds the segment in progress. Its EndTime is 0 until it is closed.
type Open struct {
	Segment Segment
}

func (Idle) isState() {}
func (Open) isState() {}

// Input is a validated stimulus for Transition.
type Input interface {
	isInput()
}

// SwitchTo asks the tracker to start tracking Tab.
type SwitchTo struct {
	Tab ValidatedTab
}

// Suspend closes the open segment: idle, locked, or focus left every window.
type Suspend struct{}

// Resume is the idle detector reporting the user active again.
type Resume struct{}

func (SwitchTo) isInput() {}
func (Suspend) isInput()  {}
func (Resume) isInput()   {}

// Transition applies in to state at time now (Unix ms) and returns the next
// state together with the segment completed by this step, if any.
func Transition(state State, in Input, now int64) (State, *Segment) {
	switch in := in.(type) {
	case SwitchTo:
		return switchTo(state, in.Tab, now)
	case Suspend:
		cur, ok := state.(Open)
		if !ok {
			return state, nil
		}
		done := closeSegment(cur.Segment, now)
		return Idle{}, &done
	case Resume:
		cur, ok := state.(Open)
		if !ok {
			return state, nil
		}
		// A resume in the same millisecond as the switch that opened cur must
		// not pull StartTime back onto the previous segment's EndTime.
		if now > cur.Segment.StartTime {
			cur.Segment.StartTime = now
		}
		return cur, nil
	}
	return state, nil
}

func switchTo(state State, tab ValidatedTab, now int64) (State, *Segment) {
	closedAt := now
	var done *Segment

	if cur, ok := state.(Open); ok {
		if cur.Segment.URL == tab.URL {
			return state, nil
		}
		seg := closeSegment(cur.Segment, now)
		closedAt = seg.EndTime
		done = &seg
	}

	next := Open{Segment: Segment{
		URL:        tab.URL,
		FaviconURL: tab.FaviconURL,
		Title:      tab.Title,
		StartTime:  closedAt + 1,
	}}
	return next, done
}

// closeSegment stamps the end time. Two events in the same millisecond can
// leave now one below StartTime, so the end is clamped to keep EndTime >= StartTime.
func closeSegment(seg Segment, now int64) Segment {
	seg.EndTime = now
	if seg.EndTime < seg.StartTime {
		seg.EndTime = seg.StartTime
	}
	return seg
}

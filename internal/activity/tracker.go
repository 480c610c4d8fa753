package activity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleDetectionSeconds is the idle threshold used when none is configured.
const DefaultIdleDetectionSeconds = 600

// ErrAlreadyRunning is returned by Run when called more than once.
var ErrAlreadyRunning = errors.New("tracker already running")

// ErrClosed is returned by Sync after Close.
var ErrClosed = errors.New("tracker closed")

// RecordSink persists completed segments.
type RecordSink interface {
	CreateActivityRecord(ctx context.Context, seg Segment) (string, error)
}

// TabLookup resolves a tab ID to the browser's current view of that tab.
type TabLookup interface {
	GetTab(ctx context.Context, tabID int) (Tab, error)
}

// WindowLookup resolves a window ID to its tabs.
type WindowLookup interface {
	GetWindow(ctx context.Context, windowID int) (Window, error)
}

// IdleSource reports idle detector state changes.
type IdleSource interface {
	SetDetectionInterval(seconds int)
	AddIdleStateListener(fn func(IdleState))
}

// TabSource reports tab activation and tab updates.
type TabSource interface {
	AddTabActivatedListener(fn func(tabID int))
	AddTabUpdatedListener(fn func(tabID int, change ChangeInfo, tab Tab))
}

// WindowSource reports window focus changes. windowID is WindowIDNone when
// focus leaves the browser.
type WindowSource interface {
	AddWindowFocusChangedListener(fn func(windowID int))
}

// Sources bundles the collaborators a Tracker subscribes to and queries.
type Sources struct {
	Idle    IdleSource
	Tabs    TabSource
	Windows WindowSource
	TabLookup
	WindowLookup
}

// Event is a raw browser event stamped with the time it was received.
type Event interface {
	ReceivedAt() int64
}

// IdleStateChanged is the idle detector reporting active, idle or locked.
type IdleStateChanged struct {
	State IdleState
	At    int64
}

// TabActivated is a tab becoming the active tab of its window. Only the ID
// is delivered; the tab itself is looked up when the event is handled.
type TabActivated struct {
	TabID int
	At    int64
}

// TabUpdated carries a tab change together with the tab as it looks after
// the change.
type TabUpdated struct {
	TabID  int
	Change ChangeInfo
	Tab    Tab
	At     int64
}

// WindowFocusChanged is focus moving to another window, or leaving the
// browser when WindowID is WindowIDNone.
type WindowFocusChanged struct {
	WindowID int
	At       int64
}

func (e IdleStateChanged) ReceivedAt() int64   { return e.At }
func (e TabActivated) ReceivedAt() int64       { return e.At }
func (e TabUpdated) ReceivedAt() int64         { return e.At }
func (e WindowFocusChanged) ReceivedAt() int64 { return e.At }

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now as the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger used for transitions and sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithIdleDetectionSeconds sets the idle threshold passed to the IdleSource.
func WithIdleDetectionSeconds(seconds int) Option {
	return func(t *Tracker) { t.idleSeconds = seconds }
}

// WithQueueSize sets the capacity of the event queue.
func WithQueueSize(n int) Option {
	return func(t *Tracker) { t.queueSize = n }
}

// Tracker hosts the Idle/Open state machine on a single event loop. State is
// only touched by the goroutine running Run (or by direct Handle calls when
// Run is not in use), so it needs no locking.
type Tracker struct {
	sources     Sources
	sink        RecordSink
	now         func() time.Time
	logger      *slog.Logger
	idleSeconds int
	queueSize   int

	state State

	mu      sync.Mutex
	events  chan Event
	stopped chan struct{} // closed when Run returns
	closed  bool
	started bool
}

// NewTracker creates an Idle tracker.
func NewTracker(sources Sources, sink RecordSink, opts ...Option) *Tracker {
	t := &Tracker{
		sources:     sources,
		sink:        sink,
		now:         time.Now,
		logger:      slog.Default(),
		idleSeconds: DefaultIdleDetectionSeconds,
		queueSize:   256,
		state:       Idle{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.events = make(chan Event, t.queueSize)
	t.stopped = make(chan struct{})
	return t
}

// State returns the current state. Only safe to call from the goroutine that
// drives the tracker.
func (t *Tracker) State() State {
	return t.state
}

// Run sets the idle detection interval, registers all listeners and then
// processes events one at a time until ctx is cancelled or Close is called.
// Events still queued when Close is called are processed before Run returns.
// Once Run has returned, listeners drop their events instead of blocking.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.started = true
	t.mu.Unlock()
	defer close(t.stopped)

	t.register()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-t.events:
			if !ok {
				return nil
			}
			t.Handle(ctx, ev)
		}
	}
}

// Close stops accepting events. Listeners firing afterwards are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.events)
}

func (t *Tracker) register() {
	if t.sources.Idle != nil {
		t.sources.Idle.SetDetectionInterval(t.idleSeconds)
		t.sources.Idle.AddIdleStateListener(func(s IdleState) {
			t.enqueue(IdleStateChanged{State: s, At: t.stamp()})
		})
	}
	if t.sources.Tabs != nil {
		t.sources.Tabs.AddTabActivatedListener(func(tabID int) {
			t.enqueue(TabActivated{TabID: tabID, At: t.stamp()})
		})
		t.sources.Tabs.AddTabUpdatedListener(func(tabID int, change ChangeInfo, tab Tab) {
			t.enqueue(TabUpdated{TabID: tabID, Change: change, Tab: tab, At: t.stamp()})
		})
	}
	if t.sources.Windows != nil {
		t.sources.Windows.AddWindowFocusChangedListener(func(windowID int) {
			t.enqueue(WindowFocusChanged{WindowID: windowID, At: t.stamp()})
		})
	}
}

func (t *Tracker) stamp() int64 {
	return t.now().UnixMilli()
}

// enqueue reports whether ev was queued. A full queue blocks the caller
// until the loop makes room or stops.
func (t *Tracker) enqueue(ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	select {
	case <-t.stopped:
		return false
	default:
	}
	select {
	case t.events <- ev:
		return true
	case <-t.stopped:
		return false
	}
}

// barrier is queued by Sync and released once the loop reaches it.
type barrier struct {
	done chan struct{}
}

func (barrier) ReceivedAt() int64 { return 0 }

// Sync blocks until every event queued before the call has been handled.
// It returns ErrClosed if the tracker no longer accepts events or Run stops
// before reaching them.
func (t *Tracker) Sync(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if !t.enqueue(b) {
		return ErrClosed
	}
	select {
	case <-b.done:
		return nil
	case <-t.stopped:
		select {
		case <-b.done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one event through lookup, validation and Transition, and hands
// any completed segment to the sink.
func (t *Tracker) Handle(ctx context.Context, ev Event) {
	if b, ok := ev.(barrier); ok {
		close(b.done)
		return
	}
	in, ok := t.resolve(ctx, ev)
	if !ok {
		return
	}

	next, done := Transition(t.state, in, ev.ReceivedAt())
	t.state = next

	if done != nil {
		t.emit(ctx, *done)
	}
	if open, ok := next.(Open); ok {
		t.logger.Debug("tracking", "url", open.Segment.URL, "start", open.Segment.StartTime)
	}
}

// resolve turns a raw event into a transition input. Events that do not
// match any transition predicate resolve to false.
func (t *Tracker) resolve(ctx context.Context, ev Event) (Input, bool) {
	switch ev := ev.(type) {
	case IdleStateChanged:
		switch ev.State {
		case IdleStateIdle, IdleStateLocked:
			return Suspend{}, true
		case IdleStateActive:
			return Resume{}, true
		}
		return nil, false

	case TabActivated:
		if t.sources.TabLookup == nil {
			return nil, false
		}
		tab, err := t.sources.GetTab(ctx, ev.TabID)
		if err != nil {
			t.logger.Debug("tab lookup failed", "tab_id", ev.TabID, "error", err)
			return nil, false
		}
		return switchInput(tab)

	case TabUpdated:
		return switchInput(ev.Tab)

	case WindowFocusChanged:
		if ev.WindowID == WindowIDNone {
			return Suspend{}, true
		}
		if t.sources.WindowLookup == nil {
			return nil, false
		}
		win, err := t.sources.GetWindow(ctx, ev.WindowID)
		if err != nil {
			t.logger.Debug("window lookup failed", "window_id", ev.WindowID, "error", err)
			return nil, false
		}
		for _, tab := range win.Tabs {
			if tab.Active {
				return switchInput(tab)
			}
		}
		return nil, false
	}
	return nil, false
}

func switchInput(tab Tab) (Input, bool) {
	vt, ok := ValidateTab(tab)
	if !ok {
		return nil, false
	}
	return SwitchTo{Tab: vt}, true
}

// emit delivers seg at most once. Failures are logged and the segment is dropped.
func (t *Tracker) emit(ctx context.Context, seg Segment) {
	if seg.URL == "" {
		return
	}
	id, err := t.sink.CreateActivityRecord(ctx, seg)
	if err != nil {
		t.logger.Error("record activity", "url", seg.URL, "start", seg.StartTime, "end", seg.EndTime, "error", err)
		return
	}
	t.logger.Debug("recorded activity", "id", id, "url", seg.URL, "duration_ms", seg.Duration())
}

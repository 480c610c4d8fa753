package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/runnerr0/webtime/internal/activity"
)

// Browser is an in-memory browser model driven by recorded events. It
// implements every collaborator the activity tracker subscribes to or
// queries, and its clock follows the timestamps of the replayed log.
type Browser struct {
	mu       sync.Mutex
	tabs     map[int]activity.Tab
	now      int64
	interval int
	idle     activity.IdleState

	idleFns      []func(activity.IdleState)
	activatedFns []func(int)
	updatedFns   []func(int, activity.ChangeInfo, activity.Tab)
	focusFns     []func(int)
}

// NewBrowser returns an empty, active browser.
func NewBrowser() *Browser {
	return &Browser{
		tabs:     map[int]activity.Tab{},
		interval: activity.DefaultIdleDetectionSeconds,
		idle:     activity.IdleStateActive,
	}
}

// Sources returns the browser wired into every tracker slot.
func (b *Browser) Sources() activity.Sources {
	return activity.Sources{Idle: b, Tabs: b, Windows: b, TabLookup: b, WindowLookup: b}
}

// Now is the replay clock: the timestamp of the event being dispatched.
func (b *Browser) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.UnixMilli(b.now)
}

// DetectionInterval returns the idle threshold in seconds last set by the tracker.
func (b *Browser) DetectionInterval() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

func (b *Browser) SetDetectionInterval(seconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interval = seconds
}

func (b *Browser) AddIdleStateListener(fn func(activity.IdleState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idleFns = append(b.idleFns, fn)
}

func (b *Browser) AddTabActivatedListener(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activatedFns = append(b.activatedFns, fn)
}

func (b *Browser) AddTabUpdatedListener(fn func(int, activity.ChangeInfo, activity.Tab)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updatedFns = append(b.updatedFns, fn)
}

func (b *Browser) AddWindowFocusChangedListener(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusFns = append(b.focusFns, fn)
}

// GetTab returns the current model of a tab.
func (b *Browser) GetTab(_ context.Context, tabID int) (activity.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tab, ok := b.tabs[tabID]
	if !ok {
		return activity.Tab{}, fmt.Errorf("tab %d not found", tabID)
	}
	return cloneTab(tab), nil
}

// GetWindow returns a window with its tabs ordered by tab ID.
func (b *Browser) GetWindow(_ context.Context, windowID int) (activity.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	win := activity.Window{ID: windowID}
	for _, tab := range b.tabs {
		if tab.WindowID == windowID {
			win.Tabs = append(win.Tabs, cloneTab(tab))
		}
	}
	if len(win.Tabs) == 0 {
		return activity.Window{}, fmt.Errorf("window %d not found", windowID)
	}
	sort.Slice(win.Tabs, func(i, j int) bool { return win.Tabs[i].ID < win.Tabs[j].ID })
	return win, nil
}

// IdleState returns the last idle state dispatched.
func (b *Browser) IdleState() activity.IdleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idle
}

// PutTab inserts or replaces a tab without firing any listener. An active
// tab deactivates the other tabs of its window.
func (b *Browser) PutTab(at int64, tab activity.Tab) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(at)
	b.put(tab)
}

// RemoveTab forgets a tab. The tracker has no removal listener.
func (b *Browser) RemoveTab(at int64, tabID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(at)
	delete(b.tabs, tabID)
}

// ActivateTab marks a tab active in its window and fires tab-activated.
func (b *Browser) ActivateTab(at int64, tabID int) {
	b.mu.Lock()
	b.advance(at)
	if tab, ok := b.tabs[tabID]; ok {
		tab.Active = true
		b.put(tab)
	}
	fns := append([]func(int){}, b.activatedFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(tabID)
	}
}

// UpdateTab merges change into the tab model and fires tab-updated with the
// resulting tab.
func (b *Browser) UpdateTab(at int64, tabID int, change activity.ChangeInfo) {
	b.mu.Lock()
	b.advance(at)
	tab, ok := b.tabs[tabID]
	if !ok {
		tab = activity.Tab{ID: tabID, WindowID: activity.WindowIDNone}
	}
	if change.URL != nil {
		tab.URL = change.URL
	}
	if change.Title != nil {
		tab.Title = change.Title
	}
	if change.FavIconURL != nil {
		tab.FavIconURL = change.FavIconURL
	}
	b.tabs[tabID] = tab
	snapshot := cloneTab(tab)
	fns := append([]func(int, activity.ChangeInfo, activity.Tab){}, b.updatedFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(tabID, change, snapshot)
	}
}

// FocusWindow fires window-focus-changed. Pass activity.WindowIDNone when
// focus leaves the browser.
func (b *Browser) FocusWindow(at int64, windowID int) {
	b.mu.Lock()
	b.advance(at)
	fns := append([]func(int){}, b.focusFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(windowID)
	}
}

// SetIdleState fires idle-state-changed.
func (b *Browser) SetIdleState(at int64, state activity.IdleState) {
	b.mu.Lock()
	b.advance(at)
	b.idle = state
	fns := append([]func(activity.IdleState){}, b.idleFns...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// advance moves the clock forward. The clock never runs backwards.
func (b *Browser) advance(at int64) {
	if at > b.now {
		b.now = at
	}
}

func (b *Browser) put(tab activity.Tab) {
	if tab.Active {
		for id, other := range b.tabs {
			if id != tab.ID && other.WindowID == tab.WindowID && other.Active {
				other.Active = false
				b.tabs[id] = other
			}
		}
	}
	b.tabs[tab.ID] = tab
}

func cloneTab(tab activity.Tab) activity.Tab {
	return activity.Tab{
		ID:         tab.ID,
		WindowID:   tab.WindowID,
		Active:     tab.Active,
		URL:        cloneString(tab.URL),
		Title:      cloneString(tab.Title),
		FavIconURL: cloneString(tab.FavIconURL),
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

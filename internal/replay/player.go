package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zstd"

	"github.com/runnerr0/webtime/internal/activity"
)

// Event log entry types.
const (
	EntryTab                = "tab"
	EntryTabActivated       = "tab_activated"
	EntryTabUpdated         = "tab_updated"
	EntryTabRemoved         = "tab_removed"
	EntryWindowFocusChanged = "window_focus_changed"
	EntryIdleStateChanged   = "idle_state_changed"
)

// maxLineBytes bounds a single event log line. Longer lines are counted as
// skipped like any other line that cannot be decoded.
const maxLineBytes = 4 << 20

// Entry is one line of a JSONL event log.
type Entry struct {
	TS       int64                `json:"ts"`
	Type     string               `json:"type"`
	Tab      *activity.Tab        `json:"tab,omitempty"`
	TabID    int                  `json:"tab_id,omitempty"`
	WindowID int                  `json:"window_id,omitempty"`
	Change   *activity.ChangeInfo `json:"change,omitempty"`
	State    activity.IdleState   `json:"state,omitempty"`
}

// Stats counts what a Player has consumed.
type Stats struct {
	Applied     int
	Skipped     int
	Synthesized int
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithLogger sets the logger used for skipped lines and watcher errors.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = logger }
}

// WithIdleSynthesis makes the player fire idle and active transitions for
// gaps of at least the browser's detection interval, the way a real idle
// detector would have.
func WithIdleSynthesis(enabled bool) PlayerOption {
	return func(p *Player) { p.synthesizeIdle = enabled }
}

// WithAfterDispatch registers a hook run after every dispatched browser
// event. The track command passes Tracker.Sync so lookups observe the model
// as of the event that triggered them.
func WithAfterDispatch(fn func(context.Context) error) PlayerOption {
	return func(p *Player) { p.after = fn }
}

// Player feeds an event log into a Browser.
type Player struct {
	browser        *Browser
	logger         *slog.Logger
	synthesizeIdle bool
	after          func(context.Context) error

	lastTS int64
	seen   bool
	stats  Stats
}

// NewPlayer creates a Player for b.
func NewPlayer(b *Browser, opts ...PlayerOption) *Player {
	p := &Player{
		browser: b,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns counters for everything played so far.
func (p *Player) Stats() Stats {
	return p.stats
}

// Open opens an event log for reading. "-" is stdin and a .zst suffix
// selects zstd decompression.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	decoder, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdFile{Decoder: decoder, file: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// Play reads r to EOF, applying every line.
func (p *Player) Play(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, size, readErr := readLine(reader)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read event log: %w", readErr)
		}
		if size > maxLineBytes {
			p.skipLong(size)
		} else if err := p.applyLine(ctx, line); err != nil {
			return err
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// readLine returns the next line and its full length in bytes. Bytes past
// maxLineBytes are read and dropped rather than buffered.
func readLine(r *bufio.Reader) (string, int, error) {
	var buf []byte
	size := 0
	for {
		chunk, err := r.ReadSlice('\n')
		size += len(chunk)
		if size <= maxLineBytes {
			buf = append(buf, chunk...)
		} else {
			buf = nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return string(buf), size, err
	}
}

func (p *Player) skipLong(size int) {
	p.stats.Skipped++
	p.logger.Warn("skipping oversized event", "bytes", size, "max_bytes", maxLineBytes)
}

// Follow plays path from the beginning and then keeps applying lines as they
// are appended, until ctx is cancelled or the file is removed or renamed.
func (p *Player) Follow(ctx context.Context, path string) error {
	if strings.HasSuffix(path, ".zst") {
		return fmt.Errorf("cannot follow compressed event log %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	var partial strings.Builder
	for {
		for {
			chunk, err := reader.ReadString('\n')
			partial.WriteString(chunk)
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read event log: %w", err)
			}
			line := partial.String()
			partial.Reset()
			if err := p.applyLine(ctx, line); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				p.logger.Info("event log went away", "path", event.Name)
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watch event log", "path", path, "error", err)
		}
	}
}

func (p *Player) applyLine(ctx context.Context, line string) error {
	if len(line) > maxLineBytes {
		p.skipLong(len(line))
		return nil
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	var e Entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		p.stats.Skipped++
		p.logger.Warn("skipping malformed event", "error", err)
		return nil
	}
	return p.Apply(ctx, e)
}

// Apply dispatches a single entry. Entries with an unknown type are counted
// as skipped. Timestamps earlier than the previous entry are clamped forward.
func (p *Player) Apply(ctx context.Context, e Entry) error {
	if p.seen && e.TS < p.lastTS {
		p.logger.Warn("event out of order", "ts", e.TS, "previous", p.lastTS)
		e.TS = p.lastTS
	}

	if err := p.synthesize(ctx, e); err != nil {
		return err
	}
	p.lastTS = e.TS
	p.seen = true

	switch e.Type {
	case EntryTab:
		if e.Tab == nil {
			return p.skip("tab entry without tab", e)
		}
		p.browser.PutTab(e.TS, *e.Tab)
		p.stats.Applied++
		return nil

	case EntryTabRemoved:
		p.browser.RemoveTab(e.TS, e.TabID)
		p.stats.Applied++
		return nil

	case EntryTabActivated:
		p.browser.ActivateTab(e.TS, e.TabID)

	case EntryTabUpdated:
		change := activity.ChangeInfo{}
		if e.Change != nil {
			change = *e.Change
		}
		p.browser.UpdateTab(e.TS, e.TabID, change)

	case EntryWindowFocusChanged:
		p.browser.FocusWindow(e.TS, e.WindowID)

	case EntryIdleStateChanged:
		switch e.State {
		case activity.IdleStateActive, activity.IdleStateIdle, activity.IdleStateLocked:
		default:
			return p.skip("unknown idle state", e)
		}
		p.browser.SetIdleState(e.TS, e.State)

	default:
		return p.skip("unknown event type", e)
	}

	p.stats.Applied++
	return p.dispatched(ctx)
}

// synthesize fires idle at lastTS+interval and active at e.TS when the gap
// before e is at least the detection interval and the browser is active.
func (p *Player) synthesize(ctx context.Context, e Entry) error {
	if !p.synthesizeIdle || !p.seen {
		return nil
	}
	interval := int64(p.browser.DetectionInterval()) * 1000
	if interval <= 0 || e.TS-p.lastTS < interval {
		return nil
	}
	if p.browser.IdleState() != activity.IdleStateActive {
		return nil
	}

	p.browser.SetIdleState(p.lastTS+interval, activity.IdleStateIdle)
	p.stats.Synthesized++
	if err := p.dispatched(ctx); err != nil {
		return err
	}

	if e.Type == EntryIdleStateChanged {
		return nil
	}
	p.browser.SetIdleState(e.TS, activity.IdleStateActive)
	p.stats.Synthesized++
	return p.dispatched(ctx)
}

func (p *Player) dispatched(ctx context.Context) error {
	if p.after == nil {
		return nil
	}
	return p.after(ctx)
}

func (p *Player) skip(reason string, e Entry) error {
	p.stats.Skipped++
	p.logger.Warn("skipping event", "reason", reason, "type", e.Type, "ts", e.TS)
	return nil
}

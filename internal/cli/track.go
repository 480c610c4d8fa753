package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerr0/webtime/internal/activity"
	"github.com/runnerr0/webtime/internal/replay"
)

// Execute implements the go-flags Commander interface for TrackCommand.
func (c *TrackCommand) Execute(args []string) error {
	if c.Follow && c.Events == "-" {
		return fmt.Errorf("--follow needs a file, not stdin")
	}

	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx)
}

// countingSink forwards to the store and counts outcomes. It is only touched
// from the tracker loop and after the loop has exited.
type countingSink struct {
	sink     activity.RecordSink
	recorded int
	excluded int
	failed   int
}

func (s *countingSink) CreateActivityRecord(ctx context.Context, seg activity.Segment) (string, error) {
	id, err := s.sink.CreateActivityRecord(ctx, seg)
	switch {
	case err != nil:
		s.failed++
	case id == "":
		s.excluded++
	default:
		s.recorded++
	}
	return id, err
}

type trackSummary struct {
	Events      int    `json:"events"`
	Skipped     int    `json:"skipped"`
	Synthesized int    `json:"synthesized"`
	Recorded    int    `json:"recorded"`
	Excluded    int    `json:"excluded"`
	Failed      int    `json:"failed"`
	OpenURL     string `json:"open_url,omitempty"`
}

func (c *TrackCommand) run(ctx context.Context) error {
	cfg, logger := c.deps.cfg, c.deps.logger

	idleSeconds := cfg.Tracking.IdleDetectionSeconds
	if c.IdleSeconds > 0 {
		idleSeconds = c.IdleSeconds
	}

	browser := replay.NewBrowser()
	sink := &countingSink{sink: c.deps.store}
	opts := []activity.Option{
		activity.WithClock(browser.Now),
		activity.WithLogger(logger),
		activity.WithIdleDetectionSeconds(idleSeconds),
	}
	if cfg.Tracking.QueueSize > 0 {
		opts = append(opts, activity.WithQueueSize(cfg.Tracking.QueueSize))
	}
	tracker := activity.NewTracker(browser.Sources(), sink, opts...)

	// The loop gets its own context so Close can drain it after a signal.
	done := make(chan error, 1)
	go func() { done <- tracker.Run(context.Background()) }()

	player := replay.NewPlayer(browser,
		replay.WithLogger(logger),
		replay.WithIdleSynthesis(c.SynthesizeIdle || cfg.Tracking.SynthesizeIdle),
		replay.WithAfterDispatch(tracker.Sync),
	)

	playErr := tracker.Sync(ctx)
	if playErr == nil {
		playErr = c.play(ctx, player)
	}

	tracker.Close()
	if err := <-done; err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return playErr
	}

	stats := player.Stats()
	summary := trackSummary{
		Events:      stats.Applied,
		Skipped:     stats.Skipped,
		Synthesized: stats.Synthesized,
		Recorded:    sink.recorded,
		Excluded:    sink.excluded,
		Failed:      sink.failed,
	}
	if open, ok := tracker.State().(activity.Open); ok {
		summary.OpenURL = open.Segment.URL
	}
	logger.Info("replay finished", "events", summary.Events, "recorded", summary.Recorded)

	if c.globals != nil && c.globals.JSON {
		return printJSON(summary)
	}

	fmt.Printf("Replayed %d events (%d skipped, %d synthesized)\n", summary.Events, summary.Skipped, summary.Synthesized)
	fmt.Printf("Recorded %d segments", summary.Recorded)
	if summary.Excluded > 0 || summary.Failed > 0 {
		fmt.Printf(" (%d excluded, %d failed)", summary.Excluded, summary.Failed)
	}
	fmt.Println()
	if summary.OpenURL != "" {
		fmt.Printf("Still open at end of log: %s (not recorded)\n", summary.OpenURL)
	}
	return nil
}

func (c *TrackCommand) play(ctx context.Context, player *replay.Player) error {
	if c.Follow {
		return player.Follow(ctx, c.Events)
	}
	if c.Events == "-" && c.deps.stdin != nil {
		return player.Play(ctx, c.deps.stdin)
	}

	r, err := replay.Open(c.Events)
	if err != nil {
		return err
	}
	defer r.Close()
	return player.Play(ctx, r)
}

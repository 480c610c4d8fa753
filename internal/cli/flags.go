package cli

import (
	"io"
	"log/slog"

	"github.com/runnerr0/webtime/internal/config"
	"github.com/runnerr0/webtime/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Path to the SQLite database (overrides storage config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// deps holds collaborators a command would otherwise resolve from flags.
// Tests inject them; nil fields are opened on demand.
type deps struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	stdin  io.Reader
}

// TrackCommand replays a browser event log through the activity tracker.
type TrackCommand struct {
	Events         string `long:"events" description:"Event log to replay (JSONL, .zst, or - for stdin)" required:"true"`
	Follow         bool   `long:"follow" description:"Keep reading events appended to the log"`
	SynthesizeIdle bool   `long:"synthesize-idle" description:"Fire idle transitions for gaps longer than the idle interval"`
	IdleSeconds    int    `long:"idle-seconds" description:"Override idle detection interval in seconds"`

	globals *GlobalFlags
	version string
	deps    deps
}

// ReportCommand aggregates recorded time over a date range.
type ReportCommand struct {
	Since string `long:"since" description:"Report on the last duration (e.g., 7d, 24h, 2w); defaults to report.default_since"`
	From  string `long:"from" description:"First date of the report (YYYY-MM-DD)"`
	To    string `long:"to" description:"Last date of the report, inclusive (YYYY-MM-DD)"`
	Kind  string `long:"kind" description:"Which breakdown to print" choice:"all" choice:"date" choice:"weekday" choice:"hour" choice:"duration" choice:"domain" default:"all"`

	globals *GlobalFlags
	version string
	deps    deps
}

// ListCommand lists recorded activity segments.
type ListCommand struct {
	Since  string `long:"since" description:"Only records newer than duration (e.g., 7d, 24h, 2w)" default:"7d"`
	Domain string `long:"domain" description:"Filter by domain"`
	Limit  int    `long:"limit" description:"Maximum results" default:"20"`
	Offset int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
	deps    deps
}

// AddCommand manually records a segment.
type AddCommand struct {
	URL     string `long:"url" description:"URL to record (required)"`
	Title   string `long:"title" description:"Page title (required)"`
	Favicon string `long:"favicon" description:"Favicon URL"`
	Start   string `long:"start" description:"Segment start, RFC3339 (required)"`
	End     string `long:"end" description:"Segment end, RFC3339 (required)"`

	globals *GlobalFlags
	version string
	deps    deps
}

// StatusCommand shows database statistics and a configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	deps    deps
}

// DeleteCommand removes a single record by ID.
type DeleteCommand struct {
	ID    string `long:"id" description:"Record ID (required)"`
	Force bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	deps    deps
}

// PruneCommand removes records older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force     bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	deps    deps
}

// PurgeCommand deletes ALL recorded activity after a safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	deps    deps
}

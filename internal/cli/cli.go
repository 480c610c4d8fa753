package cli

import (
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Track  *TrackCommand
	Report *ReportCommand
	List   *ListCommand
	Add    *AddCommand
	Status *StatusCommand
	Delete *DeleteCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "webtime"
	parser.LongDescription = "Local tracker of time spent on web pages, with daily, weekly and per-site reports."

	cmds := &commands{
		Track:  &TrackCommand{globals: &globals, version: version},
		Report: &ReportCommand{globals: &globals, version: version},
		List:   &ListCommand{globals: &globals, version: version},
		Add:    &AddCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Delete: &DeleteCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("track", "Replay browser events through the tracker", "Replay a recorded browser event log through the activity tracker and store the resulting segments.", cmds.Track)
	parser.AddCommand("report", "Summarize recorded time", "Summarize recorded time by date, weekday, hour of week, segment length, and site.", cmds.Report)
	parser.AddCommand("list", "List recorded segments", "List recorded activity segments in start order.", cmds.List)
	parser.AddCommand("add", "Manually record a segment", "Manually record a URL visit between two timestamps.", cmds.Add)
	parser.AddCommand("status", "Show database statistics", "Show database statistics and configuration summary.", cmds.Status)
	parser.AddCommand("delete", "Delete one recorded segment", "Delete a single recorded segment by its ID.", cmds.Delete)
	parser.AddCommand("prune", "Apply retention pruning", "Remove records older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL recorded activity", "Delete ALL recorded activity. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the webtime CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("webtime %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	var flagsErr *goflags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
		return nil
	}
	return err
}

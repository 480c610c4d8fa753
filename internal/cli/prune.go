package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background())
}

func (c *PruneCommand) run(ctx context.Context) error {
	retention := time.Duration(c.deps.cfg.Retention.Days) * 24 * time.Hour
	if c.OlderThan != "" {
		dur, err := parseDuration(c.OlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
		}
		retention = dur
	}
	cutoff := time.Now().Add(-retention)
	human := formatDurationHuman(retention)
	jsonOut := c.globals != nil && c.globals.JSON

	count, err := c.deps.store.CountExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count expired: %w", err)
	}

	if c.DryRun {
		if jsonOut {
			return printJSON(map[string]interface{}{
				"pruned":     count,
				"dry_run":    true,
				"older_than": human,
			})
		}
		fmt.Printf("[DRY RUN] Would prune %d records older than %s\n", count, human)
		return nil
	}

	if count == 0 {
		if jsonOut {
			return printJSON(map[string]interface{}{
				"pruned":     0,
				"dry_run":    false,
				"older_than": human,
			})
		}
		fmt.Printf("Nothing to prune: no records older than %s\n", human)
		return nil
	}

	if !c.Force && !jsonOut {
		answer, err := readAnswer(c.deps.stdin, fmt.Sprintf("Prune %d records older than %s? Proceed? [y/N] ", count, human))
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	pruned, err := c.deps.store.PruneExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"pruned":     pruned,
			"dry_run":    false,
			"older_than": human,
		})
	}
	fmt.Printf("Pruned %d records older than %s\n", pruned, human)
	return nil
}

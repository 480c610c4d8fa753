package cli

import (
	"context"
	"fmt"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL recorded activity.")
		fmt.Println("  Exclusion rules and configuration are kept.")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()

		input, err := readAnswer(c.deps.stdin, `Type "PURGE" to confirm: `)
		if err != nil {
			return err
		}
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	return c.run(context.Background())
}

func (c *PurgeCommand) run(ctx context.Context) error {
	if err := c.deps.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all records deleted",
		})
	}

	fmt.Println("Purged all records. webtime is empty.")
	return nil
}

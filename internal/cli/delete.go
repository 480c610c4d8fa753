package cli

import (
	"context"
	"fmt"
	"strings"
)

// Execute implements the go-flags Commander interface for DeleteCommand.
func (c *DeleteCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for delete command")
	}

	cleanup, err := c.deps.resolve(c.globals)
	defer cleanup()
	if err != nil {
		return err
	}
	return c.run(context.Background())
}

func (c *DeleteCommand) run(ctx context.Context) error {
	store := c.deps.store
	jsonOut := c.globals != nil && c.globals.JSON

	rec, err := store.GetRecord(ctx, c.ID)
	if err != nil {
		return err
	}

	if !c.Force && !jsonOut {
		prompt := fmt.Sprintf("Delete %s (%s, %s)? [y/N] ", rec.ID, rec.URL, formatMillis(rec.Duration()))
		answer, err := readAnswer(c.deps.stdin, prompt)
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.DeleteRecord(ctx, rec.ID); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"deleted": rec.ID,
			"url":     rec.URL,
		})
	}
	fmt.Printf("Deleted record %s\n", rec.ID)
	return nil
}

package cmd

import (
	"context"
	"fmt"
)

// SessionsRenameCmd updates a session's display name
type SessionsRenameCmd struct {
	ID   string `arg:"" help:"Session id"`
	Name string `arg:"" help:"New display name"`
}

// Run executes the rename command
func (s *SessionsRenameCmd) Run(cli *CLI) error {
	if err := cli.Container.SessionService.Rename(context.Background(), s.ID, s.Name); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	fmt.Printf("Session %s renamed to '%s'\n", s.ID, s.Name)
	return nil
}

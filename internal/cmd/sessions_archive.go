package cmd

import (
	"context"
	"fmt"
)

// SessionsArchiveCmd archives a session
type SessionsArchiveCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the archive command
func (s *SessionsArchiveCmd) Run(cli *CLI) error {
	if err := cli.Container.SessionService.Archive(context.Background(), s.ID); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	fmt.Printf("Session %s archived\n", s.ID)
	return nil
}

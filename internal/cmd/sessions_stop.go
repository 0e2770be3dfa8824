package cmd

import (
	"context"
	"fmt"
)

// SessionsStopCmd stops a session's agent process
type SessionsStopCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the stop command
func (s *SessionsStopCmd) Run(cli *CLI) error {
	if err := cli.Container.SessionService.Stop(context.Background(), s.ID); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	fmt.Printf("Session %s stopped\n", s.ID)
	return nil
}

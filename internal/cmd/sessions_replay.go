package cmd

import (
	"context"
	"fmt"
)

// SessionsReplayCmd renders the full stored output of a session
type SessionsReplayCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the replay command
func (s *SessionsReplayCmd) Run(cli *CLI) error {
	lines, err := cli.Container.SessionService.Replay(context.Background(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to replay session: %w", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

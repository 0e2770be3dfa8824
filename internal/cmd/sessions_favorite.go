package cmd

import (
	"context"
	"fmt"
)

// SessionsFavoriteCmd toggles the favorite flag on a session
type SessionsFavoriteCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the favorite command
func (s *SessionsFavoriteCmd) Run(cli *CLI) error {
	if err := cli.Container.SessionService.ToggleFavorite(context.Background(), s.ID); err != nil {
		return fmt.Errorf("failed to toggle favorite: %w", err)
	}
	session, err := cli.Container.SessionService.Get(context.Background(), s.ID)
	if err != nil {
		return err
	}
	if session.IsFavorite {
		fmt.Printf("Session %s marked favorite\n", s.ID)
	} else {
		fmt.Printf("Session %s unmarked\n", s.ID)
	}
	return nil
}

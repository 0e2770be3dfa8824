package cmd

import (
	"context"
	"fmt"
	"os"
)

// SessionsDelCmd deletes a session and everything it owns
type SessionsDelCmd struct {
	ID    string `arg:"" help:"Session id"`
	Force bool   `help:"Skip the confirmation prompt" short:"f"`
}

// Run executes the del command
func (s *SessionsDelCmd) Run(cli *CLI) error {
	ctx := context.Background()

	session, err := cli.Container.SessionService.Get(ctx, s.ID)
	if err != nil {
		return err
	}

	if !s.Force {
		prompt := fmt.Sprintf("Delete session '%s' and all its records and worktree?", session.DisplayName)
		if !confirm(os.Stdin, prompt) {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := cli.Container.SessionService.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("Session %s deleted\n", s.ID)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SessionsContinueCmd resumes a stopped or errored session
type SessionsContinueCmd struct {
	ID     string `arg:"" help:"Session id"`
	Prompt string `arg:"" optional:"" help:"Follow-up instruction for the agent"`
	Detach bool   `help:"Resume without attaching"`
}

// Run executes the continue command
func (s *SessionsContinueCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Container.SessionService.Continue(ctx, s.ID, s.Prompt); err != nil {
		return fmt.Errorf("failed to continue session: %w", err)
	}

	fmt.Printf("Session %s resumed\n", s.ID)
	if s.Detach {
		return nil
	}
	return attach(ctx, cli.Container, s.ID)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"maestro/internal/domain"
)

// SessionsSendCmd sends a prompt to a session, resuming its process
// first when it is not running.
type SessionsSendCmd struct {
	ID     string `arg:"" help:"Session id"`
	Prompt string `arg:"" help:"Prompt text for the agent"`
}

// Run executes the send command
func (s *SessionsSendCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := cli.Container.SessionService
	session, err := svc.Get(ctx, s.ID)
	if err != nil {
		return err
	}

	switch session.Status {
	case domain.StatusStopped, domain.StatusError:
		if err := svc.Continue(ctx, s.ID, s.Prompt); err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
	default:
		if err := svc.Send(ctx, s.ID, s.Prompt); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}
	}

	return attach(ctx, cli.Container, s.ID)
}

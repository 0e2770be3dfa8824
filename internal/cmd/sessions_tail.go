package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SessionsTailCmd replays stored output then follows live
type SessionsTailCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the tail command
func (s *SessionsTailCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return attach(ctx, cli.Container, s.ID)
}

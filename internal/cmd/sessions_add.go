package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"maestro/internal/domain"
	"maestro/internal/services"
)

// SessionsAddCmd creates a new session and attaches to it
type SessionsAddCmd struct {
	Name           string `arg:"" help:"Name of the session to add"`
	Prompt         string `arg:"" optional:"" help:"Initial instruction for the agent"`
	Model          string `help:"Agent model override" default:""`
	PermissionMode string `help:"Tool permission handling" enum:"default,accept-edits,skip-all" default:"default"`
	RepoPath       string `help:"Repository path (defaults to current directory)" default:""`
	Detach         bool   `help:"Create the session without attaching"`
}

// Run executes the add command
func (s *SessionsAddCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := cli.Container.SessionService.Create(ctx, services.CreateSessionOptions{
		Name:           s.Name,
		Prompt:         s.Prompt,
		Model:          s.Model,
		PermissionMode: domain.PermissionMode(s.PermissionMode),
		RepoPath:       s.RepoPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Printf("Session '%s' created (%s) in %s\n", session.DisplayName, session.ID, session.WorktreePath)
	if s.Detach {
		return nil
	}
	return attach(ctx, cli.Container, session.ID)
}

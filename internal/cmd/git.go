package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"maestro/internal/domain"
)

// GitCmd groups git operations on session worktrees
type GitCmd struct {
	Rebase  GitRebaseCmd  `cmd:"" help:"Rebase a session's branch onto the main branch"`
	Squash  GitSquashCmd  `cmd:"" help:"Squash a session's commits and fast-forward main"`
	Restore GitRestoreCmd `cmd:"" help:"Discard uncommitted work in a session's worktree"`
}

// GitRebaseCmd rebases a session branch onto main
type GitRebaseCmd struct {
	ID string `arg:"" help:"Session id"`
}

// Run executes the rebase command
func (g *GitRebaseCmd) Run(cli *CLI) error {
	err := cli.Container.GitService.Rebase(context.Background(), g.ID)
	if err != nil {
		var conflict *domain.RebaseConflict
		if errors.As(err, &conflict) {
			fmt.Println("Rebase hit conflicts and was aborted; the worktree is unchanged.")
			fmt.Println("Conflicting files:")
			for _, file := range conflict.Files {
				fmt.Printf("  %s\n", file)
			}
			return err
		}
		return fmt.Errorf("failed to rebase: %w", err)
	}
	fmt.Printf("Session %s rebased onto main\n", g.ID)
	return nil
}

// GitSquashCmd squashes session commits into one on main
type GitSquashCmd struct {
	ID      string `arg:"" help:"Session id"`
	Message string `help:"Commit message for the squashed commit" short:"m"`
}

// Run executes the squash command
func (g *GitSquashCmd) Run(cli *CLI) error {
	err := cli.Container.GitService.Squash(context.Background(), g.ID, g.Message)
	if err != nil {
		var conflict *domain.RebaseConflict
		if errors.As(err, &conflict) {
			fmt.Println("Squash requires a clean rebase first; conflicts were found and the worktree is unchanged.")
			fmt.Println("Conflicting files:")
			for _, file := range conflict.Files {
				fmt.Printf("  %s\n", file)
			}
			return err
		}
		return fmt.Errorf("failed to squash: %w", err)
	}
	fmt.Printf("Session %s squashed into main\n", g.ID)
	return nil
}

// GitRestoreCmd discards uncommitted changes in a session worktree
type GitRestoreCmd struct {
	ID    string `arg:"" help:"Session id"`
	Force bool   `help:"Skip the confirmation prompt" short:"f"`
}

// Run executes the restore command
func (g *GitRestoreCmd) Run(cli *CLI) error {
	ctx := context.Background()

	session, err := cli.Container.SessionService.Get(ctx, g.ID)
	if err != nil {
		return err
	}

	if !g.Force {
		prompt := fmt.Sprintf("Discard all uncommitted work in the worktree of '%s'?", session.DisplayName)
		if !confirm(os.Stdin, prompt) {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := cli.Container.GitService.Restore(ctx, g.ID); err != nil {
		return fmt.Errorf("failed to restore worktree: %w", err)
	}
	fmt.Printf("Worktree for session %s restored to HEAD\n", g.ID)
	return nil
}

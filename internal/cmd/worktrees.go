package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// WorktreesCmd groups worktree inspection commands
type WorktreesCmd struct {
	List   WorktreesListCmd   `cmd:"" default:"1" help:"List session worktrees for a repository"`
	Remove WorktreesRemoveCmd `cmd:"" help:"Remove an orphaned worktree"`
}

// WorktreesListCmd lists worktrees and flags orphans
type WorktreesListCmd struct {
	RepoPath string `help:"Repository to inspect" default:"." type:"path"`
}

// Run executes the worktrees list command
func (w *WorktreesListCmd) Run(cli *CLI) error {
	entries, err := cli.Container.GitService.Worktrees(context.Background(), w.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to list worktrees: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No session worktrees")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tBRANCH\tSESSION")
	for _, entry := range entries {
		owner := entry.SessionID
		if entry.Orphaned {
			owner = "(orphaned)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.Path, entry.Branch, owner)
	}
	return tw.Flush()
}

// WorktreesRemoveCmd removes a worktree no session owns
type WorktreesRemoveCmd struct {
	Path     string `arg:"" help:"Worktree path to remove" type:"path"`
	RepoPath string `help:"Repository the worktree belongs to" default:"." type:"path"`
}

// Run executes the worktrees remove command
func (w *WorktreesRemoveCmd) Run(cli *CLI) error {
	if err := cli.Container.GitService.RemoveOrphan(context.Background(), w.RepoPath, w.Path); err != nil {
		return fmt.Errorf("failed to remove worktree: %w", err)
	}
	fmt.Printf("Worktree %s removed\n", w.Path)
	return nil
}

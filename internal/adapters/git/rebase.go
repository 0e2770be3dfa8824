package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"maestro/internal/domain"
	"maestro/internal/logging"
)

// rebaseFromMain rebases the worktree branch onto the main branch. On
// conflict the rebase is aborted so the worktree is back in its
// pre-rebase state, and a *domain.RebaseConflict carrying the
// conflicting files is returned.
func rebaseFromMain(ctx context.Context, worktreePath, mainBranch string) error {
	logging.Logger.Info("Rebasing worktree onto main",
		"worktree_path", worktreePath, "main_branch", mainBranch)

	// Best-effort fetch so the rebase target is current
	fetchCmd := exec.CommandContext(ctx, "git", "fetch", "origin")
	fetchCmd.Dir = worktreePath
	if output, err := fetchCmd.CombinedOutput(); err != nil {
		logging.Logger.Warn("Git fetch origin failed (continuing anyway)",
			"error", err, "output", string(output))
	}

	target := rebaseTarget(worktreePath, mainBranch)

	rebaseCmd := exec.CommandContext(ctx, "git", "rebase", target)
	rebaseCmd.Dir = worktreePath
	output, err := rebaseCmd.CombinedOutput()
	if err == nil {
		logging.Logger.Info("Rebase completed", "worktree_path", worktreePath, "target", target)
		return nil
	}

	// Capture the conflicting files before aborting loses them
	files := conflictingFiles(worktreePath)

	abortCmd := exec.Command("git", "rebase", "--abort")
	abortCmd.Dir = worktreePath
	if abortOutput, abortErr := abortCmd.CombinedOutput(); abortErr != nil {
		logging.Logger.Error("Rebase abort failed, worktree may need manual recovery",
			"error", abortErr, "output", string(abortOutput))
		return fmt.Errorf("rebase failed and abort failed: %w\nOutput: %s", abortErr, string(abortOutput))
	}

	logging.Logger.Warn("Rebase hit conflicts, worktree restored to pre-rebase state",
		"worktree_path", worktreePath, "files", files)

	if len(files) > 0 {
		return &domain.RebaseConflict{
			WorktreePath: worktreePath,
			Files:        files,
			Output:       strings.TrimSpace(string(output)),
		}
	}
	return fmt.Errorf("rebase onto %s failed: %w\nOutput: %s", target, err, string(output))
}

// conflictingFiles lists paths in the unmerged state during a rebase.
func conflictingFiles(worktreePath string) []string {
	cmd := exec.Command("git", "diff", "--name-only", "--diff-filter=U")
	cmd.Dir = worktreePath

	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

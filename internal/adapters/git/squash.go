package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"maestro/internal/logging"
)

// squashAndRebaseToMain squashes all commits on the worktree branch
// since it diverged from main into a single commit, then fast-forwards
// the main branch to it. On any failure after history has been touched,
// the branch is restored from a backup ref so no partial rewrite is
// left behind.
func squashAndRebaseToMain(ctx context.Context, worktreePath, mainBranch, commitMessage string) error {
	logging.Logger.Info("Squashing worktree branch into main",
		"worktree_path", worktreePath, "main_branch", mainBranch)

	// Rebase first so the squashed commit applies cleanly on main
	if err := rebaseFromMain(ctx, worktreePath, mainBranch); err != nil {
		return err
	}

	backup, err := headRef(worktreePath)
	if err != nil {
		return err
	}

	mergeBase, err := gitOutput(worktreePath, "merge-base", mainBranch, "HEAD")
	if err != nil {
		return fmt.Errorf("failed to find merge base with %s: %w", mainBranch, err)
	}

	if mergeBase == backup {
		return fmt.Errorf("no commits to squash: branch is at %s", mainBranch)
	}

	if err := gitRun(ctx, worktreePath, "reset", "--soft", mergeBase); err != nil {
		return fmt.Errorf("failed to reset to merge base: %w", err)
	}

	if err := gitRun(ctx, worktreePath, "commit", "-m", commitMessage); err != nil {
		restore(worktreePath, backup)
		return fmt.Errorf("failed to create squash commit: %w", err)
	}

	// Fast-forward main in the main repository checkout
	mainRepoPath, err := getMainRepoPath(worktreePath)
	if err != nil {
		restore(worktreePath, backup)
		return err
	}

	branch := getBranchName(worktreePath)
	if err := gitRun(ctx, mainRepoPath, "checkout", mainBranch); err != nil {
		restore(worktreePath, backup)
		return fmt.Errorf("failed to checkout %s: %w", mainBranch, err)
	}
	if err := gitRun(ctx, mainRepoPath, "merge", "--ff-only", branch); err != nil {
		restore(worktreePath, backup)
		return fmt.Errorf("failed to fast-forward %s: %w", mainBranch, err)
	}

	logging.Logger.Info("Squash merged into main",
		"worktree_path", worktreePath, "branch", branch, "main_branch", mainBranch)
	return nil
}

// restore puts the worktree branch back on the backup commit.
func restore(worktreePath, backup string) {
	cmd := exec.Command("git", "reset", "--hard", backup)
	cmd.Dir = worktreePath
	if output, err := cmd.CombinedOutput(); err != nil {
		logging.Logger.Error("Failed to restore branch from backup ref",
			"worktree_path", worktreePath, "backup", backup,
			"error", err, "output", string(output))
	}
}

// gitRun executes a git command in dir and wraps failures with output.
func gitRun(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %w\nOutput: %s", args[0], err, string(output))
	}
	return nil
}

// gitOutput executes a git command in dir and returns trimmed stdout.
func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

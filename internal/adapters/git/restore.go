package git

import (
	"fmt"
	"os/exec"
	"strings"

	"maestro/internal/logging"
)

// restoreWorktree discards all uncommitted work in the worktree:
// tracked changes are hard-reset and untracked files removed.
// Destructive; the caller layer owns confirmation.
func restoreWorktree(worktreePath string) error {
	logging.Logger.Info("Restoring worktree to last commit", "worktree_path", worktreePath)

	resetCmd := exec.Command("git", "reset", "--hard", "HEAD")
	resetCmd.Dir = worktreePath
	if output, err := resetCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to reset worktree: %w\nOutput: %s", err, string(output))
	}

	cleanCmd := exec.Command("git", "clean", "-fd")
	cleanCmd.Dir = worktreePath
	if output, err := cleanCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to clean worktree: %w\nOutput: %s", err, string(output))
	}

	return nil
}

// diffSince summarizes what changed between a ref and the current
// worktree HEAD: the list of touched files plus a --stat summary line.
func diffSince(worktreePath, sinceRef string) ([]string, string, error) {
	namesOut, err := gitOutput(worktreePath, "diff", "--name-only", sinceRef, "HEAD")
	if err != nil {
		return nil, "", fmt.Errorf("failed to diff since %s: %w", sinceRef, err)
	}

	var files []string
	for _, line := range strings.Split(namesOut, "\n") {
		if line != "" {
			files = append(files, line)
		}
	}

	statOut, err := gitOutput(worktreePath, "diff", "--shortstat", sinceRef, "HEAD")
	if err != nil {
		return nil, "", fmt.Errorf("failed to diff since %s: %w", sinceRef, err)
	}

	return files, statOut, nil
}

package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"maestro/internal/domain"
	"maestro/internal/logging"
)

// createWorktree creates a new git worktree at the specified path with
// its own branch. The repository gets a bootstrap commit first if it
// has no history.
func createWorktree(ctx context.Context, repoPath, worktreePath, branchName string) error {
	logging.Logger.Info("Creating worktree",
		"repo_path", repoPath, "worktree_path", worktreePath, "branch_name", branchName)

	if err := domain.ValidateBranchName(branchName); err != nil {
		return fmt.Errorf("invalid branch name: %w", err)
	}

	worktreeBase := filepath.Dir(worktreePath)
	if err := os.MkdirAll(worktreeBase, 0755); err != nil {
		return fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	if !hasCommits(repoPath) {
		if err := bootstrapInitialCommit(repoPath); err != nil {
			return err
		}
	}

	// Fetch so new branches start from the latest remote state.
	// Best-effort: the user might be offline.
	fetchCmd := exec.CommandContext(ctx, "git", "fetch", "origin")
	fetchCmd.Dir = repoPath
	if output, err := fetchCmd.CombinedOutput(); err != nil {
		logging.Logger.Warn("Git fetch origin failed (continuing anyway)",
			"error", err, "output", string(output))
	}

	exists := branchExists(repoPath, branchName)

	var worktreeCmd *exec.Cmd
	if exists {
		logging.Logger.Info("Checking out existing branch in worktree",
			"path", worktreePath, "branch", branchName)
		worktreeCmd = exec.CommandContext(ctx, "git", "worktree", "add", worktreePath, branchName)
	} else {
		logging.Logger.Info("Creating new branch in worktree",
			"path", worktreePath, "branch", branchName)
		worktreeCmd = exec.CommandContext(ctx, "git", "worktree", "add", worktreePath, "-b", branchName)
	}
	worktreeCmd.Dir = repoPath

	if output, err := worktreeCmd.CombinedOutput(); err != nil {
		logging.Logger.Error("Git worktree add failed", "error", err, "output", string(output))
		return fmt.Errorf("%w: %s", domain.ErrWorktreeCreation, strings.TrimSpace(string(output)))
	}

	logging.Logger.Info("Git worktree created successfully", "path", worktreePath, "branch", branchName)
	return nil
}

// removeWorktree removes a git worktree at the specified path.
// Already-removed worktrees are not an error.
func removeWorktree(repoPath, worktreePath string) error {
	logging.Logger.Info("Removing worktree", "repo_path", repoPath, "worktree_path", worktreePath)

	if _, err := os.Stat(worktreePath); os.IsNotExist(err) {
		logging.Logger.Warn("Worktree path does not exist", "path", worktreePath)
		// Still prune the stale registration
		pruneCmd := exec.Command("git", "worktree", "prune")
		pruneCmd.Dir = repoPath
		_ = pruneCmd.Run()
		return nil
	}

	// --force allows removal even with uncommitted changes; session
	// worktrees are disposable once the session is archived or deleted.
	cmd := exec.Command("git", "worktree", "remove", "--force", worktreePath)
	cmd.Dir = repoPath

	if output, err := cmd.CombinedOutput(); err != nil {
		logging.Logger.Error("Git worktree remove failed", "error", err, "output", string(output))
		return fmt.Errorf("failed to remove worktree: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// worktreeInfo holds parsed information about a git worktree
type worktreeInfo struct {
	branch string
	path   string
}

// parseWorktreeList parses git worktree list --porcelain output
func parseWorktreeList(output string) []worktreeInfo {
	var worktrees []worktreeInfo
	var current worktreeInfo

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current.path != "" {
				worktrees = append(worktrees, current)
			}
			current = worktreeInfo{path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			current.branch = strings.TrimPrefix(line, "branch ")
		}
	}
	if current.path != "" {
		worktrees = append(worktrees, current)
	}
	return worktrees
}

// listWorktrees lists all worktree paths for the given repository,
// excluding the main repository checkout itself.
func listWorktrees(repoPath string) ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	worktrees := parseWorktreeList(string(output))
	mainRoot, _ := getMainRepoPath(repoPath)

	var paths []string
	for _, wt := range worktrees {
		if wt.path == mainRoot {
			continue
		}
		paths = append(paths, wt.path)
	}
	return paths, nil
}

// sanitizePathComponent sanitizes a string for safe use as a path
// component. Casing is preserved.
func sanitizePathComponent(component string) string {
	if component == "" {
		return ""
	}

	var builder strings.Builder
	for _, r := range component {
		if !unicode.IsControl(r) && r != '/' && r != '\\' && r != ':' {
			builder.WriteRune(r)
		}
	}

	result := strings.TrimSpace(builder.String())
	result = strings.ReplaceAll(result, "..", ".")
	return result
}

// buildWorktreePath constructs the worktree path for a session under
// the configured base directory.
func buildWorktreePath(base, sessionName string) string {
	sanitized := sanitizePathComponent(sessionName)
	if sanitized == "" {
		logging.Logger.Warn("Session name sanitization resulted in empty string, using fallback")
		sanitized = "session"
	}
	return filepath.Join(base, sanitized)
}

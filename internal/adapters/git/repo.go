package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"maestro/internal/logging"
)

// isGitRepo checks if the given path is within a git repository.
// Returns true and the repository root path if it is, false and empty
// string otherwise. For worktrees this returns the worktree path, not
// the main repo path; use getMainRepoPath for that.
func isGitRepo(path string) (bool, string) {
	logging.Logger.Debug("Checking if directory is git repo", "path", path)

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		logging.Logger.Debug("Not a git repository", "path", path)
		return false, ""
	}

	repoRoot := strings.TrimSpace(string(output))
	logging.Logger.Debug("Found git repository", "repo_root", repoRoot)
	return true, repoRoot
}

// getMainRepoPath gets the main repository path, even for worktrees.
// For regular repos, returns the same as isGitRepo.
func getMainRepoPath(path string) (string, error) {
	logging.Logger.Debug("Getting main repo path", "path", path)

	// The git common directory points to the main repo for worktrees
	cmd := exec.Command("git", "rev-parse", "--git-common-dir")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}

	gitCommonDir := strings.TrimSpace(string(output))
	if !filepath.IsAbs(gitCommonDir) {
		gitCommonDir = filepath.Join(path, gitCommonDir)
	}

	mainRepoPath := filepath.Clean(filepath.Dir(gitCommonDir))
	logging.Logger.Debug("Found main repo path", "main_repo_path", mainRepoPath)
	return mainRepoPath, nil
}

// getBranchName returns the current branch name for the given path.
// Returns empty string if not in a git repository.
func getBranchName(path string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		logging.Logger.Debug("Failed to get branch name", "error", err)
		return ""
	}
	return strings.TrimSpace(string(output))
}

// hasCommits reports whether the repository has at least one commit.
// A freshly-initialized repository has none, and git worktree add
// cannot run against it.
func hasCommits(repoPath string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "HEAD")
	cmd.Dir = repoPath
	return cmd.Run() == nil
}

// bootstrapInitialCommit creates an empty commit so that worktrees can
// be created in a repository with no history yet.
func bootstrapInitialCommit(repoPath string) error {
	logging.Logger.Info("Repository has no commits, creating bootstrap commit", "repo_path", repoPath)

	cmd := exec.Command("git", "commit", "--allow-empty", "-m", "initial commit")
	cmd.Dir = repoPath

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create bootstrap commit: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// branchExists checks if a branch exists locally or remotely
func branchExists(repoPath, branchName string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", fmt.Sprintf("refs/heads/%s", branchName))
	cmd.Dir = repoPath
	if output, err := cmd.Output(); err == nil && len(output) > 0 {
		return true
	}

	cmd = exec.Command("git", "ls-remote", "--heads", "origin", branchName)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	return err == nil && len(strings.TrimSpace(string(output))) > 0
}

// headRef returns the current HEAD commit hash of the worktree.
func headRef(worktreePath string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = worktreePath

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// rebaseTarget picks the ref to rebase onto: the remote-tracking main
// branch when it exists, the local one otherwise.
func rebaseTarget(worktreePath, mainBranch string) string {
	remote := "origin/" + mainBranch
	cmd := exec.Command("git", "rev-parse", "--verify", remote)
	cmd.Dir = worktreePath
	if cmd.Run() == nil {
		return remote
	}
	return mainBranch
}

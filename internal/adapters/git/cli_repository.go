package git

import (
	"context"

	"maestro/internal/ports"
)

// CLIRepository implements ports.GitRepository using local git commands
type CLIRepository struct {
	mainBranch string
}

// Verify interface compliance at compile time
var _ ports.GitRepository = (*CLIRepository)(nil)

// NewCLIRepository creates a new CLIRepository. mainBranch is the
// integration branch squash and rebase operations target.
func NewCLIRepository(mainBranch string) *CLIRepository {
	if mainBranch == "" {
		mainBranch = "main"
	}
	return &CLIRepository{mainBranch: mainBranch}
}

// RepoInspector methods

// IsGitRepo implements RepoInspector.IsGitRepo
func (r *CLIRepository) IsGitRepo(path string) (bool, string) {
	return isGitRepo(path)
}

// GetBranchName implements RepoInspector.GetBranchName
func (r *CLIRepository) GetBranchName(path string) string {
	return getBranchName(path)
}

// GetMainRepoPath implements RepoInspector.GetMainRepoPath
func (r *CLIRepository) GetMainRepoPath(path string) (string, error) {
	return getMainRepoPath(path)
}

// HasCommits implements RepoInspector.HasCommits
func (r *CLIRepository) HasCommits(repoPath string) bool {
	return hasCommits(repoPath)
}

// WorktreeManager methods

// CreateWorktree implements WorktreeManager.CreateWorktree
func (r *CLIRepository) CreateWorktree(ctx context.Context, repoPath, worktreePath, branchName string) error {
	return createWorktree(ctx, repoPath, worktreePath, branchName)
}

// RemoveWorktree implements WorktreeManager.RemoveWorktree
func (r *CLIRepository) RemoveWorktree(repoPath, worktreePath string) error {
	return removeWorktree(repoPath, worktreePath)
}

// ListWorktrees implements WorktreeManager.ListWorktrees
func (r *CLIRepository) ListWorktrees(repoPath string) ([]string, error) {
	return listWorktrees(repoPath)
}

// BuildWorktreePath implements WorktreeManager.BuildWorktreePath
func (r *CLIRepository) BuildWorktreePath(base, sessionName string) string {
	return buildWorktreePath(base, sessionName)
}

// WorktreeOperator methods

// RebaseFromMain implements WorktreeOperator.RebaseFromMain
func (r *CLIRepository) RebaseFromMain(ctx context.Context, worktreePath string) error {
	return rebaseFromMain(ctx, worktreePath, r.mainBranch)
}

// SquashAndRebaseToMain implements WorktreeOperator.SquashAndRebaseToMain
func (r *CLIRepository) SquashAndRebaseToMain(ctx context.Context, worktreePath, commitMessage string) error {
	return squashAndRebaseToMain(ctx, worktreePath, r.mainBranch, commitMessage)
}

// RestoreWorktree implements WorktreeOperator.RestoreWorktree
func (r *CLIRepository) RestoreWorktree(worktreePath string) error {
	return restoreWorktree(worktreePath)
}

// DiffSince implements WorktreeOperator.DiffSince
func (r *CLIRepository) DiffSince(_ context.Context, worktreePath, sinceRef string) ([]string, string, error) {
	return diffSince(worktreePath, sinceRef)
}

// HeadRef implements WorktreeOperator.HeadRef
func (r *CLIRepository) HeadRef(worktreePath string) (string, error) {
	return headRef(worktreePath)
}

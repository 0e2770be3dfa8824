package ports

import (
	"context"
)

// RepoInspector queries repository information
type RepoInspector interface {
	IsGitRepo(path string) (bool, string)
	GetBranchName(path string) string
	GetMainRepoPath(path string) (string, error)
	HasCommits(repoPath string) bool
}

// WorktreeManager handles worktree lifecycle
type WorktreeManager interface {
	CreateWorktree(ctx context.Context, repoPath, worktreePath, branchName string) error
	RemoveWorktree(repoPath, worktreePath string) error
	ListWorktrees(repoPath string) ([]string, error)
	BuildWorktreePath(base, sessionName string) string
}

// WorktreeOperator performs git operations inside an existing worktree.
// Callers must ensure the owning session is waiting or stopped before
// invoking any of these; the adapter does not check session state.
type WorktreeOperator interface {
	// RebaseFromMain fetches and rebases the worktree branch onto the
	// main branch. On conflict it restores the pre-rebase state and
	// returns a *domain.RebaseConflict carrying the conflicting files.
	RebaseFromMain(ctx context.Context, worktreePath string) error
	// SquashAndRebaseToMain squashes all worktree commits into one and
	// fast-forwards the main branch. On failure the prior state is
	// restored; no partial history rewrite is left behind.
	SquashAndRebaseToMain(ctx context.Context, worktreePath, commitMessage string) error
	// RestoreWorktree hard-resets tracked changes and removes untracked
	// files. Destructive; confirmation is the caller layer's concern.
	RestoreWorktree(worktreePath string) error
	// DiffSince summarizes the change-set between a ref and the current
	// worktree HEAD (files changed plus a --stat summary).
	DiffSince(ctx context.Context, worktreePath, sinceRef string) (files []string, summary string, err error)
	// HeadRef returns the current HEAD commit hash of the worktree.
	HeadRef(worktreePath string) (string, error)
}

// GitRepository is the composite interface
type GitRepository interface {
	RepoInspector
	WorktreeManager
	WorktreeOperator
}

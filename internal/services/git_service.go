package services

import (
	"context"
	"fmt"

	"maestro/internal/config"
	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/ports"
)

// GitService exposes worktree-level git operations, gated on session
// state so they never race a mid-turn agent.
type GitService struct {
	repo ports.SessionRepository
	git  ports.GitRepository
	cfg  *config.Config
}

// NewGitService creates a GitService.
func NewGitService(repo ports.SessionRepository, git ports.GitRepository, cfg *config.Config) *GitService {
	return &GitService{repo: repo, git: git, cfg: cfg}
}

// guard fetches the session and refuses the operation unless the agent
// is idle (waiting) or the process is gone (stopped, error).
func (s *GitService) guard(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.IsArchived {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionArchived, sessionID)
	}
	switch session.Status {
	case domain.StatusWaiting, domain.StatusStopped, domain.StatusError:
		return *session, nil
	default:
		return domain.Session{}, fmt.Errorf("%w: session %s is %s, git operations need an idle agent",
			domain.ErrSessionBusy, sessionID, session.Status)
	}
}

// Rebase rebases the session's branch onto the main branch. Conflicts
// leave the worktree untouched and are reported with the conflicting
// files.
func (s *GitService) Rebase(ctx context.Context, sessionID string) error {
	session, err := s.guard(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.git.RebaseFromMain(ctx, session.WorktreePath)
}

// Squash collapses the session's commits into one and fast-forwards the
// main branch to it.
func (s *GitService) Squash(ctx context.Context, sessionID, commitMessage string) error {
	session, err := s.guard(ctx, sessionID)
	if err != nil {
		return err
	}
	if commitMessage == "" {
		commitMessage = fmt.Sprintf("%s: squashed session work", session.DisplayName)
	}
	return s.git.SquashAndRebaseToMain(ctx, session.WorktreePath, commitMessage)
}

// Restore discards all uncommitted work in the session's worktree.
func (s *GitService) Restore(ctx context.Context, sessionID string) error {
	session, err := s.guard(ctx, sessionID)
	if err != nil {
		return err
	}
	logging.Logger.Warn("Restoring worktree, uncommitted work will be lost",
		"session_id", sessionID, "worktree", session.WorktreePath)
	return s.git.RestoreWorktree(session.WorktreePath)
}

// WorktreeEntry pairs a worktree path with the session owning it, if
// any. Orphaned entries have no live session.
type WorktreeEntry struct {
	Path      string
	SessionID string
	Branch    string
	Orphaned  bool
}

// Worktrees lists every worktree of the repository at repoPath and
// matches each against the session database. Worktrees no session owns
// are flagged as orphaned.
func (s *GitService) Worktrees(ctx context.Context, repoPath string) ([]WorktreeEntry, error) {
	ok, repoRoot := s.git.IsGitRepo(repoPath)
	if !ok {
		return nil, fmt.Errorf("%s is not inside a git repository", repoPath)
	}
	mainRepo, err := s.git.GetMainRepoPath(repoRoot)
	if err != nil {
		return nil, err
	}

	paths, err := s.git.ListWorktrees(mainRepo)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]domain.Session, len(sessions))
	for _, session := range sessions {
		if !session.IsArchived {
			owners[session.WorktreePath] = session
		}
	}

	entries := make([]WorktreeEntry, 0, len(paths))
	for _, path := range paths {
		entry := WorktreeEntry{
			Path:   path,
			Branch: s.git.GetBranchName(path),
		}
		if owner, owned := owners[path]; owned {
			entry.SessionID = owner.ID
		} else {
			entry.Orphaned = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RemoveOrphan removes a worktree that no session owns. Owned worktrees
// are refused.
func (s *GitService) RemoveOrphan(ctx context.Context, repoPath, worktreePath string) error {
	entries, err := s.Worktrees(ctx, repoPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Path != worktreePath {
			continue
		}
		if !entry.Orphaned {
			return fmt.Errorf("%w: worktree %s belongs to session %s",
				domain.ErrWorktreeInUse, worktreePath, entry.SessionID)
		}
		mainRepo, err := s.git.GetMainRepoPath(repoPath)
		if err != nil {
			return err
		}
		return s.git.RemoveWorktree(mainRepo, worktreePath)
	}
	return fmt.Errorf("worktree %s not found", worktreePath)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionArchived  = errors.New("session is archived")
	ErrSessionBusy      = errors.New("session has a turn in flight")
	ErrWorktreeCreation = errors.New("worktree creation failed")
	ErrWorktreeInUse    = errors.New("worktree already bound to a live session")
	ErrNoProcess        = errors.New("no process attached to session")
)

// TransitionError reports an illegal session status change
type TransitionError struct {
	SessionID string
	From      SessionStatus
	To        SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s for session %s", e.From, e.To, e.SessionID)
}

// SequencingFault reports an attempt to persist a non-next sequence
// number. Under correct single-writer discipline this never happens; when
// detected it is fatal to that session's ingestion lane, never silently
// corrected.
type SequencingFault struct {
	SessionID string
	Want      int64
	Got       int64
}

func (e *SequencingFault) Error() string {
	return fmt.Sprintf("sequencing fault for session %s: want seq %d, got %d", e.SessionID, e.Want, e.Got)
}

// RebaseConflict is returned when a rebase encounters conflicting
// changes. It is a structured result, not an exceptional failure: the
// worktree is restored to its pre-rebase state and the conflicting files
// are listed for the caller to present.
type RebaseConflict struct {
	WorktreePath string
	Files        []string
	Output       string
}

func (e *RebaseConflict) Error() string {
	return fmt.Sprintf("rebase conflict in %s: %d conflicting files", e.WorktreePath, len(e.Files))
}

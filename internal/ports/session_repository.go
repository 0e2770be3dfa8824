package ports

import (
	"context"

	"maestro/internal/domain"
)

// SessionReader reads session data
type SessionReader interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context, includeArchived bool) ([]domain.Session, error)
}

// SessionWriter creates and hard-deletes sessions
type SessionWriter interface {
	Add(ctx context.Context, session domain.Session) error
	// Delete removes the session together with all dependent output,
	// conversation, marker, and diff records.
	Delete(ctx context.Context, id string) error
}

// SessionStateUpdater updates session lifecycle state
type SessionStateUpdater interface {
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, lastError string) error
	UpdateRunStarted(ctx context.Context, id string) error
	UpdateLastViewed(ctx context.Context, id string) error
	UpdateUpstreamSession(ctx context.Context, id, upstreamID string) error
}

// SessionMetadataUpdater updates session metadata
type SessionMetadataUpdater interface {
	Rename(ctx context.Context, id, displayName string) error
	ToggleFavorite(ctx context.Context, id string) error
	SetArchived(ctx context.Context, id string, archived bool) error
}

// SessionRepository is the composite interface
type SessionRepository interface {
	SessionReader
	SessionWriter
	SessionStateUpdater
	SessionMetadataUpdater
	Close() error
}

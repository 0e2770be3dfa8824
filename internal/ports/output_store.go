package ports

import (
	"context"

	"maestro/internal/domain"
)

// OutputAppender persists output records append-only.
type OutputAppender interface {
	// AppendNext inserts the record if and only if record.Seq is the next
	// sequence number for the session. A non-next sequence returns a
	// *domain.SequencingFault and persists nothing.
	AppendNext(ctx context.Context, record domain.OutputRecord) error
}

// OutputReader reads persisted output records.
type OutputReader interface {
	// Replay returns every record for the session in sequence order,
	// from durable storage only.
	Replay(ctx context.Context, sessionID string) ([]domain.OutputRecord, error)
	// Range returns records with fromSeq <= Seq < toSeq in sequence
	// order. toSeq < 0 means no upper bound.
	Range(ctx context.Context, sessionID string, fromSeq, toSeq int64) ([]domain.OutputRecord, error)
	// NextSeq returns the sequence number the next record must carry.
	NextSeq(ctx context.Context, sessionID string) (int64, error)
}

// ConversationStore persists the derived conversation projection.
type ConversationStore interface {
	SaveMessage(ctx context.Context, msg domain.ConversationMessage) error
	Messages(ctx context.Context, sessionID string) ([]domain.ConversationMessage, error)
}

// MarkerStore persists prompt markers and execution diffs.
type MarkerStore interface {
	SaveMarker(ctx context.Context, marker domain.PromptMarker) error
	CompleteMarker(ctx context.Context, sessionID string, startSeq, endSeq int64) error
	Markers(ctx context.Context, sessionID string) ([]domain.PromptMarker, error)
	SaveDiff(ctx context.Context, diff domain.ExecutionDiff) error
	Diffs(ctx context.Context, sessionID string) ([]domain.ExecutionDiff, error)
}

// OutputStore is the composite interface
type OutputStore interface {
	OutputAppender
	OutputReader
	ConversationStore
	MarkerStore
}

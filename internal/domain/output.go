package domain

import "time"

// OutputKind classifies one captured unit of process output
type OutputKind string

const (
	KindStdout          OutputKind = "stdout"
	KindStderr          OutputKind = "stderr"
	KindStructuredEvent OutputKind = "structured-event"
	KindSystemNotice    OutputKind = "system-notice"
)

// OutputRecord is one atomic unit of captured process output.
// Records are append-only: the stored payload is the untransformed
// original and is never mutated after insertion. Seq is gapless and
// strictly increasing within a session.
type OutputRecord struct {
	SessionID string
	Seq       int64
	Kind      OutputKind
	Payload   []byte
	CreatedAt time.Time
}

// MessageRole tags a conversation message as user or agent authored
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// ConversationMessage is a role-tagged logical message reconstructed from
// structured events. It is a derived projection of OutputRecords, ordered
// by the same sequence space, never an independent source of truth.
type ConversationMessage struct {
	SessionID string
	Seq       int64
	Role      MessageRole
	Text      string
}

// PromptMarker is a navigation bookmark pointing at the output index
// where a user prompt began and, once known, where its response
// completed. EndSeq is nil while the prompt is still in flight.
type PromptMarker struct {
	SessionID string
	StartSeq  int64
	EndSeq    *int64
	Prompt    string
	CreatedAt time.Time
}

// ExecutionDiff is an immutable snapshot of the git change-set produced
// between two prompts in a session's worktree.
type ExecutionDiff struct {
	SessionID     string
	Seq           int64
	FilesChanged  []string
	Summary       string
	CommitMessage string
	CreatedAt     time.Time
}

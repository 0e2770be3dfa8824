package domain

import "time"

// SessionStatus represents the lifecycle status of a session
type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusRunning      SessionStatus = "running"
	StatusWaiting      SessionStatus = "waiting"
	StatusStopped      SessionStatus = "stopped"
	StatusError        SessionStatus = "error"
	StatusArchived     SessionStatus = "archived"
)

// Status symbols (Unicode)
const (
	SymbolInitializing = "◌" // Gray - worktree/process setup in flight
	SymbolRunning      = "●" // Green - agent actively producing output
	SymbolWaiting      = "◐" // Yellow - agent idle, expecting input
	SymbolStopped      = "■" // Gray - process exited
	SymbolError        = "✗" // Red - setup or process failure
	SymbolArchived     = "·" // Dim - soft-deleted
)

// Symbol returns the display glyph for a status
func (s SessionStatus) Symbol() string {
	switch s {
	case StatusInitializing:
		return SymbolInitializing
	case StatusRunning:
		return SymbolRunning
	case StatusWaiting:
		return SymbolWaiting
	case StatusStopped:
		return SymbolStopped
	case StatusError:
		return SymbolError
	case StatusArchived:
		return SymbolArchived
	}
	return "?"
}

// PermissionMode controls how the agent handles tool permission prompts
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "accept-edits"
	PermissionSkipAll     PermissionMode = "skip-all"
)

// allowedTransitions encodes the legal status transitions.
// Any non-archived status may additionally move to error or archived.
var allowedTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusInitializing: {
		StatusRunning: {},
	},
	StatusRunning: {
		StatusWaiting: {},
		StatusStopped: {},
	},
	StatusWaiting: {
		StatusRunning: {},
		StatusStopped: {},
	},
	StatusStopped: {
		StatusRunning: {}, // resume
	},
	StatusError: {
		StatusRunning: {}, // resume is a fresh spawn
	},
	StatusArchived: {},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to SessionStatus) bool {
	if from == to {
		return false
	}
	if from != StatusArchived && to == StatusError {
		return true
	}
	if from != StatusArchived && to == StatusArchived {
		return true
	}
	_, ok := allowedTransitions[from][to]
	return ok
}

// Session represents one agent run bound to one worktree (domain entity)
type Session struct {
	ID                string
	DisplayName       string
	InitialPrompt     string
	WorktreePath      string
	BranchName        string
	Status            SessionStatus
	UpstreamSessionID string
	PermissionMode    PermissionMode
	Model             string
	IsArchived        bool
	IsFavorite        bool
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastViewedAt      time.Time
	RunStartedAt      *time.Time
}

// TransitionTo mutates the session status if the change is legal.
// Returns a TransitionError otherwise.
func (s *Session) TransitionTo(to SessionStatus) error {
	if !CanTransition(s.Status, to) {
		return &TransitionError{From: s.Status, To: to, SessionID: s.ID}
	}
	s.Status = to
	if to == StatusArchived {
		s.IsArchived = true
	}
	return nil
}

// Active reports whether the session may hold a live process.
func (s *Session) Active() bool {
	return s.Status == StatusRunning || s.Status == StatusWaiting
}

package ports

import (
	"context"
	"io"

	"maestro/internal/domain"
)

// LaunchSpec describes one agent process invocation.
type LaunchSpec struct {
	SessionID      string
	WorktreePath   string
	InitialPrompt  string
	ResumeMessages []domain.ConversationMessage
	Model          string
	PermissionMode domain.PermissionMode
}

// ProcessHandle owns one running agent process. Stdout and stderr are
// independent byte streams; the handle performs no interpretation of
// their content.
type ProcessHandle interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Send writes one line of input to the process's stdin.
	Send(text string) error
	// Signal asks the process to stop gracefully.
	Signal() error
	// Kill force-terminates the process.
	Kill() error
	// Wait blocks until the process exits and returns its classification.
	// A kill issued through this handle classifies as killed-by-supervisor.
	Wait() domain.ExitStatus
	PID() int
}

// ProcessLauncher spawns agent processes.
type ProcessLauncher interface {
	Launch(ctx context.Context, spec LaunchSpec) (ProcessHandle, error)
}

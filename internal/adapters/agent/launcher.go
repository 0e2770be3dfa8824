package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/ports"
)

// Launcher spawns agent processes with exec. One launcher is shared by
// all sessions; each Launch produces an independent process rooted in
// the session's worktree.
type Launcher struct {
	command  string
	baseArgs []string
}

// Verify interface compliance at compile time
var _ ports.ProcessLauncher = (*Launcher)(nil)

// NewLauncher creates a launcher for the given agent command and its
// standing arguments.
func NewLauncher(command string, baseArgs []string) *Launcher {
	return &Launcher{command: command, baseArgs: baseArgs}
}

// Launch implements ProcessLauncher.Launch. The process runs in the
// session's worktree with independent stdout and stderr pipes; its
// lifetime is owned by the returned handle, not by ctx.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(spec.WorktreePath); err != nil {
		return nil, fmt.Errorf("worktree path not usable: %w", err)
	}

	args := append([]string{}, l.baseArgs...)
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if mode := permissionFlag(spec.PermissionMode); mode != "" {
		args = append(args, "--permission-mode", mode)
	}
	if prompt := buildPrompt(spec); prompt != "" {
		args = append(args, prompt)
	}

	logging.Logger.Info("Launching agent process",
		"session_id", spec.SessionID,
		"command", l.command,
		"worktree_path", spec.WorktreePath)

	cmd := exec.Command(l.command, args...)
	cmd.Dir = spec.WorktreePath
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent process: %w", err)
	}

	logging.Logger.Info("Agent process started",
		"session_id", spec.SessionID, "pid", cmd.Process.Pid)

	return newHandle(cmd, stdin, stdout, stderr), nil
}

func permissionFlag(mode domain.PermissionMode) string {
	switch mode {
	case domain.PermissionAcceptEdits:
		return "acceptEdits"
	case domain.PermissionSkipAll:
		return "bypassPermissions"
	default:
		return ""
	}
}

// buildPrompt assembles the initial prompt, prefixed with the prior
// conversation when the session is being resumed so the fresh process
// picks up where the previous one stopped.
func buildPrompt(spec ports.LaunchSpec) string {
	if len(spec.ResumeMessages) == 0 {
		return spec.InitialPrompt
	}

	var b strings.Builder
	b.WriteString("Continue this session. Conversation so far:\n\n")
	for _, msg := range spec.ResumeMessages {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString("User: ")
		case domain.RoleAgent:
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	if spec.InitialPrompt != "" {
		b.WriteString("\n")
		b.WriteString(spec.InitialPrompt)
	}
	return b.String()
}

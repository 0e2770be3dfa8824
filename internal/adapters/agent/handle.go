package agent

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"maestro/internal/domain"
	"maestro/internal/ports"
)

// Handle owns one running agent process. Wait may be called from any
// number of goroutines; the exit status is computed once and cached.
type Handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	killed atomic.Bool

	sendMu sync.Mutex

	waitOnce sync.Once
	exit     domain.ExitStatus
}

// Verify interface compliance at compile time
var _ ports.ProcessHandle = (*Handle)(nil)

func newHandle(cmd *exec.Cmd, stdin io.WriteCloser, stdout, stderr io.Reader) *Handle {
	return &Handle{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}
}

// Stdout returns the process's stdout stream.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the process's stderr stream.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Send writes one line of input to the process's stdin.
func (h *Handle) Send(text string) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if _, err := io.WriteString(h.stdin, text+"\n"); err != nil {
		return fmt.Errorf("failed to write to agent stdin: %w", err)
	}
	return nil
}

// Signal asks the process to stop gracefully with SIGTERM.
func (h *Handle) Signal() error {
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill force-terminates the process. Exits caused by Kill classify as
// killed-by-supervisor.
func (h *Handle) Kill() error {
	h.killed.Store(true)
	return h.cmd.Process.Kill()
}

// Wait blocks until the process exits and returns its classification.
func (h *Handle) Wait() domain.ExitStatus {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		h.exit = h.classify(err)
	})
	return h.exit
}

func (h *Handle) classify(waitErr error) domain.ExitStatus {
	if h.killed.Load() {
		return domain.ExitStatus{Class: domain.ExitSupervisor}
	}
	if waitErr == nil {
		return domain.ExitStatus{Class: domain.ExitClean}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return domain.ExitStatus{
				Class:  domain.ExitSignal,
				Signal: ws.Signal().String(),
			}
		}
		return domain.ExitStatus{
			Class: domain.ExitNonzero,
			Code:  exitErr.ExitCode(),
		}
	}

	// Wait itself failed; treat as a nonzero exit with no code.
	return domain.ExitStatus{Class: domain.ExitNonzero, Code: -1}
}

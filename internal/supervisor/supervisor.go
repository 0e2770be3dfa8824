package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/pipeline"
	"maestro/internal/ports"
)

// Events are the hooks the supervisor invokes as a session's process
// produces observable lifecycle moments. All callbacks are optional and
// are called from supervisor goroutines.
type Events struct {
	// TurnComplete fires when the agent finishes a turn and is waiting
	// for input. seq is the sequence number of the turn_complete record.
	TurnComplete func(sessionID string, seq int64)
	// InputSent fires when a line of user input actually reaches the
	// process, including coalesced input flushed at turn completion.
	// seq is the sequence number of the recorded user event.
	InputSent func(sessionID, text string, seq int64)
	// Exited fires exactly once per process, after both output streams
	// are fully drained and the final records are durable.
	Exited func(sessionID string, exit domain.ExitStatus)
	// Faulted fires when a session's ingestion hits an unrecoverable
	// sequencing fault. The supervisor kills the process; Exited still
	// follows.
	Faulted func(sessionID string, err error)
}

// Supervisor owns the agent processes of all running sessions. It
// pumps their output through the pipeline, applies the pending-input
// policy, and guarantees exactly-once exit reporting.
type Supervisor struct {
	launcher ports.ProcessLauncher
	pipe     *pipeline.Pipeline
	grace    time.Duration
	events   Events

	mu   sync.Mutex
	runs map[string]*run
}

// run tracks one live process.
type run struct {
	sessionID string

	mu            sync.Mutex
	handle        ports.ProcessHandle // nil until Launch returns
	busy          bool
	pending       *string // latest undelivered input; newer sends replace it
	stopRequested bool    // stop arrived before the handle existed
	fault         error   // first sequencing fault seen on this lane

	done chan struct{}
}

// signal delivers the graceful stop request. While the launch is still
// in flight there is no handle yet; the request is remembered and
// honored as soon as the process exists.
func (r *run) signal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		r.stopRequested = true
		return nil
	}
	return r.handle.Signal()
}

func (r *run) kill() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		r.stopRequested = true
		return nil
	}
	return r.handle.Kill()
}

func (r *run) setFault(err error) {
	r.mu.Lock()
	if r.fault == nil {
		r.fault = err
	}
	r.mu.Unlock()
}

func (r *run) faultErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fault
}

// New creates a supervisor. grace bounds how long Terminate waits after
// the graceful signal before force-killing.
func New(launcher ports.ProcessLauncher, pipe *pipeline.Pipeline, grace time.Duration, events Events) *Supervisor {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Supervisor{
		launcher: launcher,
		pipe:     pipe,
		grace:    grace,
		events:   events,
		runs:     make(map[string]*run),
	}
}

// Start launches the agent process for a session and begins pumping its
// output. Returns domain.ErrSessionBusy if the session already has a
// live process.
func (s *Supervisor) Start(ctx context.Context, spec ports.LaunchSpec) error {
	s.mu.Lock()
	if _, exists := s.runs[spec.SessionID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s already has a process", domain.ErrSessionBusy, spec.SessionID)
	}
	// Reserve the slot before launching so two racing Starts cannot
	// both spawn.
	r := &run{sessionID: spec.SessionID, busy: true, done: make(chan struct{})}
	s.runs[spec.SessionID] = r
	s.mu.Unlock()

	handle, err := s.launcher.Launch(ctx, spec)
	if err != nil {
		s.mu.Lock()
		delete(s.runs, spec.SessionID)
		s.mu.Unlock()
		close(r.done)
		return err
	}

	r.mu.Lock()
	r.handle = handle
	stopRequested := r.stopRequested
	r.mu.Unlock()
	if stopRequested {
		// A Terminate raced the launch; honor it now that the process
		// exists.
		handle.Kill()
	}

	go s.pump(r)
	return nil
}

// pump drains both output streams, waits for process exit, and reports
// it. Runs for the lifetime of the process.
func (s *Supervisor) pump(r *run) {
	var g errgroup.Group
	g.Go(func() error { return s.readStream(r, r.handle.Stdout(), true) })
	g.Go(func() error { return s.readStream(r, r.handle.Stderr(), false) })

	if err := g.Wait(); err != nil {
		logging.Logger.Error("Output stream reader failed",
			"session_id", r.sessionID, "error", err)
	}

	// Streams are drained; now collect the exit status.
	exit := r.handle.Wait()

	notice := fmt.Sprintf("process exited: %s", exit.Diagnostic())
	if _, err := s.pipe.Ingest(context.Background(), r.sessionID, domain.KindSystemNotice, []byte(notice)); err != nil {
		logging.Logger.Error("Failed to record exit notice",
			"session_id", r.sessionID, "error", err)
	}

	s.mu.Lock()
	delete(s.runs, r.sessionID)
	s.mu.Unlock()
	close(r.done)

	logging.Logger.Info("Agent process exited",
		"session_id", r.sessionID, "class", string(exit.Class), "code", exit.Code)

	if fault := r.faultErr(); fault != nil && s.events.Faulted != nil {
		s.events.Faulted(r.sessionID, fault)
	}
	if s.events.Exited != nil {
		s.events.Exited(r.sessionID, exit)
	}
}

// readStream ingests one OS stream line by line. Stdout lines that look
// like structured events are tagged as such; everything else keeps its
// stream kind.
func (s *Supervisor) readStream(r *run, stream io.Reader, isStdout bool) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		payload := make([]byte, len(line))
		copy(payload, line)

		kind := domain.KindStderr
		structured := false
		if isStdout {
			kind = domain.KindStdout
			if domain.LooksStructured(payload) {
				kind = domain.KindStructuredEvent
				structured = true
			}
		}

		seq, err := s.pipe.Ingest(context.Background(), r.sessionID, kind, payload)
		if err != nil {
			var fault *domain.SequencingFault
			if errors.As(err, &fault) {
				// The durable log moved out from under this lane.
				// Continuing would silently reorder history, so the
				// lane stops and the process goes with it.
				logging.Logger.Error("Sequencing fault, halting ingestion",
					"session_id", r.sessionID, "want", fault.Want, "got", fault.Got)
				r.setFault(err)
				r.kill()
				return err
			}
			logging.Logger.Error("Failed to ingest output record",
				"session_id", r.sessionID, "error", err)
			continue
		}

		if structured {
			s.handleEvent(r, payload, seq)
		}
	}
	return scanner.Err()
}

// handleEvent reacts to structured agent events that affect session
// state.
func (s *Supervisor) handleEvent(r *run, payload []byte, seq int64) {
	ev, err := domain.ParseAgentEvent(payload)
	if err != nil || ev.Type != domain.EventTurnComplete {
		return
	}

	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.busy = pending != nil
	r.mu.Unlock()

	// The finished turn is reported even when coalesced input claims
	// the next one immediately, so the prior prompt's marker and diff
	// close at the real boundary.
	if s.events.TurnComplete != nil {
		s.events.TurnComplete(r.sessionID, seq)
	}

	if pending != nil {
		s.deliver(r, *pending)
	}
}

// Send delivers input to a session's process. While the agent is mid
// turn the input is held back, and a newer Send replaces it: only the
// latest undelivered input is flushed when the turn completes.
func (s *Supervisor) Send(sessionID, text string) error {
	s.mu.Lock()
	r, ok := s.runs[sessionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNoProcess, sessionID)
	}

	r.mu.Lock()
	if r.busy {
		r.pending = &text
		r.mu.Unlock()
		logging.Logger.Debug("Agent busy, input coalesced", "session_id", sessionID)
		return nil
	}
	r.busy = true
	r.mu.Unlock()

	s.deliver(r, text)
	return nil
}

// deliver records the user input as a structured event and writes it to
// the process's stdin.
func (s *Supervisor) deliver(r *run, text string) {
	event, err := json.Marshal(domain.AgentEvent{Type: domain.EventUserPrompt, Text: text})
	if err != nil {
		logging.Logger.Error("Failed to encode user event", "session_id", r.sessionID, "error", err)
		return
	}

	seq, err := s.pipe.Ingest(context.Background(), r.sessionID, domain.KindStructuredEvent, event)
	if err != nil {
		logging.Logger.Error("Failed to record user input", "session_id", r.sessionID, "error", err)
	}

	if err := r.handle.Send(text); err != nil {
		logging.Logger.Error("Failed to deliver input to agent",
			"session_id", r.sessionID, "error", err)
		return
	}

	if s.events.InputSent != nil {
		s.events.InputSent(r.sessionID, text, seq)
	}
}

// Terminate stops a session's process: graceful signal first, then a
// force kill once the grace period lapses. Safe to call repeatedly and
// for sessions with no process; exit is still reported exactly once,
// by the pump goroutine.
func (s *Supervisor) Terminate(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	r, ok := s.runs[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := r.signal(); err != nil {
		logging.Logger.Debug("Graceful signal failed, process may have exited",
			"session_id", sessionID, "error", err)
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.grace):
	}

	logging.Logger.Warn("Process did not exit within grace period, killing",
		"session_id", sessionID, "grace", s.grace.String())
	if err := r.kill(); err != nil {
		logging.Logger.Debug("Kill failed, process may have exited",
			"session_id", sessionID, "error", err)
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the session has a live process.
func (s *Supervisor) IsRunning(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[sessionID]
	return ok
}

// RunningSessions lists the sessions with live processes.
func (s *Supervisor) RunningSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown terminates every running session, used on daemon exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, id := range s.RunningSessions() {
		id := id
		g.Go(func() error { return s.Terminate(ctx, id) })
	}
	return g.Wait()
}

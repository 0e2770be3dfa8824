package supervisor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/adapters/agent"
	"maestro/internal/adapters/storage"
	"maestro/internal/domain"
	"maestro/internal/pipeline"
	"maestro/internal/ports"
)

const testTimeout = 5 * time.Second

// harness wires a supervisor over a real store and a shell script agent.
type harness struct {
	sup   *Supervisor
	pipe  *pipeline.Pipeline
	store *storage.SQLiteRepository

	turnComplete chan int64
	inputSent    chan string
	exited       chan domain.ExitStatus
	faulted      chan error
}

func newHarness(t *testing.T, script string, grace time.Duration) *harness {
	t.Helper()

	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "maestro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		pipe:         pipeline.NewPipeline(store, 64),
		store:        store,
		turnComplete: make(chan int64, 16),
		inputSent:    make(chan string, 16),
		exited:       make(chan domain.ExitStatus, 16),
		faulted:      make(chan error, 16),
	}

	scriptPath := filepath.Join(t.TempDir(), "agent.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+script), 0755))

	h.sup = New(agent.NewLauncher(scriptPath, nil), h.pipe, grace, Events{
		TurnComplete: func(_ string, seq int64) { h.turnComplete <- seq },
		InputSent:    func(_ string, text string, _ int64) { h.inputSent <- text },
		Exited:       func(_ string, exit domain.ExitStatus) { h.exited <- exit },
		Faulted:      func(_ string, err error) { h.faulted <- err },
	})
	return h
}

// awaitFirstRecord blocks until the session's first output record is
// durable, so the agent is known to be past its setup lines.
func (h *harness) awaitFirstRecord(t *testing.T, sessionID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		records, err := h.pipe.Replay(context.Background(), sessionID)
		return err == nil && len(records) > 0
	}, testTimeout, 10*time.Millisecond)
}

func (h *harness) start(t *testing.T, sessionID string) {
	t.Helper()
	err := h.sup.Start(context.Background(), ports.LaunchSpec{
		SessionID:    sessionID,
		WorktreePath: t.TempDir(),
	})
	require.NoError(t, err)
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestStart_OutputBecomesDurableRecords(t *testing.T) {
	h := newHarness(t, `echo '{"type":"text","text":"working"}'
echo '{"type":"turn_complete"}'
read line`, time.Second)
	h.start(t, "s1")

	waitFor(t, h.turnComplete, "turn complete")

	records, err := h.pipe.Replay(context.Background(), "s1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, domain.KindStructuredEvent, records[0].Kind)
	assert.Contains(t, string(records[0].Payload), "working")

	h.sup.Terminate(context.Background(), "s1")
	waitFor(t, h.exited, "exit")
}

func TestStart_SecondStartIsBusy(t *testing.T) {
	h := newHarness(t, `echo '{"type":"turn_complete"}'
read line`, time.Second)
	h.start(t, "s1")

	err := h.sup.Start(context.Background(), ports.LaunchSpec{SessionID: "s1", WorktreePath: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	h.sup.Terminate(context.Background(), "s1")
	waitFor(t, h.exited, "exit")
}

func TestSend_WhileWaitingDeliversImmediately(t *testing.T) {
	h := newHarness(t, `echo '{"type":"turn_complete"}'
read line
echo "{\"type\":\"text\",\"text\":\"handled $line\"}"
echo '{"type":"turn_complete"}'`, time.Second)
	h.start(t, "s1")

	waitFor(t, h.turnComplete, "first turn")
	require.NoError(t, h.sup.Send("s1", "do it"))

	assert.Equal(t, "do it", waitFor(t, h.inputSent, "input delivery"))
	waitFor(t, h.turnComplete, "second turn")
	exit := waitFor(t, h.exited, "exit")
	assert.Equal(t, domain.ExitClean, exit.Class)

	// The durable stream carries the user input as a structured event
	records, err := h.pipe.Replay(context.Background(), "s1")
	require.NoError(t, err)
	msgs := pipeline.BuildConversation(records)
	require.NotEmpty(t, msgs)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "do it", msgs[0].Text)
}

func TestSend_MidTurnCoalescesToLatest(t *testing.T) {
	// The agent stays busy until it reads the release file, then
	// completes its turn and echoes whatever input it receives.
	h := newHarness(t, `while [ ! -f "$PWD/release" ]; do sleep 0.05; done
echo '{"type":"turn_complete"}'
read line
echo "{\"type\":\"text\",\"text\":\"handled $line\"}"
echo '{"type":"turn_complete"}'`, time.Second)

	worktree := t.TempDir()
	require.NoError(t, h.sup.Start(context.Background(), ports.LaunchSpec{
		SessionID:    "s1",
		WorktreePath: worktree,
	}))

	// Agent is mid turn: these queue, and the newer replaces the older
	require.NoError(t, h.sup.Send("s1", "first"))
	require.NoError(t, h.sup.Send("s1", "second"))

	require.NoError(t, os.WriteFile(filepath.Join(worktree, "release"), nil, 0644))

	assert.Equal(t, "second", waitFor(t, h.inputSent, "coalesced delivery"))
	waitFor(t, h.turnComplete, "final turn")
	waitFor(t, h.exited, "exit")

	// "first" was never delivered
	select {
	case extra := <-h.inputSent:
		t.Fatalf("unexpected extra delivery: %q", extra)
	default:
	}
}

func TestCrash_RecordsSurviveAndExitReportsOnce(t *testing.T) {
	h := newHarness(t, `echo "chunk-1"
echo "chunk-2"
echo "chunk-3"
exit 1`, time.Second)
	h.start(t, "s1")

	exit := waitFor(t, h.exited, "exit")
	assert.Equal(t, domain.ExitNonzero, exit.Class)
	assert.Equal(t, 1, exit.Code)
	assert.True(t, exit.Crashed())

	// Everything emitted before the crash is durable, in order,
	// followed by the exit notice.
	records, err := h.pipe.Replay(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, want := range []string{"chunk-1", "chunk-2", "chunk-3"} {
		assert.Equal(t, int64(i), records[i].Seq)
		assert.Equal(t, want, string(records[i].Payload))
		assert.Equal(t, domain.KindStdout, records[i].Kind)
	}
	assert.Equal(t, domain.KindSystemNotice, records[3].Kind)
	assert.Contains(t, string(records[3].Payload), "exit")

	// No second exit report
	select {
	case <-h.exited:
		t.Fatal("exit reported twice")
	case <-time.After(200 * time.Millisecond):
	}
	assert.False(t, h.sup.IsRunning("s1"))
}

func TestStderr_IsCapturedWithItsOwnKind(t *testing.T) {
	h := newHarness(t, `echo "warning" >&2
exit 0`, time.Second)
	h.start(t, "s1")

	waitFor(t, h.exited, "exit")

	records, err := h.pipe.Replay(context.Background(), "s1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 1)
	assert.Equal(t, domain.KindStderr, records[0].Kind)
	assert.Equal(t, "warning", string(records[0].Payload))
}

func TestTerminate_GracefulExit(t *testing.T) {
	h := newHarness(t, `trap 'exit 0' TERM
echo ready
while true; do sleep 0.1; done`, 3*time.Second)
	h.start(t, "s1")
	h.awaitFirstRecord(t, "s1")

	require.NoError(t, h.sup.Terminate(context.Background(), "s1"))

	exit := waitFor(t, h.exited, "exit")
	assert.Equal(t, domain.ExitClean, exit.Class)
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	h := newHarness(t, `trap '' TERM
echo ready
while true; do sleep 0.1; done`, 300*time.Millisecond)
	h.start(t, "s1")
	h.awaitFirstRecord(t, "s1")

	require.NoError(t, h.sup.Terminate(context.Background(), "s1"))

	exit := waitFor(t, h.exited, "exit")
	assert.Equal(t, domain.ExitSupervisor, exit.Class)
	assert.False(t, exit.Crashed())
}

func TestTerminate_Idempotent(t *testing.T) {
	h := newHarness(t, `trap 'exit 0' TERM
echo ready
while true; do sleep 0.1; done`, 3*time.Second)
	h.start(t, "s1")
	h.awaitFirstRecord(t, "s1")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.sup.Terminate(context.Background(), "s1"))
		}()
	}
	wg.Wait()

	waitFor(t, h.exited, "exit")
	select {
	case <-h.exited:
		t.Fatal("exit reported twice")
	case <-time.After(200 * time.Millisecond):
	}

	// Terminating an already-dead session is a no-op
	assert.NoError(t, h.sup.Terminate(context.Background(), "s1"))
}

func TestSend_NoProcess(t *testing.T) {
	h := newHarness(t, `exit 0`, time.Second)

	err := h.sup.Send("ghost", "hello")

	assert.ErrorIs(t, err, domain.ErrNoProcess)
}

func TestSend_CoalescedInputStillClosesTurn(t *testing.T) {
	h := newHarness(t, `while [ ! -f "$PWD/release" ]; do sleep 0.05; done
echo '{"type":"turn_complete"}'
read line
echo "{\"type\":\"text\",\"text\":\"handled $line\"}"
echo '{"type":"turn_complete"}'`, time.Second)

	worktree := t.TempDir()
	require.NoError(t, h.sup.Start(context.Background(), ports.LaunchSpec{
		SessionID:    "s1",
		WorktreePath: worktree,
	}))
	require.NoError(t, h.sup.Send("s1", "queued"))
	require.NoError(t, os.WriteFile(filepath.Join(worktree, "release"), nil, 0644))

	// The first turn's boundary is reported before the queued input
	// takes the next turn.
	firstTurn := waitFor(t, h.turnComplete, "first turn boundary")
	assert.Equal(t, "queued", waitFor(t, h.inputSent, "coalesced delivery"))
	secondTurn := waitFor(t, h.turnComplete, "second turn")
	assert.Greater(t, secondTurn, firstTurn)

	waitFor(t, h.exited, "exit")
}

func TestSequencingFault_HaltsIngestionAndStopsProcess(t *testing.T) {
	h := newHarness(t, `echo "chunk-1"
while [ ! -f "$PWD/release" ]; do sleep 0.05; done
echo "chunk-2"
sleep 60`, time.Second)

	worktree := t.TempDir()
	require.NoError(t, h.sup.Start(context.Background(), ports.LaunchSpec{
		SessionID:    "s1",
		WorktreePath: worktree,
	}))
	h.awaitFirstRecord(t, "s1")

	// Another writer advances the durable log behind the lane's back
	ctx := context.Background()
	next, err := h.store.NextSeq(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, h.store.AppendNext(ctx, domain.OutputRecord{
		SessionID: "s1", Seq: next, Kind: domain.KindStdout, Payload: []byte("intruder"),
	}))

	require.NoError(t, os.WriteFile(filepath.Join(worktree, "release"), nil, 0644))

	var fault *domain.SequencingFault
	require.ErrorAs(t, waitFor(t, h.faulted, "fault"), &fault)

	exit := waitFor(t, h.exited, "exit")
	assert.Equal(t, domain.ExitSupervisor, exit.Class)

	// The chunk that collided was not persisted
	records, err := h.pipe.Replay(ctx, "s1")
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotEqual(t, "chunk-2", string(rec.Payload))
	}
}

// stubHandle is a ProcessHandle whose exit the test drives.
type stubHandle struct {
	once   sync.Once
	exited chan struct{}
}

func newStubHandle() *stubHandle { return &stubHandle{exited: make(chan struct{})} }

func (h *stubHandle) Stdout() io.Reader { return strings.NewReader("") }
func (h *stubHandle) Stderr() io.Reader { return strings.NewReader("") }
func (h *stubHandle) Send(string) error { return nil }
func (h *stubHandle) Signal() error     { h.stop(); return nil }
func (h *stubHandle) Kill() error       { h.stop(); return nil }
func (h *stubHandle) PID() int          { return 0 }
func (h *stubHandle) stop()             { h.once.Do(func() { close(h.exited) }) }

func (h *stubHandle) Wait() domain.ExitStatus {
	<-h.exited
	return domain.ExitStatus{Class: domain.ExitSupervisor}
}

// gatedLauncher holds Launch open until the test releases it.
type gatedLauncher struct {
	release chan struct{}
	handle  ports.ProcessHandle
}

func (l *gatedLauncher) Launch(context.Context, ports.LaunchSpec) (ports.ProcessHandle, error) {
	<-l.release
	return l.handle, nil
}

func TestTerminate_DuringLaunchWindow(t *testing.T) {
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "maestro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	launcher := &gatedLauncher{release: make(chan struct{}), handle: newStubHandle()}
	exited := make(chan domain.ExitStatus, 1)
	sup := New(launcher, pipeline.NewPipeline(store, 64), 100*time.Millisecond, Events{
		Exited: func(_ string, exit domain.ExitStatus) { exited <- exit },
	})

	started := make(chan error, 1)
	go func() {
		started <- sup.Start(context.Background(), ports.LaunchSpec{SessionID: "s1"})
	}()
	require.Eventually(t, func() bool { return sup.IsRunning("s1") }, testTimeout, time.Millisecond)

	// Terminate lands while Launch is still blocked
	termDone := make(chan error, 1)
	go func() { termDone <- sup.Terminate(context.Background(), "s1") }()

	time.Sleep(20 * time.Millisecond)
	close(launcher.release)

	require.NoError(t, waitFor(t, started, "start"))
	require.NoError(t, waitFor(t, termDone, "terminate"))
	exit := waitFor(t, exited, "exit")
	assert.Equal(t, domain.ExitSupervisor, exit.Class)
}

func TestShutdown_StopsAllSessions(t *testing.T) {
	h := newHarness(t, `trap 'exit 0' TERM
echo ready
while true; do sleep 0.1; done`, 3*time.Second)
	h.start(t, "s1")
	h.start(t, "s2")
	h.start(t, "s3")
	for _, id := range []string{"s1", "s2", "s3"} {
		h.awaitFirstRecord(t, id)
	}

	require.NoError(t, h.sup.Shutdown(context.Background()))

	for i := 0; i < 3; i++ {
		waitFor(t, h.exited, "exit")
	}
	assert.Empty(t, h.sup.RunningSessions())
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"maestro/internal/config"
	"maestro/internal/domain"
	"maestro/internal/logging"
	"maestro/internal/pipeline"
	"maestro/internal/ports"
	"maestro/internal/supervisor"
)

// CreateSessionOptions carries the user-facing knobs for a new session.
type CreateSessionOptions struct {
	Name           string
	Prompt         string
	Model          string
	PermissionMode domain.PermissionMode
	RepoPath       string // defaults to the current directory's repo
}

// SessionService orchestrates the session lifecycle: worktree
// provisioning, process supervision, output capture, and persistence.
type SessionService struct {
	repo  ports.SessionRepository
	store ports.OutputStore
	git   ports.GitRepository
	pipe  *pipeline.Pipeline
	sup   *supervisor.Supervisor
	cfg   *config.Config

	mu       sync.Mutex
	baseRefs map[string]string // sessionID -> HEAD at last turn boundary
	stopping map[string]bool   // sessionID -> user asked for the stop
}

// NewSessionService wires the service and its supervisor together. The
// supervisor's lifecycle events feed back into session state here.
func NewSessionService(
	repo ports.SessionRepository,
	store ports.OutputStore,
	git ports.GitRepository,
	pipe *pipeline.Pipeline,
	launcher ports.ProcessLauncher,
	cfg *config.Config,
) *SessionService {
	s := &SessionService{
		repo:     repo,
		store:    store,
		git:      git,
		pipe:     pipe,
		cfg:      cfg,
		baseRefs: make(map[string]string),
		stopping: make(map[string]bool),
	}
	grace := time.Duration(cfg.Agent.TerminateGrace) * time.Second
	s.sup = supervisor.New(launcher, pipe, grace, supervisor.Events{
		TurnComplete: s.onTurnComplete,
		InputSent:    s.onInputSent,
		Exited:       s.onExited,
		Faulted:      s.onFault,
	})
	return s
}

// Supervisor exposes the supervisor for shutdown wiring.
func (s *SessionService) Supervisor() *supervisor.Supervisor { return s.sup }

// Create provisions a worktree and starts an agent session in it. On
// any provisioning failure the session survives in error status with a
// diagnostic, so the failure is inspectable and the session resumable.
func (s *SessionService) Create(ctx context.Context, opts CreateSessionOptions) (domain.Session, error) {
	repoPath := opts.RepoPath
	if repoPath == "" {
		repoPath = "."
	}
	ok, repoRoot := s.git.IsGitRepo(repoPath)
	if !ok {
		return domain.Session{}, fmt.Errorf("%s is not inside a git repository", repoPath)
	}
	mainRepo, err := s.git.GetMainRepoPath(repoRoot)
	if err != nil {
		return domain.Session{}, err
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = fmt.Sprintf("session-%s", uuid.NewString()[:8])
	}
	branchName, err := domain.SanitizeBranchName(s.cfg.Git.BranchPrefix + name)
	if err != nil {
		return domain.Session{}, fmt.Errorf("invalid session name: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = s.cfg.Agent.Model
	}
	mode := opts.PermissionMode
	if mode == "" {
		mode = domain.PermissionDefault
	}

	session := domain.Session{
		ID:             uuid.NewString(),
		DisplayName:    name,
		InitialPrompt:  opts.Prompt,
		WorktreePath:   s.git.BuildWorktreePath(s.cfg.Git.WorktreeBase, name),
		BranchName:     branchName,
		Status:         domain.StatusInitializing,
		PermissionMode: mode,
		Model:          model,
	}

	if err := s.repo.Add(ctx, session); err != nil {
		return domain.Session{}, err
	}

	if err := s.git.CreateWorktree(ctx, mainRepo, session.WorktreePath, branchName); err != nil {
		s.failSession(ctx, session.ID, fmt.Sprintf("worktree creation failed: %v", err))
		return domain.Session{}, err
	}

	if err := s.startProcess(ctx, session, nil); err != nil {
		s.failSession(ctx, session.ID, fmt.Sprintf("agent launch failed: %v", err))
		return domain.Session{}, err
	}

	session.Status = domain.StatusRunning
	logging.Logger.Info("Session created",
		"session_id", session.ID, "name", name, "worktree", session.WorktreePath)
	return session, nil
}

// startProcess records the prompt, spawns the agent, and moves the
// session to running.
func (s *SessionService) startProcess(ctx context.Context, session domain.Session, resume []domain.ConversationMessage) error {
	if session.InitialPrompt != "" {
		if err := s.recordPrompt(ctx, session.ID, session.InitialPrompt); err != nil {
			return err
		}
	}

	// Move to running before spawning: the first turn_complete may
	// arrive before Start returns.
	if err := s.transition(ctx, session.ID, domain.StatusRunning, ""); err != nil {
		return err
	}

	if head, headErr := s.git.HeadRef(session.WorktreePath); headErr == nil {
		s.mu.Lock()
		s.baseRefs[session.ID] = head
		s.mu.Unlock()
	}

	err := s.sup.Start(ctx, ports.LaunchSpec{
		SessionID:      session.ID,
		WorktreePath:   session.WorktreePath,
		InitialPrompt:  session.InitialPrompt,
		ResumeMessages: resume,
		Model:          session.Model,
		PermissionMode: session.PermissionMode,
	})
	if err != nil {
		return err
	}

	return s.repo.UpdateRunStarted(ctx, session.ID)
}

// recordPrompt makes a user prompt durable: a structured record in the
// output stream, a conversation message, and an open prompt marker.
func (s *SessionService) recordPrompt(ctx context.Context, sessionID, prompt string) error {
	payload := fmt.Sprintf(`{"type":"user","text":%s}`, jsonString(prompt))
	seq, err := s.pipe.Ingest(ctx, sessionID, domain.KindStructuredEvent, []byte(payload))
	if err != nil {
		return err
	}
	if err := s.store.SaveMessage(ctx, domain.ConversationMessage{
		SessionID: sessionID, Seq: seq, Role: domain.RoleUser, Text: prompt,
	}); err != nil {
		return err
	}
	return s.store.SaveMarker(ctx, domain.PromptMarker{
		SessionID: sessionID, StartSeq: seq, Prompt: prompt,
	})
}

// Send routes user input to the session's agent. Input sent while the
// agent is mid turn is held, newest wins, and delivered at the next
// turn boundary.
func (s *SessionService) Send(ctx context.Context, sessionID, text string) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsArchived {
		return fmt.Errorf("%w: %s", domain.ErrSessionArchived, sessionID)
	}
	return s.sup.Send(sessionID, text)
}

// Stop gracefully terminates the session's process. The session keeps
// its records and worktree and can be resumed with Continue.
func (s *SessionService) Stop(ctx context.Context, sessionID string) error {
	if _, err := s.repo.Get(ctx, sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	s.stopping[sessionID] = true
	s.mu.Unlock()

	return s.sup.Terminate(ctx, sessionID)
}

// Continue resumes a stopped or errored session with a fresh process,
// seeding it with the conversation reconstructed from the durable
// record stream.
func (s *SessionService) Continue(ctx context.Context, sessionID, prompt string) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsArchived {
		return fmt.Errorf("%w: %s", domain.ErrSessionArchived, sessionID)
	}
	if session.Status != domain.StatusStopped && session.Status != domain.StatusError {
		return fmt.Errorf("session %s is %s, only stopped or errored sessions can be continued",
			sessionID, session.Status)
	}

	records, err := s.pipe.Replay(ctx, sessionID)
	if err != nil {
		return err
	}
	resume := pipeline.BuildConversation(records)

	session.InitialPrompt = prompt
	if err := s.startProcess(ctx, *session, resume); err != nil {
		s.failSession(ctx, sessionID, fmt.Sprintf("resume failed: %v", err))
		return err
	}

	logging.Logger.Info("Session resumed",
		"session_id", sessionID, "messages", len(resume))
	return nil
}

// Archive soft-deletes a session: the process is stopped, the worktree
// removed, but records and branch survive.
func (s *SessionService) Archive(ctx context.Context, sessionID string) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsArchived {
		return nil
	}

	s.mu.Lock()
	s.stopping[sessionID] = true
	s.mu.Unlock()
	if err := s.sup.Terminate(ctx, sessionID); err != nil {
		return err
	}

	if err := s.transition(ctx, sessionID, domain.StatusArchived, ""); err != nil {
		return err
	}

	if mainRepo, repoErr := s.git.GetMainRepoPath(session.WorktreePath); repoErr == nil {
		if err := s.git.RemoveWorktree(mainRepo, session.WorktreePath); err != nil {
			logging.Logger.Warn("Failed to remove worktree on archive",
				"session_id", sessionID, "error", err)
		}
	}

	s.pipe.Drop(sessionID)
	return nil
}

// Delete removes a session and everything it owns: process, worktree,
// and all persisted records.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stopping[sessionID] = true
	s.mu.Unlock()
	if err := s.sup.Terminate(ctx, sessionID); err != nil {
		return err
	}

	if mainRepo, repoErr := s.git.GetMainRepoPath(session.WorktreePath); repoErr == nil {
		if err := s.git.RemoveWorktree(mainRepo, session.WorktreePath); err != nil {
			logging.Logger.Warn("Failed to remove worktree on delete",
				"session_id", sessionID, "error", err)
		}
	}

	s.pipe.Drop(sessionID)

	s.mu.Lock()
	delete(s.baseRefs, sessionID)
	delete(s.stopping, sessionID)
	s.mu.Unlock()

	return s.repo.Delete(ctx, sessionID)
}

// Replay renders the full stored output of a session exactly as the
// live view showed it, and stamps the session as viewed.
func (s *SessionService) Replay(ctx context.Context, sessionID string) ([]string, error) {
	if _, err := s.repo.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	records, err := s.pipe.Replay(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	projector := pipeline.NewProjector()
	var lines []string
	for _, record := range records {
		if text, ok := projector.Render(record); ok {
			lines = append(lines, text)
		}
	}

	if err := s.repo.UpdateLastViewed(ctx, sessionID); err != nil {
		logging.Logger.Warn("Failed to update last viewed", "session_id", sessionID, "error", err)
	}
	return lines, nil
}

// Follow returns the stored records plus a live channel for records
// appended afterwards. Live records with sequence numbers already
// covered by the replayed slice are duplicates and should be skipped
// by the caller.
func (s *SessionService) Follow(ctx context.Context, sessionID string) ([]domain.OutputRecord, <-chan domain.OutputRecord, func(), error) {
	if _, err := s.repo.Get(ctx, sessionID); err != nil {
		return nil, nil, nil, err
	}

	// Subscribe before replaying so no record falls between the two.
	ch, cancel := s.pipe.SubscribeLive(sessionID)
	records, err := s.pipe.Replay(ctx, sessionID)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	if err := s.repo.UpdateLastViewed(ctx, sessionID); err != nil {
		logging.Logger.Warn("Failed to update last viewed", "session_id", sessionID, "error", err)
	}
	return records, ch, cancel, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

// List returns sessions, newest first.
func (s *SessionService) List(ctx context.Context, includeArchived bool) ([]domain.Session, error) {
	return s.repo.List(ctx, includeArchived)
}

// Rename changes a session's display name.
func (s *SessionService) Rename(ctx context.Context, sessionID, name string) error {
	return s.repo.Rename(ctx, sessionID, name)
}

// ToggleFavorite flips the favorite flag.
func (s *SessionService) ToggleFavorite(ctx context.Context, sessionID string) error {
	return s.repo.ToggleFavorite(ctx, sessionID)
}

// Diffs returns the captured execution diffs for a session.
func (s *SessionService) Diffs(ctx context.Context, sessionID string) ([]domain.ExecutionDiff, error) {
	return s.store.Diffs(ctx, sessionID)
}

// ReconcileStale moves sessions that claim a live process but have none
// to stopped. Covers processes lost to a crash of maestro itself: the
// agent is gone, the database still says running.
func (s *SessionService) ReconcileStale(ctx context.Context) error {
	sessions, err := s.repo.List(ctx, false)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if !session.Active() || s.sup.IsRunning(session.ID) {
			continue
		}
		logging.Logger.Warn("Session claims a live process but has none, marking stopped",
			"session_id", session.ID, "status", string(session.Status))
		if err := s.transition(ctx, session.ID, domain.StatusStopped, ""); err != nil {
			logging.Logger.Error("Failed to reconcile stale session",
				"session_id", session.ID, "error", err)
		}
	}
	return nil
}

// Supervisor event handlers. These run on supervisor goroutines.

func (s *SessionService) onTurnComplete(sessionID string, seq int64) {
	ctx := context.Background()

	if err := s.transition(ctx, sessionID, domain.StatusWaiting, ""); err != nil {
		logging.Logger.Warn("Turn-complete transition failed",
			"session_id", sessionID, "error", err)
	}

	s.completeOpenMarker(ctx, sessionID, seq)
	s.captureDiff(ctx, sessionID, seq)
}

func (s *SessionService) onInputSent(sessionID, text string, seq int64) {
	ctx := context.Background()

	if err := s.transition(ctx, sessionID, domain.StatusRunning, ""); err != nil {
		logging.Logger.Debug("Input transition skipped",
			"session_id", sessionID, "error", err)
	}

	if err := s.store.SaveMessage(ctx, domain.ConversationMessage{
		SessionID: sessionID, Seq: seq, Role: domain.RoleUser, Text: text,
	}); err != nil {
		logging.Logger.Error("Failed to save conversation message",
			"session_id", sessionID, "error", err)
	}
	if err := s.store.SaveMarker(ctx, domain.PromptMarker{
		SessionID: sessionID, StartSeq: seq, Prompt: text,
	}); err != nil {
		logging.Logger.Error("Failed to save prompt marker",
			"session_id", sessionID, "error", err)
	}
}

func (s *SessionService) onFault(sessionID string, err error) {
	s.failSession(context.Background(), sessionID,
		fmt.Sprintf("output sequencing fault: %v", err))
}

func (s *SessionService) onExited(sessionID string, exit domain.ExitStatus) {
	ctx := context.Background()

	s.mu.Lock()
	requested := s.stopping[sessionID]
	delete(s.stopping, sessionID)
	s.mu.Unlock()

	switch {
	case requested, exit.Class == domain.ExitClean, exit.Class == domain.ExitSupervisor:
		if err := s.transition(ctx, sessionID, domain.StatusStopped, ""); err != nil {
			logging.Logger.Debug("Stop transition skipped",
				"session_id", sessionID, "error", err)
		}
	default:
		s.failSession(ctx, sessionID, exit.Diagnostic())
	}
}

// completeOpenMarker closes the most recent prompt marker without an
// end sequence.
func (s *SessionService) completeOpenMarker(ctx context.Context, sessionID string, endSeq int64) {
	markers, err := s.store.Markers(ctx, sessionID)
	if err != nil {
		logging.Logger.Error("Failed to read prompt markers", "session_id", sessionID, "error", err)
		return
	}
	for i := len(markers) - 1; i >= 0; i-- {
		if markers[i].EndSeq == nil {
			if err := s.store.CompleteMarker(ctx, sessionID, markers[i].StartSeq, endSeq); err != nil {
				logging.Logger.Error("Failed to complete prompt marker",
					"session_id", sessionID, "error", err)
			}
			return
		}
	}
}

// captureDiff records what the finished turn changed in the worktree.
func (s *SessionService) captureDiff(ctx context.Context, sessionID string, seq int64) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	base := s.baseRefs[sessionID]
	s.mu.Unlock()
	if base == "" {
		return
	}

	files, summary, err := s.git.DiffSince(ctx, session.WorktreePath, base)
	if err != nil {
		logging.Logger.Debug("Diff capture failed", "session_id", sessionID, "error", err)
		return
	}
	if len(files) == 0 {
		return
	}

	if err := s.store.SaveDiff(ctx, domain.ExecutionDiff{
		SessionID:    sessionID,
		Seq:          seq,
		FilesChanged: files,
		Summary:      summary,
	}); err != nil {
		logging.Logger.Error("Failed to save execution diff", "session_id", sessionID, "error", err)
	}

	if head, headErr := s.git.HeadRef(session.WorktreePath); headErr == nil {
		s.mu.Lock()
		s.baseRefs[sessionID] = head
		s.mu.Unlock()
	}
}

// transition applies the session state machine and persists the result.
func (s *SessionService) transition(ctx context.Context, sessionID string, to domain.SessionStatus, lastError string) error {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.TransitionTo(to); err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, sessionID, to, lastError)
}

// failSession moves a session to error with a diagnostic, ignoring
// transition legality: error is reachable from anything live.
func (s *SessionService) failSession(ctx context.Context, sessionID, diagnostic string) {
	logging.Logger.Error("Session failed", "session_id", sessionID, "diagnostic", diagnostic)
	if err := s.repo.UpdateStatus(ctx, sessionID, domain.StatusError, diagnostic); err != nil {
		logging.Logger.Error("Failed to record session error",
			"session_id", sessionID, "error", err)
	}
}

// jsonString quotes s as a JSON string literal.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

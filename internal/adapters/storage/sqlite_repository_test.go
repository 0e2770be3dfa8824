package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "maestro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSession(id string) domain.Session {
	return domain.Session{
		ID:           id,
		DisplayName:  "test " + id,
		WorktreePath: "/tmp/worktrees/" + id,
		BranchName:   "maestro/" + id,
		Status:       domain.StatusInitializing,
	}
}

func TestAddAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "test s1", got.DisplayName)
	assert.Equal(t, domain.StatusInitializing, got.Status)
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAdd_DuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))
	err := repo.Add(ctx, testSession("s1"))

	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestAdd_WorktreeUniqueAcrossLiveSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s1 := testSession("s1")
	require.NoError(t, repo.Add(ctx, s1))

	s2 := testSession("s2")
	s2.WorktreePath = s1.WorktreePath
	err := repo.Add(ctx, s2)
	assert.ErrorIs(t, err, domain.ErrWorktreeInUse)

	// Archiving s1 releases the path
	require.NoError(t, repo.SetArchived(ctx, "s1", true))
	assert.NoError(t, repo.Add(ctx, s2))
}

func TestList_ExcludesArchivedByDefault(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))
	require.NoError(t, repo.Add(ctx, testSession("s2")))
	require.NoError(t, repo.SetArchived(ctx, "s1", true))

	active, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].ID)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))
	require.NoError(t, repo.UpdateStatus(ctx, "s1", domain.StatusError, "spawn failed: no such binary"))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "spawn failed: no such binary", got.LastError)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusRunning, "")

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestToggleFavorite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))

	require.NoError(t, repo.ToggleFavorite(ctx, "s1"))
	got, _ := repo.Get(ctx, "s1")
	assert.True(t, got.IsFavorite)

	require.NoError(t, repo.ToggleFavorite(ctx, "s1"))
	got, _ = repo.Get(ctx, "s1")
	assert.False(t, got.IsFavorite)
}

func TestDelete_CascadesDependentRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, testSession("s1")))
	require.NoError(t, repo.AppendNext(ctx, domain.OutputRecord{
		SessionID: "s1", Seq: 0, Kind: domain.KindStdout, Payload: []byte("hello"),
	}))
	require.NoError(t, repo.SaveMessage(ctx, domain.ConversationMessage{
		SessionID: "s1", Seq: 0, Role: domain.RoleUser, Text: "hi",
	}))
	require.NoError(t, repo.SaveMarker(ctx, domain.PromptMarker{SessionID: "s1", StartSeq: 0, Prompt: "hi"}))
	require.NoError(t, repo.SaveDiff(ctx, domain.ExecutionDiff{SessionID: "s1", Seq: 0, Summary: "1 file changed"}))

	require.NoError(t, repo.Delete(ctx, "s1"))

	records, err := repo.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, records)

	msgs, err := repo.Messages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	markers, err := repo.Markers(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, markers)

	diffs, err := repo.Diffs(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

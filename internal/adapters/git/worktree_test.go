package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"maestro/internal/domain"
)

// setupTestRepo creates a git repo with initial commit for testing
func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	runGit := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=Test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v failed: %s", args, out)
	}

	runGit("init", "-b", "main")
	runGit("config", "user.email", "test@test.com")
	runGit("config", "user.name", "Test")

	// Create initial commit
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("# Test"), 0644))
	runGit("add", "README.md")
	runGit("commit", "-m", "Initial commit")

	return dir
}

// gitIn runs a git command in dir, failing the test on error
func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestCreateWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")

	err := createWorktree(context.Background(), repoPath, worktreePath, "maestro/session-1")

	require.NoError(t, err)
	assert.DirExists(t, worktreePath)
	assert.Equal(t, "maestro/session-1", getBranchName(worktreePath))
}

func TestCreateWorktree_EmptyRepoGetsBootstrapCommit(t *testing.T) {
	dir := t.TempDir()
	gitIn(t, dir, "init", "-b", "main")
	gitIn(t, dir, "config", "user.email", "test@test.com")
	gitIn(t, dir, "config", "user.name", "Test")
	require.False(t, hasCommits(dir))

	worktreePath := filepath.Join(t.TempDir(), "session-1")
	err := createWorktree(context.Background(), dir, worktreePath, "maestro/session-1")

	require.NoError(t, err)
	assert.True(t, hasCommits(dir))
	assert.DirExists(t, worktreePath)
}

func TestCreateWorktree_InvalidBranchName(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")

	err := createWorktree(context.Background(), repoPath, worktreePath, "bad..name")

	assert.Error(t, err)
	assert.NoDirExists(t, worktreePath)
}

func TestCreateWorktree_ManyConcurrentSessions(t *testing.T) {
	repoPath := setupTestRepo(t)
	base := t.TempDir()
	ctx := context.Background()

	var g errgroup.Group
	g.SetLimit(8)
	const n = 50
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			name := fmt.Sprintf("session-%02d", i)
			return createWorktree(ctx, repoPath, filepath.Join(base, name), "maestro/"+name)
		})
	}
	require.NoError(t, g.Wait())

	paths, err := listWorktrees(repoPath)
	require.NoError(t, err)
	assert.Len(t, paths, n)

	// Every worktree is a distinct directory on its own branch
	seen := make(map[string]bool)
	for _, p := range paths {
		branch := getBranchName(p)
		assert.False(t, seen[branch], "branch %s appears twice", branch)
		seen[branch] = true
	}
}

func TestRemoveWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/session-1"))

	require.NoError(t, removeWorktree(repoPath, worktreePath))

	assert.NoDirExists(t, worktreePath)
	paths, err := listWorktrees(repoPath)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRemoveWorktree_AlreadyGone(t *testing.T) {
	repoPath := setupTestRepo(t)

	err := removeWorktree(repoPath, filepath.Join(t.TempDir(), "never-existed"))

	assert.NoError(t, err)
}

func TestListWorktrees_ExcludesMainCheckout(t *testing.T) {
	repoPath := setupTestRepo(t)

	paths, err := listWorktrees(repoPath)

	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /repos/main
HEAD abc123
branch refs/heads/main

worktree /worktrees/session-1
HEAD def456
branch refs/heads/maestro/session-1
`

	worktrees := parseWorktreeList(output)

	require.Len(t, worktrees, 2)
	assert.Equal(t, "/repos/main", worktrees[0].path)
	assert.Equal(t, "refs/heads/maestro/session-1", worktrees[1].branch)
}

func TestBuildWorktreePath(t *testing.T) {
	tests := []struct {
		name    string
		session string
		want    string
	}{
		{"plain", "fix-auth", filepath.Join("/base", "fix-auth")},
		{"slashes stripped", "a/b", filepath.Join("/base", "ab")},
		{"dotdot collapsed", "..evil", filepath.Join("/base", ".evil")},
		{"empty falls back", "", filepath.Join("/base", "session")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildWorktreePath("/base", tt.session))
		})
	}
}

func TestIsGitRepo(t *testing.T) {
	repoPath := setupTestRepo(t)

	ok, root := isGitRepo(repoPath)
	require.True(t, ok)
	assert.Equal(t, evalSymlinks(t, repoPath), evalSymlinks(t, root))

	ok, _ = isGitRepo(t.TempDir())
	assert.False(t, ok)
}

func TestGetMainRepoPath_FromWorktree(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/session-1"))

	mainPath, err := getMainRepoPath(worktreePath)

	require.NoError(t, err)
	assert.Equal(t, evalSymlinks(t, repoPath), evalSymlinks(t, mainPath))
}

func TestCreateWorktree_PathAlreadyTaken(t *testing.T) {
	repoPath := setupTestRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, createWorktree(context.Background(), repoPath, worktreePath, "maestro/session-1"))

	err := createWorktree(context.Background(), repoPath, worktreePath, "maestro/session-2")

	assert.ErrorIs(t, err, domain.ErrWorktreeCreation)
}

// evalSymlinks normalizes paths; t.TempDir is a symlink on macOS
func evalSymlinks(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepoWithCommit initialises a repository on disk with one commit on
// the given branch.
func setupRepoWithCommit(t *testing.T, branch, message string) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()

	r, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to init repository")

	require.NoError(t, r.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch)),
	))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("robot"), 0o644))
	wt, err := r.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "CI", Email: "ci@example.com", When: time.Now()},
	})
	require.NoError(t, err, "failed to commit")
	return dir, hash
}

func TestRepo_HeadInfo(t *testing.T) {
	dir, hash := setupRepoWithCommit(t, "feature/lidar", "Tune lidar filter\n\nLonger body text.")

	r, err := Open(dir)
	require.NoError(t, err)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature/lidar", branch)

	sha, err := r.HeadSHA()
	require.NoError(t, err)
	assert.Equal(t, hash.String(), sha)

	subject, err := r.HeadSubject()
	require.NoError(t, err)
	assert.Equal(t, "Tune lidar filter", subject)
}

func TestRepo_OpenFromSubdirectory(t *testing.T) {
	dir, _ := setupRepoWithCommit(t, "main", "init")
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Open(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, r.Path())

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestRepo_DetachedHead(t *testing.T) {
	dir, hash := setupRepoWithCommit(t, "main", "init")

	raw, err := git.PlainOpen(dir)
	require.NoError(t, err)
	require.NoError(t, raw.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)))

	r, err := Open(dir)
	require.NoError(t, err)
	_, err = r.CurrentBranch()
	assert.ErrorIs(t, err, ErrDetachedHead)

	sha, err := r.HeadSHA()
	require.NoError(t, err)
	assert.Equal(t, hash.String(), sha)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

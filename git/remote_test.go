package git

import (
	"context"
	"os/exec"
	"testing"

	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRemote creates a bare repository on disk seeded with one commit and
// returns its URL together with the seeding clone.
func setupRemote(t *testing.T) (string, *testRepo) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	_, err := Init(context.Background(), &Options{FS: fsb.NewOSFS(dir), Bare: true})
	require.NoError(t, err)
	url := "file://" + dir

	tr := setupTestRepo(t)
	require.NoError(t, tr.repo.SetRemote(tr.ctx, "", url))
	tr.write(t, "base.txt", "base")
	tr.write(t, "shared.txt", "shared")
	tr.commitAll(t, "seed")
	require.NoError(t, tr.repo.Push(tr.ctx, "", false))
	return url, tr
}

func cloneRemote(t *testing.T, url string) *testRepo {
	t.Helper()
	ctx := context.Background()
	memFS := fsb.NewInMemoryFS()
	repo, err := Clone(ctx, url, &Options{FS: memFS})
	require.NoError(t, err)
	return &testRepo{repo: repo, fs: memFS, ctx: ctx}
}

func TestClone_EmptyRemote(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := t.TempDir()
	_, err := Init(context.Background(), &Options{FS: fsb.NewOSFS(dir), Bare: true})
	require.NoError(t, err)

	_, err = Clone(context.Background(), "file://"+dir, &Options{FS: fsb.NewInMemoryFS()})
	assert.ErrorIs(t, err, ErrEmptyRemote)
}

func TestFetchAndPull(t *testing.T) {
	url, a := setupRemote(t)
	b := cloneRemote(t, url)
	assert.Equal(t, "base", b.read(t, "base.txt"))

	assert.ErrorIs(t, b.repo.Fetch(b.ctx, "", false, 0), ErrAlreadyUpToDate)
	assert.ErrorIs(t, b.repo.PullFFOnly(b.ctx, ""), ErrAlreadyUpToDate)

	a.write(t, "base.txt", "changed")
	a.commitAll(t, "change")
	require.NoError(t, a.repo.Push(a.ctx, "", false))
	assert.ErrorIs(t, a.repo.Push(a.ctx, "", false), ErrAlreadyUpToDate)

	require.NoError(t, b.repo.PullFFOnly(b.ctx, ""))
	assert.Equal(t, "changed", b.read(t, "base.txt"))
}

func TestRebase_ReplaysLocalChanges(t *testing.T) {
	url, a := setupRemote(t)
	b := cloneRemote(t, url)

	a.write(t, "a.txt", "from a")
	a.commitAll(t, "a")
	require.NoError(t, a.repo.Push(a.ctx, "", false))

	b.write(t, "b.txt", "from b")
	require.NoError(t, b.repo.RemoveFile(b.ctx, "shared.txt"))
	b.commitAll(t, "b")

	assert.ErrorIs(t, b.repo.PullFFOnly(b.ctx, ""), ErrNotFastForward)
	assert.ErrorIs(t, b.repo.Push(b.ctx, "", false), ErrNotFastForward)

	paths, err := b.repo.Rebase(b.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "shared.txt"}, paths)
	assert.Equal(t, "from a", b.read(t, "a.txt"))
	assert.Equal(t, "from b", b.read(t, "b.txt"))
	_, err = b.repo.OpenFile(b.ctx, "shared.txt")
	assert.Error(t, err)

	_, err = b.repo.Commit(b.ctx, "rebased", testSignature(), CommitOpts{})
	require.NoError(t, err)
	changed, err := b.repo.HasChanges(b.ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, b.repo.Push(b.ctx, "", false))

	require.NoError(t, a.repo.PullFFOnly(a.ctx, ""))
	assert.Equal(t, "from b", a.read(t, "b.txt"))
}

func TestRebase_Conflict(t *testing.T) {
	url, a := setupRemote(t)
	b := cloneRemote(t, url)

	a.write(t, "shared.txt", "from a")
	a.commitAll(t, "a")
	require.NoError(t, a.repo.Push(a.ctx, "", false))

	b.write(t, "shared.txt", "from b")
	b.commitAll(t, "b")

	_, err := b.repo.Rebase(b.ctx, "")
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "shared.txt")
	assert.Equal(t, "from b", b.read(t, "shared.txt"))
}

func TestRebase_NothingToReplay(t *testing.T) {
	url, _ := setupRemote(t)
	b := cloneRemote(t, url)

	paths, err := b.repo.Rebase(b.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, paths, "equal histories")

	b.write(t, "b.txt", "ahead")
	b.commitAll(t, "b")
	paths, err = b.repo.Rebase(b.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, paths, "local branch ahead of remote")
	assert.Equal(t, "ahead", b.read(t, "b.txt"))
}

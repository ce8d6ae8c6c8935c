package git

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepo is a helper struct that contains a test repository and its filesystem
type testRepo struct {
	repo *Repo
	fs   fs.Filesystem
	ctx  context.Context
}

// setupTestRepo creates a new test repository with an in-memory filesystem
func setupTestRepo(t *testing.T) *testRepo {
	t.Helper()

	ctx := context.Background()
	memFS := fsb.NewInMemoryFS()

	repo, err := Init(ctx, &Options{FS: memFS})
	require.NoError(t, err, "failed to initialize test repository")

	return &testRepo{repo: repo, fs: memFS, ctx: ctx}
}

func testSignature() Signature {
	return Signature{Name: "Sync Bot", Email: "sync@example.com", When: time.Now()}
}

func (tr *testRepo) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, tr.repo.WriteFile(tr.ctx, path, strings.NewReader(content)))
}

func (tr *testRepo) read(t *testing.T, path string) string {
	t.Helper()
	rc, err := tr.repo.OpenFile(tr.ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (tr *testRepo) commitAll(t *testing.T, msg string) string {
	t.Helper()
	_, err := tr.repo.StageAll(tr.ctx)
	require.NoError(t, err)
	sha, err := tr.repo.Commit(tr.ctx, msg, testSignature(), CommitOpts{})
	require.NoError(t, err)
	return sha
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{FS: fsb.NewInMemoryFS()}, false},
		{"missing fs", Options{}, true},
		{"negative cache", Options{FS: fsb.NewInMemoryFS(), StorerCacheSize: -1}, true},
		{"negative depth", Options{FS: fsb.NewInMemoryFS(), ShallowDepth: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitAndOpen(t *testing.T) {
	ctx := context.Background()
	memFS := fsb.NewInMemoryFS()

	_, err := Open(ctx, &Options{FS: memFS})
	assert.ErrorIs(t, err, ErrNotRepository)

	_, err = Init(ctx, &Options{FS: memFS})
	require.NoError(t, err)

	repo, err := Open(ctx, &Options{FS: memFS})
	require.NoError(t, err)
	assert.NotNil(t, repo.worktree)

	_, err = Init(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestClone_EmptyURL(t *testing.T) {
	_, err := Clone(context.Background(), "", &Options{FS: fsb.NewInMemoryFS()})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestRemotes(t *testing.T) {
	tr := setupTestRepo(t)

	assert.False(t, tr.repo.HasRemote(""))
	_, err := tr.repo.RemoteURL("origin")
	assert.ErrorIs(t, err, ErrRemoteMissing)

	require.NoError(t, tr.repo.SetRemote(tr.ctx, "", "https://example.com/a.git"))
	url, err := tr.repo.RemoteURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.git", url)

	require.NoError(t, tr.repo.SetRemote(tr.ctx, "origin", "https://example.com/b.git"))
	url, err = tr.repo.RemoteURL("origin")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.git", url, "SetRemote replaces the URL")

	assert.ErrorIs(t, tr.repo.SetRemote(tr.ctx, "origin", ""), ErrInvalidRef)
}

func TestFiles(t *testing.T) {
	tr := setupTestRepo(t)

	tr.write(t, "per-user/options/editor.xml", "<editor/>")
	assert.Equal(t, "<editor/>", tr.read(t, "per-user/options/editor.xml"))

	tr.write(t, "per-user/options/editor.xml", "<x/>")
	assert.Equal(t, "<x/>", tr.read(t, "per-user/options/editor.xml"), "WriteFile truncates")

	names, err := tr.repo.ListDir(tr.ctx, "per-user/options")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor.xml"}, names)

	names, err = tr.repo.ListDir(tr.ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, names)

	names, err = tr.repo.ListDir(tr.ctx, "per-user/options/editor.xml")
	require.NoError(t, err)
	assert.Empty(t, names, "a file has no entries")

	_, err = tr.repo.OpenFile(tr.ctx, "per-user/options")
	assert.ErrorIs(t, err, os.ErrNotExist, "directories are not files")

	require.NoError(t, tr.repo.RemoveFile(tr.ctx, "per-user/options/editor.xml"))
	require.NoError(t, tr.repo.RemoveFile(tr.ctx, "per-user/options/editor.xml"), "removing twice is fine")

	_, err = tr.repo.OpenFile(tr.ctx, "per-user/options/editor.xml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFiles_RejectGitDir(t *testing.T) {
	tr := setupTestRepo(t)

	for _, p := range []string{"", ".git", ".git/config", "/.git/HEAD", "a/../.git/config"} {
		_, err := tr.repo.OpenFile(tr.ctx, p)
		assert.ErrorIs(t, err, ErrInvalidRef, p)
		assert.ErrorIs(t, tr.repo.WriteFile(tr.ctx, p, strings.NewReader("x")), ErrInvalidRef, p)
	}

	names, err := tr.repo.ListDir(tr.ctx, ".")
	require.NoError(t, err)
	assert.NotContains(t, names, ".git")
}

func TestStageAllAndCommit(t *testing.T) {
	tr := setupTestRepo(t)

	_, err := tr.repo.Commit(tr.ctx, "empty", testSignature(), CommitOpts{})
	assert.ErrorIs(t, err, ErrEmptyCommit)

	tr.write(t, "a.xml", "a")
	tr.write(t, "dir/b.xml", "b")

	changed, err := tr.repo.HasChanges(tr.ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	staged, err := tr.repo.StageAll(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml", "dir/b.xml"}, staged)

	first, err := tr.repo.Commit(tr.ctx, "first", testSignature(), CommitOpts{})
	require.NoError(t, err)
	assert.Len(t, first, 40)

	changed, err = tr.repo.HasChanges(tr.ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	// deletions are staged too
	require.NoError(t, tr.repo.RemoveFile(tr.ctx, "a.xml"))
	staged, err = tr.repo.StageAll(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml"}, staged)
	tr.commitAll(t, "second")

	head, err := tr.repo.repo.Head()
	require.NoError(t, err)
	commit, err := tr.repo.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	_, err = commit.File("a.xml")
	assert.Error(t, err, "a.xml must be gone from the second commit")
	_, err = commit.File("dir/b.xml")
	assert.NoError(t, err)
}

func TestCommit_Validation(t *testing.T) {
	tr := setupTestRepo(t)

	_, err := tr.repo.Commit(tr.ctx, "", testSignature(), CommitOpts{})
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = tr.repo.Commit(tr.ctx, "msg", Signature{Name: "x"}, CommitOpts{})
	assert.ErrorIs(t, err, ErrInvalidRef)

	sha, err := tr.repo.Commit(tr.ctx, "allowed", testSignature(), CommitOpts{AllowEmpty: true})
	require.NoError(t, err)
	assert.NotEmpty(t, sha)
}

func TestAddAndRemove(t *testing.T) {
	tr := setupTestRepo(t)

	tr.write(t, "a.xml", "a")
	require.NoError(t, tr.repo.Add(tr.ctx, "a.xml", "missing.xml", ""))
	_, err := tr.repo.Commit(tr.ctx, "add", testSignature(), CommitOpts{})
	require.NoError(t, err)

	require.NoError(t, tr.repo.Remove(tr.ctx, "a.xml", "untracked.xml"))
	exists, err := tr.fs.Exists("a.xml")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogAndHead(t *testing.T) {
	tr := setupTestRepo(t)

	head, err := tr.repo.Head(tr.ctx)
	require.NoError(t, err)
	assert.Empty(t, head, "unborn HEAD")

	commits, err := tr.repo.Log(tr.ctx, LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, commits)

	tr.write(t, "per-user/a.xml", "1")
	tr.commitAll(t, "one")
	tr.write(t, "global/b.xml", "2")
	tr.commitAll(t, "two")
	tr.write(t, "per-user/a.xml", "3")
	last := tr.commitAll(t, "three")

	head, err = tr.repo.Head(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, last, head)

	commits, err = tr.repo.Log(tr.ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, "three", commits[0].Message)
	assert.Equal(t, "Sync Bot", commits[0].Author.Name)

	commits, err = tr.repo.Log(tr.ctx, LogFilter{MaxCount: 2})
	require.NoError(t, err)
	assert.Len(t, commits, 2)

	commits, err = tr.repo.Log(tr.ctx, LogFilter{Path: []string{"global/"}})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "two", commits[0].Message)
}

func TestSync_RequiresRemote(t *testing.T) {
	tr := setupTestRepo(t)
	tr.repo.options.Auth = NewAuth(Credentials{Token: "t"})

	assert.ErrorIs(t, tr.repo.PullFFOnly(tr.ctx, ""), ErrRemoteMissing)
	assert.ErrorIs(t, tr.repo.Push(tr.ctx, "", false), ErrRemoteMissing)
	assert.ErrorIs(t, tr.repo.Fetch(tr.ctx, "", false, 0), ErrRemoteMissing)
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"up to date", gogit.NoErrAlreadyUpToDate, ErrAlreadyUpToDate},
		{"empty remote", transport.ErrEmptyRemoteRepository, ErrEmptyRemote},
		{"non fast forward", gogit.ErrNonFastForwardUpdate, ErrNotFastForward},
		{"non fast forward text", errors.New("failed to push some refs: non-fast-forward update"), ErrNotFastForward},
		{"auth required", transport.ErrAuthenticationRequired, ErrAuthRequired},
		{"auth failed", transport.ErrAuthorizationFailed, ErrAuthFailed},
		{"repository not found", transport.ErrRepositoryNotFound, ErrResolveFailed},
		{"other", errors.New("connection reset by peer"), ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyTransportError(tt.in, "op"), tt.want)
		})
	}

	assert.NoError(t, classifyTransportError(nil, "op"))
}

func TestNewAuth(t *testing.T) {
	assert.Nil(t, NewAuth(Credentials{}))
	assert.NotNil(t, NewAuth(Credentials{Token: "t"}))

	scheme, err := RemoteScheme("git@github.com:me/settings.git")
	require.NoError(t, err)
	assert.Equal(t, "ssh", scheme)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx"))
	assert.Nil(t, WrapErrorf(nil, "ctx %d", 1))

	err := WrapErrorf(ErrEmptyRemote, "pull %s", "origin")
	assert.ErrorIs(t, err, ErrEmptyRemote)
	assert.Equal(t, "pull origin: remote repository is empty", err.Error())
}

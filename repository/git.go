package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/git"
)

// Config describes where the settings repository lives and how it reaches
// its remote.
type Config struct {
	// FS is the root of the local clone.
	FS fs.Filesystem

	// RemoteURL is the upstream repository. Empty means local-only.
	RemoteURL string

	// RemoteName defaults to "origin".
	RemoteName string

	// AuthorName and AuthorEmail sign every commit.
	AuthorName  string
	AuthorEmail string

	// Credentials authenticate against RemoteURL.
	Credentials git.Credentials
}

func (c *Config) applyDefaults() {
	if c.RemoteName == "" {
		c.RemoteName = git.DefaultRemoteName
	}
	if c.AuthorName == "" {
		c.AuthorName = "settingsync"
	}
	if c.AuthorEmail == "" {
		c.AuthorEmail = "settingsync@localhost"
	}
}

func (c *Config) gitOptions() *git.Options {
	return &git.Options{
		FS:   c.FS,
		Auth: git.NewAuth(c.Credentials),
	}
}

// queued is a worktree mutation processed by the writer goroutine.
type queued struct {
	apply func() error
	done  chan error
}

// GitManager is a Manager backed by a git clone.
//
// Writes and deletes pass through a single writer goroutine in submission
// order. Commit waits for that queue to drain, so a commit always contains
// every change enqueued before it. All repository access is serialized.
type GitManager struct {
	cfg    Config
	repo   *git.Repo
	logger *slog.Logger
	opts   *managerOptions

	mu sync.Mutex // guards repo

	qmu    sync.RWMutex
	closed bool
	queue  chan queued
	wg     sync.WaitGroup
}

var _ Manager = (*GitManager)(nil)

// OpenOrInit opens the clone in cfg.FS. When there is none, it clones
// cfg.RemoteURL, or initializes an empty repository when no remote is set
// or the remote has no commits. The configured remote URL always replaces a
// stale one.
func OpenOrInit(ctx context.Context, cfg Config, opts ...Option) (*GitManager, error) {
	const op = "repository.open"

	if cfg.FS == nil {
		return nil, errors.New(errors.CodeInvalidConfig, op, "filesystem is required")
	}
	cfg.applyDefaults()

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.log().With(slog.String("component", "repository"))

	repo, err := git.Open(ctx, cfg.gitOptions())
	if errors.Is(err, git.ErrNotRepository) {
		repo, err = create(ctx, cfg, logger)
	}
	if err != nil {
		return nil, classify(ctx, err, errors.CodeConnection, op)
	}

	if cfg.RemoteURL != "" {
		current, _ := repo.RemoteURL(cfg.RemoteName)
		if current != cfg.RemoteURL {
			if err := repo.SetRemote(ctx, cfg.RemoteName, cfg.RemoteURL); err != nil {
				return nil, errors.Wrap(err, errors.CodeConnection, op)
			}
			logger.Info("remote configured",
				slog.String("remote", cfg.RemoteName),
				slog.String("url", redact(cfg.RemoteURL)))
		}
	}

	m := &GitManager{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		opts:   o,
		queue:  make(chan queued, o.queueSize),
	}
	m.wg.Add(1)
	go m.writer()

	return m, nil
}

func create(ctx context.Context, cfg Config, logger *slog.Logger) (*git.Repo, error) {
	if cfg.RemoteURL == "" {
		logger.Info("initializing local settings repository")
		return git.Init(ctx, cfg.gitOptions())
	}

	logger.Info("cloning settings repository", slog.String("url", redact(cfg.RemoteURL)))
	repo, err := git.Clone(ctx, cfg.RemoteURL, cfg.gitOptions())
	if !errors.Is(err, git.ErrEmptyRemote) {
		return repo, err
	}

	// An empty remote leaves a partially initialized clone behind.
	logger.Info("remote is empty, starting a new history")
	repo, err = git.Open(ctx, cfg.gitOptions())
	if errors.Is(err, git.ErrNotRepository) {
		repo, err = git.Init(ctx, cfg.gitOptions())
	}
	return repo, err
}

func (m *GitManager) writer() {
	defer m.wg.Done()
	for q := range m.queue {
		err := q.apply()
		if q.done != nil {
			q.done <- err
			continue
		}
		if err != nil {
			m.logger.Error("queued write failed", slog.String("error", err.Error()))
		}
	}
}

// enqueue submits fn to the writer. With wait set it returns fn's error.
func (m *GitManager) enqueue(fn func() error, wait bool) error {
	q := queued{apply: fn}
	if wait {
		q.done = make(chan error, 1)
	}

	m.qmu.RLock()
	if m.closed {
		m.qmu.RUnlock()
		return errors.New(errors.CodeNotConnected, "repository.write", "manager is closed")
	}
	m.queue <- q
	m.qmu.RUnlock()

	if !wait {
		return nil
	}
	return <-q.done
}

// drain waits until every queued mutation submitted before the call is applied.
func (m *GitManager) drain() error {
	return m.enqueue(func() error { return nil }, true)
}

func (m *GitManager) locked(fn func() error) func() error {
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return fn()
	}
}

func validPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return errors.New(errors.CodeInvalidInput, "repository", "invalid repository path %q", p)
	}
	return nil
}

// Read implements Manager. It observes every write enqueued before the call.
func (m *GitManager) Read(p string) (io.ReadCloser, bool, error) {
	if err := validPath(p); err != nil {
		return nil, false, err
	}
	if err := m.drain(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rc, err := m.repo.OpenFile(context.Background(), p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, errors.CodeInternal, "repository.read")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeInternal, "repository.read")
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

// Write implements Manager.
func (m *GitManager) Write(p string, content io.Reader, size int64, async bool) error {
	const op = "repository.write"

	if err := validPath(p); err != nil {
		return err
	}
	if content == nil {
		return errors.New(errors.CodeInvalidInput, op, "content is required")
	}

	var buf bytes.Buffer
	if size >= 0 {
		if _, err := io.CopyN(&buf, content, size); err != nil {
			return errors.Wrap(err, errors.CodeInvalidInput, op)
		}
	} else if _, err := buf.ReadFrom(content); err != nil {
		return errors.Wrap(err, errors.CodeInternal, op)
	}

	err := m.enqueue(m.locked(func() error {
		return m.repo.WriteFile(context.Background(), p, &buf)
	}), !async)
	return errors.Wrap(err, errors.CodeInternal, op)
}

// DeleteAsync implements Manager.
func (m *GitManager) DeleteAsync(p string) error {
	if err := validPath(p); err != nil {
		return err
	}
	return m.enqueue(m.locked(func() error {
		return m.repo.RemoveFile(context.Background(), p)
	}), false)
}

// ListSubFileNames implements Manager.
func (m *GitManager) ListSubFileNames(prefix string) ([]string, error) {
	if err := m.drain(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.repo.ListDir(context.Background(), strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "repository.list")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Commit implements Manager.
func (m *GitManager) Commit(ctx context.Context) *Pending {
	return Go(func() error {
		_, err := m.commit(ctx)
		return err
	})
}

func (m *GitManager) commit(ctx context.Context) (string, error) {
	if err := m.drain(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked(ctx)
}

func (m *GitManager) commitLocked(ctx context.Context) (string, error) {
	const op = "repository.commit"

	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.CodeCancelled, op)
	}

	dirty, err := m.repo.HasChanges(ctx)
	if err != nil {
		return "", classify(ctx, err, errors.CodeCommit, op)
	}
	if !dirty {
		m.logger.Debug("nothing to commit")
		return "", nil
	}

	staged, err := m.repo.StageAll(ctx)
	if err != nil {
		return "", classify(ctx, err, errors.CodeCommit, op)
	}
	if len(staged) == 0 {
		m.logger.Debug("nothing to commit")
		return "", nil
	}

	sha, err := m.repo.Commit(ctx, commitMessage(staged), m.signature(), git.CommitOpts{})
	if errors.Is(err, git.ErrEmptyCommit) {
		return "", nil
	}
	if err != nil {
		return "", classify(ctx, err, errors.CodeCommit, op)
	}

	m.logger.Info("committed settings",
		slog.String("revision", sha),
		slog.Int("files", len(staged)))
	return sha, nil
}

func (m *GitManager) signature() git.Signature {
	return git.Signature{Name: m.cfg.AuthorName, Email: m.cfg.AuthorEmail, When: m.opts.now()}
}

// commitMessage renders a conventional commit listing the changed paths.
func commitMessage(paths []string) string {
	noun := "files"
	if len(paths) == 1 {
		noun = "file"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s): sync %d %s\n\n", CommitType, CommitScope, len(paths), noun)
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Pull implements Manager. Uncommitted changes are committed first. When
// the histories have diverged, the local changes are rebased file by file
// onto the remote branch; a path changed on both sides is a conflict.
func (m *GitManager) Pull(ctx context.Context) error {
	const op = "repository.pull"

	if !m.hasRemote() {
		return nil
	}
	if err := m.drain(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.commitLocked(ctx); err != nil {
		return err
	}

	err := m.repo.PullFFOnly(ctx, m.cfg.RemoteName)
	switch {
	case err == nil:
		m.logger.Info("pulled remote changes")
		return nil
	case errors.Is(err, git.ErrAlreadyUpToDate), errors.Is(err, git.ErrEmptyRemote):
		return nil
	case errors.Is(err, git.ErrNotFastForward):
		return m.rebaseLocked(ctx)
	default:
		return classify(ctx, err, errors.CodeSync, op)
	}
}

func (m *GitManager) rebaseLocked(ctx context.Context) error {
	const op = "repository.rebase"

	paths, err := m.repo.Rebase(ctx, m.cfg.RemoteName)
	if err != nil {
		return classify(ctx, err, errors.CodeSync, op)
	}
	if len(paths) == 0 {
		m.logger.Info("pulled remote changes")
		return nil
	}

	sha, err := m.repo.Commit(ctx, commitMessage(paths), m.signature(), git.CommitOpts{})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return classify(ctx, err, errors.CodeSync, op)
	}

	m.logger.Info("rebased local changes onto remote",
		slog.String("revision", sha),
		slog.Int("files", len(paths)))
	return nil
}

// Push implements Manager.
func (m *GitManager) Push(ctx context.Context) *Pending {
	if !m.hasRemote() {
		return Resolved(nil)
	}
	return Go(func() error {
		const op = "repository.push"

		m.mu.Lock()
		defer m.mu.Unlock()

		head, err := m.repo.Head(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CodeSync, op)
		}
		if head == "" {
			return nil
		}

		err = m.repo.Push(ctx, m.cfg.RemoteName, false)
		switch {
		case err == nil:
			m.logger.Info("pushed settings", slog.String("revision", head))
			return nil
		case errors.Is(err, git.ErrAlreadyUpToDate):
			return nil
		default:
			return classify(ctx, err, errors.CodeSync, op)
		}
	})
}

// UpdateRepository implements Manager. Without a remote there is nothing to update.
func (m *GitManager) UpdateRepository(ctx context.Context) error {
	if err := m.Pull(ctx); err != nil {
		return errors.Wrap(err, errors.CodeUpdate, "repository.update")
	}
	return nil
}

func (m *GitManager) hasRemote() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.HasRemote(m.cfg.RemoteName)
}

// Close stops the writer after it has applied every queued change.
func (m *GitManager) Close() error {
	m.qmu.Lock()
	if m.closed {
		m.qmu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.qmu.Unlock()

	m.wg.Wait()
	return nil
}

// classify maps facade errors onto the engine's error codes. Conflicts and
// cancellation keep their own codes; everything else gets fallback.
func classify(ctx context.Context, err error, fallback errors.ErrorCode, op string) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeCancelled, op)
	case errors.Is(err, git.ErrConflict), errors.Is(err, git.ErrNotFastForward):
		return errors.Wrap(errors.Wrap(err, errors.CodeConflict, op), fallback, op)
	case errors.Is(err, git.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.Wrap(err, errors.CodeNetwork, op), fallback, op)
	case errors.Is(err, git.ErrAuthRequired), errors.Is(err, git.ErrAuthFailed):
		return errors.Wrap(errors.Wrap(err, errors.CodeConnection, op), fallback, op)
	default:
		return errors.Wrap(err, fallback, op)
	}
}

// redact strips userinfo from a remote URL before it is logged.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.Index(rest, "@"); at >= 0 {
		if slash := strings.Index(rest, "/"); slash < 0 || at < slash {
			return scheme + "://***@" + rest[at+1:]
		}
	}
	return url
}

// Package engine ties the settings repository, the status tracker and the
// commit debouncer together into the synchronization engine.
//
// An Orchestrator is constructed once at process start and handed to every
// collaborator that needs it. Connect opens the repository and drives the
// status state machine; bridges obtained from the orchestrator route host
// storage calls into the repository; SyncNow runs the blocking
// commit, pull and push sequence on demand.
package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/bridge"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/debounce"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/settings"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/status"
)

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the orchestrator and the components it owns.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Orchestrator is the synchronization engine.
type Orchestrator struct {
	open     Opener
	host     Host
	settings func() *settings.Settings
	logger   *slog.Logger
	base     *slog.Logger

	tracker *status.Tracker
	commits *debounce.Debouncer
	syncing *semaphore.Weighted

	mu      sync.RWMutex
	current *lease
}

// New creates a disconnected orchestrator. current is consulted whenever a
// setting is needed, so reloaded settings apply to the next decision.
func New(open Opener, host Host, current func() *settings.Settings, opts ...Option) (*Orchestrator, error) {
	const op = "engine.new"
	if open == nil {
		return nil, errors.New(errors.CodeInvalidInput, op, "opener is required")
	}
	if current == nil {
		return nil, errors.New(errors.CodeInvalidInput, op, "settings source is required")
	}
	if host == nil {
		host = NopHost{}
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	base := o.logger
	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Orchestrator{
		open:     open,
		host:     host,
		settings: current,
		logger:   base.With(slog.String("component", "engine")),
		base:     base,
		tracker:  status.NewTracker(),
		syncing:  semaphore.NewWeighted(1),
	}
	e.commits = debounce.New(e.commit, e.commitDelay,
		debounce.WithLogger(base),
		debounce.WithName("commit-debouncer"))
	return e, nil
}

func (e *Orchestrator) commitDelay() time.Duration {
	return e.settings().CommitDelay.Duration
}

// commit is the debounced action.
func (e *Orchestrator) commit(ctx context.Context) error {
	l := e.acquire()
	if l == nil {
		return nil
	}
	defer e.release(l)

	if !e.Enabled() {
		return nil
	}
	return l.manager.Commit(ctx).Wait(ctx)
}

// Status returns the current engine status.
func (e *Orchestrator) Status() status.Status {
	return e.tracker.Get()
}

// Subscribe registers a listener for status changes.
func (e *Orchestrator) Subscribe(l status.Listener) (unsubscribe func()) {
	return e.tracker.Subscribe(l)
}

// Enabled reports whether sharing is active.
func (e *Orchestrator) Enabled() bool {
	return e.tracker.Get() == status.Opened && e.Manager() != nil
}

// Manager returns the current repository manager, or nil before the first
// successful open and after Close.
func (e *Orchestrator) Manager() repository.Manager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil
	}
	return e.current.manager
}

// acquire pins the current manager for the duration of an operation. A
// reconnect meanwhile leaves the pinned manager open until release.
func (e *Orchestrator) acquire() *lease {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current != nil {
		e.current.acquire()
	}
	return e.current
}

func (e *Orchestrator) release(l *lease) {
	if err := l.release(); err != nil {
		e.logger.Warn("closing previous repository failed", slog.String("error", err.Error()))
	}
}

// swap replaces the manager and retires the previous one.
func (e *Orchestrator) swap(m repository.Manager) {
	e.mu.Lock()
	old := e.current
	if old != nil && old.manager == m {
		e.mu.Unlock()
		return
	}
	e.current = nil
	if m != nil {
		e.current = &lease{manager: m}
	}
	e.mu.Unlock()

	if old == nil {
		return
	}
	if err := old.retire(); err != nil {
		e.logger.Warn("closing previous repository failed", slog.String("error", err.Error()))
	}
}

// Connect opens a fresh repository, updates it when UpdateOnStart is set and
// asks the host to re-read its storage. Failures never propagate: they are
// logged and reflected in the returned status. A failure after the status
// became Opened is an update failure, any earlier one an open failure.
func (e *Orchestrator) Connect(ctx context.Context) status.Status {
	if err := e.connect(ctx); err != nil {
		next := status.OpenFailed
		if e.tracker.Get() == status.Opened {
			next = status.UpdateFailed
		}
		e.tracker.Set(next)
		e.logger.Error("connect failed",
			slog.String("status", next.String()),
			slog.String("error", err.Error()))
	}

	e.notifyHost(ctx)
	return e.tracker.Get()
}

func (e *Orchestrator) connect(ctx context.Context) error {
	m, err := e.open(ctx)
	if err != nil {
		e.swap(nil)
		return errors.Wrap(err, errors.CodeConnection, "engine.connect")
	}
	e.swap(m)
	e.tracker.Set(status.Opened)
	e.logger.Info("repository opened")

	if !e.settings().UpdateOnStart {
		return nil
	}
	if err := m.UpdateRepository(ctx); err != nil {
		return errors.Wrap(err, errors.CodeUpdate, "engine.connect")
	}
	e.logger.Info("repository updated")
	return nil
}

func (e *Orchestrator) notifyHost(ctx context.Context) {
	names := e.host.StorageFileNames()
	if len(names) == 0 {
		return
	}
	if err := e.host.Reload(ctx, names); err != nil {
		e.logger.Warn("host reload failed",
			slog.Int("files", len(names)),
			slog.String("error", err.Error()))
	}
}

// RequestCommit schedules a debounced commit, replacing any pending one.
func (e *Orchestrator) RequestCommit() {
	e.commits.CancelAndRequest()
}

// SyncNow flushes the host, commits, pulls and pushes, in that order. Each
// step starts only after the previous one succeeded. Cancelling ctx rejects
// the outstanding step with an errors.ErrCancelled error. Only one SyncNow
// runs at a time; a concurrent call fails with errors.ErrSyncInProgress.
func (e *Orchestrator) SyncNow(ctx context.Context) error {
	const op = "engine.sync"

	if !e.syncing.TryAcquire(1) {
		return errors.New(errors.CodeSyncInProgress, op, "a synchronization is already running")
	}
	defer e.syncing.Release(1)

	l := e.acquire()
	if l == nil {
		return errors.New(errors.CodeNotConnected, op, "repository is not open (status %s)", e.tracker.Get())
	}
	defer e.release(l)
	m := l.manager

	start := time.Now()
	e.logger.Info("sync started")

	e.commits.Cancel()
	if err := e.host.Flush(ctx); err != nil {
		return e.fail(ctx, err, errors.CodeCommit, op+".flush")
	}
	e.commits.Cancel()

	if err := e.step(ctx, m.Commit(ctx)); err != nil {
		return e.fail(ctx, err, errors.CodeCommit, op+".commit")
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, err, errors.CodeSync, op+".pull")
	}
	if err := m.Pull(ctx); err != nil {
		return e.fail(ctx, err, errors.CodeSync, op+".pull")
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, err, errors.CodeSync, op+".push")
	}
	if err := e.step(ctx, m.Push(ctx)); err != nil {
		return e.fail(ctx, err, errors.CodeSync, op+".push")
	}

	e.logger.Info("sync completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// step waits for p. On cancellation p is rejected so that late results are discarded.
func (e *Orchestrator) step(ctx context.Context, p *repository.Pending) error {
	err := p.Wait(ctx)
	if ctx.Err() != nil && !isDone(p) {
		p.Reject(errors.Wrap(ctx.Err(), errors.CodeCancelled, "engine.sync"))
		return ctx.Err()
	}
	return err
}

func isDone(p *repository.Pending) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func (e *Orchestrator) fail(ctx context.Context, err error, code errors.ErrorCode, op string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrCancelled) {
		e.logger.Info("sync cancelled", slog.String("op", op))
		if errors.Is(err, errors.ErrCancelled) {
			return err
		}
		return errors.Wrap(err, errors.CodeCancelled, op)
	}
	e.logger.Error("sync failed", slog.String("op", op), slog.String("error", err.Error()))
	if errors.Is(err, &errors.Error{Code: code}) {
		return err
	}
	return errors.Wrap(err, code, op)
}

// ApplicationBridge returns the bridge for application-level files. The
// statistics file is never shared.
func (e *Orchestrator) ApplicationBridge() *bridge.Bridge[pathmap.AppScope] {
	return bridge.NewApplication(e, bridge.Exclude(bridge.StatisticsFile), bridge.WithLogger(e.base))
}

// ProjectBridge returns the bridge for the project identified by owner. The
// workspace file is shared only while ShareWorkspaceFiles is set.
func (e *Orchestrator) ProjectBridge(owner pathmap.OwnerID) (*bridge.Bridge[pathmap.ProjectScope], error) {
	share := func() bool { return e.settings().ShareWorkspaceFiles }
	return bridge.NewProject(e, owner, bridge.Workspace(share), bridge.WithLogger(e.base))
}

// Close stops the debouncer, waiting for a running commit, and releases the
// repository. A SyncNow still running keeps the repository open until it
// returns. The status is left as it is.
func (e *Orchestrator) Close() error {
	e.commits.Close()

	e.mu.Lock()
	l := e.current
	e.current = nil
	e.mu.Unlock()

	if l == nil {
		return nil
	}
	return l.retire()
}

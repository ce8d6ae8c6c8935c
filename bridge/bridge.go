// Package bridge adapts the host's file storage calls to the settings
// repository.
//
// A Bridge is bound to either application scopes or project scopes. It maps
// each file spec to its repository path, filters out files that must not be
// shared, and asks for a debounced commit after every change. While the
// engine is not connected every call degrades to a silent no-op so the host
// keeps working on local state alone.
package bridge

import (
	"io"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
)

// Backend is the engine state a bridge needs.
type Backend interface {
	// Manager returns the current repository manager.
	Manager() repository.Manager

	// Enabled reports whether sharing is active.
	Enabled() bool

	// RequestCommit schedules a debounced commit.
	RequestCommit()
}

// Scope constrains a Bridge to one family of sharing scopes.
type Scope interface {
	pathmap.AppScope | pathmap.ProjectScope
	Scope() pathmap.Scope
}

// Option configures a Bridge.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the bridge.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Bridge serves one (scope family, owner) binding.
type Bridge[S Scope] struct {
	backend   Backend
	owner     pathmap.OwnerID
	shareable Predicate
	logger    *slog.Logger
}

func newBridge[S Scope](backend Backend, owner pathmap.OwnerID, shareable Predicate, opts []Option) *Bridge[S] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if shareable == nil {
		shareable = ShareAll
	}
	return &Bridge[S]{
		backend:   backend,
		owner:     owner,
		shareable: shareable,
		logger:    logger.With(slog.String("component", "bridge")),
	}
}

// NewApplication returns a bridge for the application-level scopes.
func NewApplication(backend Backend, shareable Predicate, opts ...Option) *Bridge[pathmap.AppScope] {
	return newBridge[pathmap.AppScope](backend, "", shareable, opts)
}

// NewProject returns a bridge for the project-level scopes of owner.
func NewProject(backend Backend, owner pathmap.OwnerID, shareable Predicate, opts ...Option) (*Bridge[pathmap.ProjectScope], error) {
	if !owner.Valid() {
		return nil, errors.New(errors.CodeInvalidInput, "bridge.project", "invalid owner id %q", owner)
	}
	return newBridge[pathmap.ProjectScope](backend, owner, shareable, opts), nil
}

// Owner returns the project owner, or "" for application bridges.
func (b *Bridge[S]) Owner() pathmap.OwnerID {
	return b.owner
}

func (b *Bridge[S]) path(fileSpec string, scope S) string {
	switch s := any(scope).(type) {
	case pathmap.ProjectScope:
		return pathmap.ProjectPath(fileSpec, s, b.owner)
	case pathmap.AppScope:
		return pathmap.AppPath(fileSpec, s)
	default:
		panic("bridge: unsupported scope type")
	}
}

// manager returns the repository manager when fileSpec may be shared in
// scope. The zero scope value is rejected whether or not sharing is enabled.
func (b *Bridge[S]) manager(fileSpec string, scope S) (repository.Manager, error) {
	if !scope.Scope().Valid() {
		return nil, errors.New(errors.CodeInvalidInput, "bridge", "invalid scope for %q", fileSpec)
	}
	if !b.backend.Enabled() || !b.shareable(fileSpec, scope.Scope()) {
		return nil, nil
	}
	return b.backend.Manager(), nil
}

// IsEnabled reports whether the engine is connected.
func (b *Bridge[S]) IsEnabled() bool {
	return b.backend.Enabled()
}

// Save stores content for fileSpec and schedules a commit.
func (b *Bridge[S]) Save(fileSpec string, content io.Reader, size int64, scope S, async bool) error {
	m, err := b.manager(fileSpec, scope)
	if m == nil {
		return err
	}
	if err := m.Write(b.path(fileSpec, scope), content, size, async); err != nil {
		return err
	}
	b.backend.RequestCommit()
	return nil
}

// Load opens the shared content of fileSpec. The boolean is false when the
// file is absent, not shared, or the engine is disabled.
func (b *Bridge[S]) Load(fileSpec string, scope S) (io.ReadCloser, bool, error) {
	m, err := b.manager(fileSpec, scope)
	if m == nil {
		return nil, false, err
	}
	return m.Read(b.path(fileSpec, scope))
}

// List returns the shared file names directly under the fileSpec prefix.
func (b *Bridge[S]) List(prefix string, scope S) ([]string, error) {
	m, err := b.manager(prefix, scope)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []string{}, nil
	}
	return m.ListSubFileNames(b.path(prefix, scope))
}

// Delete removes fileSpec and schedules a commit. It does not wait for the commit.
func (b *Bridge[S]) Delete(fileSpec string, scope S) error {
	m, err := b.manager(fileSpec, scope)
	if m == nil {
		return err
	}
	if err := m.DeleteAsync(b.path(fileSpec, scope)); err != nil {
		return err
	}
	b.backend.RequestCommit()
	return nil
}

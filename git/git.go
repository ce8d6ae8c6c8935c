package git

import (
	"context"
	"fmt"
	"time"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/git/internal/fsbridge"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"
)

// Options configures repository discovery/creation and performance.
type Options struct {
	// FS is the REQUIRED native filesystem root (OS or in-memory).
	// All repository state lives within this filesystem.
	FS fs.Filesystem

	// Workdir is the path within FS for the worktree root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// Bare indicates if this should be a bare repository (.git only, no worktree).
	Bare bool

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth is an optional provider that resolves per-URL AuthMethod.
	// If nil, no authentication will be available.
	Auth AuthProvider

	// ShallowDepth sets the depth for shallow clone/fetch operations.
	// If 0, full clone/fetch operations are performed.
	ShallowDepth int
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}

	if o.ShallowDepth < 0 {
		return WrapError(ErrInvalidRef, "ShallowDepth cannot be negative")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}

	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// layout resolves the object storage and worktree filesystem for opts.
// Bare repositories keep storage at the workdir root; non-bare ones use .git.
func layout(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	billyFS, err := fsbridge.ToBillyFilesystem(opts.FS)
	if err != nil {
		return nil, nil, fmt.Errorf("filesystem conversion failed: %w", err)
	}

	scopedFS, err := billyFS.Chroot(opts.Workdir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to chroot to workdir %q: %w", opts.Workdir, err)
	}

	if opts.Bare {
		return fsbridge.NewStorage(scopedFS, opts.StorerCacheSize), nil, nil
	}

	dotGitFS, err := scopedFS.Chroot(".git")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access .git directory: %w", err)
	}
	return fsbridge.NewStorage(dotGitFS, opts.StorerCacheSize), scopedFS, nil
}

// prepare validates opts, applies defaults and resolves the storage layout.
func prepare(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	if opts == nil {
		return nil, nil, WrapError(ErrInvalidRef, "options are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, WrapError(err, "invalid options")
	}
	opts.applyDefaults()
	return layout(opts)
}

// wrap builds a Repo around an opened go-git repository.
func wrap(repo *git.Repository, opts *Options) (*Repo, error) {
	r := &Repo{
		repo:    repo,
		fs:      opts.FS,
		options: *opts,
	}

	if !opts.Bare {
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, WrapError(err, "failed to get worktree")
		}
		r.worktree = worktree
	}

	return r, nil
}

// Init creates a new git repository at the configured workdir.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	return wrap(repo, opts)
}

// Open opens an existing git repository at the configured workdir.
// It returns ErrNotRepository when no repository exists there.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, ErrNotRepository
		}
		return nil, WrapError(err, "failed to open repository")
	}

	return wrap(repo, opts)
}

// Clone creates a new repository by cloning from a remote URL.
//
// Context cancellation aborts the transfer.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:          remoteURL,
		Depth:        opts.ShallowDepth,
		SingleBranch: opts.ShallowDepth > 0,
	}

	if opts.Auth != nil {
		authMethod, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, WrapError(ErrAuthRequired, "failed to get authentication method")
		}
		cloneOpts.Auth = authMethod
	}

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		return nil, classifyTransportError(err, "failed to clone repository")
	}

	return wrap(repo, opts)
}

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Signature represents an author/committer signature for commits.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitOpts configures commit creation behavior.
type CommitOpts struct {
	// AllowEmpty allows creating commits with no changes.
	AllowEmpty bool
}

// Repo represents a git repository and provides high-level operations.
//
// A Repo is NOT safe for concurrent writes; callers serialize mutating
// operations (commit, pull, push).
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       fs.Filesystem
	options  Options
}

// SetRemote creates or replaces the named remote with a single URL.
func (r *Repo) SetRemote(ctx context.Context, name, url string) error {
	if name == "" {
		name = DefaultRemoteName
	}
	if url == "" {
		return WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	if err := r.repo.DeleteRemote(name); err != nil && err != git.ErrRemoteNotFound {
		return WrapErrorf(err, "failed to replace remote %q", name)
	}

	_, err := r.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return WrapErrorf(err, "failed to create remote %q", name)
	}
	return nil
}

// RemoteURL returns the first URL of the named remote.
// It returns ErrRemoteMissing when the remote is not configured.
func (r *Repo) RemoteURL(name string) (string, error) {
	if name == "" {
		name = DefaultRemoteName
	}

	remote, err := r.repo.Remote(name)
	if err != nil {
		if err == git.ErrRemoteNotFound {
			return "", WrapErrorf(ErrRemoteMissing, "remote %q", name)
		}
		return "", WrapErrorf(err, "failed to get remote %q", name)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", WrapErrorf(ErrRemoteMissing, "remote %q has no URL", name)
	}
	return urls[0], nil
}

// HasRemote reports whether the named remote is configured.
func (r *Repo) HasRemote(name string) bool {
	_, err := r.RemoteURL(name)
	return err == nil
}

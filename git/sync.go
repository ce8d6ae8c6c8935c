// This file contains synchronization operations (fetch, pull, push).
package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// authFor resolves the authentication method for the named remote.
// It returns nil when no AuthProvider is configured.
func (r *Repo) authFor(remote string) (transport.AuthMethod, error) {
	if r.options.Auth == nil {
		return nil, nil
	}

	url, err := r.RemoteURL(remote)
	if err != nil {
		return nil, err
	}

	method, err := r.options.Auth.Method(url)
	if err != nil {
		return nil, WrapError(ErrAuthRequired, "failed to get authentication method")
	}
	return method, nil
}

// Fetch fetches changes from the specified remote.
// It supports pruning stale remote branches and shallow fetching when depth > 0.
// Returns ErrAlreadyUpToDate if there are no changes to fetch.
//
// Context timeout/cancellation is honored during the fetch operation.
func (r *Repo) Fetch(ctx context.Context, remote string, prune bool, depth int) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	auth, err := r.authFor(remote)
	if err != nil {
		return err
	}

	err = r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		Prune:      prune,
		Depth:      depth,
		Auth:       auth,
	})
	return classifyTransportError(err, "failed to fetch from remote")
}

// PullFFOnly performs a fast-forward only pull from the specified remote.
// Returns ErrNotFastForward if a merge commit would be required,
// ErrAlreadyUpToDate if there are no changes to pull, and ErrEmptyRemote
// when the remote has no commits yet.
//
// Context timeout/cancellation is honored during the pull operation.
func (r *Repo) PullFFOnly(ctx context.Context, remote string) error {
	if r.worktree == nil {
		return WrapError(ErrInvalidRef, "cannot pull in bare repository")
	}

	if remote == "" {
		remote = DefaultRemoteName
	}

	auth, err := r.authFor(remote)
	if err != nil {
		return err
	}

	err = r.worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: remote,
		Auth:       auth,
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return classifyTransportError(err, "failed to pull from remote")
}

// Push pushes the current branch to the specified remote.
// It supports force pushing when force is true.
// Returns ErrNotFastForward if the push would overwrite remote changes and force is false.
// Returns ErrAlreadyUpToDate if there are no changes to push.
//
// Context timeout/cancellation is honored during the push operation.
func (r *Repo) Push(ctx context.Context, remote string, force bool) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	auth, err := r.authFor(remote)
	if err != nil {
		return err
	}

	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		Force:      force,
		Auth:       auth,
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return classifyTransportError(err, "failed to push to remote")
}

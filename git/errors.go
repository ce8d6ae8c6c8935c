package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Sentinel errors that can be checked with errors.Is().
// These wrap underlying go-git errors while providing a stable API for consumers.

// ErrAlreadyUpToDate is returned when fetch, pull, or push operations
// result in no changes because the local and remote states are already synchronized.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrAuthRequired is returned when an operation requires authentication
// but no credentials were provided or available.
var ErrAuthRequired = errors.New("authentication required")

// ErrAuthFailed is returned when authentication was attempted but failed.
var ErrAuthFailed = errors.New("authentication failed")

// ErrNotFastForward is returned when a push or pull operation cannot be performed
// as a fast-forward merge.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrConflict is returned by Rebase when a path changed on both sides.
var ErrConflict = errors.New("conflicting changes")

// ErrInvalidRef is returned when an argument is malformed or invalid.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision or remote cannot be resolved.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrEmptyCommit is returned when a commit is requested with nothing staged.
var ErrEmptyCommit = errors.New("nothing to commit")

// ErrEmptyRemote is returned when the remote repository has no commits yet.
var ErrEmptyRemote = errors.New("remote repository is empty")

// ErrRemoteMissing is returned when the requested remote is not configured.
var ErrRemoteMissing = errors.New("remote is not configured")

// ErrNotRepository is returned by Open when the workdir holds no repository.
var ErrNotRepository = errors.New("repository does not exist")

// ErrTransport is returned when a network transfer fails.
var ErrTransport = errors.New("transport failure")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// classifyTransportError maps go-git errors from fetch, pull, push and clone
// onto the package sentinels.
func classifyTransportError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return ErrEmptyRemote
	case errors.Is(err, git.ErrRemoteNotFound):
		return WrapError(ErrResolveFailed, "remote not found")
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return WrapError(ErrNotFastForward, msg)
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return WrapError(ErrAuthRequired, msg)
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return WrapError(ErrAuthFailed, msg)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return WrapError(ErrResolveFailed, msg)
	case strings.Contains(err.Error(), "non-fast-forward"):
		return WrapError(ErrNotFastForward, msg)
	default:
		return fmt.Errorf("%s: %w", msg, errors.Join(ErrTransport, err))
	}
}

// This file contains worktree operations (add, remove, stage, commit).
package git

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Add stages files in the worktree for the next commit.
// Files that don't exist are silently ignored (matching git add behavior).
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	if r.worktree == nil {
		return WrapError(ErrInvalidRef, "cannot add files in bare repository")
	}

	wfs := r.worktree.Filesystem
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := wfs.Lstat(path); err != nil {
			continue
		}
		if _, err := r.worktree.Add(path); err != nil {
			return WrapErrorf(err, "failed to add path %q", path)
		}
	}

	return nil
}

// Remove removes files from the index and worktree.
// Files that don't exist in the index are silently ignored.
func (r *Repo) Remove(ctx context.Context, paths ...string) error {
	if r.worktree == nil {
		return WrapError(ErrInvalidRef, "cannot remove files in bare repository")
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := r.worktree.Remove(path); err != nil {
			// matching git rm behavior, untracked paths are not an error
			msg := err.Error()
			if !strings.Contains(msg, "entry not found") && !strings.Contains(msg, "does not exist") {
				return WrapErrorf(err, "failed to remove path %q", path)
			}
		}
	}

	return nil
}

// StageAll stages every change in the worktree, including deletions, the way
// `git add -A` does. It returns the sorted list of staged paths.
func (r *Repo) StageAll(ctx context.Context) ([]string, error) {
	if r.worktree == nil {
		return nil, WrapError(ErrInvalidRef, "cannot stage files in bare repository")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree status")
	}

	var staged []string
	for path, st := range status {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch st.Worktree {
		case git.Unmodified:
			if st.Staging != git.Unmodified && st.Staging != git.Untracked {
				staged = append(staged, path)
			}
			continue
		case git.Deleted:
			if _, err := r.worktree.Remove(path); err != nil {
				return nil, WrapErrorf(err, "failed to stage deletion of %q", path)
			}
		default:
			if _, err := r.worktree.Add(path); err != nil {
				return nil, WrapErrorf(err, "failed to add path %q", path)
			}
		}
		staged = append(staged, path)
	}

	sort.Strings(staged)
	return staged, nil
}

// HasChanges reports whether the worktree or the index differ from HEAD.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	if r.worktree == nil {
		return false, nil
	}

	status, err := r.worktree.Status()
	if err != nil {
		return false, WrapError(err, "failed to get worktree status")
	}
	return !status.IsClean(), nil
}

// Commit creates a new commit with the specified message and author/committer.
// It returns the SHA of the new commit. ErrEmptyCommit is returned when
// nothing is staged and opts.AllowEmpty is false.
func (r *Repo) Commit(ctx context.Context, msg string, who Signature, opts CommitOpts) (string, error) {
	if r.worktree == nil {
		return "", WrapError(ErrInvalidRef, "cannot commit in bare repository")
	}

	if msg == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}

	if who.Name == "" || who.Email == "" {
		return "", WrapError(ErrInvalidRef, "committer name and email are required")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return "", WrapError(err, "failed to get worktree status")
	}

	stagedCount := 0
	for _, fileStatus := range status {
		if fileStatus.Staging != git.Untracked && fileStatus.Staging != git.Unmodified {
			stagedCount++
		}
	}

	if stagedCount == 0 && !opts.AllowEmpty {
		return "", ErrEmptyCommit
	}

	sig := &object.Signature{
		Name:  who.Name,
		Email: who.Email,
		When:  who.When,
	}

	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: opts.AllowEmpty,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrEmptyCommit
		}
		return "", WrapError(err, "failed to create commit")
	}

	return hash.String(), nil
}

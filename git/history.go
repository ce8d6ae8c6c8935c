// This file contains history operations.
package git

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// LogFilter configures which commits to include in log operations.
type LogFilter struct {
	// Since limits the log to commits after the specified time.
	Since *time.Time

	// Path filters commits that modified a path with one of these prefixes.
	Path []string

	// MaxCount limits the number of commits returned.
	// If 0, all matching commits are returned.
	MaxCount int
}

// Commit is a single history entry.
type Commit struct {
	Hash    string
	Message string
	Author  Signature
}

// Log returns the commits reachable from HEAD, newest first, with the
// filter applied. An unborn HEAD yields an empty history.
//
// Context cancellation stops the walk.
func (r *Repo) Log(ctx context.Context, f LogFilter) ([]Commit, error) {
	logOpts := &git.LogOptions{Since: f.Since}

	if len(f.Path) > 0 {
		logOpts.PathFilter = func(path string) bool {
			for _, prefix := range f.Path {
				if strings.HasPrefix(path, prefix) {
					return true
				}
			}
			return false
		}
	}

	iter, err := r.repo.Log(logOpts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, WrapError(err, "failed to create commit iterator")
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author: Signature{
				Name:  c.Author.Name,
				Email: c.Author.Email,
				When:  c.Author.When,
			},
		})
		if f.MaxCount > 0 && len(commits) >= f.MaxCount {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate commits")
	}

	return commits, nil
}

// Head returns the hash of the current HEAD commit, or "" when HEAD is unborn.
func (r *Repo) Head(ctx context.Context) (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", WrapError(err, "failed to resolve HEAD")
	}
	return ref.Hash().String(), nil
}

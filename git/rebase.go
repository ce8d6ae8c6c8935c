// This file contains the file-level rebase used when histories diverge.
package git

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Rebase moves the current branch onto its remote-tracking branch and
// replays the local changes on top of it, one file at a time.
//
// The remote is fetched first. Paths changed since the merge base on the
// local side are compared with the paths changed on the remote side; a path
// changed on both sides with different results fails with ErrConflict and
// leaves the repository untouched. Otherwise the worktree is hard reset to
// the remote head and the local versions of the changed paths are written
// back and staged. The caller commits them.
//
// It returns the staged paths, sorted. An empty result means there was
// nothing to replay: the local branch was already ahead, equal, or all of
// its changes were already present upstream. The worktree must be clean.
func (r *Repo) Rebase(ctx context.Context, remote string) ([]string, error) {
	if r.worktree == nil {
		return nil, WrapError(ErrInvalidRef, "cannot rebase in bare repository")
	}
	if remote == "" {
		remote = DefaultRemoteName
	}

	err := r.Fetch(ctx, remote, false, 0)
	switch {
	case errors.Is(err, ErrEmptyRemote):
		return nil, nil
	case err != nil && !errors.Is(err, ErrAlreadyUpToDate):
		return nil, err
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, WrapError(err, "failed to resolve HEAD")
	}
	tracking, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, head.Name().Short()), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(err, "failed to resolve remote branch")
	}

	local, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, WrapError(err, "failed to load local commit")
	}
	upstream, err := r.repo.CommitObject(tracking.Hash())
	if err != nil {
		return nil, WrapError(err, "failed to load remote commit")
	}
	if local.Hash == upstream.Hash {
		return nil, nil
	}
	if ahead, err := upstream.IsAncestor(local); err != nil {
		return nil, WrapError(err, "failed to compare histories")
	} else if ahead {
		return nil, nil
	}

	// Unrelated histories have no merge base; everything counts as changed.
	var baseTree *object.Tree
	bases, err := local.MergeBase(upstream)
	if err != nil {
		return nil, WrapError(err, "failed to find merge base")
	}
	if len(bases) > 0 {
		if baseTree, err = bases[0].Tree(); err != nil {
			return nil, WrapError(err, "failed to load merge base tree")
		}
	}

	localTree, err := local.Tree()
	if err != nil {
		return nil, WrapError(err, "failed to load local tree")
	}
	upstreamTree, err := upstream.Tree()
	if err != nil {
		return nil, WrapError(err, "failed to load remote tree")
	}

	ours, err := changedPaths(baseTree, localTree)
	if err != nil {
		return nil, err
	}
	theirs, err := changedPaths(baseTree, upstreamTree)
	if err != nil {
		return nil, err
	}

	var conflicts, replay []string
	for p, h := range ours {
		t, both := theirs[p]
		switch {
		case !both:
			replay = append(replay, p)
		case t != h:
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, WrapErrorf(ErrConflict, "changed locally and remotely: %s", strings.Join(conflicts, ", "))
	}
	sort.Strings(replay)

	contents := make(map[string]string, len(replay))
	for _, p := range replay {
		if ours[p] == plumbing.ZeroHash {
			continue
		}
		f, err := localTree.File(p)
		if err != nil {
			return nil, WrapErrorf(err, "failed to read local %q", p)
		}
		if contents[p], err = f.Contents(); err != nil {
			return nil, WrapErrorf(err, "failed to read local %q", p)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.worktree.Reset(&git.ResetOptions{Commit: upstream.Hash, Mode: git.HardReset}); err != nil {
		return nil, WrapError(err, "failed to reset to remote head")
	}

	for _, p := range replay {
		data, kept := contents[p]
		if !kept {
			if err := r.RemoveFile(ctx, p); err != nil {
				return nil, err
			}
			if err := r.Remove(ctx, p); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.WriteFile(ctx, p, strings.NewReader(data)); err != nil {
			return nil, err
		}
		if err := r.Add(ctx, p); err != nil {
			return nil, err
		}
	}

	return replay, nil
}

// changedPaths maps every path that differs between from and to onto its
// blob hash in to. Deleted paths map to the zero hash. A nil from is empty.
func changedPaths(from, to *object.Tree) (map[string]plumbing.Hash, error) {
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return nil, WrapError(err, "failed to diff trees")
	}

	out := make(map[string]plumbing.Hash, len(changes))
	for _, c := range changes {
		name := c.To.Name
		if name == "" {
			name = c.From.Name
		}
		out[name] = c.To.TreeEntry.Hash
	}
	return out, nil
}

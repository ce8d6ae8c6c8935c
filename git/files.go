// This file contains worktree file access.
package git

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/util"
)

// dotGit is never exposed through the file accessors.
const dotGit = ".git"

func (r *Repo) checkPath(p string) error {
	if r.worktree == nil {
		return WrapError(ErrInvalidRef, "bare repository has no worktree")
	}
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean == dotGit || strings.HasPrefix(clean, dotGit+"/") {
		return WrapErrorf(ErrInvalidRef, "invalid worktree path %q", p)
	}
	return nil
}

// OpenFile opens a worktree file for reading. It returns an error wrapping
// os.ErrNotExist when the file is absent or p is a directory.
func (r *Repo) OpenFile(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := r.checkPath(p); err != nil {
		return nil, err
	}
	if fi, err := r.worktree.Filesystem.Stat(p); err == nil && fi.IsDir() {
		return nil, WrapErrorf(os.ErrNotExist, "%q is a directory", p)
	}
	f, err := r.worktree.Filesystem.Open(p)
	if err != nil {
		return nil, WrapErrorf(err, "failed to open %q", p)
	}
	return f, nil
}

// WriteFile replaces the worktree file at p with the contents of src,
// creating parent directories as needed. The file is not staged.
func (r *Repo) WriteFile(ctx context.Context, p string, src io.Reader) error {
	if err := r.checkPath(p); err != nil {
		return err
	}

	wfs := r.worktree.Filesystem
	if dir := path.Dir(p); dir != "." {
		if err := wfs.MkdirAll(dir, 0o755); err != nil {
			return WrapErrorf(err, "failed to create directory %q", dir)
		}
	}

	f, err := wfs.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return WrapErrorf(err, "failed to create %q", p)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return WrapErrorf(err, "failed to write %q", p)
	}
	return WrapErrorf(f.Close(), "failed to close %q", p)
}

// RemoveFile deletes a worktree file or directory tree. Missing paths are
// not an error. The deletion is not staged.
func (r *Repo) RemoveFile(ctx context.Context, p string) error {
	if err := r.checkPath(p); err != nil {
		return err
	}
	err := util.RemoveAll(r.worktree.Filesystem, p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapErrorf(err, "failed to remove %q", p)
	}
	return nil
}

// ListDir returns the sorted names of the entries directly under dir.
// A missing directory or a regular file yields an empty list.
func (r *Repo) ListDir(ctx context.Context, dir string) ([]string, error) {
	if r.worktree == nil {
		return nil, WrapError(ErrInvalidRef, "bare repository has no worktree")
	}

	if fi, err := r.worktree.Filesystem.Stat(dir); err == nil && !fi.IsDir() {
		return nil, nil
	}
	infos, err := r.worktree.Filesystem.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, WrapErrorf(err, "failed to list %q", dir)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name() == dotGit {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

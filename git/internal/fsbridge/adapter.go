// Package fsbridge adapts the project's fs.Filesystem to the billy
// filesystem and object storage that go-git consumes.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// rawer is implemented by fs.Filesystem wrappers around a billy.Filesystem,
// such as the fs/billy package's FS.
type rawer interface {
	Raw() billy.Filesystem
}

// ToBillyFilesystem unwraps the billy.Filesystem behind fsys.
// Filesystems that are not backed by billy are rejected.
//
//nolint:ireturn // returns interface as required by go-git
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	r, ok := fsys.(rawer)
	if !ok {
		return nil, fmt.Errorf("filesystem must be backed by billy, got %T", fsys)
	}
	return r.Raw(), nil
}

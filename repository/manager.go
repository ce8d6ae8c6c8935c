// Package repository defines the storage contract the synchronization engine
// talks to, and its git implementation.
//
// Paths handed to a Manager are repository paths produced by the pathmap
// package. Reads of absent paths are not errors, deletes of absent paths are
// no-ops, and listing a prefix without children yields an empty slice.
package repository

import (
	"context"
	"io"
)

// Manager is the versioned store behind the engine.
type Manager interface {
	// Read opens the content at path. The boolean is false when path is absent.
	Read(path string) (io.ReadCloser, bool, error)

	// Write stores size bytes of content at path (size < 0 reads to EOF).
	// With async set, the write is queued and Write returns once content
	// has been consumed.
	Write(path string, content io.Reader, size int64, async bool) error

	// DeleteAsync queues removal of path.
	DeleteAsync(path string) error

	// ListSubFileNames returns the names directly under prefix.
	ListSubFileNames(prefix string) ([]string, error)

	// Commit snapshots all pending changes. A clean tree is a successful no-op.
	Commit(ctx context.Context) *Pending

	// Pull integrates remote changes.
	Pull(ctx context.Context) error

	// Push publishes local commits. Nothing to push is success.
	Push(ctx context.Context) *Pending

	// UpdateRepository brings a freshly opened repository up to date.
	UpdateRepository(ctx context.Context) error
}

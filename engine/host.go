package engine

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
)

// Opener creates a fresh repository manager. It is called on every Connect.
type Opener func(ctx context.Context) (repository.Manager, error)

// Flusher writes in-memory host state to storage before a sync commits it.
type Flusher interface {
	Flush(ctx context.Context) error
}

// StorageLister names the storage files the host currently serves.
type StorageLister interface {
	StorageFileNames() []string
}

// Reloader makes the host re-read the named storage files.
type Reloader interface {
	Reload(ctx context.Context, names []string) error
}

// Host is the application whose configuration is synchronized.
type Host interface {
	Flusher
	StorageLister
	Reloader
}

// NopHost is a Host with nothing to flush or reload.
type NopHost struct{}

// Flush implements Flusher.
func (NopHost) Flush(context.Context) error { return nil }

// StorageFileNames implements StorageLister.
func (NopHost) StorageFileNames() []string { return nil }

// Reload implements Reloader.
func (NopHost) Reload(context.Context, []string) error { return nil }

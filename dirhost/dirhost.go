// Package dirhost is a Host that keeps a plain configuration directory in
// sync with the engine's application bridge.
//
// Every regular file under the root directory is shared as
// "<prefix>/<relative path>". Content hashes of the last synchronized state
// suppress saves of unchanged files, which also keeps files written by
// Reload from bouncing back through the watcher.
package dirhost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/xxh3"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/bridge"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
)

// DefaultPrefix is the file spec prefix of application configuration files.
const DefaultPrefix = "$APP_CONFIG$"

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for the host.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithScope selects the sharing scope of the directory. Defaults to pathmap.AppPerUser.
func WithScope(scope pathmap.AppScope) Option {
	return func(h *Host) {
		h.scope = scope
	}
}

// WithPrefix sets the file spec prefix. Defaults to DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(h *Host) {
		h.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// Host mirrors a directory through a bridge.
type Host struct {
	root   string
	prefix string
	scope  pathmap.AppScope
	logger *slog.Logger

	mu     sync.Mutex
	bridge *bridge.Bridge[pathmap.AppScope]
	synced map[string]uint64 // relative slash path -> content hash

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a host for root. Nothing is shared until Bind is called.
func New(root string, opts ...Option) *Host {
	h := &Host{
		root:   root,
		prefix: DefaultPrefix,
		scope:  pathmap.AppPerUser,
		synced: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h.logger = h.logger.With(slog.String("component", "dirhost"))
	return h
}

// Bind attaches the bridge the host stores through.
func (h *Host) Bind(b *bridge.Bridge[pathmap.AppScope]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// Root returns the mirrored directory.
func (h *Host) Root() string {
	return h.root
}

func (h *Host) spec(rel string) string {
	return h.prefix + "/" + rel
}

func (h *Host) rel(abs string) (string, bool) {
	r, err := filepath.Rel(h.root, abs)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// active returns the bridge when sharing is enabled. Callers hold h.mu.
func (h *Host) active() *bridge.Bridge[pathmap.AppScope] {
	if h.bridge == nil || !h.bridge.IsEnabled() {
		return nil
	}
	return h.bridge
}

// localFiles walks root and returns relative slash paths of regular files.
func (h *Host) localFiles() ([]string, error) {
	var names []string
	err := filepath.WalkDir(h.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == h.root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rel, ok := h.rel(p); ok {
			names = append(names, rel)
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// Flush saves changed local files and deletes files removed since the last sync.
func (h *Host) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.active()
	if b == nil {
		return nil
	}

	names, err := h.localFiles()
	if err != nil {
		return fmt.Errorf("scan %s: %w", h.root, err)
	}

	present := make(map[string]struct{}, len(names))
	for _, rel := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		present[rel] = struct{}{}
		if err := h.saveLocked(b, rel); err != nil {
			return err
		}
	}

	for rel := range h.synced {
		if _, ok := present[rel]; ok {
			continue
		}
		if err := h.deleteLocked(b, rel); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) saveLocked(b *bridge.Bridge[pathmap.AppScope], rel string) error {
	data, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", rel, err)
	}

	sum := xxh3.Hash(data)
	if prev, ok := h.synced[rel]; ok && prev == sum {
		return nil
	}

	if err := b.Save(h.spec(rel), bytes.NewReader(data), int64(len(data)), h.scope, false); err != nil {
		return fmt.Errorf("save %s: %w", rel, err)
	}
	h.synced[rel] = sum
	h.logger.Debug("file saved", slog.String("file", rel), slog.Int("size", len(data)))
	return nil
}

func (h *Host) deleteLocked(b *bridge.Bridge[pathmap.AppScope], rel string) error {
	if err := b.Delete(h.spec(rel), h.scope); err != nil {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	delete(h.synced, rel)
	h.logger.Debug("file deleted", slog.String("file", rel))
	return nil
}

// StorageFileNames returns the local files together with every file the
// repository holds under the prefix, nested ones included.
func (h *Host) StorageFileNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names, err := h.localFiles()
	if err != nil {
		h.logger.Warn("scan failed", slog.String("error", err.Error()))
	}

	if b := h.active(); b != nil {
		remote, err := h.remoteFiles(b, "")
		if err != nil {
			h.logger.Warn("listing repository failed", slog.String("error", err.Error()))
		}
		names = append(names, remote...)
	}

	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}
	return out
}

// remoteFiles walks the repository below dir, a relative slash path, and
// returns the relative paths of its files. Entries without children are files.
func (h *Host) remoteFiles(b *bridge.Bridge[pathmap.AppScope], dir string) ([]string, error) {
	spec := h.prefix
	if dir != "" {
		spec = h.spec(dir)
	}
	entries, err := b.List(spec, h.scope)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range entries {
		rel := path.Join(dir, name)
		children, err := h.remoteFiles(b, rel)
		if err != nil {
			return files, err
		}
		if len(children) == 0 {
			files = append(files, rel)
			continue
		}
		files = append(files, children...)
	}
	return files, nil
}

// Reload overwrites the named local files with their repository content.
// Files absent from the repository are left alone. A failing file does not
// stop the others; all failures are returned together.
func (h *Host) Reload(ctx context.Context, names []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.active()
	if b == nil {
		return nil
	}

	var errs []error
	for _, rel := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.reloadLocked(b, rel); err != nil {
			h.logger.Warn("reload failed", slog.String("file", rel), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) reloadLocked(b *bridge.Bridge[pathmap.AppScope], rel string) error {
	if rel == "" || path.IsAbs(rel) || strings.HasPrefix(path.Clean(rel), "..") {
		return fmt.Errorf("reload %q: invalid name", rel)
	}

	r, ok, err := b.Load(h.spec(rel), h.scope)
	if err != nil {
		return fmt.Errorf("load %s: %w", rel, err)
	}
	if !ok {
		return nil
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("load %s: %w", rel, err)
	}
	sum := xxh3.Hash(data)

	target := filepath.Join(h.root, filepath.FromSlash(rel))
	if current, err := os.ReadFile(target); err == nil && xxh3.Hash(current) == sum {
		h.synced[rel] = sum
		return nil
	}

	// Record the hash first so the watcher event for this write is a no-op.
	h.synced[rel] = sum
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("reload %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("reload %s: %w", rel, err)
	}
	h.logger.Info("file reloaded", slog.String("file", rel))
	return nil
}

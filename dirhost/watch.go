package dirhost

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch saves files as they change and deletes them as they disappear.
// Subdirectories created later are watched too.
func (h *Host) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := os.MkdirAll(h.root, 0o700); err != nil {
		watcher.Close()
		return fmt.Errorf("create %s: %w", h.root, err)
	}
	if err := addTree(watcher, h.root); err != nil {
		watcher.Close()
		return err
	}

	h.watcher = watcher
	h.done = make(chan struct{})
	h.wg.Add(1)
	go h.watchLoop()
	return nil
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func (h *Host) watchLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handle(event)

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (h *Host) handle(event fsnotify.Event) {
	rel, ok := h.rel(event.Name)
	if !ok {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := addTree(h.watcher, event.Name); err != nil {
				h.logger.Warn("watch failed", slog.String("dir", rel), slog.String("error", err.Error()))
			}
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.active()
	if b == nil {
		return
	}

	var err error
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0 && statErr == nil:
		err = h.saveLocked(b, rel)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && os.IsNotExist(statErr):
		if _, tracked := h.synced[rel]; tracked {
			err = h.deleteLocked(b, rel)
		}
	}
	if err != nil {
		h.logger.Error("mirroring change failed", slog.String("file", rel), slog.String("error", err.Error()))
	}
}

// Close stops watching.
func (h *Host) Close() error {
	if h.watcher == nil {
		return nil
	}
	close(h.done)
	err := h.watcher.Close()
	h.wg.Wait()
	h.watcher = nil
	return err
}

package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Option configures a Loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the loader.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loaderOptions) {
		o.logger = logger
	}
}

// Loader reads the settings file, watches it and publishes reloads.
type Loader struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  *Settings
	onChange []func(*Settings)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
	wg      sync.WaitGroup
}

// NewLoader creates a loader for path. An empty path selects DefaultPath.
func NewLoader(path string, opts ...Option) *Loader {
	if path == "" {
		path = DefaultPath()
	}

	o := &loaderOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		logger:  logger.With(slog.String("component", "settings")),
		ctx:     ctx,
		cancel:  cancel,
		errChan: make(chan error, 1),
	}
}

// Path returns the settings file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads, overrides from the environment and validates the file.
// A missing file yields the defaults.
func (l *Loader) Load() (*Settings, error) {
	s, err := read(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = s
	l.mu.Unlock()
	return s, nil
}

// Current returns the last loaded snapshot, or the defaults before Load.
func (l *Loader) Current() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return Default()
	}
	return l.current
}

// OnChange registers a callback invoked with every successfully reloaded snapshot.
func (l *Loader) OnChange(cb func(*Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel for errors that occur while watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Save writes s to the settings file in the format its extension selects
// and makes it the current snapshot. The write goes through a temporary
// file so readers never observe a partial file.
func (l *Loader) Save(s *Settings) error {
	const op = "settings.save"

	if err := s.Validate(); err != nil {
		return err
	}

	data, err := encode(l.path, s)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, op)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, errors.CodeInternal, op)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, op)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.CodeInternal, op)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, op)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return errors.Wrap(err, errors.CodeInternal, op)
	}

	l.mu.Lock()
	l.current = s.Clone()
	l.mu.Unlock()
	return nil
}

// Watch starts reloading the file whenever it changes. Invalid edits are
// reported on Errors and leave the current snapshot in place.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		watcher.Close()
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = watcher

	l.wg.Add(1)
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	defer l.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}

	s, err := read(l.path)
	if err != nil {
		l.logger.Warn("settings reload rejected", slog.String("error", err.Error()))
		l.report(err)
		return
	}

	l.mu.Lock()
	l.current = s
	callbacks := append([]func(*Settings){}, l.onChange...)
	l.mu.Unlock()

	l.logger.Info("settings reloaded", slog.String("path", l.path))
	for _, cb := range callbacks {
		cb(s)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// Close stops the watcher.
func (l *Loader) Close() error {
	l.cancel()
	var err error
	if l.watcher != nil {
		err = l.watcher.Close()
	}
	l.wg.Wait()
	return err
}

// read loads path over the defaults, applies the environment and validates.
func read(path string) (*Settings, error) {
	const op = "settings.load"

	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, s); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, op)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, errors.CodeInternal, op)
	}

	if err := s.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// decode parses data based on the file extension.
func decode(path string, data []byte, s *Settings) error {
	switch filepath.Ext(path) {
	case ".toml", "":
		if _, err := toml.Decode(string(data), s); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported settings format %q", filepath.Ext(path))
	}
	return nil
}

func encode(path string, s *Settings) ([]byte, error) {
	switch filepath.Ext(path) {
	case ".toml", "":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	case ".json":
		return json.MarshalIndent(s, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported settings format %q", filepath.Ext(path))
	}
}

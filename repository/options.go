package repository

import (
	"io"
	"log/slog"
	"time"
)

// Option configures a GitManager.
type Option func(*managerOptions)

type managerOptions struct {
	logger    *slog.Logger
	queueSize int
	now       func() time.Time
}

func defaultOptions() *managerOptions {
	return &managerOptions{
		queueSize: 64,
		now:       time.Now,
	}
}

// WithLogger sets the logger for the manager.
// If logger is nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithQueueSize sets how many asynchronous writes may be queued before
// Write blocks.
func WithQueueSize(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func (o *managerOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

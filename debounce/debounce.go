// Package debounce coalesces bursts of change notifications into a single
// delayed execution.
//
// A Debouncer implements a trailing debounce: every Request restarts the
// timer, and the function runs once the delay has elapsed since the last
// Request. At most one execution is scheduled or running at any time. A
// Request whose timer fires while an execution is still running turns into a
// follow-up execution that starts as soon as the running one returns, so
// changes made during an execution are never lost.
//
// Executions run on their own goroutine. Their errors are logged, never
// returned: from the requester's point of view a debounced run is
// fire-and-forget.
package debounce

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Func is the debounced action.
type Func func(ctx context.Context) error

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

// WithLogger sets the logger used to report failed executions.
// If logger is nil, failures are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithName sets the name reported in log records.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Debouncer schedules a Func after a quiet period.
type Debouncer struct {
	run    Func
	delay  func() time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	running  bool
	followUp bool
	closed   bool
	inflight sync.WaitGroup
}

// New creates a Debouncer for run. The delay function is consulted on every
// Request, so a changed delay applies to the next schedule.
func New(run Func, delay func() time.Duration, opts ...Option) *Debouncer {
	o := &options{name: "debounce"}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		run:    run,
		delay:  delay,
		logger: logger.With(slog.String("component", o.name)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Request schedules an execution after the delay, replacing any pending schedule.
func (d *Debouncer) Request() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.armLocked()
}

// Cancel drops the pending schedule, if any. A running execution is not affected.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.followUp = false
}

// CancelAndRequest drops any pending schedule and arms a fresh one.
func (d *Debouncer) CancelAndRequest() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.followUp = false
	d.armLocked()
}

// Pending reports whether an execution is scheduled but not yet started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.followUp
}

// Running reports whether an execution is in progress.
func (d *Debouncer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Close drops the pending schedule and waits for a running execution to return.
// Requests after Close are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.followUp = false
	d.mu.Unlock()

	d.inflight.Wait()
	d.cancel()
}

func (d *Debouncer) armLocked() {
	d.stopLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.delay(), func() {
		d.fire(gen)
	})
}

// stopLocked invalidates the armed timer. Bumping the generation makes a timer
// that already fired but has not yet taken the lock a no-op.
func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.running {
		d.followUp = true
		d.mu.Unlock()
		return
	}
	d.running = true
	d.inflight.Add(1)
	d.mu.Unlock()

	d.execute()
}

func (d *Debouncer) execute() {
	defer d.inflight.Done()

	for {
		start := time.Now()
		if err := d.run(d.ctx); err != nil {
			d.logger.Error("debounced run failed",
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()))
		} else {
			d.logger.Debug("debounced run completed", slog.Duration("elapsed", time.Since(start)))
		}

		d.mu.Lock()
		if !d.followUp || d.closed {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.followUp = false
		d.mu.Unlock()
	}
}

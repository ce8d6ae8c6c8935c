// Package status holds the connection status of the synchronization engine and
// notifies subscribers of its transitions.
package status

import "sync"

// Status is the connection state of the engine's repository.
type Status uint8

const (
	// Disconnected is the initial state before any connect attempt.
	Disconnected Status = iota
	// Opened means the repository is open and sharing is enabled.
	Opened
	// OpenFailed means the repository could not be opened at all.
	OpenFailed
	// UpdateFailed means the repository opened but the update on start failed.
	UpdateFailed
)

// String returns the enum name of the status.
func (s Status) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Opened:
		return "OPENED"
	case OpenFailed:
		return "OPEN_FAILED"
	case UpdateFailed:
		return "UPDATE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Text returns a short user-facing description of the status.
func (s Status) Text() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Opened:
		return "Connected"
	case OpenFailed:
		return "Open repository failed"
	case UpdateFailed:
		return "Update repository failed"
	default:
		return "Unknown"
	}
}

// Listener receives status transitions.
type Listener func(Status)

// Tracker holds the current status and publishes every change exactly once.
//
// Publishing is serialized, so each listener observes transitions in the
// order they happened. Listeners run on the goroutine that called Set and may
// call Get, but must not call Set.
type Tracker struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	current   Status
	nextID    int
	listeners map[int]Listener
}

// NewTracker returns a tracker in the Disconnected state.
func NewTracker() *Tracker {
	return &Tracker{
		current:   Disconnected,
		listeners: make(map[int]Listener),
	}
}

// Get returns the current status.
func (t *Tracker) Get() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Set changes the status and notifies subscribers. Setting the current value
// again is a no-op and reports false.
func (t *Tracker) Set(value Status) bool {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()

	t.mu.Lock()
	if t.current == value {
		t.mu.Unlock()
		return false
	}
	t.current = value
	listeners := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(value)
	}
	return true
}

// Subscribe registers a listener and returns a function that removes it.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

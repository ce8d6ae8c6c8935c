package engine

import (
	"io"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
)

// lease counts the operations running against one manager. A retired
// manager is closed when its last operation releases it.
type lease struct {
	manager repository.Manager

	mu      sync.Mutex
	refs    int
	retired bool
}

func (l *lease) acquire() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

// release returns the close error when it released the last reference of a
// retired manager.
func (l *lease) release() error {
	l.mu.Lock()
	l.refs--
	idle := l.retired && l.refs == 0
	l.mu.Unlock()

	if idle {
		return l.close()
	}
	return nil
}

// retire closes the manager now when it is idle, otherwise after the last release.
func (l *lease) retire() error {
	l.mu.Lock()
	l.retired = true
	idle := l.refs == 0
	l.mu.Unlock()

	if idle {
		return l.close()
	}
	return nil
}

func (l *lease) close() error {
	if c, ok := l.manager.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_InitialState(t *testing.T) {
	assert.Equal(t, Disconnected, NewTracker().Get())
}

func TestTracker_NotifiesOncePerChange(t *testing.T) {
	tr := NewTracker()

	var got []Status
	tr.Subscribe(func(s Status) { got = append(got, s) })

	assert.True(t, tr.Set(Opened))
	assert.False(t, tr.Set(Opened), "same value must not publish")
	assert.True(t, tr.Set(UpdateFailed))
	assert.False(t, tr.Set(UpdateFailed))

	assert.Equal(t, []Status{Opened, UpdateFailed}, got)
	assert.Equal(t, UpdateFailed, tr.Get())
}

func TestTracker_Unsubscribe(t *testing.T) {
	tr := NewTracker()

	calls := 0
	unsubscribe := tr.Subscribe(func(Status) { calls++ })
	tr.Set(Opened)
	unsubscribe()
	unsubscribe()
	tr.Set(OpenFailed)

	assert.Equal(t, 1, calls)
}

func TestTracker_MultipleListeners(t *testing.T) {
	tr := NewTracker()

	var a, b []Status
	tr.Subscribe(func(s Status) { a = append(a, s) })
	tr.Subscribe(func(s Status) { b = append(b, s) })

	tr.Set(Opened)
	tr.Set(OpenFailed)

	assert.Equal(t, []Status{Opened, OpenFailed}, a)
	assert.Equal(t, a, b)
}

func TestTracker_ListenerMayReadStatus(t *testing.T) {
	tr := NewTracker()

	var seen Status
	tr.Subscribe(func(Status) { seen = tr.Get() })
	tr.Set(Opened)

	assert.Equal(t, Opened, seen)
}

func TestTracker_ConcurrentSetsAreTotallyOrdered(t *testing.T) {
	tr := NewTracker()

	var mu sync.Mutex
	var first, second []Status
	tr.Subscribe(func(s Status) {
		mu.Lock()
		first = append(first, s)
		mu.Unlock()
	})
	tr.Subscribe(func(s Status) {
		mu.Lock()
		second = append(second, s)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Set(Status(i % 4))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.NotEqual(t, first[i-1], first[i], "consecutive notifications must differ")
	}
}

func TestStatus_Text(t *testing.T) {
	tests := []struct {
		status Status
		name   string
		text   string
	}{
		{Disconnected, "DISCONNECTED", "Disconnected"},
		{Opened, "OPENED", "Connected"},
		{OpenFailed, "OPEN_FAILED", "Open repository failed"},
		{UpdateFailed, "UPDATE_FAILED", "Update repository failed"},
		{Status(9), "UNKNOWN", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			assert.Equal(t, tt.text, tt.status.Text())
		})
	}
}

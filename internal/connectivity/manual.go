package connectivity

import (
	"context"
	"sync"
)

// Manual is an oracle whose state is set by the caller. It backs the pinned
// online/offline modes and tests.
type Manual struct {
	mu        sync.Mutex
	available bool
	subs      map[chan bool]struct{}
}

func NewManual(available bool) *Manual {
	return &Manual{available: available, subs: make(map[chan bool]struct{})}
}

func (m *Manual) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Set changes the state and notifies observers if it differs.
func (m *Manual) Set(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.available == available {
		return
	}
	m.available = available

	for ch := range m.subs {
		// Keep only the latest state for slow observers.
		select {
		case <-ch:
		default:
		}
		ch <- available
	}
}

func (m *Manual) Observe(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)

	m.mu.Lock()
	ch <- m.available
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	out := make(chan bool)
	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		}()

		var last *bool
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ch:
				if last != nil && *last == v {
					continue
				}
				last = &v
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

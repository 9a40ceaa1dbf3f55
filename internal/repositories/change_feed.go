package repositories

import "sync"

// ChangeFeed fans out "something changed" signals from local store writes
// to reactive readers. Signals coalesce: a slow reader sees at most one
// pending notification.
type ChangeFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[int]chan struct{})}
}

// Subscribe returns a signal channel and a cancel func that releases it.
func (f *ChangeFeed) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	if f == nil {
		return ch, func() {}
	}

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *ChangeFeed) Notify() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

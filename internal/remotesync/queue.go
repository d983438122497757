package remotesync

import "sync"

// keyedQueue serialises work per key in the order enqueue is called, while
// different keys proceed independently.
type keyedQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{tails: make(map[string]chan struct{})}
}

// enqueue reserves the next slot for key. The returned channel (nil when the
// lane is idle) closes once the previous holder is done; done must be called
// exactly once when the work finishes.
func (q *keyedQueue) enqueue(key string) (prev <-chan struct{}, done func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if tail, ok := q.tails[key]; ok {
		prev = tail
	}
	mine := make(chan struct{})
	q.tails[key] = mine

	var once sync.Once
	return prev, func() {
		once.Do(func() {
			close(mine)
			q.mu.Lock()
			if q.tails[key] == mine {
				delete(q.tails, key)
			}
			q.mu.Unlock()
		})
	}
}

// pending returns the number of keys with work in flight.
func (q *keyedQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}

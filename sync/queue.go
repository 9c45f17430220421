package sync

import (
	"log/slog"
	gosync "sync"
)

// RunQueue is a thread-safe set-based queue of pending run directions.
// A direction already waiting is not queued twice. Pop returns FIFO order.
type RunQueue struct {
	mu     gosync.Mutex
	set    map[Direction]struct{}
	order  []Direction
	notify chan struct{} // signaled when items are added
}

// NewRunQueue creates an empty queue.
func NewRunQueue() *RunQueue {
	return &RunQueue{
		set:    make(map[Direction]struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Push queues dir. It reports false if dir was already pending.
func (q *RunQueue) Push(dir Direction) bool {
	q.mu.Lock()
	if _, exists := q.set[dir]; exists {
		q.mu.Unlock()
		if logEnabled(slog.LevelDebug) {
			sub("queue").Debug("push dedup", "direction", dir)
		}
		return false
	}
	q.set[dir] = struct{}{}
	q.order = append(q.order, dir)
	newLen := len(q.order)
	q.mu.Unlock()

	if logEnabled(slog.LevelDebug) {
		sub("queue").Debug("push", "direction", dir, "queueLen", newLen)
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the next direction. Blocks until one is available
// or done is closed. Returns ("", false) when done.
func (q *RunQueue) Pop(done <-chan struct{}) (Direction, bool) {
	for {
		q.mu.Lock()
		if len(q.order) > 0 {
			dir := q.order[0]
			q.order = q.order[1:]
			delete(q.set, dir)
			remaining := len(q.order)
			q.mu.Unlock()
			if logEnabled(slog.LevelDebug) {
				sub("queue").Debug("pop", "direction", dir, "queueLen", remaining)
			}
			return dir, true
		}
		q.mu.Unlock()

		select {
		case <-done:
			sub("queue").Debug("pop cancelled")
			return "", false
		case <-q.notify:
		}
	}
}

// Has checks if dir is pending.
func (q *RunQueue) Has(dir Direction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.set[dir]
	return exists
}

// Len returns the number of pending directions.
func (q *RunQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Pending returns a snapshot of the queued directions in order.
func (q *RunQueue) Pending() []Direction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Direction, len(q.order))
	copy(out, q.order)
	return out
}

// Drain removes and returns all pending directions.
func (q *RunQueue) Drain() []Direction {
	q.mu.Lock()
	result := q.order
	q.order = nil
	q.set = make(map[Direction]struct{})
	q.mu.Unlock()

	if logEnabled(slog.LevelDebug) {
		sub("queue").Debug("drain", "count", len(result))
	}
	return result
}

package sync

import (
	gosync "sync"
	"time"
)

// NoticeLevel separates routine messages from failures.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message emitted during a run.
type Notice struct {
	RunID   string      `json:"runId"`
	Level   NoticeLevel `json:"level"`
	Phase   Phase       `json:"phase,omitempty"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// EventBus broadcasts Notices to all subscribers (CLI printer, websocket clients).
type EventBus struct {
	mu      gosync.RWMutex
	clients map[chan Notice]bool // true: lossless
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		clients: make(map[chan Notice]bool),
	}
}

// Subscribe registers a new client and returns its notice channel.
// Notices are dropped while the channel is full.
func (b *EventBus) Subscribe() chan Notice {
	return b.subscribe(false)
}

// SubscribeLossless registers a client that receives every notice.
// Publish blocks until it has room, so the client must drain the channel
// until Unsubscribe closes it.
func (b *EventBus) SubscribeLossless() chan Notice {
	return b.subscribe(true)
}

func (b *EventBus) subscribe(lossless bool) chan Notice {
	ch := make(chan Notice, 64)
	b.mu.Lock()
	b.clients[ch] = lossless
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Notice) {
	b.mu.Lock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends a notice to every subscriber.
// Slow subscribers are skipped (non-blocking send) unless lossless.
func (b *EventBus) Publish(n Notice) {
	if n.Time.IsZero() {
		n.Time = nowFunc()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, lossless := range b.clients {
		if lossless {
			ch <- n
			continue
		}
		select {
		case ch <- n:
		default:
			// slow client, drop notice
		}
	}
}

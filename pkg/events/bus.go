// Package events is an in-memory publish/subscribe bus for run events.
package events

import (
	"sync"
	"time"
)

// EventBus provides publish/subscribe for run events.
type EventBus interface {
	Publish(event Event)
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
}

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool
}

func (s subscriber) wants(t EventType) bool {
	return len(s.filter) == 0 || s.filter[t]
}

// DefaultHistorySize bounds the events a MemoryBus retains.
const DefaultHistorySize = 1024

// MemoryBus is an in-memory implementation of EventBus.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	history     []Event
	maxHistory  int
}

// NewMemoryBus creates a bus keeping at most maxHistory events. A value of
// zero or less uses DefaultHistorySize.
func NewMemoryBus(maxHistory int) *MemoryBus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &MemoryBus{maxHistory: maxHistory}
}

// Publish records the event and delivers it to matching subscribers.
// Subscribers whose buffers are full miss the event.
func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if over := len(b.history) - b.maxHistory; over > 0 {
		b.history = append(b.history[:0:0], b.history[over:]...)
	}
	subs := append([]subscriber(nil), b.subscribers...)
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// PublishRunEvent adapts the bus to the runner's publisher interface.
func (b *MemoryBus) PublishRunEvent(eventType string, data any, checkIndex int, duration time.Duration) {
	e := NewEvent(EventType(eventType), data)
	e.CheckIndex = checkIndex
	e.Duration = duration
	b.Publish(e)
}

// Subscribe returns a buffered channel receiving events of the given types,
// or all events when no filter is given.
func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	sub := subscriber{ch: make(chan Event, 64)}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return sub.ch
}

// Unsubscribe removes and closes a subscription.
func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close closes every subscription.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}

// History returns retained events at or after since.
func (b *MemoryBus) History(since time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, e := range b.history {
		if !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}

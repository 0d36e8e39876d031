// Package feed provides an in-process implementation of the run/task
// status feed consumed by the presentation layer.
package feed

import (
	"sync"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events rather than blocking
// the engine.
const subscriberBuffer = 256

// Ensure Broadcast implements the interface.
var _ driven.StatusFeed = (*Broadcast)(nil)

// Broadcast fans task events out to all current subscribers.
type Broadcast struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan driven.TaskEvent
	closed bool
}

// NewBroadcast creates an empty broadcast feed.
func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[int]chan driven.TaskEvent)}
}

// Publish emits an event to all current subscribers without blocking.
func (b *Broadcast) Publish(event driven.TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber loses this event instead of stalling tasks.
		}
	}
}

// Subscribe returns a buffered event channel and a cancel function.
// The channel is closed after cancel returns.
func (b *Broadcast) Subscribe() (<-chan driven.TaskEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan driven.TaskEvent, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close drops all subscribers. Publish becomes a no-op afterwards.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

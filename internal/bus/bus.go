// Package bus is the in-process publish/subscribe channel between the sync
// engine and the rendering layer. Delivery is non-blocking: a subscriber
// that stops draining its channel loses events rather than stalls the
// engine's callback path.
package bus

import (
	"strings"
	"sync"
)

// Bus fans events out to subscribers by namespace prefix.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
// Full subscriber buffers drop the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe registers interest in all events whose kind starts with prefix.
// An empty prefix matches everything. The returned function detaches the
// subscriber; the channel is never closed so late reads simply block.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

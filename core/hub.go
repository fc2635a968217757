package core

import (
	"sync"

	"nftstake/core/types"
)

// Hub fans committed events out to live subscribers. Slow subscribers drop
// events rather than stall the node.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *types.Event
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan *types.Event)}
}

// Subscribe registers a listener with the given buffer size. The returned
// cancel function closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers evt to every subscriber with spare capacity.
func (h *Hub) Publish(evt *types.Event) {
	if evt == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

package plugins

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// eventBuffer is how many tunings a slow subscriber may lag behind before
// tunings are dropped for it.
const eventBuffer = 16

// EventHub fans tuning events out to websocket subscribers
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Tuning
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[string]chan Tuning),
	}
}

// Subscribe registers a new subscriber and returns its id and channel
func (h *EventHub) Subscribe() (string, <-chan Tuning) {
	id := uuid.New().String()
	ch := make(chan Tuning, eventBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	slog.Debug("Event subscriber added", "id", id)
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
		slog.Debug("Event subscriber removed", "id", id)
	}
}

// Publish hands t to every subscriber without blocking
func (h *EventHub) Publish(t Tuning) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- t:
		default:
			slog.Warn("Dropping tuning event for slow subscriber", "id", id, "tuning", t.ID)
		}
	}
}

// Len returns the number of subscribers
func (h *EventHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close removes all subscribers
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

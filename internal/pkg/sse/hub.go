package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Event represents an SSE event to be sent to subscribers
type Event struct {
	Key   string
	Event string
	Data  interface{}
}

// Hub manages SSE subscribers and event broadcasting. Subscribers register
// under a key: a user ID on the API server, a fixed topic on the agent.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	bufSize     int
}

// NewHub creates a new SSE Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		bufSize:     10,
	}
}

// Subscribe registers a new subscriber for a key and returns the event channel and cleanup function
func (h *Hub) Subscribe(key string) (chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufSize)

	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[chan Event]struct{})
	}
	h.subscribers[key][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[key], ch)
			close(ch)
			if len(h.subscribers[key]) == 0 {
				delete(h.subscribers, key)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of a key
func (h *Hub) Publish(key string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event.Key = key
	if subs, ok := h.subscribers[key]; ok {
		for ch := range subs {
			select {
			case ch <- event:
			default:
				// Skip if channel is full (non-blocking to prevent deadlock)
			}
		}
	}
}

// PublishToMany sends an event to several keys
func (h *Hub) PublishToMany(keys []string, event Event) {
	for _, key := range keys {
		h.Publish(key, event)
	}
}

// SubscriberCount returns the number of active subscribers for a key
func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[key]; ok {
		return len(subs)
	}
	return 0
}

// TotalSubscribers returns the total number of active subscribers across all keys
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}

// WriteEvent writes one event in text/event-stream framing.
func WriteEvent(w io.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse data: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

package localhttp

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
)

// EventBadge carries the current badge snapshot.
const EventBadge = "badge"

type EventStream struct {
	hub       *sse.Hub
	topic     string
	keepalive time.Duration
}

// NewEventStream merges badge snapshots with hub events published on topic.
func NewEventStream(hub *sse.Hub, topic string) *EventStream {
	return &EventStream{
		hub:       hub,
		topic:     topic,
		keepalive: 30 * time.Second,
	}
}

// Events streams badge, notice and conflict events to the UI
func (h *handlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	badges, unsubscribe := h.monitor.Subscribe()
	defer unsubscribe()
	events, cleanup := h.events.hub.Subscribe(h.events.topic)
	defer cleanup()

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(h.events.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case badge, ok := <-badges:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, EventBadge, badge); err != nil {
				continue
			}
			flusher.Flush()

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, event.Event, event.Data); err != nil {
				continue
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

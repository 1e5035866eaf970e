package session

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/webview"
)

// Event types sent to subscribers.
const (
	EventURLChanged      = "url_changed"
	EventProgress        = "progress"
	EventBlockingChanged = "blocking_changed"
	EventDownload        = "download"
	EventFullscreenEnter = "fullscreen_enter"
	EventFullscreenExit  = "fullscreen_exit"
	EventHandoff         = "handoff"
	EventClosed          = "closed"
)

type Event struct {
	Type      string            `json:"type"`
	TabID     string            `json:"tab_id"`
	URL       string            `json:"url,omitempty"`
	Title     string            `json:"title,omitempty"`
	Progress  int               `json:"progress,omitempty"`
	Blocking  *bool             `json:"blocking,omitempty"`
	Download  *webview.Download `json:"download,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Hub fans events out to subscribers. A subscriber that falls behind misses
// events rather than stalling the tab.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: make(map[uint64]chan Event)}
}

// Subscribe returns a channel of events and a function that ends the
// subscription. The channel is closed when either is called or the hub
// closes.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *Hub) Publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

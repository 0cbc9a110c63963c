// Package notify fans editor changes out to live listeners: websocket
// clients in this process, and other processes through Redis.
package notify

import (
	"sync"
	"time"

	"github.com/Voltaic314/GameLedger/code/editor"
	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Event is the wire form of an editor change.
type Event struct {
	Origin string          `json:"origin,omitempty"`
	Table  string          `json:"table"`
	Kind   string          `json:"kind"`
	ID     string          `json:"id,omitempty"`
	Fields []string        `json:"fields,omitempty"`
	Record *typesdb.Record `json:"record,omitempty"`
	Error  string          `json:"error,omitempty"`
	At     time.Time       `json:"at"`
}

// FromChange converts a change of table into an Event.
func FromChange(table string, c editor.Change) Event {
	ev := Event{
		Table:  table,
		Kind:   c.Kind.String(),
		ID:     c.ID,
		Fields: c.Fields,
		At:     time.Now().UTC(),
	}
	if c.Record.ID != "" {
		rec := c.Record.Clone()
		ev.Record = &rec
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	return ev
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ev Event)
}

// Hub delivers events to in-process subscribers. A subscriber that falls
// behind loses events rather than blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
	logger *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan Event), logger: logger.Named("hub")}
}

// Subscribe returns a channel of events and a func that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

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

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("subscriber behind, event dropped",
				zap.Int("subscriber", id), zap.String("table", ev.Table), zap.String("kind", ev.Kind))
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Forward subscribes pub to the changes of ed, tagging them with table.
func Forward(ed *editor.ListEditor, table string, pub Publisher) (unsubscribe func()) {
	return ed.Subscribe(func(c editor.Change) {
		pub.Publish(FromChange(table, c))
	})
}

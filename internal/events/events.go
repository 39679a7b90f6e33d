package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"rereminder/shared/reminders"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for reminder events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
	logger      reminders.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger reminders.Logger) *EventBus {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for a given event type. The type "*"
// receives every event.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish marshals payload to JSON and dispatches it. It implements
// reminders.EventPublisher.
func (b *EventBus) Publish(evType string, payload interface{}) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			b.logger.Error("failed to encode event payload", "type", evType, "error", err)
			return
		}
	}
	b.Dispatch(Event{Type: evType, Payload: data})
}

// Dispatch notifies subscribers of the event type. Handlers run
// synchronously; errors are logged and do not stop other handlers.
func (b *EventBus) Dispatch(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers["*"]...)
	b.mu.RUnlock()

	if event.ID == 0 {
		event.ID = b.seq.Add(1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Error("event handler failed",
				"type", event.Type,
				"event_id", event.ID,
				"error", err)
		}
	}
}

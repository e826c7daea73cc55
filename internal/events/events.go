package events

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	EventBookingCreated  = "booking_created"
	EventBookingApproved = "booking_approved"
	EventBookingRejected = "booking_rejected"
)

// BookingEventTypes lists every event the booking lifecycle emits.
var BookingEventTypes = []string{EventBookingCreated, EventBookingApproved, EventBookingRejected}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BookingEventPayload is the booking snapshot sent to consumers.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	ItemID     int64     `json:"item_id"`
	ItemName   string    `json:"item_name"`
	BookerID   int64     `json:"booker_id"`
	OwnerID    int64     `json:"owner_id"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the handlers of the event type in registration order.
// Handler errors do not stop later handlers.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}

// DecodeBooking parses a booking event payload.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var payload BookingEventPayload
	err := json.Unmarshal(event.Payload, &payload)
	return payload, err
}

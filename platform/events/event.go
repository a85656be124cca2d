// Package events is the in-process publish/subscribe bus that bounded
// contexts use to react to each other without importing each other.
// It carries no business logic.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName is the subscription key, e.g. "leads.lead.deleted".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent is embedded by domain events.
type BaseEvent struct {
	EventID   uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// ID identifies a single publication; handlers log it for correlation.
func (e BaseEvent) ID() uuid.UUID {
	return e.EventID
}

// NewBaseEvent stamps a fresh id and the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{EventID: uuid.New(), Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the side of the bus business services depend on.
type Publisher interface {
	// Publish hands the event to its handlers in the background.
	Publish(ctx context.Context, event Event)
	// PublishSync returns after every handler ran, joining their errors.
	PublishSync(ctx context.Context, event Event) error
}

// Subscriber is the side of the bus event consumers register with.
type Subscriber interface {
	Subscribe(eventName string, handler Handler)
}

type Bus interface {
	Publisher
	Subscriber
}

func eventID(event Event) string {
	if identified, ok := event.(interface{ ID() uuid.UUID }); ok {
		return identified.ID().String()
	}
	return ""
}

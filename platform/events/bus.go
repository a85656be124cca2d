package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solar_portal_backend/platform/logger"
)

// InMemoryBus dispatches events to handlers registered in the same process.
// Handlers for one event name run in subscription order.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	if log == nil {
		log = logger.Discard()
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish runs the handlers on a separate goroutine and logs failures.
// The goroutine is detached from ctx cancellation so request teardown
// does not abort notification fan-out.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.snapshot(event.EventName())
	if len(handlers) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.dispatch(detached, event, handlers); err != nil {
			b.log.Error("event handler failed",
				"event", event.EventName(),
				"eventId", eventID(event),
				"error", err,
			)
		}
	}()
}

// PublishSync runs every handler before returning. All handlers run even
// when one fails; the failures are joined.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	return b.dispatch(ctx, event, b.snapshot(event.EventName()))
}

// Wait blocks until asynchronously published events have been handled.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}

func (b *InMemoryBus) snapshot(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := b.handlers[eventName]
	out := make([]Handler, len(handlers))
	copy(out, handlers)
	return out
}

func (b *InMemoryBus) dispatch(ctx context.Context, event Event, handlers []Handler) error {
	var errs []error
	for _, h := range handlers {
		if herr := b.safeHandle(ctx, event, h); herr != nil {
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) safeHandle(ctx context.Context, event Event, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.EventName(), r)
		}
	}()
	return h.Handle(ctx, event)
}

var _ Bus = (*InMemoryBus)(nil)

package services

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/dapursambal/storefront/internal/domain/events"
	"github.com/dapursambal/storefront/internal/domain/ports"
)

// EventBus dispatches outbox events to in-process handlers.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[events.EventType][]ports.EventHandler
	mu       sync.RWMutex
}

var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[events.EventType][]ports.EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType events.EventType, handler ports.EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	ptr := reflect.ValueOf(handler).Pointer()

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		handlers := eb.handlers[eventType]
		for i, h := range handlers {
			if reflect.ValueOf(h).Pointer() == ptr {
				eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler for eventType in registration order and stops at the first error
func (eb *EventBus) Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	eb.mu.RLock()
	handlers := eb.handlers[eventType]
	eb.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, payload); err != nil {
			return fmt.Errorf("EventBus handler error for %s: %w", eventType, err)
		}
	}
	return nil
}

// PublishAsync publishes an event on a background context
func (eb *EventBus) PublishAsync(eventType events.EventType, payload events.Payload) {
	go func() {
		if err := eb.Publish(context.Background(), eventType, payload); err != nil {
			log.Printf("EventBus async publish error: %v", err)
		}
	}()
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[events.EventType][]ports.EventHandler)
}

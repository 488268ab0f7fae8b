// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBufferSize is used when NewBus gets a non-positive size.
const DefaultBufferSize = 256

var (
	// ErrBusClosed is returned by Publish after Shutdown.
	ErrBusClosed = errors.New("event bus is shutting down")
	// ErrBusFull is returned when the buffer is full and the event is dropped.
	ErrBusFull = errors.New("event channel full")
)

// route is one subscription. A nil types set matches every event.
type route struct {
	id      uuid.UUID
	types   map[EventType]struct{}
	handler Handler
}

func (r route) matches(t EventType) bool {
	if r.types == nil {
		return true
	}
	_, ok := r.types[t]
	return ok
}

// Bus is an in-memory event bus. A single dispatcher delivers queued events
// in publish order; handlers of one event run in subscription order.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	routes []route
	closed bool

	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64
}

// NewBus starts the dispatcher.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &Bus{
		logger: logger.Named("event_bus"),
		queue:  make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers handler for the listed event types.
func (b *Bus) Subscribe(eventType EventType, handler Handler, more ...EventType) Subscription {
	types := make(map[EventType]struct{}, 1+len(more))
	types[eventType] = struct{}{}
	for _, t := range more {
		types[t] = struct{}{}
	}
	return b.add(route{id: uuid.New(), types: types, handler: handler})
}

// SubscribeFunc subscribes a plain function to one event type.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	return b.add(route{id: uuid.New(), handler: handler})
}

func (b *Bus) add(r route) Subscription {
	b.mu.Lock()
	b.routes = append(b.routes, r)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed", zap.String("subscription_id", r.id.String()))
	return &subscription{id: r.id, bus: b}
}

func (b *Bus) remove(id uuid.UUID) {
	b.mu.Lock()
	b.routes = slices.DeleteFunc(b.routes, func(r route) bool { return r.id == id })
	b.mu.Unlock()

	b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id.String()))
}

// Publish queues an event without blocking. A full buffer drops the event.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers the event to matching handlers on the caller's goroutine.
// Every handler runs; their errors are joined.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	var targets []route
	for _, r := range b.routes {
		if r.matches(event.Type()) {
			targets = append(targets, r)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, r := range targets {
		if err := r.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", r.id.String()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s handlers failed: %w", event.Type(), errors.Join(errs...))
	}
	return nil
}

// dispatch runs until the queue is closed and drained.
func (b *Bus) dispatch() {
	defer close(b.done)
	for event := range b.queue {
		_ = b.PublishSync(context.Background(), event)
	}
}

// Shutdown rejects new events and waits until queued ones are delivered.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		b.logger.Debug("Event bus drained", zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

// Stats is a snapshot of the bus state.
type Stats struct {
	BufferSize    int
	PendingEvents int
	Dropped       uint64
	// HandlersPerType counts subscriptions per event type; types with none are omitted.
	HandlersPerType map[EventType]int
}

// Stats returns a snapshot of queue and subscription counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[EventType]int)
	for _, t := range AllTypes {
		for _, r := range b.routes {
			if r.matches(t) {
				counts[t]++
			}
		}
	}
	return Stats{
		BufferSize:      cap(b.queue),
		PendingEvents:   len(b.queue),
		Dropped:         b.dropped.Load(),
		HandlersPerType: counts,
	}
}

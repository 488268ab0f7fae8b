// internal/events/handler.go
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handler consumes bus events. Handlers run on the dispatcher goroutine and
// should return quickly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is returned by the Subscribe methods.
type Subscription interface {
	// Unsubscribe stops delivery; later calls are no-ops.
	Unsubscribe()
}

type subscription struct {
	id   uuid.UUID
	bus  *Bus
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.id) })
}

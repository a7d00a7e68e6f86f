package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, event Event) error

// Bus is an in-process pub/sub bus connecting state transitions to their
// side effects (notifications, logging) without coupling the packages.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler) (unsubscribe func())
}

func NewBus() Bus {
	return &inProcessBus{subscribers: make(map[Type][]subscriber)}
}

type subscriber struct {
	id      uint64
	handler Handler
}

type inProcessBus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscriber
	nextID      uint64
}

// Publish delivers the event to every subscriber synchronously. Handler
// errors are logged and do not stop delivery to the remaining subscribers.
func (b *inProcessBus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			log.Error().Err(err).
				Str("event", string(event.Type)).
				Msg("event handler error")
		}
	}
	return nil
}

func (b *inProcessBus) Subscribe(eventType Type, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber{
		id:      id,
		handler: handler,
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

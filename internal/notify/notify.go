// Package notify fans store lifecycle events out to subscribers, most
// commonly a realtime broadcaster. Delivery is synchronous and
// best-effort: a slow or broken subscriber is isolated and can never fail
// or block the mutation that produced the event beyond its own call.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/olibuijr/docvault/internal/logging"
	"github.com/olibuijr/docvault/internal/store"
)

// Subscriber receives events. Implementations should return quickly; the
// store calls them on the mutating goroutine.
type Subscriber interface {
	Notify(e store.Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(e store.Event)

func (f SubscriberFunc) Notify(e store.Event) { f(e) }

// Broadcaster implements store.EventSink by delivering each event to all
// registered subscribers, recovering per-subscriber panics.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   []Subscriber
	logger logging.Logger
}

func NewBroadcaster(logger logging.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Subscribe registers a subscriber. Safe to call concurrently with
// deliveries; the new subscriber sees only events that commit after
// registration.
func (b *Broadcaster) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Notify delivers e to every subscriber in registration order.
func (b *Broadcaster) Notify(e store.Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Broadcaster) deliver(s Subscriber, e store.Event) {
	defer func() {
		if p := recover(); p != nil && b.logger != nil {
			b.logger.Error(context.Background(), "subscriber panicked",
				"kind", e.Kind, "collection", e.Collection, "panic", fmt.Sprint(p))
		}
	}()
	s.Notify(e)
}

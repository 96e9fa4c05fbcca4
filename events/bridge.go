package events

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	kelindarEvent "github.com/kelindar/event"
)

// Envelope carries one dispatched emission to external integrations
type Envelope struct {
	Name Name
	Args []any
	Time time.Time

	kind uint32
}

// Type implements kelindar's event interface. The zero Envelope has type 0,
// the channel that receives every emission.
func (e Envelope) Type() uint32 { return e.kind }

// TypeOf returns the dispatcher channel of a single event name. Never 0.
func TypeOf(name Name) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	if v := h.Sum32(); v != 0 {
		return v
	}
	return 1
}

// Bridge forwards emissions the bus has dispatched to subscribers outside the
// widget runtime. Delivery is asynchronous and ordered per subscriber, so a
// slow integration never blocks Emit.
type Bridge struct {
	mu         sync.RWMutex
	dispatcher *kelindarEvent.Dispatcher
	closed     bool
}

// NewBridge creates a bridge with its own dispatcher
func NewBridge() *Bridge {
	return &Bridge{dispatcher: kelindarEvent.NewDispatcher()}
}

// Forward publishes an emission on its own channel and on the catch-all channel
func (b *Bridge) Forward(name Name, args []any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	env := Envelope{Name: name, Args: append([]any(nil), args...), Time: time.Now()}
	specific := env
	specific.kind = TypeOf(name)
	kelindarEvent.Publish(b.dispatcher, specific)
	kelindarEvent.Publish(b.dispatcher, env)
}

// SubscribeAll receives every forwarded emission
func (b *Bridge) SubscribeAll(fn func(Envelope)) context.CancelFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return func() {}
	}
	return kelindarEvent.Subscribe(b.dispatcher, fn)
}

// SubscribeTo receives forwarded emissions of one event name
func (b *Bridge) SubscribeTo(name Name, fn func(Envelope)) context.CancelFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return func() {}
	}
	return kelindarEvent.SubscribeTo(b.dispatcher, TypeOf(name), fn)
}

// Close stops delivery. Pending envelopes may be dropped.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.dispatcher.Close()
}

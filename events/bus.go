// Package events provides the widget event bus: a synchronous publish/subscribe
// channel over a closed catalog of event names, with a veto-capable middleware
// chain, payload validation and per-handler failure isolation.
package events

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"

	wlog "github.com/go-lynx/widget/log"
	"github.com/go-lynx/widget/observability/metrics"
)

// Handler receives the arguments of an emission
type Handler func(args ...any)

// Subscription is one registered handler. Off removes exactly this record.
type Subscription struct {
	name    Name
	handler Handler
	once    bool
	fired   atomic.Bool
}

// Name returns the event the subscription listens to
func (s *Subscription) Name() Name { return s.name }

// Bus is a synchronous event bus. Emit returns after every handler ran.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[Name][]*Subscription
	middleware []Middleware

	validator   PayloadValidator
	strict      bool
	development bool

	log     *log.Helper
	logger  log.Logger
	metrics *metrics.Metrics
	bridge  *Bridge
	history *History

	asyncMu     sync.RWMutex
	asyncQ      chan emission
	asyncDone   chan struct{}
	asyncClosed bool
	closed      atomic.Bool
}

type emission struct {
	name Name
	args []any
}

// Option configures a Bus
type Option func(*Bus)

// WithLogger sets the bus logger
func WithLogger(l log.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithStrictValidation makes payload validation failures block dispatch and
// return an error to the emitter.
func WithStrictValidation(strict bool) Option {
	return func(b *Bus) { b.strict = strict }
}

// WithDevelopment enables development-build diagnostics
func WithDevelopment(dev bool) Option {
	return func(b *Bus) { b.development = dev }
}

// WithValidator replaces the payload validator. nil disables validation.
func WithValidator(v PayloadValidator) Option {
	return func(b *Bus) { b.validator = v }
}

// WithMiddleware appends middleware in order
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) { b.middleware = append(b.middleware, mw...) }
}

// WithMetrics records bus counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithBridge forwards dispatched emissions to external integrations
func WithBridge(br *Bridge) Option {
	return func(b *Bus) { b.bridge = br }
}

// WithHistory records every dispatched emission in h
func WithHistory(h *History) Option {
	return func(b *Bus) { b.history = h }
}

// WithAsyncQueue sets the capacity of the EmitAsync queue
func WithAsyncQueue(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.asyncQ = make(chan emission, size)
		}
	}
}

// NewBus creates a bus validating against Catalog in lenient mode
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers:  make(map[Name][]*Subscription),
		validator: NewCatalogValidator(nil),
		logger:    wlog.GetLogger(),
		asyncDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.asyncQ == nil {
		b.asyncQ = make(chan emission, 1024)
	}
	b.log = log.NewHelper(b.logger)
	go b.runAsync()
	return b
}

// History returns the emission history, or nil when not recording
func (b *Bus) History() *History { return b.history }

// Logger returns the logger the bus was built with, for middleware construction
func (b *Bus) Logger() log.Logger { return b.logger }

// Use appends middleware. Middleware runs in registration order.
func (b *Bus) Use(mw ...Middleware) {
	b.mu.Lock()
	b.middleware = append(b.middleware, mw...)
	b.mu.Unlock()
}

// Subscribe registers h for name and returns the subscription record
func (b *Bus) Subscribe(name Name, h Handler) *Subscription {
	return b.add(name, h, false)
}

// On registers h for name and returns a function that removes it
func (b *Bus) On(name Name, h Handler) (unsubscribe func()) {
	sub := b.add(name, h, false)
	return func() { b.Off(sub) }
}

// Once registers h to run at most once
func (b *Bus) Once(name Name, h Handler) (unsubscribe func()) {
	sub := b.add(name, h, true)
	return func() { b.Off(sub) }
}

func (b *Bus) add(name Name, h Handler, once bool) *Subscription {
	sub := &Subscription{name: name, handler: h, once: once}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], sub)
	b.mu.Unlock()
	return sub
}

// Off removes exactly sub. The name's entry is deleted with its last handler.
func (b *Bus) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.name]
	for i, s := range list {
		if s == sub {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.handlers, sub.name)
		return
	}
	b.handlers[sub.name] = list
}

// Wildcard attaches h to every event name that has at least one subscriber
// right now. Names that gain their first subscriber later are not covered.
func (b *Bus) Wildcard(h func(name Name, args ...any)) (unsubscribe func()) {
	names := b.EventNames()
	subs := make([]*Subscription, 0, len(names))
	for _, n := range names {
		name := n
		subs = append(subs, b.add(name, func(args ...any) { h(name, args...) }, false))
	}
	return func() {
		for _, s := range subs {
			b.Off(s)
		}
	}
}

// Emit runs the middleware chain, validates the payload and invokes the
// handlers of name in subscription order. Vetoes are silent (nil error).
// Only strict-mode validation failures and a closed bus return an error.
func (b *Bus) Emit(name Name, args ...any) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	chain := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	for _, mw := range chain {
		if !b.runMiddleware(mw, name, args) {
			b.metrics.EventVetoed(string(name))
			return nil
		}
	}

	if b.validator != nil {
		if err := b.validator.Validate(name, args); err != nil {
			b.metrics.EventInvalid(string(name), b.strict)
			if b.strict {
				b.log.Errorf("event payload rejected: name=%s err=%v", name, err)
				return err
			}
			if b.development {
				b.log.Warnf("event payload does not match catalog: name=%s err=%v", name, err)
			}
		}
	}

	b.mu.RLock()
	subs := append([]*Subscription(nil), b.handlers[name]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.once {
			if !sub.fired.CompareAndSwap(false, true) {
				continue
			}
			b.Off(sub)
		}
		b.invoke(sub, args)
	}

	b.metrics.EventEmitted(string(name))
	if b.history != nil {
		b.history.Add(name, args)
	}
	if b.bridge != nil {
		b.bridge.Forward(name, args)
	}
	return nil
}

// runMiddleware treats a panicking middleware as a veto
func (b *Bus) runMiddleware(mw Middleware, name Name, args []any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("event middleware panic: name=%s panic=%v", name, r)
			ok = false
		}
	}()
	return mw(name, args)
}

func (b *Bus) invoke(sub *Subscription, args []any) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.HandlerPanic(string(sub.name))
			b.log.Errorw("msg", "event handler panic",
				"event", string(sub.name),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	sub.handler(args...)
}

// EmitAsync queues an emission for the bus's dispatcher goroutine. Queued
// emissions are delivered in the order they were queued. It blocks while the
// queue is full, so handlers must not fill the queue from the dispatcher itself.
func (b *Bus) EmitAsync(name Name, args ...any) error {
	b.asyncMu.RLock()
	defer b.asyncMu.RUnlock()
	if b.asyncClosed {
		return ErrBusClosed
	}
	b.asyncQ <- emission{name: name, args: args}
	return nil
}

func (b *Bus) runAsync() {
	defer close(b.asyncDone)
	for e := range b.asyncQ {
		if err := b.Emit(e.name, e.args...); err != nil {
			b.log.Warnf("async emission failed: name=%s err=%v", e.name, err)
		}
	}
}

// ListenerCount returns how many handlers are registered for name
func (b *Bus) ListenerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// HasListeners reports whether name has at least one handler
func (b *Bus) HasListeners(name Name) bool {
	return b.ListenerCount(name) > 0
}

// EventNames returns the names that currently have handlers, sorted
func (b *Bus) EventNames() []Name {
	b.mu.RLock()
	out := make([]Name, 0, len(b.handlers))
	for n := range b.handlers {
		out = append(out, n)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveAll drops every subscription of name
func (b *Bus) RemoveAll(name Name) {
	b.mu.Lock()
	delete(b.handlers, name)
	b.mu.Unlock()
}

// Close drains queued async emissions, then rejects further emissions.
func (b *Bus) Close() error {
	b.asyncMu.Lock()
	if b.asyncClosed {
		b.asyncMu.Unlock()
		return nil
	}
	b.asyncClosed = true
	close(b.asyncQ)
	b.asyncMu.Unlock()
	<-b.asyncDone

	b.closed.Store(true)
	if b.bridge != nil {
		return b.bridge.Close()
	}
	return nil
}

// Package bus implements the synchronous publish/subscribe hub that lets
// validation, branching and navigation cooperate without direct coupling.
package bus

import (
	"log/slog"
	"sync"

	"github.com/quillform/stepflow/internal/logging"
)

// Listener receives the payload of one published event. Listeners run
// synchronously on the publishing goroutine, in subscription order.
type Listener func(payload any)

type subscription struct {
	id int
	fn Listener
}

// Bus is a typed event hub with module-readiness gating.
//
// Ordering is guaranteed only among listeners of the same event name; there
// is no ordering or reentrancy protection across distinct events. A listener
// may publish further events, but must not recursively re-enter the same
// mutation it was triggered by.
type Bus struct {
	mu        sync.Mutex
	logger    *slog.Logger
	listeners map[string][]subscription
	modules   map[string]bool
	requires  map[string]string
	nextID    int
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger:    logging.NewNop(),
		listeners: make(map[string][]subscription),
		modules:   make(map[string]bool),
		requires:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Require declares that event may only be delivered while module is
// registered. Declared once at wiring time; Publish consults the declaration
// instead of matching event-name strings per emission. Events with an unmet
// requirement are dropped with a diagnostic, never queued, which prevents
// races during partial initialization.
func (b *Bus) Require(event, module string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requires[event] = module
}

// RegisterModule marks a module as initialized.
func (b *Bus) RegisterModule(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules[name] = true
}

// UnregisterModule marks a module as torn down.
func (b *Bus) UnregisterModule(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.modules, name)
}

// ModuleReady reports whether a module is currently registered.
func (b *Bus) ModuleReady(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modules[name]
}

// Subscribe registers a listener for event and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(event string, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[event] = append(b.listeners[event], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.listeners[event]
		for i := range subs {
			if subs[i].id == id {
				b.listeners[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every listener of event, synchronously and in
// subscription order. A panicking listener is caught and reported with its
// index; delivery continues to the remaining listeners.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	if module, gated := b.requires[event]; gated && !b.modules[module] {
		b.mu.Unlock()
		b.logger.Warn("event dropped: required module not initialized",
			"event", event, "module", module)
		return
	}
	subs := append([]subscription(nil), b.listeners[event]...)
	b.mu.Unlock()

	for i, sub := range subs {
		b.deliver(event, i, sub, payload)
	}
}

func (b *Bus) deliver(event string, index int, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", "event", event, "listener", index, "panic", r)
		}
	}()
	sub.fn(payload)
}

package bus

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

// ListenerFunc is the callable wrapped by a Listener.
type ListenerFunc func(source *Dispatcher, event Event) error

// Listener is an opaque callback handed to a Registry by an external
// caller (script bridge, inspector connection). Two listeners are the
// same only if they are the same pointer.
type Listener struct {
	id       string
	name     string
	fn       ListenerFunc
	disposed atomic.Bool
}

// NewListener wraps fn. A nil fn yields a listener that is never valid.
func NewListener(name string, fn ListenerFunc) *Listener {
	return &Listener{id: uuid.NewString(), name: name, fn: fn}
}

func (l *Listener) ID() string   { return l.id }
func (l *Listener) Name() string { return l.name }

// Dispose marks the listener dead. The registry drops it on its next dispatch.
func (l *Listener) Dispose() { l.disposed.Store(true) }

// Valid reports whether the listener can still be invoked.
func (l *Listener) Valid() bool {
	return l != nil && l.fn != nil && !l.disposed.Load()
}

func (l *Listener) call(source *Dispatcher, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener %q panic: %v", l.name, r)
		}
	}()
	return l.fn(source, event)
}

type bindingKey struct {
	source    SourceID
	eventType string
}

type binding struct {
	listeners []*Listener
	sub       Subscription
}

type sourceEntry struct {
	dispatcher *Dispatcher
	hook       Subscription
	bindings   int
}

// Registry maps (source, event type) pairs to ordered listener chains.
// Each binding owns exactly one subscription on its source; the first
// listener creates it and removing the last one cancels it.
type Registry struct {
	logger log.Log

	mu       sync.Mutex
	bindings map[bindingKey]*binding
	sources  map[SourceID]*sourceEntry
}

func NewRegistry(logger log.Log) *Registry {
	return &Registry{
		logger:   logger.With(log.String("component", "event_registry")),
		bindings: make(map[bindingKey]*binding),
		sources:  make(map[SourceID]*sourceEntry),
	}
}

// AddListener appends l to the chain for (src, eventType). It returns
// false when l is not a valid callable or src is closed.
func (r *Registry) AddListener(src *Dispatcher, eventType string, l *Listener) bool {
	if src == nil || !l.Valid() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := bindingKey{source: src.ID(), eventType: eventType}
	if b, ok := r.bindings[key]; ok {
		b.listeners = append(append([]*Listener(nil), b.listeners...), l)
		return true
	}

	entry, ok := r.sources[src.ID()]
	if !ok {
		hook, err := src.AddListener(ForceUnsubscribe, func(source *Dispatcher, _ Event) error {
			r.OnSourceTeardown(source.ID())
			return nil
		}, math.MaxInt)
		if err != nil {
			return false
		}
		entry = &sourceEntry{dispatcher: src, hook: hook}
		r.sources[src.ID()] = entry
	}

	sub, err := src.AddListener(eventType, func(source *Dispatcher, event Event) error {
		return r.Dispatch(source, event)
	}, 0)
	if err != nil {
		if entry.bindings == 0 {
			_ = entry.hook.Cancel()
			delete(r.sources, src.ID())
		}
		return false
	}

	r.bindings[key] = &binding{listeners: []*Listener{l}, sub: sub}
	entry.bindings++
	return true
}

// RemoveListener removes l from the chain for (src, eventType). It
// returns false if l was not registered there.
func (r *Registry) RemoveListener(src *Dispatcher, eventType string, l *Listener) bool {
	if src == nil || l == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(bindingKey{source: src.ID(), eventType: eventType}, l)
}

func (r *Registry) removeLocked(key bindingKey, l *Listener) bool {
	b, ok := r.bindings[key]
	if !ok {
		return false
	}

	idx := -1
	for i, other := range b.listeners {
		if other == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	next := make([]*Listener, 0, len(b.listeners)-1)
	next = append(next, b.listeners[:idx]...)
	next = append(next, b.listeners[idx+1:]...)
	if len(next) > 0 {
		b.listeners = next
		return true
	}

	_ = b.sub.Cancel()
	delete(r.bindings, key)
	if entry, ok := r.sources[key.source]; ok {
		entry.bindings--
		if entry.bindings == 0 {
			_ = entry.hook.Cancel()
			delete(r.sources, key.source)
		}
	}
	return true
}

// Dispatch invokes the listeners bound to (source, event type) in
// registration order. Listener failures are logged and do not stop the
// chain; ErrStopPropagation does and is returned to the dispatcher.
func (r *Registry) Dispatch(source *Dispatcher, event Event) error {
	key := bindingKey{source: source.ID(), eventType: event.Type()}

	r.mu.Lock()
	b, ok := r.bindings[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	snapshot := b.listeners
	r.mu.Unlock()

	for _, l := range snapshot {
		if !r.registered(key, l) {
			continue
		}
		if !l.Valid() {
			r.logger.Warn("removing invalid listener",
				log.String("listener", l.name),
				log.String("source", string(key.source)),
				log.String("event", key.eventType))
			r.mu.Lock()
			r.removeLocked(key, l)
			r.mu.Unlock()
			continue
		}

		err := l.call(source, event)
		if errors.Is(err, ErrStopPropagation) {
			return ErrStopPropagation
		}
		if err != nil {
			r.logger.Error("listener failed",
				log.String("listener", l.name),
				log.String("source", string(key.source)),
				log.String("event", key.eventType),
				log.Error(err))
		}
	}
	return nil
}

func (r *Registry) registered(key bindingKey, l *Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[key]
	if !ok {
		return false
	}
	for _, other := range b.listeners {
		if other == l {
			return true
		}
	}
	return false
}

// OnSourceTeardown drops every binding of source and cancels the
// underlying subscriptions.
func (r *Registry) OnSourceTeardown(source SourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, b := range r.bindings {
		if key.source != source {
			continue
		}
		_ = b.sub.Cancel()
		delete(r.bindings, key)
	}
	if entry, ok := r.sources[source]; ok {
		_ = entry.hook.Cancel()
		delete(r.sources, source)
		r.logger.Debug("source torn down", log.String("source", string(source)))
	}
}

// Bindings returns the number of live (source, event type) bindings.
func (r *Registry) Bindings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// Listeners returns the number of listeners bound to (source, eventType).
func (r *Registry) Listeners(source SourceID, eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[bindingKey{source: source, eventType: eventType}]; ok {
		return len(b.listeners)
	}
	return 0
}

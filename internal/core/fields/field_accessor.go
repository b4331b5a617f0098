package fields

import (
	"sync"
	"sync/atomic"
)

var _ FieldAccessor[any] = (*FA[any])(nil)

// FA is a reactive field: every Set bumps the version and notifies the
// subscribers synchronously on the calling goroutine, in subscription order.
type FA[T any] struct {
	value   atomic.Value
	version atomic.Uint64

	subsMx      sync.RWMutex
	subsID      uint64
	subscribers []subscriber[T]
}

type subscriber[T any] struct {
	id       uint64
	onUpdate func(T)
}

type boxed[T any] struct {
	v T
}

// NewFA creates a new field accessor with an optional initial value.
// If no initial value is provided, the zero value of type T is used.
func NewFA[T any](initial ...T) *FA[T] {
	fa := &FA[T]{}
	var initialValue T
	if len(initial) > 0 {
		initialValue = initial[0]
	}
	fa.value.Store(boxed[T]{v: initialValue})
	return fa
}

// Get returns the current value stored in the field accessor.
func (a *FA[T]) Get() T {
	val, ok := a.value.Load().(boxed[T])
	if !ok {
		var zero T
		return zero
	}
	return val.v
}

// Set updates the value and notifies all subscribers.
func (a *FA[T]) Set(value T) {
	a.value.Store(boxed[T]{v: value})
	a.version.Add(1)
	a.notify(value)
}

// Swap stores value and returns the previous one.
func (a *FA[T]) Swap(value T) T {
	old, _ := a.value.Swap(boxed[T]{v: value}).(boxed[T])
	a.version.Add(1)
	a.notify(value)
	return old.v
}

// Version returns the number of updates applied so far.
func (a *FA[T]) Version() uint64 {
	return a.version.Load()
}

// ChangedSince returns true if the field has been modified since the specified version.
func (a *FA[T]) ChangedSince(version uint64) bool {
	return a.version.Load() > version
}

// Subscribe registers a callback function that will be called whenever the value changes.
// Returns an unsubscribe function that can be called to remove the subscription.
func (a *FA[T]) Subscribe(onUpdate func(newValue T)) (unsubscribe func()) {
	a.subsMx.Lock()
	defer a.subsMx.Unlock()

	a.subsID++
	id := a.subsID
	a.subscribers = append(a.subscribers, subscriber[T]{id: id, onUpdate: onUpdate})

	return func() {
		a.subsMx.Lock()
		defer a.subsMx.Unlock()
		for i, sub := range a.subscribers {
			if sub.id == id {
				a.subscribers = append(a.subscribers[:i:i], a.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (a *FA[T]) notify(value T) {
	a.subsMx.RLock()
	if len(a.subscribers) == 0 {
		a.subsMx.RUnlock()
		return
	}
	snapshot := make([]subscriber[T], len(a.subscribers))
	copy(snapshot, a.subscribers)
	a.subsMx.RUnlock()

	for _, sub := range snapshot {
		sub.onUpdate(value)
	}
}

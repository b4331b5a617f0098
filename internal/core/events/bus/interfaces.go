package bus

import (
	"errors"
	"time"
)

// ForceUnsubscribe is fired by a Dispatcher when it closes so listeners
// holding on to it can let go.
const ForceUnsubscribe = "forceUnsubscribe"

var (
	// ErrStopPropagation returned by a handler stops delivery of the
	// current event to the handlers after it.
	ErrStopPropagation  = errors.New("stop propagation")
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrNilHandler       = errors.New("nil handler")
)

// Event is an immutable message fired by a Dispatcher.
//
// Fields:
// - Type: routing key used to select handlers (required for delivery).
// - Timestamp: creation time of the event.
// - Data: opaque payload for consumers.
//
// Implementations should treat Event values as read-only.
type Event interface {
	Type() string
	Timestamp() time.Time
	Data() any
}

// Handler is invoked per delivered event with the dispatcher that fired it.
// Returning ErrStopPropagation halts the chain; other errors are logged
// and joined into the result of Fire while delivery continues.
type Handler func(source *Dispatcher, event Event) error

// Subscription represents a registered handler bound to an event type.
// Use Cancel to stop receiving events.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the event type this subscription listens to.
	EventType() string
	// Priority returns the delivery priority; 0 is delivered first.
	Priority() int
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries and errors. Implementations can
// export metrics, tracing, or logs. Observers should return quickly.
type Observer interface {
	OnFire(source SourceID, eventType string, event Event)
	OnDelivered(source SourceID, eventType string, handlers int, err error, durationMicros int64)
}

// Metrics represents a minimal set of counters; it is updated only when
// at least one observer is registered.
type Metrics struct {
	Fired             uint64
	DeliveredHandlers uint64
	Errors            uint64
	Stopped           uint64
	SubscribersActive uint64
}

package bus

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

// SourceID identifies a Dispatcher.
type SourceID string

// simpleEvent is a basic implementation of Event.
// It can be used by callers who don't have their own Event types.
type simpleEvent struct {
	typeStr string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ string, data any) Event {
	return simpleEvent{typeStr: typ, ts: time.Now(), data: data}
}

// subscription implements Subscription.
type subscription struct {
	id        string
	eventType string
	priority  int
	seq       uint64
	handler   Handler
	active    atomic.Bool
	owner     *Dispatcher
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) Priority() int     { return s.priority }
func (s *subscription) IsActive() bool    { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.active.Swap(false) {
		s.owner.remove(s)
	}
	return nil
}

// Dispatcher is an event source. Handlers subscribe per event type and
// are called in priority order, then in subscription order, on the
// goroutine calling Fire.
type Dispatcher struct {
	id     SourceID
	name   string
	logger log.Log

	mu        sync.RWMutex
	signals   map[string][]*subscription
	seq       uint64
	closed    bool
	observers map[Observer]struct{}
	metrics   Metrics
}

// NewDispatcher creates an open dispatcher with a random id.
func NewDispatcher(name string, logger log.Log) *Dispatcher {
	id := SourceID(uuid.NewString())
	return &Dispatcher{
		id:        id,
		name:      name,
		logger:    logger.With(log.String("dispatcher", name), log.String("source", string(id))),
		signals:   make(map[string][]*subscription),
		observers: make(map[Observer]struct{}),
	}
}

func (d *Dispatcher) ID() SourceID { return d.id }
func (d *Dispatcher) Name() string { return d.name }

// AddListener subscribes handler to eventType. Lower priorities are
// delivered first.
func (d *Dispatcher) AddListener(eventType string, handler Handler, priority int) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}

	d.seq++
	s := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		priority:  priority,
		seq:       d.seq,
		handler:   handler,
		owner:     d,
	}
	s.active.Store(true)

	current := d.signals[eventType]
	pos := sort.Search(len(current), func(i int) bool { return current[i].priority > priority })
	next := make([]*subscription, 0, len(current)+1)
	next = append(next, current[:pos]...)
	next = append(next, s)
	next = append(next, current[pos:]...)
	d.signals[eventType] = next
	return s, nil
}

func (d *Dispatcher) remove(s *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.signals[s.eventType]
	next := make([]*subscription, 0, len(current))
	for _, other := range current {
		if other != s {
			next = append(next, other)
		}
	}
	if len(next) == 0 {
		delete(d.signals, s.eventType)
		return
	}
	d.signals[s.eventType] = next
}

// Listeners returns the number of active handlers for eventType.
func (d *Dispatcher) Listeners(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.signals[eventType])
}

// Fire delivers event to the handlers subscribed to its type. Handlers
// may subscribe or cancel during delivery; the set of handlers is fixed
// when Fire starts, and cancelled ones are skipped.
func (d *Dispatcher) Fire(event Event) error {
	start := time.Now()
	eventType := event.Type()

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil
	}
	subs := d.signals[eventType]
	observing := len(d.observers) > 0
	d.mu.RUnlock()

	if observing {
		for _, obs := range d.snapshotObservers() {
			obs.OnFire(d.id, eventType, event)
		}
	}

	var all error
	delivered := 0
	stopped := false
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		err := d.invoke(s, event)
		if errors.Is(err, ErrStopPropagation) {
			stopped = true
			break
		}
		if err != nil {
			d.logger.Warn("event handler failed",
				log.String("event", eventType),
				log.String("subscription", s.id),
				log.Error(err))
			all = errors.Join(all, err)
		}
	}

	if observing {
		dur := time.Since(start).Microseconds()
		for _, obs := range d.snapshotObservers() {
			obs.OnDelivered(d.id, eventType, delivered, all, dur)
		}
		d.mu.Lock()
		d.metrics.Fired++
		d.metrics.DeliveredHandlers += uint64(delivered)
		if all != nil {
			d.metrics.Errors++
		}
		if stopped {
			d.metrics.Stopped++
		}
		var active uint64
		for _, list := range d.signals {
			active += uint64(len(list))
		}
		d.metrics.SubscribersActive = active
		d.mu.Unlock()
	}
	return all
}

func (d *Dispatcher) invoke(s *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(d, event)
}

// Close fires ForceUnsubscribe, then cancels every subscription. Fire
// and AddListener do nothing after Close.
func (d *Dispatcher) Close() error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil
	}

	err := d.Fire(NewEvent(ForceUnsubscribe, d.id))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, list := range d.signals {
		for _, s := range list {
			s.active.Store(false)
		}
	}
	d.signals = make(map[string][]*subscription)
	return err
}

func (d *Dispatcher) AddObserver(obs Observer) {
	d.mu.Lock()
	d.observers[obs] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) RemoveObserver(obs Observer) {
	d.mu.Lock()
	delete(d.observers, obs)
	d.mu.Unlock()
}

// GetMetrics returns a snapshot of the counters collected while observed.
func (d *Dispatcher) GetMetrics() Metrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.metrics
}

func (d *Dispatcher) snapshotObservers() []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Observer, 0, len(d.observers))
	for obs := range d.observers {
		out = append(out, obs)
	}
	return out
}

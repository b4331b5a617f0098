// Package engine ties systems, entities, the filesystem task queue and
// event sources into a single-goroutine update loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fs"
	"github.com/zeusync/enginekit/internal/core/models"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/core/systems"
	"github.com/zeusync/enginekit/pkg/concurrent"
	"github.com/zeusync/enginekit/pkg/sequence"
)

const (
	EventEntityCreated = "entityCreated"
	EventEntityRemoved = "entityRemoved"

	// SourceEngine and SourceFilesystem name the built-in event sources.
	SourceEngine     = "engine"
	SourceFilesystem = "filesystem"
)

var (
	ErrEngineClosed   = errors.New("engine closed")
	ErrSystemExists   = errors.New("system already registered")
	ErrEntityNotFound = errors.New("entity not found")
)

// EntityEvent is fired by the engine dispatcher when an entity is
// created or removed.
type EntityEvent struct {
	typ    string
	Entity string
	ID     models.EntityID
	at     time.Time
}

func (e EntityEvent) Type() string         { return e.typ }
func (e EntityEvent) Timestamp() time.Time { return e.at }
func (e EntityEvent) Data() any            { return e }

// Options configure an Engine.
type Options struct {
	// Workers bounds the number of concurrent filesystem copies.
	Workers int
	// Tick is the fixed update interval used by Run.
	Tick time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Workers: 4, Tick: 16 * time.Millisecond}
}

// Engine owns every entity and system. Apart from Post and Call, its
// methods must be called from the goroutine running Update or Run.
type Engine struct {
	opts     Options
	logger   log.Log
	events   *bus.Dispatcher
	registry *bus.Registry
	files    fs.Service
	tasks    *fs.TaskQueue

	systems  []systems.System
	byName   map[string]systems.System
	entities *models.Arena[*models.Entity]
	names    map[string]models.EntityID
	counter  int

	posted *concurrent.Queue[func()]
	closed atomic.Bool
}

func New(opts Options, files fs.Service, registry *bus.Registry, logger log.Log) *Engine {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Tick <= 0 {
		opts.Tick = def.Tick
	}
	logger = logger.With(log.String("component", "engine"))

	return &Engine{
		opts:     opts,
		logger:   logger,
		events:   bus.NewDispatcher(SourceEngine, logger),
		registry: registry,
		files:    files,
		tasks:    fs.NewTaskQueue(files, opts.Workers, logger),
		byName:   make(map[string]systems.System),
		entities: models.NewArena[*models.Entity](),
		names:    make(map[string]models.EntityID),
		posted:   concurrent.NewQueue[func()](),
	}
}

// Dispatcher fires EventEntityCreated and EventEntityRemoved.
func (e *Engine) Dispatcher() *bus.Dispatcher { return e.events }
func (e *Engine) Registry() *bus.Registry     { return e.registry }
func (e *Engine) Files() fs.Service           { return e.files }
func (e *Engine) Tasks() *fs.TaskQueue        { return e.tasks }

// AddSystem registers s. Systems update in registration order.
func (e *Engine) AddSystem(s systems.System) error {
	if _, ok := e.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
	}
	e.systems = append(e.systems, s)
	e.byName[s.Name()] = s
	e.logger.Debug("system added", log.String("system", s.Name()))
	return nil
}

func (e *Engine) System(name string) (systems.System, bool) {
	s, ok := e.byName[name]
	return s, ok
}

// Configure hands each system its section of config. Systems are
// configured concurrently; each one only touches its own state.
func (e *Engine) Configure(config *document.Node) error {
	return concurrent.Concurrent(sequence.From(e.systems), func(s systems.System) error {
		return s.Configure(config.Find(s.Name()))
	})
}

// CreateEntity builds an entity from a descriptor. Keys other than id,
// class, flags and props name systems. A descriptor naming an existing
// entity updates it instead. Component failures are returned but do not
// prevent the entity from being created.
func (e *Engine) CreateEntity(desc *document.Node) (*models.Entity, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if !desc.IsObject() {
		return nil, fmt.Errorf("entity descriptor must be an object, got %s", desc.Kind())
	}

	name, _ := document.Get[string](desc, models.KeyID)
	if name == "" {
		name = e.nextName()
	}

	entity, exists := e.Entity(name)
	if !exists {
		entity = models.NewEntity(name, bus.NewDispatcher(name, e.logger))
	}
	if err := entity.Read(desc); err != nil {
		if !exists {
			_ = entity.Dispatcher().Close()
		}
		return nil, fmt.Errorf("entity %s: %w", name, err)
	}
	if !exists {
		entity.SetID(e.entities.Insert(entity))
		e.names[name] = entity.ID()
	}

	var errs []error
	for key, sub := range desc.Items() {
		if models.Reserved(key) {
			continue
		}
		if err := e.readComponent(entity, key, sub); err != nil {
			e.logger.Error("component not created",
				log.String("entity", name),
				log.String("system", key),
				log.Error(err))
			errs = append(errs, err)
		}
	}

	if !exists {
		if err := e.events.Fire(EntityEvent{typ: EventEntityCreated, Entity: name, ID: entity.ID(), at: time.Now()}); err != nil {
			errs = append(errs, err)
		}
	}
	return entity, errors.Join(errs...)
}

func (e *Engine) nextName() string {
	for {
		name := fmt.Sprintf("entity%d", e.counter)
		e.counter++
		if _, taken := e.names[name]; !taken {
			return name
		}
	}
}

func (e *Engine) readComponent(entity *models.Entity, system string, node *document.Node) error {
	if c, ok := entity.Component(system); ok {
		return c.Read(node)
	}
	s, ok := e.byName[system]
	if !ok {
		return fmt.Errorf("%w: %s", systems.ErrUnknownSystem, system)
	}
	c, err := s.CreateComponent(entity, node)
	if err != nil {
		return err
	}
	return entity.AddComponent(system, c)
}

// Entity returns the live entity called name.
func (e *Engine) Entity(name string) (*models.Entity, bool) {
	id, ok := e.names[name]
	if !ok {
		return nil, false
	}
	return e.entities.Get(id)
}

// EntityByID resolves an arena id. Ids of removed entities miss.
func (e *Engine) EntityByID(id models.EntityID) (*models.Entity, bool) {
	return e.entities.Get(id)
}

// Entities returns the names of all live entities.
func (e *Engine) Entities() []string {
	names := sequence.Map(sequence.Values(e.entities.All()), (*models.Entity).Name).Collect()
	if names == nil {
		return []string{}
	}
	return names
}

// EntitiesOfClass returns the names of live entities of class.
func (e *Engine) EntitiesOfClass(class string) []string {
	ofClass := sequence.Values(e.entities.All()).Filter(func(entity *models.Entity) bool {
		return entity.Class() == class
	})
	return sequence.Map(ofClass, (*models.Entity).Name).Collect()
}

// DumpEntity serializes the entity called name with all its components.
func (e *Engine) DumpEntity(name string) (*document.Node, error) {
	entity, ok := e.Entity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}
	out := document.NewObject()
	return out, entity.Dump(out)
}

// RemoveEntity fires EventEntityRemoved, releases the components of the
// entity and closes its dispatcher.
func (e *Engine) RemoveEntity(name string) bool {
	entity, ok := e.Entity(name)
	if !ok {
		return false
	}
	_ = e.events.Fire(EntityEvent{typ: EventEntityRemoved, Entity: name, ID: entity.ID(), at: time.Now()})
	e.release(entity)
	e.entities.Remove(entity.ID())
	delete(e.names, name)
	return true
}

func (e *Engine) release(entity *models.Entity) {
	for _, system := range entity.Systems() {
		c, _ := entity.RemoveComponent(system)
		s, ok := e.byName[system]
		if !ok || !s.RemoveComponent(c) {
			e.logger.Warn("component was not released",
				log.String("entity", entity.Name()),
				log.String("system", system))
		}
	}
	entity.Release()
	_ = entity.Dispatcher().Close()
}

// UnloadAll removes every entity.
func (e *Engine) UnloadAll() {
	for _, entity := range e.entities.All() {
		_ = e.events.Fire(EntityEvent{typ: EventEntityRemoved, Entity: entity.Name(), ID: entity.ID(), at: time.Now()})
	}
	for _, entity := range e.entities.All() {
		for _, system := range entity.Systems() {
			entity.RemoveComponent(system)
		}
		entity.Release()
		_ = entity.Dispatcher().Close()
	}
	for _, s := range e.systems {
		e.logger.Info("unloading components", log.String("system", s.Name()), log.Int("count", s.Count()))
		s.Unload()
	}
	e.entities = models.NewArena[*models.Entity]()
	e.names = make(map[string]models.EntityID)
}

// Source resolves an event source by name: the engine, the filesystem
// queue or an entity.
func (e *Engine) Source(name string) (*bus.Dispatcher, bool) {
	switch name {
	case SourceEngine:
		return e.events, true
	case SourceFilesystem:
		return e.tasks.Dispatcher(), true
	}
	entity, ok := e.Entity(name)
	if !ok {
		return nil, false
	}
	return entity.Dispatcher(), true
}

// AddEventListener binds l to eventType on the named source.
func (e *Engine) AddEventListener(source, eventType string, l *bus.Listener) bool {
	src, ok := e.Source(source)
	if !ok {
		return false
	}
	return e.registry.AddListener(src, eventType, l)
}

// RemoveEventListener unbinds l from eventType on the named source.
func (e *Engine) RemoveEventListener(source, eventType string, l *bus.Listener) bool {
	src, ok := e.Source(source)
	if !ok {
		return false
	}
	return e.registry.RemoveListener(src, eventType, l)
}

// CopyAsync queues a background copy. Its outcome is fired by the
// filesystem source during a later Update.
func (e *Engine) CopyAsync(src, dst string) (*fs.Task, error) {
	return e.tasks.Submit(src, dst)
}

// Post schedules fn on the update goroutine. It is safe to call from
// any goroutine.
func (e *Engine) Post(fn func()) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	e.posted.Push(fn)
	return nil
}

// Call runs fn on the update goroutine and waits for its result.
func (e *Engine) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := e.Post(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update runs posted calls, advances the filesystem queue and updates
// every system.
func (e *Engine) Update(dt time.Duration) error {
	for _, fn := range e.posted.Drain() {
		fn()
	}

	var errs []error
	if err := e.tasks.Update(); err != nil {
		errs = append(errs, err)
	}
	for _, s := range e.systems {
		if err := s.Update(dt); err != nil {
			e.logger.Warn("system update failed", log.String("system", s.Name()), log.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run calls Update every Tick until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := e.Update(dt); err != nil {
				e.logger.Warn("update finished with errors", log.Error(err))
			}
		}
	}
}

// Shutdown removes all entities, waits for running copies and closes
// the event sources. Posted calls still queued are run first.
func (e *Engine) Shutdown() error {
	if e.closed.Swap(true) {
		return nil
	}
	for _, fn := range e.posted.Drain() {
		fn()
	}

	e.UnloadAll()
	var errs []error
	if err := e.tasks.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.tasks.DispatchEvents(); err != nil {
		errs = append(errs, err)
	}
	if err := e.tasks.Dispatcher().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.events.Close(); err != nil {
		errs = append(errs, err)
	}
	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

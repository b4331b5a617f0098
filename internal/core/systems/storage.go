package systems

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/fields"
	"github.com/zeusync/enginekit/internal/core/models"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/pkg/generic"
	"github.com/zeusync/enginekit/pkg/sequence"
)

// ComponentPtr constrains P to a pointer to T implementing Component.
type ComponentPtr[T any] interface {
	*T
	models.Component
}

// Hooks customise a Storage. Every hook is optional.
type Hooks[P any] struct {
	// Init binds the properties of a freshly allocated component.
	Init func(P)
	// Prepare runs after Init and before the component reads its node.
	Prepare func(P) error
	// Update is called for each component on every tick.
	Update func(c P, dt time.Duration) error
	// Configure receives the system section of the engine config.
	Configure func(config *document.Node) error
}

// Storage is a System keeping components of type T. Components are
// created by allocate, read and prepare; a component failing any step
// is released again.
type Storage[T any, P ComponentPtr[T]] struct {
	name   string
	hooks  Hooks[P]
	logger log.Log

	pool       *generic.Pool[P]
	components []P
	config     *document.Node
}

func NewStorage[T any, P ComponentPtr[T]](name string, hooks Hooks[P], logger log.Log) *Storage[T, P] {
	return &Storage[T, P]{
		name:   name,
		hooks:  hooks,
		logger: logger.With(log.String("system", name)),
		pool: generic.NewPool(
			func() P { return P(new(T)) },
			func(c P) { *c = *new(T) },
		),
		config: document.NewObject(),
	}
}

func (s *Storage[T, P]) Name() string { return s.name }

// Config returns the last configuration passed to Configure.
func (s *Storage[T, P]) Config() *document.Node { return s.config }

func (s *Storage[T, P]) Configure(config *document.Node) error {
	if config == nil {
		config = document.NewObject()
	}
	s.config = config.Clone()
	if s.hooks.Configure != nil {
		if err := s.hooks.Configure(s.config); err != nil {
			return fmt.Errorf("configure %s: %w", s.name, err)
		}
	}
	return nil
}

func (s *Storage[T, P]) CreateComponent(owner *models.Entity, node *document.Node) (models.Component, error) {
	c := s.allocate()
	c.Attach(owner.ID(), owner.Dispatcher())

	if s.hooks.Prepare != nil {
		if err := s.hooks.Prepare(c); err != nil {
			s.release(c)
			return nil, fmt.Errorf("%s: prepare component of %s: %w", s.name, owner.Name(), err)
		}
	}
	if err := c.Read(node); err != nil {
		s.release(c)
		return nil, fmt.Errorf("%s: read component of %s: %w", s.name, owner.Name(), err)
	}

	s.components = append(s.components, c)
	return c, nil
}

func (s *Storage[T, P]) allocate() P {
	c := s.pool.Get()
	if s.hooks.Init != nil {
		s.hooks.Init(c)
	}
	return c
}

func (s *Storage[T, P]) release(c P) {
	if r, ok := any(c).(fields.Releaser); ok {
		r.Release()
	}
	s.pool.Put(c)
}

// RemoveComponent releases c. It reports false if c is not stored here.
func (s *Storage[T, P]) RemoveComponent(c models.Component) bool {
	typed, ok := c.(P)
	if !ok {
		return false
	}
	idx := slices.Index(s.components, typed)
	if idx < 0 {
		return false
	}
	s.components = slices.Delete(s.components, idx, idx+1)
	s.release(typed)
	return true
}

// Component returns the component owned by id.
func (s *Storage[T, P]) Component(id models.EntityID) (P, bool) {
	return sequence.From(s.components).Find(func(c P) bool { return c.Owner() == id })
}

func (s *Storage[T, P]) Count() int { return len(s.components) }

// Update calls the Update hook for each component. A failing component
// does not stop the others.
func (s *Storage[T, P]) Update(dt time.Duration) error {
	if s.hooks.Update == nil || len(s.components) == 0 {
		return nil
	}

	var errs []error
	for _, c := range slices.Clone(s.components) {
		if err := s.hooks.Update(c, dt); err != nil {
			errs = append(errs, fmt.Errorf("%s: entity %s: %w", s.name, c.Owner(), err))
		}
	}
	return errors.Join(errs...)
}

// Unload releases every component.
func (s *Storage[T, P]) Unload() {
	for len(s.components) > 0 {
		s.RemoveComponent(s.components[len(s.components)-1])
	}
	s.logger.Debug("components unloaded")
}

package engine

import (
	"errors"
	"fmt"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/models"
	"github.com/zeusync/enginekit/pkg/sequence"
)

// Keys of a saved state document.
const (
	StateVersion = 1
	KeyVersion   = "version"
	KeyEntities  = "entities"
)

var ErrInvalidState = errors.New("invalid saved state")

// CreateEntityFrom creates an entity from template with params
// deep-merged over it. Neither node is modified, so one template can
// back any number of entities.
func (e *Engine) CreateEntityFrom(template, params *document.Node) (*models.Entity, error) {
	if !template.IsObject() {
		return nil, fmt.Errorf("entity template must be an object, got %s", template.Kind())
	}
	if params != nil && !params.IsNull() && !params.IsObject() {
		return nil, fmt.Errorf("entity params must be an object, got %s", params.Kind())
	}
	return e.CreateEntity(document.Union(template, params))
}

// CreateEntityFromFile loads the template at path and creates an entity
// from it with params merged over it.
func (e *Engine) CreateEntityFromFile(path string, params *document.Node) (*models.Entity, error) {
	template, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	return e.CreateEntityFrom(template, params)
}

// DumpState serializes every entity, ordered by name. Entities that
// fail to dump completely are still included.
func (e *Engine) DumpState() (*document.Node, error) {
	ordered := sequence.Values(e.entities.All()).Sort(func(a, b *models.Entity) bool {
		return a.Name() < b.Name()
	})

	var (
		items []*document.Node
		errs  []error
	)
	for entity := range ordered.Seq() {
		node := document.NewObject()
		if err := entity.Dump(node); err != nil {
			errs = append(errs, fmt.Errorf("entity %s: %w", entity.Name(), err))
		}
		items = append(items, node)
	}

	state := document.NewObject()
	state.Set(KeyVersion, document.NewInt(StateVersion))
	state.Set(KeyEntities, document.NewArray(items...))
	return state, errors.Join(errs...)
}

// SaveState writes DumpState to path in the format of its extension.
func (e *Engine) SaveState(path string) error {
	state, err := e.DumpState()
	if err != nil {
		return err
	}
	return document.Save(path, state)
}

// RestoreState replaces every entity with the ones listed in state and
// returns how many were created. Broken descriptors are reported but do
// not stop the others.
func (e *Engine) RestoreState(state *document.Node) (int, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}
	if v := document.GetOr[int64](state, KeyVersion, StateVersion); v != StateVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidState, v)
	}
	list := state.Find(KeyEntities)
	if !list.IsArray() {
		return 0, fmt.Errorf("%w: %q must be a list", ErrInvalidState, KeyEntities)
	}

	e.UnloadAll()
	created := 0
	var errs []error
	for _, desc := range list.Items() {
		entity, err := e.CreateEntity(desc)
		if err != nil {
			errs = append(errs, err)
		}
		if entity != nil {
			created++
		}
	}
	return created, errors.Join(errs...)
}

// LoadState reads a state saved by SaveState and restores it.
func (e *Engine) LoadState(path string) (int, error) {
	state, err := document.Load(path)
	if err != nil {
		return 0, err
	}
	n, err := e.RestoreState(state)
	if err != nil {
		return n, fmt.Errorf("load state %s: %w", path, err)
	}
	return n, nil
}

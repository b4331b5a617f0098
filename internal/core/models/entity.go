package models

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fields"
)

// DefaultClass is assigned to entities whose descriptor has no class.
const DefaultClass = "default"

// Descriptor keys that are not component systems.
const (
	KeyID    = "id"
	KeyClass = "class"
	KeyFlags = "flags"
	KeyProps = "props"
)

// Reserved reports whether key is an entity attribute rather than a
// component system name.
func Reserved(key string) bool {
	switch key {
	case KeyID, KeyClass, KeyFlags, KeyProps:
		return true
	}
	return false
}

// Component is a capability bundle owned by exactly one entity. It is
// stored by its system and points back at its owner by id only.
type Component interface {
	fields.Serializable

	// Owner is the entity holding this component.
	Owner() EntityID
	// Events is the dispatcher of the owner, used to fire component events.
	Events() *bus.Dispatcher
	// Attach is called by the system before the component is read.
	Attach(owner EntityID, events *bus.Dispatcher)
}

// BaseComponent implements the ownership part of Component. Embed it
// and bind properties on the embedded Properties.
type BaseComponent struct {
	fields.Properties

	owner  EntityID
	events *bus.Dispatcher
}

func (c *BaseComponent) Owner() EntityID         { return c.owner }
func (c *BaseComponent) Events() *bus.Dispatcher { return c.events }

func (c *BaseComponent) Attach(owner EntityID, events *bus.Dispatcher) {
	c.owner = owner
	c.events = events
}

// Fire sends an event through the owner's dispatcher, if attached.
func (c *BaseComponent) Fire(event bus.Event) error {
	if c.events == nil {
		return nil
	}
	return c.events.Fire(event)
}

type componentEntry struct {
	system    string
	component Component
}

// Entity is a named set of components with a class, flags and free-form
// props. Components are kept in the order they were added.
type Entity struct {
	id         EntityID
	name       string
	class      string
	flags      []string
	props      *document.Node
	components []componentEntry
	events     *bus.Dispatcher

	attrs fields.Properties
}

// NewEntity creates an entity without components. The arena id is set
// with SetID once the entity is stored.
func NewEntity(name string, events *bus.Dispatcher) *Entity {
	e := &Entity{
		name:   name,
		class:  DefaultClass,
		props:  document.NewObject(),
		events: events,
	}
	fields.Bind(&e.attrs, KeyID, &e.name, fields.Readonly)
	fields.Bind(&e.attrs, KeyClass, &e.class, fields.Optional)
	fields.Bind(&e.attrs, KeyFlags, &e.flags, fields.Optional)
	fields.Bind(&e.attrs, KeyProps, &e.props, fields.Optional)
	return e
}

func (e *Entity) ID() EntityID                { return e.id }
func (e *Entity) SetID(id EntityID)           { e.id = id }
func (e *Entity) Name() string                { return e.name }
func (e *Entity) Class() string               { return e.class }
func (e *Entity) Flags() []string             { return slices.Clone(e.flags) }
func (e *Entity) Props() *document.Node       { return e.props }
func (e *Entity) Dispatcher() *bus.Dispatcher { return e.events }

func (e *Entity) HasFlag(flag string) bool {
	return slices.Contains(e.flags, flag)
}

// Component returns the component created by system.
func (e *Entity) Component(system string) (Component, bool) {
	for _, entry := range e.components {
		if entry.system == system {
			return entry.component, true
		}
	}
	return nil, false
}

// Systems lists the systems holding a component of e, in insertion order.
func (e *Entity) Systems() []string {
	out := make([]string, len(e.components))
	for i, entry := range e.components {
		out[i] = entry.system
	}
	return out
}

// AddComponent attaches c under system. An entity holds at most one
// component per system.
func (e *Entity) AddComponent(system string, c Component) error {
	if _, ok := e.Component(system); ok {
		return fmt.Errorf("entity %s: component %q already exists", e.name, system)
	}
	e.components = append(e.components, componentEntry{system: system, component: c})
	return nil
}

// RemoveComponent detaches and returns the component of system.
func (e *Entity) RemoveComponent(system string) (Component, bool) {
	for i, entry := range e.components {
		if entry.system == system {
			e.components = slices.Delete(e.components, i, i+1)
			return entry.component, true
		}
	}
	return nil, false
}

// Release frees the binding payloads of the entity attributes. Call it
// once the entity is torn down; components are released by their systems.
func (e *Entity) Release() {
	e.attrs.Release()
}

// Read applies class, flags and props from a descriptor. Components are
// read by their systems.
func (e *Entity) Read(node *document.Node) error {
	if err := e.attrs.Read(node); err != nil {
		return err
	}
	if e.class == "" {
		e.class = DefaultClass
	}
	if e.props == nil || e.props.IsNull() {
		e.props = document.NewObject()
	}
	return nil
}

// Dump writes the descriptor of e, each component under its system name.
func (e *Entity) Dump(node *document.Node) error {
	var errs []error
	if err := e.attrs.Dump(node); err != nil {
		errs = append(errs, err)
	}
	for _, entry := range e.components {
		sub := document.NewObject()
		if err := entry.component.Dump(sub); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.system, err))
			continue
		}
		if err := node.Replace(entry.system, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package fields binds native Go values to document nodes.
//
// A type embeds Properties and declares its bindings in its constructor.
// Read copies values out of a document into the bound fields, Dump writes
// them back. Conversions between document values and Go types go through
// the caster registry; values cross the binding through an access.Slot.
package fields

import (
	"errors"

	"github.com/zeusync/enginekit/internal/core/document"
)

var (
	ErrMissingProperty = errors.New("missing required property")
	ErrUnknownProperty = errors.New("unknown property")
	ErrCast            = errors.New("cannot convert value")
	ErrUnsupportedType = errors.New("type cannot be bound")
)

// Serializable is implemented by anything that can be read from and
// dumped into a document node.
type Serializable interface {
	// Read assigns bound values from node. It processes every binding
	// even after a failure and returns all failures joined; a nil error
	// means the whole node was read. Successful assignments are kept.
	Read(node *document.Node) error

	// Dump writes every dumpable binding into node, in declaration order.
	Dump(node *document.Node) error
}

// Releaser frees the payloads held by bindings. Properties implements
// it, so every type embedding Properties does too.
type Releaser interface {
	Release()
}

// FieldAccessor is a value holder with change notification.
type FieldAccessor[T any] interface {
	// Get returns the current value.
	Get() T

	// Set replaces the value and notifies subscribers.
	Set(T)

	// Subscribe registers onUpdate and returns the function removing it.
	Subscribe(onUpdate func(newValue T)) (unsubscribe func())

	// Version increases on every Set.
	Version() uint64
}

// Caster converts between a document representation S and a Go type T.
// To must reject malformed input with false instead of panicking.
type Caster[S Source, T any] interface {
	To(src S) (T, bool)
	From(value T) S
}

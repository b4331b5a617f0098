// Package access stores values of any static type behind a uniform Slot.
// Each type gets one process-wide Policy that knows how to write a value
// into a slot, read it back and release what the slot owns.
package access

import (
	"errors"
	"reflect"
)

var (
	ErrTypeMismatch = errors.New("value type does not match policy")
	ErrEmptySlot    = errors.New("slot is empty")
)

// Kind selects how a policy represents values inside a Slot.
type Kind uint8

const (
	// KindScalar values (bools and numbers) are encoded in the slot word.
	KindScalar Kind = iota
	// KindPointer values (pointers, maps, funcs, channels, interfaces)
	// are shared by reference and never released.
	KindPointer
	// KindOwned values (strings, slices, structs, arrays) are copied
	// into a heap box owned by the slot.
	KindOwned
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPointer:
		return "pointer"
	case KindOwned:
		return "owned"
	default:
		return "unknown"
	}
}

// Policy is the stateless strategy performing type-erased copies for a
// single static type.
type Policy interface {
	// Type returns the static type the policy serves.
	Type() reflect.Type

	// Kind returns the storage representation.
	Kind() Kind

	// CopyFromValue writes value into dest. Whatever dest held before
	// is released first. value must be assignable to Type.
	CopyFromValue(value any, dest *Slot) error

	// GetValue returns the payload stored in src. The caller converts
	// it to the static type.
	GetValue(src *Slot) any

	// Clone copies src into dest giving dest its own payload.
	Clone(src, dest *Slot)

	// Release frees the payload held by slot and empties it.
	Release(slot *Slot)
}

package access

import "reflect"

// Slot is a uniform storage cell: a machine word for scalars and a single
// reference for everything else. The zero Slot is empty.
type Slot struct {
	policy Policy
	word   uint64
	ref    any
}

// Policy returns the policy of the stored value, nil when empty.
func (s *Slot) Policy() Policy {
	return s.policy
}

// Empty reports whether the slot holds nothing.
func (s *Slot) Empty() bool {
	return s.policy == nil
}

// Value returns the stored payload, nil when empty.
func (s *Slot) Value() any {
	if s.policy == nil {
		return nil
	}
	return s.policy.GetValue(s)
}

// Reset releases the payload.
func (s *Slot) Reset() {
	if s.policy != nil {
		s.policy.Release(s)
	}
}

// CopyTo gives dest a copy of the slot content.
func (s *Slot) CopyTo(dest *Slot) {
	if s == dest {
		return
	}
	if s.policy == nil {
		dest.Reset()
		return
	}
	s.policy.Clone(s, dest)
}

// Store writes v into slot using the policy registered for T.
func Store[T any](slot *Slot, v T) error {
	return For[T]().CopyFromValue(v, slot)
}

// Load reads slot as T. It fails when the slot is empty or holds a
// value of another type.
func Load[T any](slot *Slot) (T, error) {
	var zero T
	if slot.policy == nil {
		return zero, ErrEmptySlot
	}
	if slot.policy.Type() != reflect.TypeFor[T]() {
		return zero, ErrTypeMismatch
	}
	v, ok := slot.policy.GetValue(slot).(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

package models

import (
	"fmt"
	"iter"
)

// EntityID addresses an arena slot. Generation changes every time the
// slot is freed, so ids of removed entities never resolve again.
type EntityID struct {
	Index      uint32
	Generation uint32
}

func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d", id.Index, id.Generation)
}

// IsZero reports whether id was never issued by an arena.
func (id EntityID) IsZero() bool { return id.Generation == 0 }

type arenaSlot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// Arena stores values in reusable slots addressed by generational ids.
// It is not safe for concurrent use.
type Arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	count int
}

func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its id.
func (a *Arena[T]) Insert(v T) EntityID {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}

	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = v
	s.used = true
	a.count++
	return EntityID{Index: idx, Generation: s.generation}
}

func (a *Arena[T]) slot(id EntityID) *arenaSlot[T] {
	if int(id.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[id.Index]
	if !s.used || s.generation != id.Generation {
		return nil
	}
	return s
}

// Get returns the value stored under id.
func (a *Arena[T]) Get(id EntityID) (T, bool) {
	if s := a.slot(id); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

func (a *Arena[T]) Contains(id EntityID) bool {
	return a.slot(id) != nil
}

// Remove frees the slot of id and returns the value it held.
func (a *Arena[T]) Remove(id EntityID) (T, bool) {
	var zero T
	s := a.slot(id)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.used = false
	a.free = append(a.free, id.Index)
	a.count--
	return v, true
}

func (a *Arena[T]) Len() int { return a.count }

// All yields live values in slot order.
func (a *Arena[T]) All() iter.Seq2[EntityID, T] {
	return func(yield func(EntityID, T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.used {
				continue
			}
			if !yield(EntityID{Index: uint32(i), Generation: s.generation}, s.value) {
				return
			}
		}
	}
}

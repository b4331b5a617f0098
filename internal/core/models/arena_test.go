package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_StaleIDsMiss(t *testing.T) {
	a := NewArena[string]()
	first := a.Insert("a")
	second := a.Insert("b")
	assert.Equal(t, 2, a.Len())
	assert.False(t, first.IsZero())

	v, ok := a.Remove(first)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = a.Remove(first)
	assert.False(t, ok)

	reused := a.Insert("c")
	assert.Equal(t, first.Index, reused.Index, "freed slot is reused")
	assert.NotEqual(t, first.Generation, reused.Generation)

	_, ok = a.Get(first)
	assert.False(t, ok, "stale id must not resolve to the new value")
	v, ok = a.Get(reused)
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.True(t, a.Contains(second))
	assert.False(t, a.Contains(EntityID{}))
	assert.False(t, a.Contains(EntityID{Index: 99, Generation: 1}))
}

func TestArena_All(t *testing.T) {
	a := NewArena[int]()
	ids := []EntityID{a.Insert(1), a.Insert(2), a.Insert(3)}
	a.Remove(ids[1])

	var got []int
	for id, v := range a.All() {
		assert.True(t, a.Contains(id))
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 3}, got)

	for range a.All() {
		break
	}
}

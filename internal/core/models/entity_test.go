package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fields"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

type labelComponent struct {
	BaseComponent
	Text string
}

func newLabel() *labelComponent {
	c := &labelComponent{}
	fields.Bind(&c.Properties, "text", &c.Text)
	return c
}

func TestEntity_ReadDump(t *testing.T) {
	e := NewEntity("hero", bus.NewDispatcher("hero", log.Nop()))
	desc, err := document.ParseJSON([]byte(`{"id":"ignored","flags":["dynamic"],"props":{"hp":3}}`))
	require.NoError(t, err)
	require.NoError(t, e.Read(desc))

	assert.Equal(t, "hero", e.Name(), "id is set by the engine, not by Read")
	assert.Equal(t, DefaultClass, e.Class())
	assert.True(t, e.HasFlag("dynamic"))
	assert.Equal(t, int64(3), document.GetOr[int64](e.Props(), "hp", 0))

	label := newLabel()
	label.Attach(e.ID(), e.Dispatcher())
	require.NoError(t, label.Read(document.MustFrom(map[string]any{"text": "hi"})))
	require.NoError(t, e.AddComponent("label", label))
	assert.Error(t, e.AddComponent("label", newLabel()))

	out := document.NewObject()
	require.NoError(t, e.Dump(out))
	got, err := document.DumpJSON(out)
	require.NoError(t, err)
	want := `{"id":"hero","class":"default","flags":["dynamic"],"props":{"hp":3},"label":{"text":"hi"}}`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}

	c, ok := e.RemoveComponent("label")
	require.True(t, ok)
	assert.Same(t, label, c)
	assert.Empty(t, e.Systems())
}

func TestReserved(t *testing.T) {
	for _, key := range []string{"id", "class", "flags", "props"} {
		assert.True(t, Reserved(key), key)
	}
	assert.False(t, Reserved("stats"))
}

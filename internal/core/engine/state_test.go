package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/systems"
)

func TestEngine_CreateEntityFrom(t *testing.T) {
	e := newEngine(t)
	template := parse(t, `{"class":"npc","flags":["hostile"],"stats":{"hp":10,"mp":5},"movement":{"speed":2}}`)

	orc, err := e.CreateEntityFrom(template, parse(t, `{"id":"orc","stats":{"hp":30}}`))
	require.NoError(t, err)
	assert.Equal(t, "npc", orc.Class())
	assert.True(t, orc.HasFlag("hostile"))

	c, ok := orc.Component(systems.StatsSystem)
	require.True(t, ok)
	stats := c.(*systems.StatsComponent)
	assert.Equal(t, 30.0, stats.Float("hp", 0))
	assert.Equal(t, 5.0, stats.Float("mp", 0))

	goblin, err := e.CreateEntityFrom(template, parse(t, `{"id":"goblin"}`))
	require.NoError(t, err)
	c, _ = goblin.Component(systems.StatsSystem)
	assert.Equal(t, 10.0, c.(*systems.StatsComponent).Float("hp", 0), "the template is not modified")
	assert.False(t, template.Has("id"))

	anon, err := e.CreateEntityFrom(template, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orc", "goblin", anon.Name()}, e.EntitiesOfClass("npc"))

	_, err = e.CreateEntityFrom(document.NewInt(1), nil)
	assert.Error(t, err)
	_, err = e.CreateEntityFrom(template, document.NewString("orc"))
	assert.Error(t, err)
}

func TestEngine_CreateEntityFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("class: prop\nstats:\n  durability: 3\n"), 0o644))

	e := newEngine(t)
	crate, err := e.CreateEntityFromFile(path, parse(t, `{"id":"crate1"}`))
	require.NoError(t, err)
	assert.Equal(t, "prop", crate.Class())

	_, err = e.CreateEntityFromFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, document.ErrFileNotFound)
}

func TestEngine_SaveLoadState(t *testing.T) {
	e := newEngine(t)
	_, err := e.CreateEntity(parse(t, `{"id":"hero","class":"player","flags":["main"],"props":{"level":3},"stats":{"hp":10}}`))
	require.NoError(t, err)
	_, err = e.CreateEntity(parse(t, `{"id":"rock","movement":{"speed":1.5}}`))
	require.NoError(t, err)

	heroBefore, err := e.DumpEntity("hero")
	require.NoError(t, err)

	for _, name := range []string{"state.json", "state.msgpack", "state.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "saves", name)
			require.NoError(t, e.SaveState(path))

			state, err := document.Load(path)
			require.NoError(t, err)
			assert.Equal(t, int64(StateVersion), document.GetOr[int64](state, KeyVersion, 0))
			assert.Equal(t, "hero", document.GetOr(state, "entities.0.id", ""))
			assert.Equal(t, "rock", document.GetOr(state, "entities.1.id", ""))

			_, err = e.CreateEntity(parse(t, `{"id":"temporary"}`))
			require.NoError(t, err)

			n, err := e.LoadState(path)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.ElementsMatch(t, []string{"hero", "rock"}, e.Entities())

			heroAfter, err := e.DumpEntity("hero")
			require.NoError(t, err)
			assert.True(t, heroBefore.Equal(heroAfter), "hero changed across save and load")

			rock, ok := e.Entity("rock")
			require.True(t, ok)
			c, ok := rock.Component(systems.MovementSystem)
			require.True(t, ok)
			assert.Equal(t, 1.5, c.(*systems.MovementComponent).Speed)
		})
	}
}

func TestEngine_RestoreStateRejectsBadInput(t *testing.T) {
	e := newEngine(t)
	_, err := e.CreateEntity(parse(t, `{"id":"keep"}`))
	require.NoError(t, err)

	_, err = e.RestoreState(parse(t, `{"entities":{}}`))
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = e.RestoreState(parse(t, `{"version":99,"entities":[]}`))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, []string{"keep"}, e.Entities(), "a rejected state leaves the world alone")

	n, err := e.RestoreState(parse(t, `{"entities":[{"id":"a"},{"id":"b","physics":{}}]}`))
	assert.ErrorIs(t, err, systems.ErrUnknownSystem)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"a", "b"}, e.Entities())
}

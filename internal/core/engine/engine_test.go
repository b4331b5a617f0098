package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/enginekit/internal/core/access"
	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fs"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/core/systems"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{Workers: 2, Tick: time.Millisecond}, fs.NewLocal(), bus.NewRegistry(log.Nop()), log.Nop())
	require.NoError(t, e.AddSystem(systems.NewStats(log.Nop())))
	require.NoError(t, e.AddSystem(systems.NewMovement(log.Nop())))
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func parse(t *testing.T, src string) *document.Node {
	t.Helper()
	n, err := document.ParseJSON([]byte(src))
	require.NoError(t, err)
	return n
}

func TestEngine_CreateEntity(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.AddSystem(systems.NewStats(log.Nop())), ErrSystemExists)
	require.NoError(t, e.Configure(parse(t, `{"movement":{"speed":1}}`)))

	var created []string
	_, err := e.Dispatcher().AddListener(EventEntityCreated, func(_ *bus.Dispatcher, ev bus.Event) error {
		created = append(created, ev.Data().(EntityEvent).Entity)
		return nil
	}, 0)
	require.NoError(t, err)

	hero, err := e.CreateEntity(parse(t, `{"id":"hero","class":"npc","stats":{"hp":10},"movement":{"target":"1,0,0"}}`))
	require.NoError(t, err)
	assert.Equal(t, "npc", hero.Class())
	assert.Equal(t, []string{"stats", "movement"}, hero.Systems())

	anon, err := e.CreateEntity(parse(t, `{"stats":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "entity0", anon.Name())
	assert.Equal(t, "default", anon.Class())

	partial, err := e.CreateEntity(parse(t, `{"id":"ghost","physics":{},"stats":{"hp":1}}`))
	assert.ErrorIs(t, err, systems.ErrUnknownSystem)
	require.NotNil(t, partial)
	assert.Equal(t, []string{"stats"}, partial.Systems())

	assert.Equal(t, []string{"hero", "entity0", "ghost"}, e.Entities())
	assert.Equal(t, []string{"hero", "entity0", "ghost"}, created)

	_, err = e.CreateEntity(parse(t, `{"id":"hero","stats":{"mp":2}}`))
	require.NoError(t, err)
	assert.Len(t, created, 3, "updating an entity does not fire entityCreated")

	dump, err := e.DumpEntity("hero")
	require.NoError(t, err)
	assert.Equal(t, int64(10), document.GetOr[int64](dump, "stats.hp", 0))
	assert.Equal(t, int64(2), document.GetOr[int64](dump, "stats.mp", 0))

	_, err = e.DumpEntity("nobody")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = e.CreateEntity(document.NewString("x"))
	assert.Error(t, err)
}

func TestEngine_RemoveEntityTearsDownListeners(t *testing.T) {
	e := newEngine(t)
	hero, err := e.CreateEntity(parse(t, `{"id":"hero","stats":{"hp":1}}`))
	require.NoError(t, err)
	id := hero.ID()

	l := bus.NewListener("watch", func(*bus.Dispatcher, bus.Event) error { return nil })
	require.True(t, e.AddEventListener("hero", systems.EventStatChange, l))
	assert.False(t, e.AddEventListener("nobody", systems.EventStatChange, l))
	assert.Equal(t, 1, e.Registry().Bindings())

	stats, _ := e.System(systems.StatsSystem)
	require.Equal(t, 1, stats.Count())

	require.True(t, e.RemoveEntity("hero"))
	assert.False(t, e.RemoveEntity("hero"))
	assert.Equal(t, 0, stats.Count())
	assert.Equal(t, 0, e.Registry().Bindings(), "closing the entity source drops its bindings")
	_, ok := e.EntityByID(id)
	assert.False(t, ok)
	assert.False(t, e.RemoveEventListener("hero", systems.EventStatChange, l))
}

func TestEngine_PostAndUpdate(t *testing.T) {
	e := newEngine(t)
	_, err := e.CreateEntity(parse(t, `{"id":"walker","movement":{"speed":1,"target":"2,0,0"}}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = e.Run(ctx)
	}()

	var names []string
	require.NoError(t, e.Call(ctx, func() error {
		names = e.Entities()
		return nil
	}))
	assert.Equal(t, []string{"walker"}, names)

	boom := errors.New("boom")
	assert.ErrorIs(t, e.Call(ctx, func() error { return boom }), boom)
	cancel()
	<-stopped
}

func TestEngine_CopyAsync(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	e := newEngine(t)
	done := false
	require.True(t, e.AddEventListener(SourceFilesystem, fs.EventCopyComplete, bus.NewListener("done", func(*bus.Dispatcher, bus.Event) error {
		done = true
		return nil
	})))

	task, err := e.CopyAsync(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b", "a.txt"))
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for !done && time.Now().Before(deadline) {
		require.NoError(t, e.Update(time.Millisecond))
		time.Sleep(time.Millisecond)
	}
	assert.True(t, done)
	assert.Equal(t, fs.StateCompleted, task.State())
}

func TestEngine_Shutdown(t *testing.T) {
	e := newEngine(t)
	_, err := e.CreateEntity(parse(t, `{"id":"a","stats":{}}`))
	require.NoError(t, err)

	removed := 0
	_, _ = e.Dispatcher().AddListener(EventEntityRemoved, func(*bus.Dispatcher, bus.Event) error {
		removed++
		return nil
	}, 0)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, removed)
	assert.Empty(t, e.Entities())
	assert.ErrorIs(t, e.Post(func() {}), ErrEngineClosed)
	_, err = e.CreateEntity(parse(t, `{}`))
	assert.ErrorIs(t, err, ErrEngineClosed)
	require.NoError(t, e.Shutdown())
}

func TestEngine_TeardownReleasesPayloads(t *testing.T) {
	e := newEngine(t)
	baseline := access.Live()

	for i := 0; i < 20; i++ {
		_, err := e.CreateEntity(parse(t, `{"id":"npc","class":"guard","flags":["a","b"],"stats":{"hp":1},"movement":{"moveAnimation":"walk","color":"#102030"}}`))
		require.NoError(t, err)
		_, err = e.DumpEntity("npc")
		require.NoError(t, err)
		require.True(t, e.RemoveEntity("npc"))
	}
	assert.Equal(t, baseline, access.Live())

	for _, name := range []string{"a", "b", "c"} {
		_, err := e.CreateEntity(parse(t, `{"id":"`+name+`","class":"guard","movement":{"moveAnimation":"idle"}}`))
		require.NoError(t, err)
	}
	e.UnloadAll()
	assert.Equal(t, baseline, access.Live())
}

func TestEngine_RunLogsUpdateErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := New(Options{Workers: 1, Tick: time.Millisecond}, fs.NewLocal(), bus.NewRegistry(log.Nop()), log.NewWithCore(core, log.LevelDebug))
	t.Cleanup(func() { _ = e.Shutdown() })

	_, err := e.Tasks().Dispatcher().AddListener(fs.EventCopyFailed, func(*bus.Dispatcher, bus.Event) error {
		return errors.New("listener rejected copy")
	}, 0)
	require.NoError(t, err)
	_, err = e.CopyAsync(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dest"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = e.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("update finished with errors").Len() > 0
	}, 5*time.Second, 5*time.Millisecond)
}

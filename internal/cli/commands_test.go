package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/fs"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/core/systems"
)

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "hero.json", `{"id":"hero","stats":{"hp":10,"tags":["a","b"]}}`)
	out := filepath.Join(dir, "hero.yaml")

	_, err := execute(t, "convert", in, out)
	require.NoError(t, err)

	want, err := document.Load(in)
	require.NoError(t, err)
	got, err := document.Load(out)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "convert", filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.json"))
	assert.ErrorIs(t, err, document.ErrFileNotFound)

	_, err = execute(t, "convert", "only-one.json")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "a: 1\nb:\n  c: 2\n  d: 3\n")
	update := writeFile(t, dir, "update.json", `{"b":{"c":20},"e":true}`)

	out, err := execute(t, "merge", base, update)
	require.NoError(t, err)

	got, err := document.ParseJSON([]byte(out))
	require.NoError(t, err)
	want, err := document.ParseJSON([]byte(`{"a":1,"b":{"c":20,"d":3},"e":true}`))
	require.NoError(t, err)
	assert.True(t, want.Equal(got), out)

	target := filepath.Join(dir, "merged.json")
	_, err = execute(t, "merge", base, update, "-o", target)
	require.NoError(t, err)
	saved, err := document.Load(target)
	require.NoError(t, err)
	assert.True(t, want.Equal(saved))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hero.json", `{"id":"hero","stats":{"hp":10}}`)
	writeFile(t, dir, "crowd.yaml", "- id: a\n  stats: {}\n- id: b\n  movement:\n    speed: 1\n")
	cfg := writeFile(t, dir, "enginekit.yaml", "log_level: error\ntick: 5ms\ndata_dir: "+dir+"\nentities:\n  - hero.json\n  - crowd.yaml\n  - missing.json\n")

	out, err := execute(t, "run", "--config", cfg, "--for", "30ms")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 entities")
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "enginekit.yaml", "workers: 0\n")

	_, err := execute(t, "run", "--config", cfg, "--for", "1ms")
	assert.Error(t, err)
}

func TestLoadEntities(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "one.json", `{"id":"one","stats":{"hp":1}}`),
		writeFile(t, dir, "broken.json", `{"id":`),
		writeFile(t, dir, "two.json", `[{"id":"two"},{"id":"three","physics":{}}]`),
	}

	e := engine.New(engine.Options{Workers: 1, Tick: time.Millisecond}, fs.NewLocal(), bus.NewRegistry(log.Nop()), log.Nop())
	require.NoError(t, e.AddSystem(systems.NewStats(log.Nop())))
	t.Cleanup(func() { _ = e.Shutdown() })

	assert.Equal(t, 3, loadEntities(e, files, log.Nop()))
	for _, name := range []string{"one", "two", "three"} {
		_, ok := e.Entity(name)
		assert.True(t, ok, name)
	}
}

func TestRun_Override(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hero.json", `{"id":"hero"}`)
	writeFile(t, dir, "villain.json", `{"id":"villain"}`)
	cfg := writeFile(t, dir, "enginekit.yaml", "log_level: error\ntick: 5ms\ndata_dir: "+dir+"\nentities:\n  - hero.json\n")
	override := writeFile(t, dir, "more.json", `{"entities":{"1":"villain.json"}}`)

	out, err := execute(t, "run", "--config", cfg, "--override", override, "--for", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 2 entities")

	_, err = execute(t, "run", "--config", cfg, "--override", filepath.Join(dir, "missing.json"), "--for", "1ms")
	assert.Error(t, err)
}

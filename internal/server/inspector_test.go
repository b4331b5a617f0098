package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fs"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/core/systems"
)

func startEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Options{Workers: 1, Tick: time.Millisecond}, fs.NewLocal(), bus.NewRegistry(log.Nop()), log.Nop())
	require.NoError(t, e.AddSystem(systems.NewStats(log.Nop())))

	desc, err := document.ParseJSON([]byte(`{"id":"hero","stats":{"hp":10}}`))
	require.NoError(t, err)
	_, err = e.CreateEntity(desc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		_ = e.Shutdown()
	})
	return e
}

func TestInspector_Entities(t *testing.T) {
	e := startEngine(t)
	s := httptest.NewServer(NewInspector(e, Config{}, log.Nop()).Handler())
	defer s.Close()

	resp, err := http.Get(s.URL + "/entities")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	_ = resp.Body.Close()
	assert.Equal(t, []string{"hero"}, names)

	resp, err = http.Get(s.URL + "/entities/hero")
	require.NoError(t, err)
	var dump map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dump))
	_ = resp.Body.Close()
	assert.Equal(t, "hero", dump["id"])
	assert.Equal(t, map[string]any{"hp": float64(10)}, dump["stats"])

	resp, err = http.Get(s.URL + "/entities/nobody")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInspector_EventStream(t *testing.T) {
	e := startEngine(t)
	s := httptest.NewServer(NewInspector(e, Config{}, log.Nop()).Handler())
	defer s.Close()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/events"

	_, resp, err := websocket.DefaultDialer.Dial(u+"?source=nobody&type=statChange", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(u+"?source=hero&type=statChange", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Call(ctx, func() error {
		hero, _ := e.Entity("hero")
		c, _ := hero.Component(systems.StatsSystem)
		_, err := c.(*systems.StatsComponent).Increase("hp", 1)
		return err
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Source string         `json:"source"`
		Type   string         `json:"type"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "hero", msg.Source)
	assert.Equal(t, systems.EventStatChange, msg.Type)
	assert.Equal(t, "hp", msg.Data["Stat"])
	assert.Equal(t, float64(11), msg.Data["Value"])

	_ = conn.Close()
	require.Eventually(t, func() bool {
		var bindings int
		_ = e.Call(ctx, func() error {
			bindings = e.Registry().Bindings()
			return nil
		})
		return bindings == 0
	}, 2*time.Second, 10*time.Millisecond, "closing the socket must remove the listener")
}

func TestTokenAuth(t *testing.T) {
	h := TokenAuth("secret", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entities", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entities?token=secret", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/entities", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInspector_StartStop(t *testing.T) {
	e := startEngine(t)
	in := NewInspector(e, Config{Addr: "127.0.0.1:0"}, log.Nop())
	ctx := context.Background()
	require.NoError(t, in.Start(ctx))
	assert.ErrorIs(t, in.Start(ctx), ErrServerAlreadyRunning)
	require.NoError(t, in.Stop(ctx))
	assert.ErrorIs(t, in.Start(ctx), ErrServerClosed)
}

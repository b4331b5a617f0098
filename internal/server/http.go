// Package server exposes a read-only inspector over HTTP and a
// websocket event stream. Every engine access is posted to the engine
// goroutine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

// Engine is the part of the engine used by the inspector.
type Engine interface {
	Call(ctx context.Context, fn func() error) error
	Entities() []string
	DumpEntity(name string) (*document.Node, error)
	AddEventListener(source, eventType string, l *bus.Listener) bool
	RemoveEventListener(source, eventType string, l *bus.Listener) bool
}

var _ Engine = (*engine.Engine)(nil)

// Config holds inspector settings.
type Config struct {
	Addr  string
	Token string
	// RequestTimeout bounds how long a request waits for the engine.
	RequestTimeout time.Duration
	// EventBuffer is the number of events queued per websocket client
	// before new ones are dropped.
	EventBuffer int
	// RateLimit is the number of requests a host may make per RateWindow.
	// Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8090",
		RequestTimeout: 5 * time.Second,
		EventBuffer:    256,
		RateLimit:      120,
		RateWindow:     time.Minute,
	}
}

// Inspector serves GET /entities, GET /entities/{id} and the /events
// websocket.
type Inspector struct {
	engine Engine
	config Config
	logger log.Log
	mux    *http.ServeMux
	limit  *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	clients map[*websocket.Conn]struct{}
	closed  bool
}

func NewInspector(e Engine, config Config, logger log.Log) *Inspector {
	def := DefaultConfig()
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = def.EventBuffer
	}
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.RateWindow <= 0 {
		config.RateWindow = def.RateWindow
	}

	s := &Inspector{
		engine:  e,
		config:  config,
		logger:  logger.With(log.String("component", "inspector")),
		mux:     http.NewServeMux(),
		clients: make(map[*websocket.Conn]struct{}),
	}
	s.limit = NewRateLimiter(config.RateLimit, config.RateWindow, s.logger)
	s.mux.HandleFunc("GET /entities", s.handleEntities)
	s.mux.HandleFunc("GET /entities/{id}", s.handleEntity)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	return s
}

// Handler returns the routes behind request logging, rate limiting and
// token auth.
func (s *Inspector) Handler() http.Handler {
	return RequestLogger(s.logger, s.limit.Middleware(TokenAuth(s.config.Token, s.mux)))
}

// Start listens on the configured address and serves in the background.
func (s *Inspector) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.server != nil {
		return ErrServerAlreadyRunning
	}

	lis, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("inspector stopped", log.Error(err))
		}
	}()
	s.logger.Info("inspector listening", log.String("addr", lis.Addr().String()))
	return nil
}

// Stop shuts the HTTP server down and closes every websocket client.
func (s *Inspector) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.server
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "inspector stopping"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	if srv == nil {
		return ErrServerNotRunning
	}
	return srv.Shutdown(ctx)
}

func (s *Inspector) call(r *http.Request, fn func() error) error {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()
	return s.engine.Call(ctx, fn)
}

func (s *Inspector) handleEntities(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := s.call(r, func() error {
		names = s.engine.Entities()
		return nil
	}); err != nil {
		s.fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(names)
}

func (s *Inspector) handleEntity(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("id")

	var body []byte
	err := s.call(r, func() error {
		node, err := s.engine.DumpEntity(name)
		if err != nil {
			return err
		}
		body, err = document.DumpJSON(node)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Inspector) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrEntityNotFound), errors.Is(err, ErrUnknownSource):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrEngineClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		s.logger.Warn("inspector request failed", log.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

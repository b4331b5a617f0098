package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventMessage is the JSON frame sent for every forwarded event.
type EventMessage struct {
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// handleEvents streams events of one type from one source. The listener
// is registered before the upgrade so no event fired after the
// handshake is missed.
func (s *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	eventType := r.URL.Query().Get("type")
	if source == "" || eventType == "" {
		http.Error(w, "source and type are required", http.StatusBadRequest)
		return
	}

	frames := make(chan EventMessage, s.config.EventBuffer)
	listener := bus.NewListener("inspector", func(_ *bus.Dispatcher, ev bus.Event) error {
		msg := EventMessage{Source: source, Type: ev.Type(), Timestamp: ev.Timestamp(), Data: ev.Data()}
		select {
		case frames <- msg:
		default:
			s.logger.Warn("dropping event for slow client",
				log.String("source", source),
				log.String("event", ev.Type()))
		}
		return nil
	})

	var added bool
	if err := s.call(r, func() error {
		added = s.engine.AddEventListener(source, eventType, listener)
		return nil
	}); err != nil {
		s.fail(w, err)
		return
	}
	if !added {
		s.fail(w, fmt.Errorf("%w: %s", ErrUnknownSource, source))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		s.unsubscribe(source, eventType, listener)
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		s.unsubscribe(source, eventType, listener)
		return
	}
	defer func() {
		s.untrack(conn)
		s.unsubscribe(source, eventType, listener)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(s.config.RequestTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", log.Error(err))
				return
			}
		}
	}
}

// unsubscribe disposes the listener at once so the registry drops it
// even if the engine is no longer processing posted calls.
func (s *Inspector) unsubscribe(source, eventType string, l *bus.Listener) {
	l.Dispose()
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
	defer cancel()
	_ = s.engine.Call(ctx, func() error {
		s.engine.RemoveEventListener(source, eventType, l)
		return nil
	})
}

func (s *Inspector) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[conn] = struct{}{}
	return true
}

func (s *Inspector) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

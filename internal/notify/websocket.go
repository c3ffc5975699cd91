package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan Notification
}

// WebSocketSink broadcasts notifications to connected websocket clients.
// Slow clients are disconnected rather than allowed to block the hub.
type WebSocketSink struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      logrus.FieldLogger
	closed      bool
}

// NewWebSocketSink creates an empty sink.
func NewWebSocketSink(logger logrus.FieldLogger) *WebSocketSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WebSocketSink{
		subscribers: make(map[string]*subscriber),
		logger:      logger.WithField("component", "notify.ws"),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (s *WebSocketSink) RegisterRoutes(router chi.Router) {
	router.Get("/v1/events/ws", s.ServeHTTP)
}

// ServeHTTP upgrades the connection and streams notifications until the
// client disconnects.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Notification, clientBuffer),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.subscribers[sub.id] = sub
	count := len(s.subscribers)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"subscriber": sub.id, "subscribers": count}).Info("Websocket subscriber connected")

	go s.writeLoop(sub)
	s.readLoop(sub)
}

// Count returns the number of connected subscribers.
func (s *WebSocketSink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *WebSocketSink) Publish(_ context.Context, n Notification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		select {
		case sub.send <- n:
		default:
			s.logger.WithField("subscriber", sub.id).Warn("Subscriber too slow, disconnecting")
			go s.remove(sub.id)
		}
	}
	return nil
}

func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	subs := s.subscribers
	s.subscribers = make(map[string]*subscriber)
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.send)
	}
	return nil
}

// readLoop consumes control frames so pongs are processed and returns when
// the client goes away.
func (s *WebSocketSink) readLoop(sub *subscriber) {
	defer s.remove(sub.id)

	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WebSocketSink) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case n, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketSink) remove(id string) {
	s.mu.Lock()
	sub, ok := s.subscribers[id]
	if ok {
		delete(s.subscribers, id)
	}
	count := len(s.subscribers)
	s.mu.Unlock()

	if ok {
		close(sub.send)
		s.logger.WithFields(logrus.Fields{"subscriber": id, "subscribers": count}).Info("Websocket subscriber disconnected")
	}
}

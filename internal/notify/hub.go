// Package notify fans host notifications out to websocket subscribers and
// an optional Redis channel without blocking the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Type names a host notification.
type Type string

const (
	TypeStreamChanged      Type = "stream_changed"
	TypePositionChanged    Type = "position_changed"
	TypeSeeked             Type = "seeked"
	TypeReachedEndOfStream Type = "reached_end_of_stream"
)

// Notification is the payload delivered to every sink.
type Notification struct {
	Type       Type      `json:"type"`
	URI        string    `json:"uri,omitempty"`
	PositionMs *int      `json:"position_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives notifications from the hub's dispatch goroutine.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

const defaultBufferSize = 64

// Hub queues notifications and dispatches them to sinks on its own
// goroutine. It implements host.Notifier.
type Hub struct {
	queue  chan Notification
	logger logrus.FieldLogger

	mu    sync.RWMutex
	sinks []Sink

	once   sync.Once
	done   chan struct{}
	cancel context.CancelFunc
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub(logger logrus.FieldLogger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		queue:  make(chan Notification, defaultBufferSize),
		logger: logger.WithField("component", "notify"),
		sinks:  sinks,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go h.run(ctx)
	return h
}

// AddSink registers another sink.
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

func (h *Hub) StreamChanged(uri string) {
	h.enqueue(Notification{Type: TypeStreamChanged, URI: uri})
}

func (h *Hub) PositionChanged(positionMs int) {
	h.enqueue(Notification{Type: TypePositionChanged, PositionMs: &positionMs})
}

func (h *Hub) Seeked(positionMs int) {
	h.enqueue(Notification{Type: TypeSeeked, PositionMs: &positionMs})
}

func (h *Hub) ReachedEndOfStream() {
	h.enqueue(Notification{Type: TypeReachedEndOfStream})
}

func (h *Hub) enqueue(n Notification) {
	n.Timestamp = time.Now().UTC()
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.queue <- n:
	default:
		h.logger.WithField("type", n.Type).Warn("Notification queue full, dropping")
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-h.queue:
			h.dispatch(ctx, n)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, n Notification) {
	h.mu.RLock()
	sinks := append([]Sink(nil), h.sinks...)
	h.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Publish(ctx, n); err != nil {
			h.logger.WithError(err).WithField("type", n.Type).Warn("Failed to publish notification")
		}
	}
}

// Close stops dispatching and closes all sinks.
func (h *Hub) Close() error {
	var firstErr error
	h.once.Do(func() {
		close(h.done)
		h.cancel()

		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, s := range h.sinks {
			if err := s.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

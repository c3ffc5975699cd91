package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	got    []Notification
	closed bool
}

func (r *recordingSink) Publish(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Type)
	}
	return out
}

func TestHub_DispatchesInOrder(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(nil, sink)
	defer hub.Close()

	hub.StreamChanged("spotify:track:abc")
	hub.PositionChanged(0)
	hub.Seeked(1500)
	hub.ReachedEndOfStream()

	want := []Type{TypeStreamChanged, TypePositionChanged, TypeSeeked, TypeReachedEndOfStream}
	require.Eventually(t, func() bool {
		return len(sink.types()) == len(want)
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, want, sink.types())

	sink.mu.Lock()
	require.Equal(t, "spotify:track:abc", sink.got[0].URI)
	require.Equal(t, 1500, *sink.got[2].PositionMs)
	sink.mu.Unlock()
}

func TestHub_CloseClosesSinksAndDropsLateNotifications(t *testing.T) {
	sink := &recordingSink{}
	hub := NewHub(nil, sink)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())
	require.True(t, sink.closed)

	hub.Seeked(1)
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, sink.types())
}

func TestWebSocketSink_Broadcast(t *testing.T) {
	ws := NewWebSocketSink(nil)
	hub := NewHub(nil, ws)
	defer hub.Close()

	router := chi.NewRouter()
	ws.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ws.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.StreamChanged("spotify:track:xyz")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Notification
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, TypeStreamChanged, got.Type)
	require.Equal(t, "spotify:track:xyz", got.URI)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ws.Count() == 0 }, time.Second, 5*time.Millisecond)
}

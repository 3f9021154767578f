package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/events"
	"github.com/aura-streams/backend/internal/realtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]func(events.Event)
	cancels  int
}

func (s *fakeSubscriber) Subscribe(channel string, handler func(events.Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string]func(events.Event))
	}
	s.handlers[channel] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancels++
		delete(s.handlers, channel)
	}, nil
}

func (s *fakeSubscriber) publish(e events.Event) bool {
	s.mu.Lock()
	h, ok := s.handlers[events.StreamChannel(e.StreamID)]
	s.mu.Unlock()
	if ok {
		h(e)
	}
	return ok
}

// slowSubscriber holds Subscribe open until release is closed.
type slowSubscriber struct {
	entered chan struct{}
	release chan struct{}
	cancels atomic.Int32
}

func (s *slowSubscriber) Subscribe(string, func(events.Event)) (func(), error) {
	close(s.entered)
	<-s.release
	return func() { s.cancels.Add(1) }, nil
}

func newServer(t *testing.T, hub *realtime.Hub) string {
	t.Helper()
	validate := func(token string) (uuid.UUID, error) {
		if token != "good" {
			return uuid.Nil, errors.New("bad token")
		}
		return uuid.New(), nil
	}
	lookup := func(_ context.Context, id uint64) error {
		if id != 1 {
			return apperr.ErrStreamNotFound
		}
		return nil
	}
	r := gin.New()
	r.GET("/ws", realtime.ServeWs(hub, zap.NewNop(), validate, lookup))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *realtime.Hub, streamID uint64, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(streamID) == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) (realtime.WSMessage, events.Event) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	var e events.Event
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	return msg, e
}

func TestServeWs_LocalEmit(t *testing.T) {
	t.Parallel()

	hub := realtime.NewHub(zap.NewNop(), nil)
	conn := dial(t, newServer(t, hub)+"?stream_id=1&token=good")
	waitSubscribers(t, hub, 1, 1)

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Emit(context.Background(), events.StreamPaused(2, at)))
	require.NoError(t, hub.Emit(context.Background(), events.Withdraw(1, uuid.New(), *uint256.NewInt(30), at)))

	msg, e := readEvent(t, conn)
	assert.Equal(t, "Withdraw", msg.Event, "events of other streams are not delivered")
	assert.Equal(t, "30", e.Amount)

	require.NoError(t, conn.Close())
	waitSubscribers(t, hub, 1, 0)
}

func TestServeWs_RedisSubscription(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscriber{}
	hub := realtime.NewHub(zap.NewNop(), sub)
	url := newServer(t, hub) + "?stream_id=1&token=good"

	a := dial(t, url)
	b := dial(t, url)
	waitSubscribers(t, hub, 1, 2)

	require.Eventually(t, func() bool { return sub.publish(events.StreamResumed(1, time.Now())) },
		2*time.Second, 10*time.Millisecond)
	for _, conn := range []*websocket.Conn{a, b} {
		msg, _ := readEvent(t, conn)
		assert.Equal(t, "StreamResumed", msg.Event)
	}

	require.NoError(t, a.Close())
	waitSubscribers(t, hub, 1, 1)
	require.NoError(t, b.Close())
	waitSubscribers(t, hub, 1, 0)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, 1, sub.cancels, "subscription dropped with the last client")
}

func TestServeWs_Rejects(t *testing.T) {
	t.Parallel()

	hub := realtime.NewHub(zap.NewNop(), nil)
	url := newServer(t, hub)

	tests := []struct {
		query string
		want  int
	}{
		{"?stream_id=1", http.StatusBadRequest},
		{"?stream_id=x&token=good", http.StatusBadRequest},
		{"?stream_id=1&token=bad", http.StatusUnauthorized},
		{"?stream_id=2&token=good", http.StatusNotFound},
	}
	for _, tt := range tests {
		_, resp, err := websocket.DefaultDialer.Dial(url+tt.query, nil)
		require.Error(t, err, tt.query)
		require.NotNil(t, resp, tt.query)
		assert.Equal(t, tt.want, resp.StatusCode, tt.query)
		_ = resp.Body.Close()
	}
}

func TestHub_SubscribeDoesNotHoldLock(t *testing.T) {
	t.Parallel()

	sub := &slowSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	hub := realtime.NewHub(zap.NewNop(), sub)
	c := &realtime.Client{ID: "a", StreamID: 1}

	registered := make(chan struct{})
	go func() {
		hub.Register(c)
		close(registered)
	}()
	<-sub.entered

	answered := make(chan int, 1)
	go func() {
		hub.Broadcast(events.StreamPaused(2, time.Now()))
		answered <- hub.Subscribers(1)
	}()
	select {
	case n := <-answered:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("hub blocked while the subscription was in flight")
	}

	// The client leaves before the subscription lands, so it is dropped.
	hub.Unregister(c)
	close(sub.release)
	<-registered
	assert.Equal(t, int32(1), sub.cancels.Load())
	assert.Equal(t, 0, hub.Subscribers(1))
}

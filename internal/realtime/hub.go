// Package realtime pushes stream events to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/events"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Subscriber relays events published on a channel. *events.RedisPubSub
// satisfies it.
type Subscriber interface {
	Subscribe(channel string, handler func(events.Event)) (cancel func(), err error)
}

// Hub maintains stream_id -> set of connections and fans events out to them.
// With a Subscriber every instance receives every event through Redis;
// without one the hub is fed directly through Emit.
type Hub struct {
	streams map[uint64]map[string]*Client
	subs    map[uint64]func() // cancel Redis subscription per stream
	mu      sync.RWMutex
	logger  *zap.Logger
	sub     Subscriber
}

// NewHub creates a hub. sub may be nil for a single-instance deployment.
func NewHub(logger *zap.Logger, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		streams: make(map[uint64]map[string]*Client),
		subs:    make(map[uint64]func()),
		logger:  logger,
		sub:     sub,
	}
}

// Register adds a client to a stream feed. Starts the Redis subscription for
// this stream if it is the first client. The subscribe round trip runs
// outside the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.streams[c.StreamID] == nil
	if first {
		h.streams[c.StreamID] = make(map[string]*Client)
	}
	h.streams[c.StreamID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.Uint64("stream_id", c.StreamID))

	if first && h.sub != nil {
		h.subscribe(c.StreamID)
	}
}

func (h *Hub) subscribe(streamID uint64) {
	cancel, err := h.sub.Subscribe(events.StreamChannel(streamID), h.Broadcast)
	if err != nil {
		h.logger.Warn("stream subscription failed", zap.Uint64("stream_id", streamID), zap.Error(err))
		return
	}

	h.mu.Lock()
	// The last client may have left, or a newer subscription may have been
	// installed, while this one was in flight.
	_, live := h.streams[streamID]
	_, installed := h.subs[streamID]
	keep := live && !installed
	if keep {
		h.subs[streamID] = cancel
	}
	h.mu.Unlock()
	if !keep {
		cancel()
	}
}

// Unregister removes a client. Cancels the Redis subscription when the last
// client of a stream leaves.
func (h *Hub) Unregister(c *Client) {
	var cancel func()
	h.mu.Lock()
	if m, ok := h.streams[c.StreamID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.streams, c.StreamID)
			cancel = h.subs[c.StreamID]
			delete(h.subs, c.StreamID)
		}
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.Uint64("stream_id", c.StreamID))
}

// Broadcast sends e to the local clients of its stream. Slow clients miss
// events rather than block the hub.
func (h *Hub) Broadcast(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	msg := WSMessage{Event: string(e.Kind), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.streams[e.StreamID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full", zap.String("client_id", c.ID))
		}
	}
}

// Emit implements events.Emitter for hubs without a Subscriber.
func (h *Hub) Emit(_ context.Context, e events.Event) error {
	h.Broadcast(e)
	return nil
}

// Subscribers returns the number of connected clients for a stream.
func (h *Hub) Subscribers(streamID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[streamID])
}

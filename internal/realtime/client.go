package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection following one stream.
type Client struct {
	ID          string
	StreamID    uint64
	PrincipalID uuid.UUID
	hub         *Hub
	conn        *websocket.Conn
	send        chan WSMessage
}

// TokenValidator resolves a bearer token to its principal.
type TokenValidator func(token string) (uuid.UUID, error)

// StreamLookup reports whether a stream exists, returning its error otherwise.
type StreamLookup func(ctx context.Context, id uint64) error

// ServeWs handles GET /ws?stream_id=&token= and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, lookup StreamLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		streamID, err := strconv.ParseUint(c.Query("stream_id"), 10, 64)
		if err != nil || streamID == 0 || token == "" {
			response.BadRequest(c, "stream_id and token required")
			return
		}
		principal, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		if err := lookup(c.Request.Context(), streamID); err != nil {
			response.Error(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.New().String(),
			StreamID:    streamID,
			PrincipalID: principal,
			hub:         hub,
			conn:        conn,
			send:        make(chan WSMessage, 64),
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; the feed is one-way.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

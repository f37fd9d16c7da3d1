package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"crmchat/backend/internal/config"
	"crmchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketClient implements Client over a gorilla websocket connection.
// Text frames carry JSON envelopes; binary frames are file chunks for the
// connection's open upload.
type WebSocketClient struct {
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService

	send           chan models.OutboundEvent
	maxMessageSize int64
	log            *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient assigns a fresh connection id to conn.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, maxMessageSize int64, log *zap.Logger) *WebSocketClient {
	id := uuid.NewString()
	return &WebSocketClient{
		ConnID:         id,
		Conn:           conn,
		Hub:            hub,
		send:           make(chan models.OutboundEvent, config.SendBufferSize),
		maxMessageSize: maxMessageSize,
		log:            log.With(zap.String("conn_id", id)),
	}
}

func (c *WebSocketClient) GetConnID() string { return c.ConnID }

func (c *WebSocketClient) Send(ev models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the send queue, which makes writePump send a close frame.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump handles events one at a time, so chunks of one upload reach the
// file in the order they were sent.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	ctx := c.Hub.Context()
	for {
		kind, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", zap.Error(err))
			}
			return
		}

		if kind == websocket.BinaryMessage {
			if err := c.Hub.HandleChunk(c, data); err != nil {
				c.log.Debug("binary chunk ignored", zap.Error(err))
			}
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("malformed frame", zap.Error(err))
			continue
		}
		c.Hub.Dispatch(ctx, c, env)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.log.Warn("write failed", zap.String("event", ev.Event), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"parlor/pkg/delivery"
	"parlor/pkg/logger"
	"parlor/pkg/presence"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	maxInboundBytes = 4 << 10
)

// Client is one websocket connection of one user. Outbound frames come
// from the hub; inbound frames carry lightweight acks and heartbeats,
// everything heavier goes through the HTTP API.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	sessionID string
}

// inbound is the client-to-server frame shape.
type inbound struct {
	Op        string `json:"op"`
	MessageID string `json:"message_id,omitempty"`
}

func newClient(h *Hub, conn *websocket.Conn, userID, sessionID string) *Client {
	return &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, h.sendBuf),
		userID:    userID,
		sessionID: sessionID,
	}
}

// detach hands the client back to the hub, or gives up once the hub
// has shut down and nobody receives on unregister anymore.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.detach()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := presence.Heartbeat(c.userID, c.sessionID); err != nil {
			logger.Debug("pong_heartbeat_failed", "user", c.userID, "error", err)
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("gateway_read_error", "user", c.userID, "error", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			logger.Debug("gateway_bad_frame", "user", c.userID, "error", err)
			continue
		}
		c.handle(in)
	}
}

// handle applies one inbound op. Ack failures are expected noise: the
// client may ack a message it has no delivery row for.
func (c *Client) handle(in inbound) {
	switch in.Op {
	case "heartbeat":
		if err := presence.Heartbeat(c.userID, c.sessionID); err != nil {
			logger.Debug("heartbeat_failed", "user", c.userID, "error", err)
		}
	case "ack_delivered":
		if _, err := delivery.MarkDelivered(in.MessageID, c.userID); err != nil {
			logger.Debug("ack_delivered_failed", "user", c.userID, "message", in.MessageID, "error", err)
		}
	case "ack_read":
		if _, err := delivery.MarkRead(in.MessageID, c.userID); err != nil {
			logger.Debug("ack_read_failed", "user", c.userID, "message", in.MessageID, "error", err)
		}
	default:
		logger.Debug("gateway_unknown_op", "user", c.userID, "op", in.Op)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 << 10
	sendQueueSize  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST layer handles cross-origin policy; tokens gate the data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientMessage is what connected clients send: room joins and leaves.
type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// Client is one WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	claims *auth.Claims

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// Handler returns the upgrade endpoint. validate resolves an optional
// bearer token (from the token query parameter) to claims; anonymous
// connections are allowed and limited to what no-auth permissions grant.
func (h *Hub) Handler(validate func(token string) (*auth.Claims, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var claims *auth.Claims
		if token := r.URL.Query().Get("token"); token != "" {
			var err error
			claims, err = validate(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", logger.Err(err))
			return
		}

		c := &Client{
			hub:    h,
			conn:   conn,
			claims: claims,
			send:   make(chan []byte, sendQueueSize),
		}
		h.register(c)
		go c.writePump()
		go c.readPump()
	}
}

// enqueue hands a frame to the client's writer, dropping the connection
// when its queue is full rather than blocking the broadcaster. The send
// happens under sendMu so a concurrent close cannot leave a broadcaster
// sending on a closed channel.
func (c *Client) enqueue(payload []byte) {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.send <- payload:
		c.sendMu.Unlock()
	default:
		c.sendMu.Unlock()
		logger.Warn("dropping slow websocket client")
		c.close()
	}
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", logger.Err(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(serverMessage{Event: "error", Error: "malformed message"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg clientMessage) {
	switch msg.Action {
	case "join":
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := c.hub.authorizeJoin(ctx, c.claims, msg.Room); err != nil {
			c.reply(serverMessage{Event: "error", Room: msg.Room, Error: joinError(err)})
			return
		}
		c.hub.join(c, msg.Room)
		c.reply(serverMessage{Event: "joined", Room: msg.Room})
	case "leave":
		c.hub.leave(c, msg.Room)
		c.reply(serverMessage{Event: "left", Room: msg.Room})
	default:
		c.reply(serverMessage{Event: "error", Error: "unknown action"})
	}
}

func joinError(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "unknown room"
	case errors.Is(err, models.ErrPermissionDenied):
		return "permission denied"
	default:
		return "join failed"
	}
}

func (c *Client) reply(msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

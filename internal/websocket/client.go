// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	wstypes "authsession-service/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

// Client is one live connection bound to a single session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	accountID int64
	sessionID string

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, accountID int64, sessionID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		accountID: accountID,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) AccountID() int64  { return c.accountID }
func (c *Client) SessionID() string { return c.sessionID }

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error",
					zap.String("session_id", c.sessionID),
					zap.Error(err),
				)
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump drains the send buffer. A closed buffer ends the connection
// after every queued message has been written.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
			Code:    "invalid_message",
			Message: "failed to parse message",
		}))
		return
	}

	if msg.Type == wstypes.EventTypePing {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))
	}
}

// SendMessage queues msg without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *Client) SendMessage(msg *wstypes.WSMessage) bool {
	data, err := msg.ToJSON()
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend lets WritePump flush what is queued and then close the socket.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Close stops both pumps immediately.
func (c *Client) Close() {
	c.cancel()
	c.closeSend()
}

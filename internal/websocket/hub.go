// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "authsession-service/internal/domain/websocket"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/session"

	"go.uber.org/zap"
)

// Hub tracks live connections per account and tells them when their session ends.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger *zap.Logger
}

// BroadcastMessage targets the connections of one account. An empty SessionID
// targets all of them.
type BroadcastMessage struct {
	AccountID  int64
	SessionID  string
	Message    *wstypes.WSMessage
	Disconnect bool
}

var _ session.Listener = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger.OrNop(log),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register and Unregister are no-ops once Run has returned.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SessionDestroyed notifies live connections of the destroyed session and
// then closes them. It never blocks the caller; events are dropped when the
// hub is saturated.
func (h *Hub) SessionDestroyed(accountID int64, sessionID string, reason session.Reason) {
	msg := &BroadcastMessage{
		AccountID: accountID,
		SessionID: sessionID,
		Message: wstypes.NewMessage(wstypes.EventTypeSessionTerminated, wstypes.SessionEventData{
			SessionID: sessionID,
			Reason:    string(reason),
			Message:   "your session has ended, please sign in again",
		}),
		Disconnect: true,
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket hub saturated, session event dropped",
			zap.String("session_id", sessionID),
		)
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	if h.clients[c.accountID] == nil {
		h.clients[c.accountID] = make(map[*Client]bool)
	}
	h.clients[c.accountID][c] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("account_id", c.accountID),
		zap.String("session_id", c.sessionID),
		zap.Int("total", total),
	)

	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"account_id": c.accountID,
		"session_id": c.sessionID,
	}))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
	c.Close()
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	clients, ok := h.clients[c.accountID]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.accountID)
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[msg.AccountID] {
		if msg.SessionID != "" && c.sessionID != msg.SessionID {
			continue
		}
		delivered := c.SendMessage(msg.Message)
		if msg.Disconnect || !delivered {
			h.remove(c)
			c.closeSend()
		}
	}
}

func (h *Hub) GetConnectedClients(accountID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for c := range clients {
			c.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}

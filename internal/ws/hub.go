package ws

import (
	"encoding/json"
	"sync"
)

// Client is one websocket connection of an account.
type Client struct {
	AccountID uint
	Send      chan []byte
	Hub       *Hub
	mu        sync.Mutex
	closed    bool
}

func NewClient(accountID uint) *Client {
	return &Client{AccountID: accountID, Send: make(chan []byte, 64)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// trySend queues data without blocking; slow clients drop messages.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// Hub tracks the open connections of each account.
type Hub struct {
	mu        sync.RWMutex
	byAccount map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byAccount: make(map[uint]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byAccount[c.AccountID] == nil {
		h.byAccount[c.AccountID] = make(map[*Client]struct{})
	}
	h.byAccount[c.AccountID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byAccount[c.AccountID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byAccount, c.AccountID)
		}
	}
}

// BroadcastToUser sends payload as JSON to every connection of the account.
func (h *Hub) BroadcastToUser(accountID uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byAccount[accountID]))
	for c := range h.byAccount[accountID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byAccount {
		n += len(m)
	}
	return n
}

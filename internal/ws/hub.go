package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/quizduel/backend/internal/battle"
)

var (
	ErrUnknownConnection = errors.New("connection not registered")
	ErrSendBufferFull    = errors.New("send buffer full")
)

// Hub maintains the set of live connections and is the engine's Transport.
type Hub struct {
	clients    map[string]*Client // connection id -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	onDisconnect func(connID string)
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetDisconnectHandler installs fn to run after a connection goes away. Must
// be called before Run.
func (h *Hub) SetDisconnectHandler(fn func(connID string)) {
	h.onDisconnect = fn
}

// Run processes registrations until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	log.Println("[WS] Hub started")
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			close(h.done)
			log.Println("[WS] Hub stopped")
			return

		case c := <-h.register:
			h.attach(c)

		case c := <-h.unregister:
			if h.detach(c) && h.onDisconnect != nil {
				// engine cleanup may hit redis; keep the hub loop free
				go h.onDisconnect(c.id)
			}
		}
	}
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if c.registered != nil {
		close(c.registered)
	}
	log.Printf("[WS] Connection %s opened", c.id)
}

func (h *Hub) detach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.clients[c.id]
	if !ok || cur != c {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	log.Printf("[WS] Connection %s closed", c.id)
	return true
}

// Send queues ev for the connection without blocking.
func (h *Hub) Send(connID string, ev battle.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Connected reports whether connID is live.
func (h *Hub) Connected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

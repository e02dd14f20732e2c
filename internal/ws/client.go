package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quizduel/backend/internal/battle"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBufferSize = 256
)

// Client is one websocket connection. Its id is the connection id the
// engine routes events by.
type Client struct {
	hub        *Hub
	handler    *Handler
	conn       *websocket.Conn
	id         string
	send       chan []byte
	registered chan struct{}

	// playerID is set from a token on the upgrade request, if any
	playerID string
}

// WSMessage is the inbound envelope.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// join blocks until the hub knows the client. False means the hub is gone.
func (c *Client) join() bool {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		return false
	}
	<-c.registered
	return true
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel; best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error on %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error on %s: %v", c.id, err)
				return
			}
		}
	}
}

// readPump reads inbound events until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if c.playerID != "" {
		c.handler.identify(c, c.playerID)
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close on %s: %v", c.id, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Malformed message"})
			continue
		}
		c.handler.dispatch(c, msg)
	}
}

// reply sends directly to this connection, bypassing the engine.
func (c *Client) reply(evType string, data any) {
	if err := c.hub.Send(c.id, battle.Event{Type: evType, Data: data}); err != nil {
		log.Printf("[WS] Reply %s to %s dropped: %v", evType, c.id, err)
	}
}

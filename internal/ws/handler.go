package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizduel/backend/internal/accounts"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/battle"
)

const requestTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is checked by middleware.WebSocketCORSCheck
	},
}

// Handler upgrades battle connections and feeds their events to the engine.
type Handler struct {
	hub      *Hub
	engine   *battle.Engine
	verifier *auth.Verifier
}

func NewHandler(hub *Hub, engine *battle.Engine, verifier *auth.Verifier) *Handler {
	return &Handler{hub: hub, engine: engine, verifier: verifier}
}

type registerIdentityData struct {
	Token string `json:"token"`
}

type queryStatusData struct {
	MatchID string `json:"matchId"`
}

// ServeWS handles GET /battle/ws. A ?token= identifies the player right away;
// otherwise the client must send register-identity first.
func (h *Handler) ServeWS(c *gin.Context) {
	var playerID string
	if token := c.Query("token"); token != "" {
		pid, err := h.verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		playerID = pid
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:        h.hub,
		handler:    h,
		conn:       conn,
		id:         uuid.NewString(),
		send:       make(chan []byte, sendBufferSize),
		registered: make(chan struct{}),
		playerID:   playerID,
	}
	if !client.join() {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) identify(c *Client, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := h.engine.RegisterIdentity(ctx, c.id, playerID); err != nil {
		c.reply(battle.EventRoomError, battle.ErrorPayload{Message: errorMessage(err)})
		return
	}
	log.Printf("[WS] Connection %s registered as player %s", c.id, playerID)
}

func (h *Handler) dispatch(c *Client, msg WSMessage) {
	h.engine.Directory().Touch(c.id)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch msg.Type {
	case "register-identity":
		var data registerIdentityData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Invalid identity data"})
			return
		}
		playerID, err := h.verifier.Verify(data.Token)
		if err != nil {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Authentication failed"})
			return
		}
		h.identify(c, playerID)

	case "join-matchmaking":
		var req battle.JoinRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.reply(battle.EventMatchmakingError, battle.ErrorPayload{Message: "Invalid matchmaking data"})
				return
			}
		}
		if _, err := h.engine.Join(ctx, c.id, req); err != nil {
			c.reply(battle.EventMatchmakingError, battle.ErrorPayload{Message: errorMessage(err)})
		}

	case "cancel-matchmaking":
		if err := h.engine.Cancel(ctx, c.id); err != nil {
			c.reply(battle.EventMatchmakingError, battle.ErrorPayload{Message: errorMessage(err)})
		}

	case "submit-answer":
		var req battle.SubmitAnswerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.MatchID == "" {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Invalid answer data"})
			return
		}
		if err := h.engine.SubmitAnswer(c.id, req); err != nil {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: errorMessage(err)})
		}

	case "query-match-status":
		var data queryStatusData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.MatchID == "" {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Invalid status query"})
			return
		}
		view, err := h.engine.QueryStatus(c.id, data.MatchID)
		if err != nil {
			c.reply(battle.EventRoomError, battle.ErrorPayload{Message: errorMessage(err)})
			return
		}
		c.reply(battle.EventMatchStatus, view)

	case "ping":
		c.reply(battle.EventPong, nil)

	default:
		c.reply(battle.EventRoomError, battle.ErrorPayload{Message: "Unknown message type"})
	}
}

// errorMessage hides internal failures from clients.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return "Insufficient balance for this stake"
	case errors.Is(err, battle.ErrNotRegistered):
		return "Authentication required"
	case battle.IsUserError(err):
		return err.Error()
	}
	log.Printf("[WS] Internal error: %v", err)
	return "Something went wrong, please try again"
}

package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/battle"
	"github.com/quizduel/backend/internal/models"
)

// MatchHistory lists a player's archived matches.
type MatchHistory interface {
	RecentForPlayer(ctx context.Context, playerID string, limit int) ([]models.BattleMatch, error)
}

// GetQueueStatus reports how many players wait in a pool.
func GetQueueStatus(engine *battle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		pool := c.Query("pool")
		if pool == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pool is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"pool":   pool,
			"length": engine.QueueLength(c.Request.Context(), pool),
		})
	}
}

// GetMatchStatus returns the caller's view of an active or recently
// finished match.
func GetMatchStatus(engine *battle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString(auth.ContextPlayerID)
		view, err := engine.MatchStatus(playerID, c.Param("id"))
		switch {
		case errors.Is(err, battle.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		case errors.Is(err, battle.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load match"})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// GetMatchHistory lists the caller's latest finished matches.
func GetMatchHistory(history MatchHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString(auth.ContextPlayerID)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		rows, err := history.RecentForPlayer(c.Request.Context(), playerID, limit)
		if err != nil {
			log.Printf("[ERROR] GetMatchHistory - player %s: %v", playerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}

		matches := make([]gin.H, 0, len(rows))
		for _, m := range rows {
			opponent, myScore, oppScore := m.Player2ID, m.Player1Score, m.Player2Score
			if m.Player2ID == playerID {
				opponent, myScore, oppScore = m.Player1ID, m.Player2Score, m.Player1Score
			}
			result := "lost"
			switch {
			case m.IsDraw:
				result = "draw"
			case m.WinnerID.Valid && m.WinnerID.String == playerID:
				result = "won"
			}
			matches = append(matches, gin.H{
				"match_id":       m.ID,
				"category_id":    m.CategoryID,
				"opponent":       opponent,
				"my_score":       myScore,
				"opponent_score": oppScore,
				"result":         result,
				"entry_fee":      m.EntryFee,
				"prize":          m.Prize,
				"finished_at":    m.FinishedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

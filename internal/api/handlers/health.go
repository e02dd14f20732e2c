package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/quizduel/backend/internal/battle"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status. A degraded queue still answers
// 200; only a failed database ping does not.
func HealthCheck(db *sqlx.DB, engine *battle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":         "ok",
			"service":        "quizduel-api",
			"version":        version,
			"uptime":         time.Since(startTime).String(),
			"queue_degraded": engine.QueueDegraded(),
			"active_matches": engine.ActiveMatches(),
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["database"] = "unavailable"
			} else {
				body["database"] = "ok"
			}
		}

		c.JSON(status, body)
	}
}

package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/quizduel/backend/internal/api/handlers"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/battle"
	"github.com/quizduel/backend/internal/config"
	"github.com/quizduel/backend/internal/middleware"
	"github.com/quizduel/backend/internal/ws"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	DB       *sqlx.DB
	Config   *config.Config
	Engine   *battle.Engine
	Hub      *ws.Hub
	Verifier *auth.Verifier
	History  handlers.MatchHistory
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.CORSMiddleware(d.Config))

	if d.Config.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.DB, d.Engine))
		v1.GET("/config", handlers.GetConfig(d.Config))

		b := v1.Group("/battle")
		{
			b.GET("/queue", handlers.GetQueueStatus(d.Engine))
			b.GET("/ws", middleware.WebSocketCORSCheck(d.Config), ws.NewHandler(d.Hub, d.Engine, d.Verifier).ServeWS)

			authed := b.Group("", auth.Middleware(d.Verifier))
			authed.GET("/matches/:id", handlers.GetMatchStatus(d.Engine))
			if d.History != nil {
				authed.GET("/history", handlers.GetMatchHistory(d.History))
			}
		}
	}
}

package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizduel/backend/internal/config"
)

var devOrigins = []string{
	"http://localhost:5173", // Vite dev server
	"http://127.0.0.1:5173",
	"http://localhost:3000",
}

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	log.Printf("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Environment == "production" {
		corsConfig.AllowOrigins = productionOrigins(cfg)
		if len(corsConfig.AllowOrigins) == 0 {
			// cors.New rejects an empty origin list
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
		log.Printf("[CORS] Production allowed origins: %v", corsConfig.AllowOrigins)
	} else {
		corsConfig.AllowOrigins = append([]string(nil), devOrigins...)
		if cfg.FrontendURL != "" {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, cfg.FrontendURL)
		}
	}

	return cors.New(corsConfig)
}

func productionOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{}
	}
	return []string{strings.TrimRight(cfg.FrontendURL, "/")}
}

// WebSocketCORSCheck validates WebSocket upgrade origins. Outside production
// a missing Origin is let through for native clients and tooling.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		production := cfg.Environment == "production"
		if origin == "" {
			if production {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "WebSocket origin required"})
				return
			}
			c.Next()
			return
		}

		var allowed bool
		if production {
			for _, o := range productionOrigins(cfg) {
				if origin == o {
					allowed = true
					break
				}
			}
		} else {
			allowed = strings.HasPrefix(origin, "http://localhost:") ||
				strings.HasPrefix(origin, "http://127.0.0.1:") ||
				(cfg.FrontendURL != "" && origin == cfg.FrontendURL)
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "WebSocket origin not allowed"})
			return
		}

		c.Next()
	}
}

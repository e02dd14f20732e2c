package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizduel/backend/internal/config"
)

// GetConfig returns minimal config values required by frontend
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"question_time_seconds":  cfg.QuestionTimeSeconds,
			"intro_seconds":          cfg.IntroSeconds,
			"countdown_seconds":      cfg.CountdownSeconds,
			"default_question_count": cfg.DefaultQuestionCount,
			"max_question_count":     cfg.MaxQuestionCount,
			"max_stake_amount":       cfg.MaxStakeAmount,
			"winner_share_percent":   cfg.WinnerSharePercent,
		})
	}
}

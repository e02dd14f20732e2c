package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL     string
	QueueBackend string // "redis" (with in-memory fallback) or "memory"

	// Server
	Port        string
	FrontendURL string

	// Battle timing
	QuestionTimeSeconds int
	InterRoundMillis    int
	IntroSeconds        int
	CountdownSeconds    int

	// Battle rules
	DefaultQuestionCount int
	MaxQuestionCount     int
	MaxStakeAmount       int64
	WinnerSharePercent   int
	RecordCommission     bool
	HouseAccountID       string

	// Workers
	MatchmakerPollSeconds       int
	QueueExpiryMinutes          int
	RecentMatchRetentionMinutes int

	// Security
	JWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),

		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/quizduel?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueBackend: getEnv("QUEUE_BACKEND", "redis"),

		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		QuestionTimeSeconds: getEnvInt("QUESTION_TIME_SECONDS", 15),
		InterRoundMillis:    getEnvInt("INTER_ROUND_MILLIS", 1000),
		IntroSeconds:        getEnvInt("INTRO_SECONDS", 2),
		CountdownSeconds:    getEnvInt("COUNTDOWN_SECONDS", 3),

		DefaultQuestionCount: getEnvInt("DEFAULT_QUESTION_COUNT", 5),
		MaxQuestionCount:     getEnvInt("MAX_QUESTION_COUNT", 20),
		MaxStakeAmount:       int64(getEnvInt("MAX_STAKE_AMOUNT", 100000)),
		WinnerSharePercent:   getEnvInt("WINNER_SHARE_PERCENT", 80),
		RecordCommission:     getEnvBool("RECORD_COMMISSION", false),
		HouseAccountID:       getEnv("HOUSE_ACCOUNT_ID", "house"),

		MatchmakerPollSeconds:       getEnvInt("MATCHMAKER_POLL_SECONDS", 3),
		QueueExpiryMinutes:          getEnvInt("QUEUE_EXPIRY_MINUTES", 10),
		RecentMatchRetentionMinutes: getEnvInt("RECENT_MATCH_RETENTION_MINUTES", 5),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
}

// QuestionTime is the per-question answer window.
func (c *Config) QuestionTime() time.Duration {
	return time.Duration(c.QuestionTimeSeconds) * time.Second
}

// InterRoundDelay is the pause between a round closing and the next question.
func (c *Config) InterRoundDelay() time.Duration {
	return time.Duration(c.InterRoundMillis) * time.Millisecond
}

func (c *Config) IntroDelay() time.Duration {
	return time.Duration(c.IntroSeconds) * time.Second
}

func (c *Config) CountdownDelay() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func (c *Config) MatchmakerInterval() time.Duration {
	if c.MatchmakerPollSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.MatchmakerPollSeconds) * time.Second
}

func (c *Config) QueueExpiry() time.Duration {
	return time.Duration(c.QueueExpiryMinutes) * time.Minute
}

func (c *Config) RecentMatchRetention() time.Duration {
	return time.Duration(c.RecentMatchRetentionMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/quizduel/backend/internal/accounts"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/config"
	"github.com/quizduel/backend/internal/database"
	"github.com/quizduel/backend/internal/questions"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	players := []string{"demo-alice", "demo-bob"}
	if v := os.Getenv("SEED_PLAYERS"); v != "" {
		players = strings.Split(v, ",")
	}

	deposit := int64(1000)
	if v := os.Getenv("SEED_DEPOSIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			deposit = n
		}
	}

	store := accounts.NewPostgresStore(db)
	for _, p := range players {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := store.EnsureWallet(ctx, p, deposit); err != nil {
			log.Fatalf("Failed to seed wallet for %s: %v", p, err)
		}
	}

	repo := questions.NewPostgresRepository(db)
	n, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count questions: %v", err)
	}
	if n == 0 {
		category := os.Getenv("SEED_CATEGORY")
		if category == "" {
			category = "general"
		}
		for _, q := range questions.Builtin() {
			if err := repo.Insert(ctx, category, q); err != nil {
				log.Fatalf("Failed to insert question %q: %v", q.Text, err)
			}
		}
		log.Printf("✓ Inserted %d questions into category %q", len(questions.Builtin()), category)
	} else {
		log.Printf("Question bank already has %d questions, skipping", n)
	}

	if cfg.JWTSecret == "change-me-in-production" {
		log.Printf("WARNING: Using default JWT secret. Set JWT_SECRET env var in production!")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	log.Println("✓ Demo players ready. Connect with ?token=<token>:")
	for _, p := range players {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		token, err := verifier.Issue(p, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", p, err)
		}
		log.Printf("  %s (balance seed %d): %s", p, deposit, token)
	}
}

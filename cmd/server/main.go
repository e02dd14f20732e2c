package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/quizduel/backend/internal/accounts"
	"github.com/quizduel/backend/internal/api"
	"github.com/quizduel/backend/internal/auth"
	"github.com/quizduel/backend/internal/battle"
	"github.com/quizduel/backend/internal/config"
	"github.com/quizduel/backend/internal/database"
	"github.com/quizduel/backend/internal/history"
	"github.com/quizduel/backend/internal/ledger"
	"github.com/quizduel/backend/internal/migrations"
	"github.com/quizduel/backend/internal/questions"
	"github.com/quizduel/backend/internal/redis"
	"github.com/quizduel/backend/internal/ws"
	"golang.org/x/sync/errgroup"
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

	if cfg.MigrateOnStart {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, os.Getenv("MIGRATIONS_DIR")); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Redis is optional: without it the queue lives in process memory
	var queue battle.QueueStore
	if cfg.QueueBackend == "memory" {
		log.Println("[QUEUE] Using in-memory queue (QUEUE_BACKEND=memory)")
		queue = battle.NewMemoryQueue()
	} else {
		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Printf("[QUEUE] Redis unavailable (%v), using in-memory queue", err)
			queue = battle.NewMemoryQueue()
		} else {
			defer rdb.Close()
			queue = battle.NewFallbackQueue(battle.NewRedisQueue(rdb))
			log.Printf("[QUEUE] Using Redis queue with in-memory fallback")
		}
	}

	store := accounts.NewPostgresStore(db)
	recorder := history.NewPostgresRecorder(db)
	hub := ws.NewHub()

	engine := battle.NewEngine(battle.Settings{
		Timing: battle.Timing{
			Intro:      cfg.IntroDelay(),
			Countdown:  cfg.CountdownDelay(),
			Question:   cfg.QuestionTime(),
			InterRound: cfg.InterRoundDelay(),
		},
		DefaultQuestionCount: cfg.DefaultQuestionCount,
		MaxQuestionCount:     cfg.MaxQuestionCount,
		MaxStake:             cfg.MaxStakeAmount,
		QueueExpiry:          cfg.QueueExpiry(),
	}, battle.Deps{
		Queue:    queue,
		Registry: battle.NewRegistry(cfg.RecentMatchRetention()),
		Ledger: ledger.New(store, ledger.Config{
			WinnerSharePercent: cfg.WinnerSharePercent,
			RecordCommission:   cfg.RecordCommission,
			HouseAccountID:     cfg.HouseAccountID,
		}),
		Questions: questions.NewPostgresRepository(db),
		Recorder:  recorder,
		Transport: hub,
	})
	hub.SetDisconnectHandler(func(connID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		engine.Disconnect(ctx, connID)
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, api.Deps{
		DB:       db,
		Config:   cfg,
		Engine:   engine,
		Hub:      hub,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		History:  recorder,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		battle.StartMatchmakerWorker(gctx, engine, cfg.MatchmakerInterval())
		return nil
	})
	g.Go(func() error {
		battle.StartQueueExpiryWorker(gctx, engine, 0)
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting QuizDuel server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hiramGL/CriolloListApp/internal/api"
	"github.com/hiramGL/CriolloListApp/internal/chat"
	"github.com/hiramGL/CriolloListApp/internal/config"
	"github.com/hiramGL/CriolloListApp/internal/store"
	"github.com/hiramGL/CriolloListApp/internal/worker"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Initialize the data store: PostgreSQL when configured, SQLite for
	// local development otherwise
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "data/criollolist.db"
		}
		sqliteStore, err := store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", path).Msg("using SQLite")
	}
	defer db.Close()

	// Initialize Redis: realtime feed, search index and the task queue
	var redisStore *store.RedisStore
	var feed store.ChangeFeed
	var tasks *asynq.Client
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		feed = redisStore
		logger.Info().Msg("connected to Redis")

		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid redis URL for task queue")
		}
		tasks = asynq.NewClient(opt)
		defer tasks.Close()

		w, err := worker.New(cfg.RedisURL, db, redisStore, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker setup failed")
		}
		if err := w.Start(); err != nil {
			logger.Fatal().Err(err).Msg("worker failed to start")
		}
		defer w.Shutdown()
	} else {
		logger.Warn().Msg("REDIS_URL not set; realtime and queued indexing disabled")
	}

	chatSvc := chat.NewService(db, feed, logger)

	// Create router
	router := api.NewRouter(logger, db, redisStore, chatSvc, tasks, cfg.JWTSecret)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting CriolloList server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

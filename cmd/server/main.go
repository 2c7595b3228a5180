package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/community-points/internal/config"
	"github.com/community-points/internal/handler"
	"github.com/community-points/internal/kafka"
	"github.com/community-points/internal/locker"
	"github.com/community-points/internal/postgres"
	"github.com/community-points/internal/redis"
	"github.com/community-points/internal/service"
	"github.com/community-points/internal/websocket"
	"github.com/community-points/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	users := postgres.NewUserRepository(repo)
	contents := postgres.NewContentRepository(repo)
	engagements := postgres.NewEngagementRepository(repo)
	rankings := postgres.NewRankingRepository(repo)

	// Initialize Redis score cache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	scoreCache, err := redis.NewScoreCache(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer scoreCache.Close()
	logger.Info("connected to Redis")

	locks := locker.NewRedisLocker(scoreCache.Client(), logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	ledger := service.NewPointsLedger(users, engagements, logger)
	recorder := service.NewEngagementRecorder(users, contents, engagements, ledger, scoreCache, logger)
	userService := service.NewUserService(users, logger)
	contentService := service.NewContentService(users, contents, logger)
	calculator := service.NewRankingCalculator(users, rankings, logger)

	// Initialize ranking worker
	rankingWorker := worker.NewRankingWorker(
		calculator,
		users,
		scoreCache,
		locks,
		wsHub,
		&cfg.Ranking,
		logger,
	)

	// Rebuild the realtime cache from stored totals on startup (recovery)
	logger.Info("rebuilding realtime score cache from stored totals")
	if err := rankingWorker.RebuildCache(ctx); err != nil {
		logger.Warn("failed to rebuild score cache on startup", "error", err)
	}

	// Start ranking worker
	if cfg.Ranking.Enabled {
		if err := rankingWorker.Start(ctx); err != nil {
			logger.Error("failed to start ranking worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load engagement ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, recorder, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(
		userService,
		contentService,
		recorder,
		calculator,
		ledger,
		scoreCache,
		wsHub,
		&cfg.Leaderboard,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop ranking worker
	if err := rankingWorker.Stop(); err != nil {
		logger.Error("failed to stop ranking worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/quote-cache/configs"
	"github.com/avatarctic/quote-cache/internal/application/services"
	"github.com/avatarctic/quote-cache/internal/core/ports"
	"github.com/avatarctic/quote-cache/internal/infrastructure/db"
	"github.com/avatarctic/quote-cache/internal/infrastructure/health"
	"github.com/avatarctic/quote-cache/internal/infrastructure/httpserver"
	"github.com/avatarctic/quote-cache/internal/infrastructure/redis"
	"github.com/avatarctic/quote-cache/internal/infrastructure/repositories"
	"github.com/avatarctic/quote-cache/internal/infrastructure/store"
	"github.com/avatarctic/quote-cache/internal/infrastructure/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting quote cache service...")

	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to database and Redis")

	var keyedStore ports.KeyedStore
	switch cfg.Quote.CacheBackend {
	case "redis":
		keyedStore = redis.NewKeyedStore(redisClient, cfg.Quote.CacheKeyPrefix)
	default:
		keyedStore = store.NewMemoryStore()
	}

	// Token rows are read on every cold quote; keep them briefly in Redis.
	tokenCache := redis.NewRedisCache(redisClient, cfg.Quote.CacheKeyPrefix)
	tokenRepo := repositories.NewCachingTokenRepository(
		repositories.NewTokenRepository(database, logger),
		tokenCache,
		cfg.Quote.TokenCacheTTL,
	)

	quoteClient := upstream.NewQuoteClient(&cfg.QuoteAPI, logger)

	worker := services.NewRefreshWorker(keyedStore, tokenRepo, quoteClient, nil, logger)
	pool := services.NewRefreshPool(worker, &services.RefreshPoolConfig{
		Workers:   cfg.Quote.RefreshWorkers,
		QueueSize: cfg.Quote.RefreshQueueSize,
	}, logger)

	quoteService := services.NewQuoteService(keyedStore, tokenRepo, pool, &services.QuoteServiceConfig{
		FreshnessPeriod: cfg.Quote.FreshnessPeriod,
		Consolidation:   cfg.Quote.Consolidation,
	}, logger)

	// The table must exist before refreshes can write into it.
	if !quoteService.TableExists(context.Background()) {
		if err := quoteService.CreateTable(context.Background()); err != nil {
			logger.Fatal("Failed to create quote cache table:", err)
		}
	}
	pool.Start()

	logger.WithFields(logrus.Fields{
		"backend":          cfg.Quote.CacheBackend,
		"freshness_period": cfg.Quote.FreshnessPeriod.String(),
		"consolidation":    quoteService.ConsolidationEnabled(),
	}).Info("Quote cache ready")

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		QuoteService: quoteService,
		HealthCheckers: []ports.HealthChecker{
			health.NewDBHealthChecker(database),
			health.NewRedisHealthChecker(redisClient),
			health.NewQuoteTableChecker(quoteService),
		},
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}
	if err := pool.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Refresh pool did not drain before shutdown")
	}

	logger.Info("Server exited")
}

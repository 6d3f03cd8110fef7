package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ryzan/ryzan_service/internal/api/routes"
	"github.com/ryzan/ryzan_service/internal/infrastructure/cache"
	"github.com/ryzan/ryzan_service/internal/infrastructure/config"
	"github.com/ryzan/ryzan_service/internal/infrastructure/database"
	"github.com/ryzan/ryzan_service/internal/infrastructure/di"
	"github.com/ryzan/ryzan_service/pkg/graceful"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
	"github.com/ryzan/ryzan_service/pkg/tracing"
)

// @title Ryzan Service API
// @version 1.0
// @description Cross-border stablecoin transfers on Avalanche

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	metrics.Register(log.Zap())

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := di.NewContainer(startCtx, cfg, db, redisClient, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	router := routes.SetupRoutes(container)

	if container.Reconciler != nil {
		if err := container.Reconciler.Start(); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", "error", err)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Components stop in reverse registration order once the server has drained
	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register("database", graceful.ShutdownFunc(func(context.Context) error { return db.Close() }))
	shutdown.Register("redis", graceful.ShutdownFunc(func(context.Context) error { return redisClient.Close() }))
	shutdown.Register("tracing", graceful.ShutdownFunc(tracingShutdown))
	shutdown.Register("rpc", graceful.ShutdownFunc(func(context.Context) error {
		container.Close()
		return nil
	}))
	if container.NotificationService != nil {
		shutdown.Register("notifications", container.NotificationService)
	}
	shutdown.Register("wallet-sessions", container.Sessions)
	if container.Reconciler != nil {
		shutdown.Register("reconciliation", container.Reconciler)
	}

	go func() {
		log.Info("Server starting",
			"address", server.Addr,
			"environment", cfg.Environment,
			"network", container.Chain.Name,
			"chain_id", container.Chain.ChainID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown.WaitForShutdown(context.Background())
}

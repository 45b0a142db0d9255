package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/core/services"
	"github.com/SscSPs/curtain_escrow_app/internal/events"
	"github.com/SscSPs/curtain_escrow_app/internal/handlers"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/config"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/memory"
	"github.com/SscSPs/curtain_escrow_app/internal/scheduler"
	"github.com/SscSPs/curtain_escrow_app/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// @title Curtain Escrow API
// @version 1.0
// @description Job lifecycle and escrow point ledger for curtain installation jobs.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger)
	bus.SubscribeAll(events.LogNotifier())
	// Requests still draining after a signal publish events, so the bus outlives ctx.
	bus.Start(context.WithoutCancel(ctx))
	defer bus.Stop()

	var svc *portssvc.ServiceContainer
	closeStorage := func() {}
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		svc = services.NewServiceContainer(memory.NewRepositoryProvider(memory.NewStore()), nil, services.WithPublisher(bus))
		sweeper := scheduler.NewSweeper(svc.Escrow, cfg.SettlementSweepInterval, cfg.SettlementBatchSize, logger)
		go sweeper.Run(ctx)
	default:
		svc, closeStorage, err = setupPostgres(ctx, cfg, bus, logger)
		if err != nil {
			logger.Error("Failed to set up PostgreSQL storage", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS, rate limit)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.RateLimit != "" {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			logger.Error("Failed to create rate limiter", slog.String("error", err.Error()))
			os.Exit(1)
		}
		r.Use(middleware.RateLimit(limiter))
	}

	err = r.SetTrustedProxies(nil)
	if err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, svc)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	// In-flight requests are done with the pool only once Shutdown returns.
	closeStorage()
}

// setupPostgres migrates the database, builds the pgx repositories and starts River. The returned
// func stops River and closes the pool; call it after the HTTP server has shut down.
func setupPostgres(ctx context.Context, cfg *config.Config, bus *events.Bus, logger *slog.Logger) (*portssvc.ServiceContainer, func(), error) {
	logger.Info("Running database migrations...")
	if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
		return nil, nil, err
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection pool established.")

	if err := scheduler.MigrateRiver(ctx, dbPool); err != nil {
		database.ClosePgxPool(dbPool)
		return nil, nil, err
	}

	riverScheduler := scheduler.NewRiverScheduler()
	svc := services.NewServiceContainer(pgsql.NewRepositoryProvider(dbPool), riverScheduler, services.WithPublisher(bus))

	client, err := scheduler.NewRiverClient(dbPool, svc.Escrow, scheduler.Options{
		MaxWorkers:    cfg.RiverMaxWorkers,
		SweepInterval: cfg.SettlementSweepInterval,
		BatchSize:     cfg.SettlementBatchSize,
	}, logger)
	if err != nil {
		database.ClosePgxPool(dbPool)
		return nil, nil, err
	}
	riverScheduler.SetClient(client)

	// Stopped explicitly by the cleanup func rather than by signal cancellation.
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		database.ClosePgxPool(dbPool)
		return nil, nil, err
	}

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			logger.Error("River client did not stop cleanly", slog.String("error", err.Error()))
		}
		database.ClosePgxPool(dbPool)
	}
	return svc, cleanup, nil
}

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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-entry/internal/app"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
	"github.com/odyssey-erp/odyssey-entry/internal/entry"
	entryhttp "github.com/odyssey-erp/odyssey-entry/internal/entry/http"
	"github.com/odyssey-erp/odyssey-entry/internal/observability"
	"github.com/odyssey-erp/odyssey-entry/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-entry/internal/platform/db"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
	"github.com/odyssey-erp/odyssey-entry/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "entryd"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	taskClient := asynq.NewClient(redisOpts)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(dbpool)
	catalogCache := catalog.NewCache(catalogRepo, redisClient, cfg.CatalogCacheTTL, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	entryRepo := entry.NewRepository(dbpool, cfg.CompanyID, idempotencyStore)

	service := entry.NewService(entry.Dependencies{
		Catalog:      catalogCache,
		Stock:        catalogRepo,
		BatchNumbers: entryRepo,
		Numbers:      entryRepo,
		Store:        entryRepo,
		Drafts:       drafts.NewQueue(drafts.NewRedisStore(redisClient, cfg.DraftStoreKey)),
		Handoff:      jobs.NewHandoffEnqueuer(taskClient),
		Audit:        shared.NewAuditLogger(dbpool),
		Metrics:      metrics,
		Logger:       logger,
		VATRate:      cfg.VATRate,
	})
	registry := entry.NewRegistry(service, cfg.SessionIdleTTL, logger)
	go registry.Run(ctx, time.Minute)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		EntryHandler: entryhttp.NewHandler(logger, registry, service, catalogCache, cfg.RateLimitPerMinute),
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
		Readiness: map[string]app.Pinger{
			"postgres": dbpool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", slog.Int("open_sessions", registry.Len()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

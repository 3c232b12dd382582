package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/pocketshop-app/identity/internal/api"
	"github.com/pocketshop-app/identity/internal/app"
	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/observability"
	"github.com/pocketshop-app/identity/internal/platform/cache"
	"github.com/pocketshop-app/identity/internal/platform/db"
	"github.com/pocketshop-app/identity/internal/provider"
	"github.com/pocketshop-app/identity/internal/shared"
	"github.com/pocketshop-app/identity/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mailQueue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := mailQueue.Close(); err != nil {
			logger.Warn("mail queue close", slog.Any("error", err))
		}
	}()

	backend := provider.New(provider.Config{
		Store:          provider.NewPGStore(pool),
		Tokens:         provider.NewTokenStore(redisClient, cfg.ActionTokenTTL),
		Mailer:         mailQueue,
		Logger:         logger,
		ActionLinkBase: cfg.ActionLinkBaseURL,
		MinPasswordLen: cfg.MinPasswordLen,
	})

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionTTL)
	metrics := observability.NewMetrics()

	apiHandler := api.NewHandler(api.HandlerConfig{
		Logger:              logger,
		Provider:            backend,
		SessionManager:      sessionManager,
		Catalog:             identity.NewCatalog(),
		Metrics:             metrics,
		AuthRateLimit:       cfg.AuthRateLimit,
		AuthRateLimitWindow: cfg.AuthRateLimitWindow,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		APIHandler:     apiHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}

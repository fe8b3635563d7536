package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/railagent/railagent/internal/api"
	"github.com/railagent/railagent/internal/api/middleware"
	"github.com/railagent/railagent/internal/config"
	"github.com/railagent/railagent/internal/db"
	"github.com/railagent/railagent/internal/idempotency"
	"github.com/railagent/railagent/internal/observability"
	"github.com/railagent/railagent/internal/provider"
	"github.com/railagent/railagent/internal/repository"
	"github.com/railagent/railagent/internal/service"
	"github.com/railagent/railagent/internal/webhook"
	"github.com/railagent/railagent/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, webhook dispatcher, and settlement
// worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	// Redis is an accelerator for idempotency lookups, not a dependency:
	// the key mapping is authoritative in Postgres.
	redisClient := newRedisClient(cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
	}
	cache := idempotency.NewCache(cmdable, cfg.IdempotencyCacheTTL)

	store := repository.NewStore(pool)
	repo := repository.NewTransferRepository(store)

	providers := provider.NewProviders(cfg.Provider, logger)
	if providers.FallbackReason != "" {
		logger.Warn("running on mock settlement backend", zap.String("reason", providers.FallbackReason))
	}

	dispatcher := webhook.NewDispatcher(cfg.WebhookSecret, logger,
		webhook.WithRetryDelays(cfg.WebhookRetryDelays),
		webhook.WithPollInterval(cfg.WebhookPollInterval),
	)
	stopDispatcher := dispatcher.Run(ctx)

	transferSvc := service.NewTransferService(
		repo, cache, providers.Quote, providers.Execution, dispatcher,
		cfg.Policy, cfg.SettlementDelay, logger,
	)

	settlementWorker := worker.NewSettlementWorker(transferSvc).
		WithPollInterval(cfg.SettlementPoll).
		WithBatchSize(cfg.SettlementBatchSize)
	stopWorker := settlementWorker.Run(ctx)
	logger.Info("settlement worker started",
		zap.Duration("interval", cfg.SettlementPoll),
		zap.Int32("batch", cfg.SettlementBatchSize),
	)

	router := api.NewRouter(cfg, logger, pool, cmdable, transferSvc, dispatcher)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping settlement worker")
	stopWorker()
	logger.Info("stopping webhook dispatcher")
	stopDispatcher()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// newRedisClient returns nil when Redis is unreachable; idempotency
// lookups then fall through to Postgres.
func newRedisClient(url string, logger *zap.Logger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis url, idempotency cache disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.Warn("redis unreachable, idempotency cache disabled", zap.Error(err))
		return nil
	}
	return client
}

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

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"healthmate/backend/internal/config"
	"healthmate/backend/internal/db"
	"healthmate/backend/internal/logging"
	"healthmate/backend/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid config", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.AppEnv,
			AttachStacktrace: true,
		}); err != nil {
			fatal(logger, "sentry init failed", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "database connect failed", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		fatal(logger, "database ping failed", err)
	}
	if cfg.AutoMigrate {
		if err := db.ApplySchema(ctx, pool); err != nil {
			fatal(logger, "schema apply failed", err)
		}
		logger.Info("database schema applied")
	}
	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		fatal(logger, "database schema mismatch", err)
	}

	opts := []server.Option{server.WithLogger(logger)}

	if cfg.RedisURL != "" && cfg.AIRateLimitPerHour > 0 {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fatal(logger, "invalid REDIS_URL", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so a cold Redis only loses rate limiting.
			logger.Warn("redis ping failed; chat rate limiting degraded", "error", err)
		}
		opts = append(opts, server.WithRateLimiter(server.NewChatRateLimiter(redisClient, cfg.AIRateLimitPerHour)))
	}

	if cfg.AvatarStorage == config.AvatarStorageS3 {
		store, err := server.NewS3AvatarStore(ctx, cfg.S3Bucket, cfg.AWSRegion, pool)
		if err != nil {
			fatal(logger, "s3 avatar store init failed", err)
		}
		opts = append(opts, server.WithAvatarStore(store))
	}

	if cfg.AIAPIURL == "" {
		logger.Warn("AI_API_URL is empty; chat replies come from the local echo client")
	}
	if !cfg.MailEnabled() {
		logger.Warn("mail settings incomplete; issue reports are stored without notification")
	}

	app := server.New(cfg, pool, opts...)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("healthmate api listening", "addr", "http://localhost:"+cfg.AppPort, "env", cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server failed", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
	os.Exit(1)
}

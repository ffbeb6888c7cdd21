package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eventcover_backend/internal/adapters/storage"
	"eventcover_backend/internal/events"
	"eventcover_backend/internal/quotes"
	"eventcover_backend/internal/scheduler"
	"eventcover_backend/platform/config"
	"eventcover_backend/platform/db"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side quote sweep wiring (no HTTP handlers required).
	quotesModule := quotes.NewModule(pool, eventBus, val, cfg, log, nil)

	worker, err := scheduler.NewWorker(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetQuoteSweeper(quotesModule.Service())

	if cfg.IsMinIOEnabled() {
		artifacts, err := storage.NewMinIOStore(cfg)
		if err != nil {
			log.Error("failed to initialize artifact store", "error", err)
			panic("failed to initialize artifact store: " + err.Error())
		}
		if err := artifacts.EnsureBucketExists(ctx, cfg.GetMinioBucketBackups()); err != nil {
			log.Error("failed to ensure backups bucket exists", "error", err)
			panic("failed to ensure backups bucket exists: " + err.Error())
		}
		worker.SetBackup(scheduler.NewBackup(pool, artifacts, cfg.GetMinioBucketBackups(), log))
	} else {
		log.Warn("MinIO not configured; nightly backups disabled")
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	sweepInterval := getDurationEnv("QUOTE_SWEEP_INTERVAL", time.Hour)
	backupInterval := getDurationEnv("BACKUP_INTERVAL", 24*time.Hour)
	periodic := scheduler.NewPeriodic(client, log, sweepInterval, backupInterval)
	go periodic.Run(ctx)

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventcover_backend/internal/adapters/storage"
	"eventcover_backend/internal/documents"
	"eventcover_backend/internal/email"
	"eventcover_backend/internal/events"
	apphttp "eventcover_backend/internal/http"
	"eventcover_backend/internal/http/router"
	"eventcover_backend/internal/identity"
	"eventcover_backend/internal/payments"
	"eventcover_backend/internal/payments/gateway"
	paymentsvc "eventcover_backend/internal/payments/service"
	"eventcover_backend/internal/policies"
	policysvc "eventcover_backend/internal/policies/service"
	"eventcover_backend/internal/quotes"
	"eventcover_backend/migrations"
	"eventcover_backend/platform/config"
	"eventcover_backend/platform/db"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender := email.NewSender(cfg)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Artifact store for policy documents and backups (MinIO)
	artifacts, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize artifact store", "error", err)
		panic("failed to initialize artifact store: " + err.Error())
	}
	ensureBucket(ctx, log, artifacts, "policy-documents", cfg.GetMinioBucketPolicyDocuments())
	ensureBucket(ctx, log, artifacts, "backups", cfg.GetMinioBucketBackups())
	log.Info("artifact store initialized",
		"policyDocumentsBucket", cfg.GetMinioBucketPolicyDocuments(),
		"backupsBucket", cfg.GetMinioBucketBackups(),
	)

	// Gotenberg renders the declaration PDFs
	var renderer policysvc.Renderer
	if cfg.IsRendererEnabled() {
		renderer = documents.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
		log.Info("document renderer initialized", "url", cfg.GetGotenbergURL())
	} else {
		log.Warn("GOTENBERG_URL not configured; declaration rendering disabled")
	}

	// Card charges go through Mercado Pago when an access token is configured
	var gw paymentsvc.Gateway
	if cfg.IsGatewayEnabled() {
		mp, err := gateway.NewMercadoPago(cfg.GetGatewayAccessToken())
		if err != nil {
			log.Error("failed to initialize payment gateway", "error", err)
			panic("failed to initialize payment gateway: " + err.Error())
		}
		gw = mp
		log.Info("payment gateway initialized")
	} else {
		log.Warn("GATEWAY_ACCESS_TOKEN not configured; card charges disabled")
	}

	// Redis backs the Idempotency-Key cache on quote creation
	var redisClient *redis.Client
	if cfg.GetRedisURL() != "" {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			log.Error("failed to parse redis url", "error", err)
			panic("failed to parse redis url: " + err.Error())
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_URL not configured; idempotency keys fall back to the duplicate heuristic")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	quotesModule := quotes.NewModule(pool, eventBus, val, cfg, log, redisClient)
	policiesModule := policies.NewModule(pool, eventBus, val, log, renderer, artifacts, cfg.GetMinioBucketPolicyDocuments(), sender)
	paymentsModule := payments.NewModule(pool, eventBus, val, log, gw)

	// Settled payments convert their quote inside the ledger transaction
	paymentsModule.Service().SetConverter(policiesModule.Service())

	// Quote confirmation mail
	eventBus.Subscribe(events.QuoteCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.QuoteCreated)
		if !ok || e.Email == "" {
			return nil
		}
		if err := sender.SendQuoteReceived(ctx, e.Email, e.QuoteNumber, e.TotalCents); err != nil {
			log.Error("quote received mail failed", "error", err, "quoteNumber", e.QuoteNumber)
		}
		return nil
	}))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		Verifier: identity.NewVerifier(cfg.GetJWTAccessSecret()),
		Modules: []apphttp.Module{
			quotesModule,
			policiesModule,
			paymentsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, store *storage.MinIOStore, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

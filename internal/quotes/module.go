// Package quotes provides the quote lifecycle bounded context module.
package quotes

import (
	"eventcover_backend/internal/events"
	apphttp "eventcover_backend/internal/http"
	"eventcover_backend/internal/quotes/handler"
	"eventcover_backend/internal/quotes/repository"
	"eventcover_backend/internal/quotes/service"
	"eventcover_backend/platform/config"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module is the quotes bounded context implementing http.Module.
type Module struct {
	svc           *service.Service
	adminHandler  *handler.Handler
	publicHandler *handler.PublicHandler
}

// NewModule wires the quotes repository, service and handlers. The Redis
// client is optional; without it the Idempotency-Key header is ignored.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, cfg config.QuoteConfig, log *logger.Logger, redisClient *redis.Client) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log, cfg)
	if redisClient != nil {
		svc.SetIdempotencyCache(service.NewRedisIdempotencyCache(redisClient, cfg.GetDuplicateWindow()))
	}

	return &Module{
		svc:           svc,
		adminHandler:  handler.New(svc, val),
		publicHandler: handler.NewPublic(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "quotes" }

// Service exposes the quote service for other modules (conversion, payments)
// and the scheduler.
func (m *Module) Service() *service.Service { return m.svc }

// RegisterRoutes mounts the public funnel and the admin quote routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/public/quotes")
	public.Use(ctx.PublicRateLimiter.RateLimit())
	m.publicHandler.RegisterRoutes(public)

	m.adminHandler.RegisterRoutes(ctx.Admin.Group("/quotes"))
}

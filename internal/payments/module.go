// Package payments provides the payment ledger bounded context module.
package payments

import (
	"eventcover_backend/internal/events"
	apphttp "eventcover_backend/internal/http"
	"eventcover_backend/internal/payments/handler"
	"eventcover_backend/internal/payments/repository"
	"eventcover_backend/internal/payments/service"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments bounded context implementing http.Module.
type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// NewModule wires the payments repository, service and handler. The gateway
// may be nil when no access token is configured. The conversion collaborator
// is wired afterwards via Service().SetConverter to avoid a hard module
// ordering dependency.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger, gw service.Gateway) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, quoterepo.New(pool), gw, bus, log)

	return &Module{
		svc:     svc,
		handler: handler.New(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "payments" }

// Service exposes the ledger service for collaborator wiring.
func (m *Module) Service() *service.Service { return m.svc }

// RegisterRoutes mounts the payment routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/payments"))
}

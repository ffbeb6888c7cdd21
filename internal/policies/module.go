// Package policies provides the policy issuance bounded context module.
package policies

import (
	"context"

	"eventcover_backend/internal/adapters/storage"
	"eventcover_backend/internal/email"
	"eventcover_backend/internal/events"
	apphttp "eventcover_backend/internal/http"
	"eventcover_backend/internal/policies/handler"
	"eventcover_backend/internal/policies/repository"
	"eventcover_backend/internal/policies/service"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the policies bounded context implementing http.Module.
type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// NewModule wires the policies repository, service and handler, and
// subscribes the issuance pipeline to PolicyIssued. The mailer is optional;
// without it issuance still stores the declaration, it just sends nothing.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger, renderer service.Renderer, artifacts storage.ArtifactStore, bucket string, mailer *email.Sender) *Module {
	repo := repository.New(pool)
	quotes := quoterepo.New(pool)
	svc := service.New(repo, quotes, renderer, artifacts, bucket, bus, log)

	bus.Subscribe(events.PolicyIssued{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.PolicyIssued)
		if !ok {
			return nil
		}

		url, err := svc.IssueDeclaration(ctx, e.PolicyID)
		if err != nil {
			log.Error("declaration issuance failed", "error", err, "policyNumber", e.PolicyNumber)
			return nil
		}
		if mailer != nil && e.Email != "" {
			if err := mailer.SendPolicyIssued(ctx, e.Email, e.PolicyNumber, url); err != nil {
				log.Error("policy issued mail failed", "error", err, "policyNumber", e.PolicyNumber)
			}
		}
		return nil
	}))

	return &Module{
		svc:     svc,
		handler: handler.New(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "policies" }

// Service exposes the conversion service for the payments ledger.
func (m *Module) Service() *service.Service { return m.svc }

// RegisterRoutes mounts the policy routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
}

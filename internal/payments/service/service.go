// Package service implements the payment ledger: manual entries recorded by
// operators and synchronous gateway charges, both able to trigger quote
// conversion atomically with the payment row.
package service

import (
	"context"
	"time"

	"eventcover_backend/internal/events"
	"eventcover_backend/internal/payments/gateway"
	"eventcover_backend/internal/payments/repository"
	"eventcover_backend/internal/payments/transport"
	policysvc "eventcover_backend/internal/policies/service"
	quoterepo "eventcover_backend/internal/quotes/repository"
	quotesvc "eventcover_backend/internal/quotes/service"
	"eventcover_backend/platform/apperr"
	"eventcover_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is the persistence contract the payments service depends on.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, p *repository.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Payment, error)
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
}

var _ Store = (*repository.Repository)(nil)

// QuoteReader resolves quote references on incoming payments.
type QuoteReader interface {
	GetByNumber(ctx context.Context, quoteNumber string) (*quoterepo.Quote, error)
}

// Converter issues a policy from a quote inside the ledger's transaction.
type Converter interface {
	ConvertInTx(ctx context.Context, tx pgx.Tx, quoteNumber string, force bool) (*policysvc.ConvertOutcome, error)
}

// Gateway charges a card synchronously.
type Gateway interface {
	Charge(ctx context.Context, req gateway.Charge) (*gateway.Result, error)
}

// Service handles payment business logic.
type Service struct {
	repo      Store
	quotes    QuoteReader
	gateway   Gateway
	converter Converter
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new payments service. The gateway may be nil when no access
// token is configured; the charge path then reports it unavailable.
func New(repo Store, quotes QuoteReader, gw Gateway, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		quotes:  quotes,
		gateway: gw,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// SetConverter wires the policy conversion collaborator. Without it, settled
// payments are recorded but never trigger issuance.
func (s *Service) SetConverter(c Converter) {
	s.converter = c
}

// LedgerEntry is a recorded payment together with the policy it settled, if
// the payment triggered conversion.
type LedgerEntry struct {
	Payment      *repository.Payment
	PolicyNumber string
}

// RecordManual appends an operator-entered payment. A SUCCESS entry that
// references an unconverted quote issues the policy in the same transaction.
func (s *Service) RecordManual(ctx context.Context, req transport.RecordPaymentRequest) (*LedgerEntry, error) {
	var quote *quoterepo.Quote
	if req.QuoteNumber != "" {
		var err error
		quote, err = s.quotes.GetByNumber(ctx, req.QuoteNumber)
		if err != nil {
			return nil, err
		}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	payment := &repository.Payment{
		ID:          uuid.New(),
		AmountCents: req.AmountCents,
		Method:      string(req.Method),
		Status:      string(req.Status),
		Reference:   req.Reference,
		Notes:       req.Notes,
		CreatedAt:   now,
	}
	if quote != nil {
		payment.QuoteID = &quote.ID
	}

	policyNumber := ""
	if req.Status == transport.StatusSuccess && quote != nil && s.converter != nil {
		// The operator entering a settled payment is the manual confirmation,
		// so admin-sourced quotes convert without a separate force step.
		outcome, err := s.converter.ConvertInTx(ctx, tx, quote.QuoteNumber, true)
		if err != nil {
			return nil, err
		}
		payment.PolicyID = &outcome.Policy.ID
		policyNumber = outcome.Policy.PolicyNumber
	}

	if err := s.repo.InsertTx(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.PaymentEvent("ledger.manual", payment.Reference, payment.AmountCents, payment.Status == string(transport.StatusSuccess), "")
	s.publishRecorded(ctx, payment)
	return &LedgerEntry{Payment: payment, PolicyNumber: policyNumber}, nil
}

// Charge runs a synchronous gateway charge for a quote's full premium. On
// approval the payment and the issued policy commit together; on decline or
// gateway failure nothing is persisted.
func (s *Service) Charge(ctx context.Context, req transport.ChargeRequest) (*LedgerEntry, error) {
	if s.gateway == nil {
		return nil, apperr.GatewayUnavailable("payment gateway is not configured", nil)
	}
	if s.converter == nil {
		return nil, apperr.Internal("policy issuance is not available")
	}

	quote, err := s.quotes.GetByNumber(ctx, req.QuoteNumber)
	if err != nil {
		return nil, err
	}
	if quote.ConvertedToPolicy {
		return nil, apperr.Conflict("quote has already been converted to a policy")
	}
	if quote.Status == quotesvc.StatusExpired {
		return nil, apperr.Conflict("quote has expired")
	}

	result, err := s.gateway.Charge(ctx, gateway.Charge{
		AmountCents:     quote.TotalPremiumCents,
		CardToken:       req.CardToken,
		PaymentMethodID: req.PaymentMethodID,
		Installments:    req.Installments,
		PayerEmail:      req.PayerEmail,
		Description:     "Event insurance premium " + quote.QuoteNumber,
	})
	if err != nil {
		s.log.PaymentEvent("gateway.charge", quote.QuoteNumber, quote.TotalPremiumCents, false, "gateway unavailable")
		return nil, err
	}
	if !result.Approved {
		s.log.PaymentEvent("gateway.charge", quote.QuoteNumber, quote.TotalPremiumCents, false, result.Detail)
		return nil, apperr.GatewayDeclined("payment was declined: " + result.Detail)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, s.chargedButUnrecorded(quote.QuoteNumber, result.ID, err)
	}
	defer tx.Rollback(ctx)

	outcome, err := s.converter.ConvertInTx(ctx, tx, quote.QuoteNumber, true)
	if err != nil {
		return nil, s.chargedButUnrecorded(quote.QuoteNumber, result.ID, err)
	}

	now := s.now().UTC()
	payment := &repository.Payment{
		ID:          uuid.New(),
		QuoteID:     &quote.ID,
		PolicyID:    &outcome.Policy.ID,
		AmountCents: quote.TotalPremiumCents,
		Method:      string(transport.MethodCard),
		Status:      string(transport.StatusSuccess),
		GatewayID:   &result.ID,
		CreatedAt:   now,
	}
	if err := s.repo.InsertTx(ctx, tx, payment); err != nil {
		return nil, s.chargedButUnrecorded(quote.QuoteNumber, result.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.chargedButUnrecorded(quote.QuoteNumber, result.ID, err)
	}

	s.log.PaymentEvent("gateway.charge", quote.QuoteNumber, payment.AmountCents, true, "")
	s.publishRecorded(ctx, payment)
	return &LedgerEntry{Payment: payment, PolicyNumber: outcome.Policy.PolicyNumber}, nil
}

// chargedButUnrecorded logs the accepted inconsistency: the gateway captured
// funds but the local transaction failed. Reconciliation against the gateway
// id is a support operation, not an automatic refund.
func (s *Service) chargedButUnrecorded(quoteNumber, gatewayID string, err error) error {
	s.log.Error("gateway charge succeeded but ledger write failed",
		"quoteNumber", quoteNumber, "gatewayId", gatewayID, "error", err)
	return err
}

// Get loads a ledger entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns ledger entries matching the filter.
func (s *Service) List(ctx context.Context, req transport.ListPaymentsRequest) (*repository.ListResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return s.repo.List(ctx, repository.ListParams{Status: req.Status, Page: page, PageSize: pageSize})
}

func (s *Service) publishRecorded(ctx context.Context, p *repository.Payment) {
	s.bus.Publish(ctx, events.PaymentRecorded{
		BaseEvent:   events.NewBaseEvent(),
		PaymentID:   p.ID,
		QuoteID:     p.QuoteID,
		PolicyID:    p.PolicyID,
		AmountCents: p.AmountCents,
		Status:      p.Status,
		Method:      p.Method,
	})
}

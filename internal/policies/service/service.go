// Package service implements policy issuance: the exactly-once conversion of
// a completed quote into a policy, amendments with version snapshots, and the
// declaration document pipeline.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"eventcover_backend/internal/adapters/storage"
	"eventcover_backend/internal/events"
	"eventcover_backend/internal/policies/repository"
	quoterepo "eventcover_backend/internal/quotes/repository"
	quotesvc "eventcover_backend/internal/quotes/service"
	"eventcover_backend/platform/apperr"
	"eventcover_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	policyNumberPrefix = "EVP-"
	// PolicyStatusActive is the only status an issued policy carries today.
	PolicyStatusActive = "ACTIVE"
	// versionRetention caps how many pre-amendment snapshots are kept.
	versionRetention = 10
)

// Store is the persistence contract the policies service depends on.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockQuoteForConversionTx(ctx context.Context, tx pgx.Tx, quoteNumber string) (*repository.ConversionQuote, error)
	InsertPolicyTx(ctx context.Context, tx pgx.Tx, p *repository.Policy) error
	MarkQuoteConvertedTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID, now time.Time) error
	GetByQuoteIDTx(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID) (*repository.Policy, error)
	GetByQuoteNumber(ctx context.Context, quoteNumber string) (*repository.Policy, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Policy, error)
	UpdatePremiumTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, totalCents int64, now time.Time) error
	InsertVersionTx(ctx context.Context, tx pgx.Tx, v *repository.Version) error
	PruneVersionsTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, keep int) ([]string, error)
	ListVersions(ctx context.Context, policyID uuid.UUID) ([]repository.Version, error)
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
}

var _ Store = (*repository.Repository)(nil)

// QuoteStore is the slice of the quotes repository the amendment pipeline
// needs: loading the insured risk and rewriting it inside our transaction.
type QuoteStore interface {
	GetGraphByID(ctx context.Context, id uuid.UUID) (*quoterepo.Graph, error)
	UpdateGraphInTx(ctx context.Context, tx pgx.Tx, quote *quoterepo.Quote, event *quoterepo.Event, venues []quoterepo.Venue, replaceVenues bool, holder *quoterepo.PolicyHolder) error
}

// Renderer converts declaration HTML into a PDF artifact.
type Renderer interface {
	ConvertHTML(ctx context.Context, indexHTML []byte) ([]byte, error)
}

// Service handles policy business logic.
type Service struct {
	repo      Store
	quotes    QuoteStore
	renderer  Renderer
	artifacts storage.ArtifactStore
	bucket    string
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new policies service.
func New(repo Store, quotes QuoteStore, renderer Renderer, artifacts storage.ArtifactStore, bucket string, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		quotes:    quotes,
		renderer:  renderer,
		artifacts: artifacts,
		bucket:    bucket,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// ConvertOutcome is the result of a conversion attempt. AlreadyConverted is
// true when the quote had a policy before this call; the existing policy is
// returned unchanged.
type ConvertOutcome struct {
	Policy           *repository.Policy
	Email            string
	AlreadyConverted bool
}

// Convert turns a quote into a policy exactly once. Retries and concurrent
// attempts return the originally issued policy.
func (s *Service) Convert(ctx context.Context, quoteNumber string, force bool) (*ConvertOutcome, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	outcome, err := s.ConvertInTx(ctx, tx, quoteNumber, force)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent conversion won the insert race; serve its policy.
			tx.Rollback(ctx)
			winner, werr := s.repo.GetByQuoteNumber(ctx, quoteNumber)
			if werr != nil {
				return nil, werr
			}
			return &ConvertOutcome{Policy: winner, AlreadyConverted: true}, nil
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if !outcome.AlreadyConverted {
		s.bus.Publish(ctx, events.PolicyIssued{
			BaseEvent:    events.NewBaseEvent(),
			PolicyID:     outcome.Policy.ID,
			PolicyNumber: outcome.Policy.PolicyNumber,
			QuoteID:      outcome.Policy.QuoteID,
			QuoteNumber:  quoteNumber,
			Email:        outcome.Email,
		})
	}
	return outcome, nil
}

// ConvertInTx runs the conversion inside a caller-owned transaction. The
// payment ledger uses this to make "record payment + issue policy" atomic.
func (s *Service) ConvertInTx(ctx context.Context, tx pgx.Tx, quoteNumber string, force bool) (*ConvertOutcome, error) {
	quote, err := s.repo.LockQuoteForConversionTx(ctx, tx, quoteNumber)
	if err != nil {
		return nil, err
	}

	if quote.ConvertedToPolicy {
		existing, err := s.repo.GetByQuoteIDTx(ctx, tx, quote.ID)
		if err != nil {
			return nil, err
		}
		return &ConvertOutcome{Policy: existing, Email: quote.Email, AlreadyConverted: true}, nil
	}

	if quote.Status == quotesvc.StatusExpired {
		return nil, apperr.Conflict("quote has expired and cannot be converted")
	}
	if quote.PolicyHolderID == nil {
		return nil, apperr.Conflict("quote is missing policy holder details")
	}
	if quote.EventID == nil {
		return nil, apperr.Conflict("quote is missing event details")
	}
	if quote.Source == "ADMIN" && !force {
		return nil, apperr.Conflict("conversion of an admin-created quote requires manual confirmation")
	}

	now := s.now().UTC()
	policy := &repository.Policy{
		ID:                uuid.New(),
		PolicyNumber:      generatePolicyNumber(),
		QuoteID:           quote.ID,
		EventID:           quote.EventID,
		PolicyHolderID:    quote.PolicyHolderID,
		Status:            PolicyStatusActive,
		TotalPremiumCents: quote.TotalPremiumCents,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.InsertPolicyTx(ctx, tx, policy); err != nil {
		return nil, err
	}
	if err := s.repo.MarkQuoteConvertedTx(ctx, tx, quote.ID, now); err != nil {
		return nil, err
	}

	return &ConvertOutcome{Policy: policy, Email: quote.Email}, nil
}

// GetDetail loads a policy with the quote graph it insures.
func (s *Service) GetDetail(ctx context.Context, policyID uuid.UUID) (*repository.Policy, *quoterepo.Graph, error) {
	policy, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := s.quotes.GetGraphByID(ctx, policy.QuoteID)
	if err != nil {
		return nil, nil, err
	}
	return policy, graph, nil
}

// List returns policies matching the filter.
func (s *Service) List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	return s.repo.List(ctx, params)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func generatePolicyNumber() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return policyNumberPrefix + strings.ToUpper(hex.EncodeToString([]byte(uuid.NewString()[:5])))
	}
	return policyNumberPrefix + strings.ToUpper(hex.EncodeToString(buf))
}

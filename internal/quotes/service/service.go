// Package service implements the quote lifecycle: creation with duplicate
// guarding, step-wise updates with premium recomputation, and the
// expiration sweep.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"eventcover_backend/internal/events"
	"eventcover_backend/internal/quotes/repository"
	"eventcover_backend/internal/quotes/transport"
	"eventcover_backend/internal/rating"
	"eventcover_backend/platform/apperr"
	"eventcover_backend/platform/config"
	"eventcover_backend/platform/logger"
	"eventcover_backend/platform/phone"

	"github.com/google/uuid"
)

const quoteNumberPrefix = "EVQ-"

// Service handles quote business logic.
type Service struct {
	repo repository.Store
	bus  events.Bus
	log  *logger.Logger
	cfg  config.QuoteConfig
	idem IdempotencyCache
	now  func() time.Time
}

// New creates a new quotes service.
func New(repo repository.Store, bus events.Bus, log *logger.Logger, cfg config.QuoteConfig) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log,
		cfg:  cfg,
		now:  time.Now,
	}
}

// SetIdempotencyCache wires the optional Idempotency-Key cache. Without it,
// only the heuristic duplicate guard runs.
func (s *Service) SetIdempotencyCache(cache IdempotencyCache) {
	s.idem = cache
}

// CreateResult is a created or re-served quote. Duplicate is true when the
// request matched a recent identical submission and no new quote was minted.
type CreateResult struct {
	Graph     *repository.Graph
	Duplicate bool
}

// Create prices the request, guards against duplicate submissions, and
// persists a new quote with its event.
func (s *Service) Create(ctx context.Context, req transport.CreateQuoteRequest, source transport.QuoteSource, idempotencyKey string) (*CreateResult, error) {
	option := normalizeLiabilityOption(req.LiabilityOption)

	if _, ok := rating.ClassifyGuestRange(req.Event.MaxGuests); !ok {
		return nil, apperr.Validation("maxGuests is outside the insurable range")
	}

	eventDate, err := parseEventDate(req.Event.EventDate)
	if err != nil {
		return nil, err
	}

	premium := rating.Calculate(req.CoverageLevel, option, req.LiquorLiability, req.Event.MaxGuests)
	now := s.now().UTC()

	if idempotencyKey != "" && s.idem != nil {
		number, found, err := s.idem.Lookup(ctx, idempotencyKey)
		if err != nil {
			s.log.Warn("idempotency lookup failed, falling back to duplicate search", "error", err)
		} else if found {
			graph, err := s.repo.GetGraphByNumber(ctx, number)
			if err == nil {
				return &CreateResult{Graph: graph, Duplicate: true}, nil
			}
			if !apperr.Is(err, apperr.KindNotFound) {
				return nil, err
			}
		}
	}

	existing, err := s.repo.FindDuplicate(ctx, repository.DuplicateParams{
		Email:                 req.Email,
		CoverageLevel:         req.CoverageLevel,
		LiabilityOption:       option,
		LiquorLiability:       req.LiquorLiability,
		CovidDisclosure:       req.CovidDisclosure,
		SpecialActivities:     req.SpecialActivities,
		BasePremiumCents:      premium.BaseCents,
		LiabilityPremiumCents: premium.LiabilityCents,
		LiquorPremiumCents:    premium.LiquorCents,
		TotalPremiumCents:     premium.TotalCents,
		Source:                string(source),
		EventType:             req.Event.EventType,
		EventDate:             eventDate,
		MaxGuests:             req.Event.MaxGuests,
		Since:                 now.Add(-s.cfg.GetDuplicateWindow()),
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		graph, err := s.repo.GetGraphByNumber(ctx, existing.QuoteNumber)
		if err != nil {
			return nil, err
		}
		return &CreateResult{Graph: graph, Duplicate: true}, nil
	}

	quote := &repository.Quote{
		ID:                    uuid.New(),
		QuoteNumber:           generateQuoteNumber(),
		Email:                 req.Email,
		CoverageLevel:         req.CoverageLevel,
		LiabilityOption:       option,
		LiquorLiability:       req.LiquorLiability,
		CovidDisclosure:       req.CovidDisclosure,
		SpecialActivities:     req.SpecialActivities,
		BasePremiumCents:      premium.BaseCents,
		LiabilityPremiumCents: premium.LiabilityCents,
		LiquorPremiumCents:    premium.LiquorCents,
		TotalPremiumCents:     premium.TotalCents,
		Status:                StatusStep1,
		Source:                string(source),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	event := &repository.Event{
		ID:        uuid.New(),
		QuoteID:   quote.ID,
		EventType: req.Event.EventType,
		EventDate: eventDate,
		MaxGuests: req.Event.MaxGuests,
		Honoree1:  req.Event.Honoree1,
		Honoree2:  req.Event.Honoree2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateGraph(ctx, quote, event); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, idempotencyKey, quote.QuoteNumber); err != nil {
			s.log.Warn("failed to record idempotency key", "error", err)
		}
	}

	s.bus.Publish(ctx, events.QuoteCreated{
		BaseEvent:   events.NewBaseEvent(),
		QuoteID:     quote.ID,
		QuoteNumber: quote.QuoteNumber,
		Email:       quote.Email,
		TotalCents:  quote.TotalPremiumCents,
		Source:      quote.Source,
	})

	return &CreateResult{Graph: &repository.Graph{Quote: *quote, Event: event}}, nil
}

// Update applies a partial update to a quote and its children, recomputes the
// premium, and advances the lifecycle status.
func (s *Service) Update(ctx context.Context, quoteNumber string, req transport.UpdateQuoteRequest) (*repository.Graph, error) {
	graph, err := s.repo.GetGraphByNumber(ctx, quoteNumber)
	if err != nil {
		return nil, err
	}
	quote := graph.Quote

	if quote.ConvertedToPolicy {
		return nil, apperr.Conflict("quote has been converted to a policy; use a policy amendment")
	}
	if quote.Status == StatusExpired {
		return nil, apperr.Conflict("quote has expired")
	}

	if req.Email != nil {
		quote.Email = *req.Email
	}
	if req.CoverageLevel != nil {
		quote.CoverageLevel = *req.CoverageLevel
	}
	if req.LiabilityOption != nil {
		quote.LiabilityOption = normalizeLiabilityOption(*req.LiabilityOption)
	}
	if req.LiquorLiability != nil {
		quote.LiquorLiability = *req.LiquorLiability
	}
	if req.CovidDisclosure != nil {
		quote.CovidDisclosure = *req.CovidDisclosure
	}
	if req.SpecialActivities != nil {
		quote.SpecialActivities = *req.SpecialActivities
	}

	now := s.now().UTC()

	var eventModel *repository.Event
	touchedEventOrVenue := false
	if req.Event != nil {
		touchedEventOrVenue = true
		eventDate, err := parseEventDate(req.Event.EventDate)
		if err != nil {
			return nil, err
		}
		if _, ok := rating.ClassifyGuestRange(req.Event.MaxGuests); !ok {
			return nil, apperr.Validation("maxGuests is outside the insurable range")
		}
		if graph.Event != nil {
			eventModel = graph.Event
		} else {
			eventModel = &repository.Event{ID: uuid.New(), QuoteID: quote.ID, CreatedAt: now}
		}
		eventModel.EventType = req.Event.EventType
		eventModel.EventDate = eventDate
		eventModel.MaxGuests = req.Event.MaxGuests
		eventModel.Honoree1 = req.Event.Honoree1
		eventModel.Honoree2 = req.Event.Honoree2
		eventModel.UpdatedAt = now
	} else if graph.Event != nil {
		eventModel = graph.Event
	}

	var venues []repository.Venue
	replaceVenues := false
	if len(req.Venues) > 0 {
		if eventModel == nil {
			return nil, apperr.Validation("venues require an event")
		}
		touchedEventOrVenue = true
		replaceVenues = true
		venues, err = buildVenues(req.Venues, eventModel.ID, now)
		if err != nil {
			return nil, err
		}
	}

	var holder *repository.PolicyHolder
	touchedHolder := false
	if req.PolicyHolder != nil {
		touchedHolder = true
		holder = buildHolder(req.PolicyHolder, graph, quote.ID, now)
	}

	// Premium always reflects the quote's current coverage selections and
	// guest count, whether or not this update touched a rate-relevant field.
	maxGuests := 0
	if eventModel != nil {
		maxGuests = eventModel.MaxGuests
	}
	premium := rating.Calculate(quote.CoverageLevel, quote.LiabilityOption, quote.LiquorLiability, maxGuests)
	quote.BasePremiumCents = premium.BaseCents
	quote.LiabilityPremiumCents = premium.LiabilityCents
	quote.LiquorPremiumCents = premium.LiquorCents
	quote.TotalPremiumCents = premium.TotalCents

	if req.Status != nil {
		if !CanTransition(quote.Status, *req.Status) {
			return nil, apperr.Conflict(fmt.Sprintf("cannot transition quote from %s to %s", quote.Status, *req.Status))
		}
		quote.Status = *req.Status
	} else {
		quote.Status = InferStatus(quote.Status, touchedHolder, touchedEventOrVenue)
	}

	quote.UpdatedAt = now

	var eventToWrite *repository.Event
	if req.Event != nil || (eventModel != nil && replaceVenues) {
		eventToWrite = eventModel
	}
	if err := s.repo.UpdateGraph(ctx, &quote, eventToWrite, venues, replaceVenues, holder); err != nil {
		return nil, err
	}

	return s.repo.GetGraphByNumber(ctx, quoteNumber)
}

// GetByNumber loads a quote with its children.
func (s *Service) GetByNumber(ctx context.Context, quoteNumber string) (*repository.Graph, error) {
	return s.repo.GetGraphByNumber(ctx, quoteNumber)
}

// List returns quotes matching the filter.
func (s *Service) List(ctx context.Context, req transport.ListQuotesRequest) (*repository.ListResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return s.repo.List(ctx, repository.ListParams{
		Status:   req.Status,
		Source:   req.Source,
		Search:   req.Search,
		Page:     page,
		PageSize: pageSize,
	})
}

// ExpireStale marks unconverted quotes older than the dormancy cutoff as
// EXPIRED and returns how many were transitioned.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.GetQuoteExpiryCutoff())
	count, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.bus.Publish(ctx, events.QuotesExpired{
			BaseEvent: events.NewBaseEvent(),
			Count:     int(count),
		})
	}
	return int(count), nil
}

func normalizeLiabilityOption(option string) string {
	if option == "" {
		return "none"
	}
	return option
}

func parseEventDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, apperr.Validation("eventDate must be formatted YYYY-MM-DD")
	}
	return &t, nil
}

func buildVenues(reqs []transport.VenueRequest, eventID uuid.UUID, now time.Time) ([]repository.Venue, error) {
	seen := make(map[transport.VenueSlot]bool, len(reqs))
	venues := make([]repository.Venue, 0, len(reqs))
	for _, vr := range reqs {
		if seen[vr.Slot] {
			return nil, apperr.Validation(fmt.Sprintf("duplicate venue slot %q", vr.Slot))
		}
		seen[vr.Slot] = true

		// Cruise ships carry no postal address; everything else needs one.
		if !strings.EqualFold(vr.VenueType, transport.VenueTypeCruiseShip) {
			if vr.City == "" || vr.State == "" || vr.Zip == "" || vr.Country == "" {
				return nil, apperr.Validation(fmt.Sprintf("venue %q requires city, state, zip and country", vr.Slot))
			}
		}

		venues = append(venues, repository.Venue{
			ID:            uuid.New(),
			EventID:       eventID,
			Slot:          string(vr.Slot),
			Name:          vr.Name,
			Address1:      vr.Address1,
			City:          vr.City,
			State:         vr.State,
			Zip:           vr.Zip,
			Country:       vr.Country,
			VenueType:     vr.VenueType,
			IndoorOutdoor: vr.IndoorOutdoor,
			AsInsured:     vr.AsInsured,
			CreatedAt:     now,
		})
	}
	return venues, nil
}

func buildHolder(req *transport.PolicyHolderRequest, graph *repository.Graph, quoteID uuid.UUID, now time.Time) *repository.PolicyHolder {
	holder := graph.Holder
	if holder == nil {
		holder = &repository.PolicyHolder{ID: uuid.New(), QuoteID: quoteID, CreatedAt: now}
	}
	holder.FirstName = req.FirstName
	holder.LastName = req.LastName
	holder.Phone = phone.NormalizeE164(req.Phone)
	holder.Address = req.Address
	holder.City = req.City
	holder.State = req.State
	holder.Zip = req.Zip
	holder.Country = req.Country
	holder.Relationship = req.Relationship
	holder.Consent = req.Consent
	holder.UpdatedAt = now
	return holder
}

func generateQuoteNumber() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		return quoteNumberPrefix + strings.ToUpper(hex.EncodeToString([]byte(uuid.NewString()[:5])))
	}
	return quoteNumberPrefix + strings.ToUpper(hex.EncodeToString(buf))
}

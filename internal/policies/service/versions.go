package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventcover_backend/internal/events"
	"eventcover_backend/internal/policies/repository"
	"eventcover_backend/internal/policies/transport"
	quoterepo "eventcover_backend/internal/quotes/repository"
	"eventcover_backend/internal/rating"
	"eventcover_backend/platform/apperr"
	"eventcover_backend/platform/phone"

	"github.com/google/uuid"
)

// snapshot is the audit record written to policy_versions: the policy header
// and the full insured risk as they stood before the amendment applied.
type snapshot struct {
	Policy struct {
		ID                uuid.UUID `json:"id"`
		PolicyNumber      string    `json:"policyNumber"`
		Status            string    `json:"status"`
		TotalPremiumCents int64     `json:"totalPremiumCents"`
		UpdatedAt         time.Time `json:"updatedAt"`
	} `json:"policy"`
	Quote        quoterepo.Quote          `json:"quote"`
	Event        *quoterepo.Event         `json:"event,omitempty"`
	Venues       []quoterepo.Venue        `json:"venues,omitempty"`
	PolicyHolder *quoterepo.PolicyHolder  `json:"policyHolder,omitempty"`
}

func buildSnapshot(policy *repository.Policy, graph *quoterepo.Graph) ([]byte, error) {
	var snap snapshot
	snap.Policy.ID = policy.ID
	snap.Policy.PolicyNumber = policy.PolicyNumber
	snap.Policy.Status = policy.Status
	snap.Policy.TotalPremiumCents = policy.TotalPremiumCents
	snap.Policy.UpdatedAt = policy.UpdatedAt
	snap.Quote = graph.Quote
	snap.Event = graph.Event
	snap.Venues = graph.Venues
	snap.PolicyHolder = graph.Holder
	return json.Marshal(snap)
}

// Amend versions the current policy state and then applies the requested
// field changes. The snapshot artifact must be rendered and stored before
// anything is written; a failure there aborts the amendment entirely.
func (s *Service) Amend(ctx context.Context, policyID uuid.UUID, req transport.AmendPolicyRequest) (*repository.Policy, *quoterepo.Graph, error) {
	policy, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := s.quotes.GetGraphByID(ctx, policy.QuoteID)
	if err != nil {
		return nil, nil, err
	}

	snap, err := buildSnapshot(policy, graph)
	if err != nil {
		return nil, nil, apperr.Artifact("failed to snapshot policy", err)
	}

	pdf, err := s.renderDeclaration(ctx, policy, graph)
	if err != nil {
		return nil, nil, err
	}

	versionID := uuid.New()
	artifactKey := fmt.Sprintf("policies/%s/versions/%s.pdf", policy.PolicyNumber, versionID)
	if _, err := s.artifacts.Put(ctx, s.bucket, artifactKey, "application/pdf", bytes.NewReader(pdf), int64(len(pdf))); err != nil {
		return nil, nil, apperr.Artifact("failed to store version artifact", err)
	}

	now := s.now().UTC()
	quote, event, venues, replaceVenues, holder, err := s.applyAmendment(graph, req, now)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	version := &repository.Version{
		ID:          versionID,
		PolicyID:    policy.ID,
		Snapshot:    snap,
		ArtifactKey: artifactKey,
		Reason:      req.Reason,
		CreatedAt:   now,
	}
	if err := s.repo.InsertVersionTx(ctx, tx, version); err != nil {
		return nil, nil, err
	}

	pruned, err := s.repo.PruneVersionsTx(ctx, tx, policy.ID, versionRetention)
	if err != nil {
		return nil, nil, err
	}

	if err := s.quotes.UpdateGraphInTx(ctx, tx, quote, event, venues, replaceVenues, holder); err != nil {
		return nil, nil, err
	}
	if err := s.repo.UpdatePremiumTx(ctx, tx, policy.ID, quote.TotalPremiumCents, now); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	// Pruned rows are gone; the artifacts must follow them out.
	for _, key := range pruned {
		s.deletePrunedArtifact(ctx, key)
	}

	s.bus.Publish(ctx, events.PolicyAmended{
		BaseEvent:    events.NewBaseEvent(),
		PolicyID:     policy.ID,
		PolicyNumber: policy.PolicyNumber,
		VersionID:    versionID,
	})

	updatedPolicy, err := s.repo.GetByID(ctx, policy.ID)
	if err != nil {
		return nil, nil, err
	}
	updatedGraph, err := s.quotes.GetGraphByID(ctx, policy.QuoteID)
	if err != nil {
		return nil, nil, err
	}
	return updatedPolicy, updatedGraph, nil
}

// applyAmendment maps the requested changes onto the quote graph and
// recomputes the premium. Unlike the quote funnel, amendments carry no status
// transitions; the quote stays COMPLETE and converted.
func (s *Service) applyAmendment(graph *quoterepo.Graph, req transport.AmendPolicyRequest, now time.Time) (*quoterepo.Quote, *quoterepo.Event, []quoterepo.Venue, bool, *quoterepo.PolicyHolder, error) {
	quote := graph.Quote

	if req.Email != nil {
		quote.Email = *req.Email
	}
	if req.CoverageLevel != nil {
		quote.CoverageLevel = *req.CoverageLevel
	}
	if req.LiabilityOption != nil {
		quote.LiabilityOption = *req.LiabilityOption
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

	var event *quoterepo.Event
	if req.Event != nil {
		if _, ok := rating.ClassifyGuestRange(req.Event.MaxGuests); !ok {
			return nil, nil, nil, false, nil, apperr.Validation("maxGuests is outside the insurable range")
		}
		var eventDate *time.Time
		if req.Event.EventDate != nil && *req.Event.EventDate != "" {
			parsed, err := time.Parse("2006-01-02", *req.Event.EventDate)
			if err != nil {
				return nil, nil, nil, false, nil, apperr.Validation("eventDate must be formatted YYYY-MM-DD")
			}
			eventDate = &parsed
		}
		if graph.Event != nil {
			event = graph.Event
		} else {
			event = &quoterepo.Event{ID: uuid.New(), QuoteID: quote.ID, CreatedAt: now}
		}
		event.EventType = req.Event.EventType
		event.EventDate = eventDate
		event.MaxGuests = req.Event.MaxGuests
		event.Honoree1 = req.Event.Honoree1
		event.Honoree2 = req.Event.Honoree2
		event.UpdatedAt = now
	} else {
		event = graph.Event
	}

	var venues []quoterepo.Venue
	replaceVenues := false
	if len(req.Venues) > 0 {
		if event == nil {
			return nil, nil, nil, false, nil, apperr.Validation("venues require an event")
		}
		replaceVenues = true
		for _, vr := range req.Venues {
			venues = append(venues, quoterepo.Venue{
				ID:            uuid.New(),
				EventID:       event.ID,
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
	}

	var holder *quoterepo.PolicyHolder
	if req.PolicyHolder != nil {
		holder = graph.Holder
		if holder == nil {
			holder = &quoterepo.PolicyHolder{ID: uuid.New(), QuoteID: quote.ID, CreatedAt: now}
		}
		holder.FirstName = req.PolicyHolder.FirstName
		holder.LastName = req.PolicyHolder.LastName
		holder.Phone = phone.NormalizeE164(req.PolicyHolder.Phone)
		holder.Address = req.PolicyHolder.Address
		holder.City = req.PolicyHolder.City
		holder.State = req.PolicyHolder.State
		holder.Zip = req.PolicyHolder.Zip
		holder.Country = req.PolicyHolder.Country
		holder.Relationship = req.PolicyHolder.Relationship
		holder.Consent = req.PolicyHolder.Consent
		holder.UpdatedAt = now
	}

	maxGuests := 0
	if event != nil {
		maxGuests = event.MaxGuests
	}
	premium := rating.Calculate(quote.CoverageLevel, quote.LiabilityOption, quote.LiquorLiability, maxGuests)
	quote.BasePremiumCents = premium.BaseCents
	quote.LiabilityPremiumCents = premium.LiabilityCents
	quote.LiquorPremiumCents = premium.LiquorCents
	quote.TotalPremiumCents = premium.TotalCents
	quote.UpdatedAt = now

	var eventToWrite *quoterepo.Event
	if req.Event != nil || replaceVenues {
		eventToWrite = event
	}
	return &quote, eventToWrite, venues, replaceVenues, holder, nil
}

const prunedArtifactDeleteAttempts = 3

// deletePrunedArtifact removes a pruned version's artifact, retrying brief
// store hiccups. The version row is already gone, so an object that survives
// every attempt is unreachable garbage; log it loudly for manual cleanup.
func (s *Service) deletePrunedArtifact(ctx context.Context, key string) {
	var err error
	for attempt := 1; attempt <= prunedArtifactDeleteAttempts; attempt++ {
		if err = s.artifacts.Delete(ctx, s.bucket, key); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	s.log.Error("failed to delete pruned version artifact", "key", key, "error", err)
}

// VersionInfo pairs a stored version with a presigned artifact link.
type VersionInfo struct {
	Version     repository.Version
	DownloadURL string
}

// ListVersions returns a policy's version history, newest first, with
// presigned download links for the artifacts.
func (s *Service) ListVersions(ctx context.Context, policyID uuid.UUID) ([]VersionInfo, error) {
	if _, err := s.repo.GetByID(ctx, policyID); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, policyID)
	if err != nil {
		return nil, err
	}

	infos := make([]VersionInfo, 0, len(versions))
	for _, v := range versions {
		info := VersionInfo{Version: v}
		if url, err := s.artifacts.GenerateDownloadURL(ctx, s.bucket, v.ArtifactKey); err != nil {
			s.log.Warn("failed to presign version artifact", "key", v.ArtifactKey, "error", err)
		} else {
			info.DownloadURL = url.URL
		}
		infos = append(infos, info)
	}
	return infos, nil
}

package handler

import (
	"eventcover_backend/internal/quotes/repository"
	"eventcover_backend/internal/quotes/transport"
)

func toQuoteResponse(g *repository.Graph, duplicate bool) transport.QuoteResponse {
	q := g.Quote
	resp := transport.QuoteResponse{
		ID:                q.ID,
		QuoteNumber:       q.QuoteNumber,
		Email:             q.Email,
		CoverageLevel:     q.CoverageLevel,
		LiabilityOption:   q.LiabilityOption,
		LiquorLiability:   q.LiquorLiability,
		CovidDisclosure:   q.CovidDisclosure,
		SpecialActivities: q.SpecialActivities,
		Premium: transport.PremiumResponse{
			BaseCents:      q.BasePremiumCents,
			LiabilityCents: q.LiabilityPremiumCents,
			LiquorCents:    q.LiquorPremiumCents,
			TotalCents:     q.TotalPremiumCents,
		},
		Status:            q.Status,
		Source:            transport.QuoteSource(q.Source),
		ConvertedToPolicy: q.ConvertedToPolicy,
		Duplicate:         duplicate,
		CreatedAt:         q.CreatedAt,
		UpdatedAt:         q.UpdatedAt,
	}

	if g.Event != nil {
		ev := transport.EventResponse{
			EventType: g.Event.EventType,
			MaxGuests: g.Event.MaxGuests,
			Honoree1:  g.Event.Honoree1,
			Honoree2:  g.Event.Honoree2,
		}
		if g.Event.EventDate != nil {
			formatted := g.Event.EventDate.Format("2006-01-02")
			ev.EventDate = &formatted
		}
		resp.Event = &ev
	}

	for _, v := range g.Venues {
		resp.Venues = append(resp.Venues, transport.VenueResponse{
			Slot:          transport.VenueSlot(v.Slot),
			Name:          v.Name,
			Address1:      v.Address1,
			City:          v.City,
			State:         v.State,
			Zip:           v.Zip,
			Country:       v.Country,
			VenueType:     v.VenueType,
			IndoorOutdoor: v.IndoorOutdoor,
			AsInsured:     v.AsInsured,
		})
	}

	if g.Holder != nil {
		resp.PolicyHolder = &transport.PolicyHolderResponse{
			FirstName:    g.Holder.FirstName,
			LastName:     g.Holder.LastName,
			Phone:        g.Holder.Phone,
			Address:      g.Holder.Address,
			City:         g.Holder.City,
			State:        g.Holder.State,
			Zip:          g.Holder.Zip,
			Country:      g.Holder.Country,
			Relationship: g.Holder.Relationship,
			Consent:      g.Holder.Consent,
		}
	}

	return resp
}

func toHeaderResponse(q repository.Quote) transport.QuoteResponse {
	return toQuoteResponse(&repository.Graph{Quote: q}, false)
}

// Package handler exposes the policies HTTP API.
package handler

import (
	"net/http"

	"eventcover_backend/internal/policies/repository"
	"eventcover_backend/internal/policies/service"
	"eventcover_backend/internal/policies/transport"
	quoterepo "eventcover_backend/internal/quotes/repository"
	quotetransport "eventcover_backend/internal/quotes/transport"
	"eventcover_backend/platform/httpkit"
	"eventcover_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the admin policy endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new policies handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the policy routes on the admin group. Conversion
// lives under the quote resource it consumes.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.POST("/quotes/:quoteNumber/convert", h.Convert)

	policies := admin.Group("/policies")
	policies.GET("", h.List)
	policies.GET("/:id", h.Get)
	policies.POST("/:id/amend", h.Amend)
	policies.GET("/:id/versions", h.ListVersions)
}

// Convert handles POST /admin/quotes/:quoteNumber/convert.
func (h *Handler) Convert(c *gin.Context) {
	var req transport.ConvertQuoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	outcome, err := h.svc.Convert(c.Request.Context(), c.Param("quoteNumber"), req.Force)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := toPolicyResponse(outcome.Policy, c.Param("quoteNumber"))
	resp.AlreadyConverted = outcome.AlreadyConverted
	if outcome.AlreadyConverted {
		httpkit.OK(c, resp)
		return
	}
	httpkit.Created(c, resp)
}

// Get handles GET /admin/policies/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	policy, graph, err := h.svc.GetDetail(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDetailResponse(policy, graph))
}

// List handles GET /admin/policies.
func (h *Handler) List(c *gin.Context) {
	req := transport.ListPoliciesRequest{Page: 1, PageSize: 20}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), repository.ListParams{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ListPoliciesResponse{
		Items:      make([]transport.PolicyResponse, 0, len(result.Items)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toPolicyResponse(&result.Items[i], ""))
	}
	httpkit.OK(c, resp)
}

// Amend handles POST /admin/policies/:id/amend.
func (h *Handler) Amend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.AmendPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if req.Event != nil {
		if err := h.val.Struct(req.Event); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}
	if req.PolicyHolder != nil {
		if err := h.val.Struct(req.PolicyHolder); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	policy, graph, err := h.svc.Amend(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDetailResponse(policy, graph))
}

// ListVersions handles GET /admin/policies/:id/versions.
func (h *Handler) ListVersions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	infos, err := h.svc.ListVersions(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.VersionResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, transport.VersionResponse{
			ID:          info.Version.ID,
			PolicyID:    info.Version.PolicyID,
			Reason:      info.Version.Reason,
			ArtifactKey: info.Version.ArtifactKey,
			DownloadURL: info.DownloadURL,
			CreatedAt:   info.Version.CreatedAt,
		})
	}
	httpkit.OK(c, resp)
}

func toPolicyResponse(p *repository.Policy, quoteNumber string) transport.PolicyResponse {
	return transport.PolicyResponse{
		ID:                p.ID,
		PolicyNumber:      p.PolicyNumber,
		QuoteID:           p.QuoteID,
		QuoteNumber:       quoteNumber,
		Status:            p.Status,
		TotalPremiumCents: p.TotalPremiumCents,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toDetailResponse(p *repository.Policy, graph *quoterepo.Graph) transport.PolicyDetailResponse {
	resp := transport.PolicyDetailResponse{PolicyResponse: toPolicyResponse(p, graph.Quote.QuoteNumber)}
	quote := toQuoteResponse(graph)
	resp.Quote = &quote
	return resp
}

func toQuoteResponse(g *quoterepo.Graph) quotetransport.QuoteResponse {
	q := g.Quote
	resp := quotetransport.QuoteResponse{
		ID:                q.ID,
		QuoteNumber:       q.QuoteNumber,
		Email:             q.Email,
		CoverageLevel:     q.CoverageLevel,
		LiabilityOption:   q.LiabilityOption,
		LiquorLiability:   q.LiquorLiability,
		CovidDisclosure:   q.CovidDisclosure,
		SpecialActivities: q.SpecialActivities,
		Premium: quotetransport.PremiumResponse{
			BaseCents:      q.BasePremiumCents,
			LiabilityCents: q.LiabilityPremiumCents,
			LiquorCents:    q.LiquorPremiumCents,
			TotalCents:     q.TotalPremiumCents,
		},
		Status:            q.Status,
		Source:            quotetransport.QuoteSource(q.Source),
		ConvertedToPolicy: q.ConvertedToPolicy,
		CreatedAt:         q.CreatedAt,
		UpdatedAt:         q.UpdatedAt,
	}
	if g.Event != nil {
		ev := quotetransport.EventResponse{
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
		resp.Venues = append(resp.Venues, quotetransport.VenueResponse{
			Slot:          quotetransport.VenueSlot(v.Slot),
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
		resp.PolicyHolder = &quotetransport.PolicyHolderResponse{
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

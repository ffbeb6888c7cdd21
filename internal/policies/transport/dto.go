// Package transport defines the request and response DTOs for the policies API.
package transport

import (
	"time"

	quotetransport "eventcover_backend/internal/quotes/transport"

	"github.com/google/uuid"
)

// Request DTOs

type ConvertQuoteRequest struct {
	// Force confirms conversion of an admin-sourced quote.
	Force bool `json:"force"`
}

// AmendPolicyRequest carries field changes applied after the pre-amendment
// snapshot has been versioned. All fields are optional.
type AmendPolicyRequest struct {
	Reason            string                             `json:"reason,omitempty" validate:"max=500"`
	Email             *string                            `json:"email,omitempty" validate:"omitempty,email"`
	CoverageLevel     *int                               `json:"coverageLevel,omitempty" validate:"omitempty,min=1,max=10"`
	LiabilityOption   *string                            `json:"liabilityOption,omitempty" validate:"omitempty,oneof=none option1 option2 option3 option4 option5 option6"`
	LiquorLiability   *bool                              `json:"liquorLiability,omitempty"`
	CovidDisclosure   *bool                              `json:"covidDisclosure,omitempty"`
	SpecialActivities *bool                              `json:"specialActivities,omitempty"`
	Event             *quotetransport.EventRequest       `json:"event,omitempty"`
	Venues            []quotetransport.VenueRequest      `json:"venues,omitempty" validate:"omitempty,max=5,dive"`
	PolicyHolder      *quotetransport.PolicyHolderRequest `json:"policyHolder,omitempty"`
}

type ListPoliciesRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"min=1"`
	PageSize int    `form:"pageSize" validate:"min=1,max=100"`
}

// Response DTOs

type PolicyResponse struct {
	ID                uuid.UUID `json:"id"`
	PolicyNumber      string    `json:"policyNumber"`
	QuoteID           uuid.UUID `json:"quoteId"`
	QuoteNumber       string    `json:"quoteNumber"`
	Status            string    `json:"status"`
	TotalPremiumCents int64     `json:"totalPremiumCents"`
	AlreadyConverted  bool      `json:"alreadyConverted,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PolicyDetailResponse is a policy with its underlying insured risk.
type PolicyDetailResponse struct {
	PolicyResponse
	Quote *quotetransport.QuoteResponse `json:"quote,omitempty"`
}

type VersionResponse struct {
	ID          uuid.UUID `json:"id"`
	PolicyID    uuid.UUID `json:"policyId"`
	Reason      string    `json:"reason,omitempty"`
	ArtifactKey string    `json:"artifactKey"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListPoliciesResponse struct {
	Items      []PolicyResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

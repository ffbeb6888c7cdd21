// Package transport defines the request and response DTOs for the quotes API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Enum values

// QuoteSource records which channel created a quote.
type QuoteSource string

const (
	SourceCustomer QuoteSource = "CUSTOMER"
	SourceAdmin    QuoteSource = "ADMIN"
)

// VenueSlot identifies which of the insured locations a venue row describes.
// The primary slot is required before conversion; the rest are optional.
type VenueSlot string

const (
	SlotCeremony        VenueSlot = "ceremony"
	SlotReception       VenueSlot = "reception"
	SlotBrunch          VenueSlot = "brunch"
	SlotRehearsal       VenueSlot = "rehearsal"
	SlotRehearsalDinner VenueSlot = "rehearsal_dinner"
)

const venueSlotOneOf = "oneof=ceremony reception brunch rehearsal rehearsal_dinner"

// VenueTypeCruiseShip waives the country/state/zip requirement: a ship has a
// cabin/deck designation instead of a postal address.
const VenueTypeCruiseShip = "cruise_ship"

// Request DTOs

type EventRequest struct {
	EventType string  `json:"eventType" validate:"required,min=1,max=100"`
	EventDate *string `json:"eventDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaxGuests int     `json:"maxGuests" validate:"required,min=1,max=400"`
	Honoree1  *string `json:"honoree1,omitempty" validate:"omitempty,max=200"`
	Honoree2  *string `json:"honoree2,omitempty" validate:"omitempty,max=200"`
}

type VenueRequest struct {
	Slot          VenueSlot `json:"slot" validate:"required,oneof=ceremony reception brunch rehearsal rehearsal_dinner"`
	Name          string    `json:"name" validate:"required,min=1,max=200"`
	Address1      string    `json:"address1,omitempty" validate:"max=200"`
	City          string    `json:"city,omitempty" validate:"max=100"`
	State         string    `json:"state,omitempty" validate:"max=100"`
	Zip           string    `json:"zip,omitempty" validate:"max=20"`
	Country       string    `json:"country,omitempty" validate:"max=100"`
	VenueType     string    `json:"venueType" validate:"required,min=1,max=50"`
	IndoorOutdoor string    `json:"indoorOutdoor,omitempty" validate:"omitempty,oneof=indoor outdoor both"`
	AsInsured     bool      `json:"asInsured"`
}

type PolicyHolderRequest struct {
	FirstName    string `json:"firstName" validate:"required,min=1,max=100"`
	LastName     string `json:"lastName" validate:"required,min=1,max=100"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Address      string `json:"address" validate:"required,min=1,max=200"`
	City         string `json:"city" validate:"required,min=1,max=100"`
	State        string `json:"state" validate:"required,min=1,max=100"`
	Zip          string `json:"zip" validate:"required,min=1,max=20"`
	Country      string `json:"country" validate:"required,min=1,max=100"`
	Relationship string `json:"relationship,omitempty" validate:"max=100"`
	Consent      bool   `json:"consent"`
}

type CreateQuoteRequest struct {
	Email             string       `json:"email" validate:"required,email"`
	CoverageLevel     int          `json:"coverageLevel" validate:"required,min=1,max=10"`
	LiabilityOption   string       `json:"liabilityOption,omitempty" validate:"omitempty,oneof=none option1 option2 option3 option4 option5 option6"`
	LiquorLiability   bool         `json:"liquorLiability"`
	CovidDisclosure   bool         `json:"covidDisclosure"`
	SpecialActivities bool         `json:"specialActivities"`
	Event             EventRequest `json:"event" validate:"required"`
}

type UpdateQuoteRequest struct {
	Email             *string               `json:"email,omitempty" validate:"omitempty,email"`
	CoverageLevel     *int                  `json:"coverageLevel,omitempty" validate:"omitempty,min=1,max=10"`
	LiabilityOption   *string               `json:"liabilityOption,omitempty" validate:"omitempty,oneof=none option1 option2 option3 option4 option5 option6"`
	LiquorLiability   *bool                 `json:"liquorLiability,omitempty"`
	CovidDisclosure   *bool                 `json:"covidDisclosure,omitempty"`
	SpecialActivities *bool                 `json:"specialActivities,omitempty"`
	Status            *string               `json:"status,omitempty" validate:"omitempty,oneof=STEP1 STEP2 STEP3 COMPLETE"`
	Event             *EventRequest         `json:"event,omitempty"`
	Venues            []VenueRequest        `json:"venues,omitempty" validate:"omitempty,max=5,dive"`
	PolicyHolder      *PolicyHolderRequest  `json:"policyHolder,omitempty"`
}

type ListQuotesRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=STEP1 STEP2 STEP3 COMPLETE EXPIRED"`
	Source   string `form:"source" validate:"omitempty,oneof=CUSTOMER ADMIN"`
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"min=1"`
	PageSize int    `form:"pageSize" validate:"min=1,max=100"`
}

// Response DTOs

type PremiumResponse struct {
	BaseCents      int64 `json:"baseCents"`
	LiabilityCents int64 `json:"liabilityCents"`
	LiquorCents    int64 `json:"liquorCents"`
	TotalCents     int64 `json:"totalCents"`
}

type EventResponse struct {
	EventType string  `json:"eventType"`
	EventDate *string `json:"eventDate,omitempty"`
	MaxGuests int     `json:"maxGuests"`
	Honoree1  *string `json:"honoree1,omitempty"`
	Honoree2  *string `json:"honoree2,omitempty"`
}

type VenueResponse struct {
	Slot          VenueSlot `json:"slot"`
	Name          string    `json:"name"`
	Address1      string    `json:"address1,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	Zip           string    `json:"zip,omitempty"`
	Country       string    `json:"country,omitempty"`
	VenueType     string    `json:"venueType"`
	IndoorOutdoor string    `json:"indoorOutdoor,omitempty"`
	AsInsured     bool      `json:"asInsured"`
}

type PolicyHolderResponse struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	Relationship string `json:"relationship,omitempty"`
	Consent      bool   `json:"consent"`
}

type QuoteResponse struct {
	ID                uuid.UUID             `json:"id"`
	QuoteNumber       string                `json:"quoteNumber"`
	Email             string                `json:"email"`
	CoverageLevel     int                   `json:"coverageLevel"`
	LiabilityOption   string                `json:"liabilityOption"`
	LiquorLiability   bool                  `json:"liquorLiability"`
	CovidDisclosure   bool                  `json:"covidDisclosure"`
	SpecialActivities bool                  `json:"specialActivities"`
	Premium           PremiumResponse       `json:"premium"`
	Status            string                `json:"status"`
	Source            QuoteSource           `json:"source"`
	ConvertedToPolicy bool                  `json:"convertedToPolicy"`
	Duplicate         bool                  `json:"duplicate,omitempty"`
	Event             *EventResponse        `json:"event,omitempty"`
	Venues            []VenueResponse       `json:"venues,omitempty"`
	PolicyHolder      *PolicyHolderResponse `json:"policyHolder,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

type ListQuotesResponse struct {
	Items      []QuoteResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

type ExpireStaleResponse struct {
	Expired int `json:"expired"`
}

// Package transport defines the request and response DTOs for the payments API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus values recorded in the ledger.
type PaymentStatus string

const (
	StatusSuccess PaymentStatus = "SUCCESS"
	StatusFailed  PaymentStatus = "FAILED"
	StatusPending PaymentStatus = "PENDING"
)

// PaymentMethod values accepted by the manual entry path. Gateway charges
// always record method "card".
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOther        PaymentMethod = "other"
)

// Request DTOs

// RecordPaymentRequest is a manual ledger entry made by an operator.
type RecordPaymentRequest struct {
	QuoteNumber string        `json:"quoteNumber,omitempty" validate:"omitempty,min=1,max=50"`
	AmountCents int64         `json:"amountCents" validate:"required,min=1"`
	Method      PaymentMethod `json:"method" validate:"required,oneof=card check cash bank_transfer other"`
	Status      PaymentStatus `json:"status" validate:"required,oneof=SUCCESS FAILED PENDING"`
	Reference   string        `json:"reference,omitempty" validate:"max=100"`
	Notes       string        `json:"notes,omitempty" validate:"max=500"`
}

// ChargeRequest triggers a synchronous gateway charge for a quote's premium.
type ChargeRequest struct {
	QuoteNumber     string `json:"quoteNumber" validate:"required,min=1,max=50"`
	CardToken       string `json:"cardToken" validate:"required"`
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
	Installments    int    `json:"installments" validate:"min=1,max=12"`
	PayerEmail      string `json:"payerEmail,omitempty" validate:"omitempty,email"`
}

type ListPaymentsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=SUCCESS FAILED PENDING"`
	Page     int    `form:"page" validate:"min=1"`
	PageSize int    `form:"pageSize" validate:"min=1,max=100"`
}

// Response DTOs

type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	QuoteID       *uuid.UUID `json:"quoteId,omitempty"`
	PolicyID      *uuid.UUID `json:"policyId,omitempty"`
	PolicyNumber  string     `json:"policyNumber,omitempty"`
	AmountCents   int64      `json:"amountCents"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	Reference     string     `json:"reference,omitempty"`
	GatewayID     string     `json:"gatewayId,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type ListPaymentsResponse struct {
	Items      []PaymentResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

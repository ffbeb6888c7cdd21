// Package handler exposes the payments HTTP API.
package handler

import (
	"net/http"

	"eventcover_backend/internal/payments/repository"
	"eventcover_backend/internal/payments/service"
	"eventcover_backend/internal/payments/transport"
	"eventcover_backend/platform/httpkit"
	"eventcover_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the admin payment endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new payments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the payment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.RecordManual)
	rg.POST("/charge", h.Charge)
	rg.GET("/:id", h.Get)
}

// RecordManual handles POST /admin/payments.
func (h *Handler) RecordManual(c *gin.Context) {
	var req transport.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	entry, err := h.svc.RecordManual(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toResponse(entry))
}

// Charge handles POST /admin/payments/charge.
func (h *Handler) Charge(c *gin.Context) {
	var req transport.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	entry, err := h.svc.Charge(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toResponse(entry))
}

// Get handles GET /admin/payments/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	payment, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPaymentResponse(payment, ""))
}

// List handles GET /admin/payments.
func (h *Handler) List(c *gin.Context) {
	req := transport.ListPaymentsRequest{Page: 1, PageSize: 20}
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ListPaymentsResponse{
		Items:      make([]transport.PaymentResponse, 0, len(result.Items)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toPaymentResponse(&result.Items[i], ""))
	}
	httpkit.OK(c, resp)
}

func toResponse(entry *service.LedgerEntry) transport.PaymentResponse {
	return toPaymentResponse(entry.Payment, entry.PolicyNumber)
}

func toPaymentResponse(p *repository.Payment, policyNumber string) transport.PaymentResponse {
	resp := transport.PaymentResponse{
		ID:           p.ID,
		QuoteID:      p.QuoteID,
		PolicyID:     p.PolicyID,
		PolicyNumber: policyNumber,
		AmountCents:  p.AmountCents,
		Method:       p.Method,
		Status:       p.Status,
		Reference:    p.Reference,
		Notes:        p.Notes,
		CreatedAt:    p.CreatedAt,
	}
	if p.GatewayID != nil {
		resp.GatewayID = *p.GatewayID
	}
	return resp
}

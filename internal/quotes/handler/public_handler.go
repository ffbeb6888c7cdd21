package handler

import (
	"net/http"

	"eventcover_backend/internal/quotes/service"
	"eventcover_backend/internal/quotes/transport"
	"eventcover_backend/platform/httpkit"
	"eventcover_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the unauthenticated quote funnel used by the
// customer-facing form.
type PublicHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewPublic creates a handler for the public quote routes.
func NewPublic(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes mounts the public quote routes.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:quoteNumber", h.Get)
	rg.PUT("/:quoteNumber", h.Update)
}

// Create handles POST /public/quotes.
func (h *PublicHandler) Create(c *gin.Context) {
	var req transport.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req, transport.SourceCustomer, c.GetHeader("Idempotency-Key"))
	if httpkit.HandleError(c, err) {
		return
	}

	resp := toQuoteResponse(result.Graph, result.Duplicate)
	if result.Duplicate {
		httpkit.OK(c, resp)
		return
	}
	httpkit.Created(c, resp)
}

// Get handles GET /public/quotes/:quoteNumber. The quote number is an
// unguessable shared secret; possession grants read access.
func (h *PublicHandler) Get(c *gin.Context) {
	graph, err := h.svc.GetByNumber(c.Request.Context(), c.Param("quoteNumber"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(graph, false))
}

// Update handles PUT /public/quotes/:quoteNumber as the customer advances
// through the funnel steps.
func (h *PublicHandler) Update(c *gin.Context) {
	var req transport.UpdateQuoteRequest
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

	graph, err := h.svc.Update(c.Request.Context(), c.Param("quoteNumber"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(graph, false))
}

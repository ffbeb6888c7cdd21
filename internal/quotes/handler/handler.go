// Package handler exposes the quotes HTTP API.
package handler

import (
	"net/http"

	"eventcover_backend/internal/quotes/service"
	"eventcover_backend/internal/quotes/transport"
	"eventcover_backend/platform/httpkit"
	"eventcover_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the admin quote endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new quotes handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the admin quote routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:quoteNumber", h.Get)
	rg.PUT("/:quoteNumber", h.Update)
	rg.POST("/expire-stale", h.ExpireStale)
}

// Create handles POST /admin/quotes. Admin-created quotes are marked with
// source ADMIN, which later gates conversion behind the force flag.
func (h *Handler) Create(c *gin.Context) {
	h.create(c, transport.SourceAdmin)
}

func (h *Handler) create(c *gin.Context, source transport.QuoteSource) {
	var req transport.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req, source, c.GetHeader("Idempotency-Key"))
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

// Get handles GET /admin/quotes/:quoteNumber.
func (h *Handler) Get(c *gin.Context) {
	graph, err := h.svc.GetByNumber(c.Request.Context(), c.Param("quoteNumber"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(graph, false))
}

// Update handles PUT /admin/quotes/:quoteNumber.
func (h *Handler) Update(c *gin.Context) {
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

// List handles GET /admin/quotes.
func (h *Handler) List(c *gin.Context) {
	req := transport.ListQuotesRequest{Page: 1, PageSize: 20}
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

	resp := transport.ListQuotesResponse{
		Items:      make([]transport.QuoteResponse, 0, len(result.Items)),
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
	for _, q := range result.Items {
		resp.Items = append(resp.Items, toHeaderResponse(q))
	}
	httpkit.OK(c, resp)
}

// ExpireStale handles POST /admin/quotes/expire-stale, running the dormancy
// sweep on demand.
func (h *Handler) ExpireStale(c *gin.Context) {
	count, err := h.svc.ExpireStale(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ExpireStaleResponse{Expired: count})
}

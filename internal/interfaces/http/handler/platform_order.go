package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/posbridge/backend/internal/application/integration"
	"github.com/posbridge/backend/internal/domain/integration"
)

// PlatformOrderHandler exposes the operator-facing order actions
type PlatformOrderHandler struct {
	BaseHandler
	orderService *integrationapp.OrderIntegrationService
}

// NewPlatformOrderHandler creates a new PlatformOrderHandler
func NewPlatformOrderHandler(orderService *integrationapp.OrderIntegrationService) *PlatformOrderHandler {
	return &PlatformOrderHandler{
		orderService: orderService,
	}
}

// AcceptOrderRequest carries the optional kitchen estimate
type AcceptOrderRequest struct {
	EstimatedPrepTime int `json:"estimated_prep_time" binding:"omitempty,min=1,max=120"`
}

// Accept handles POST /platform-orders/:id/accept
func (h *PlatformOrderHandler) Accept(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	req := AcceptOrderRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.orderService.AcceptOrder(c.Request.Context(), tenantID, recordID, req.EstimatedPrepTime)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, result)
}

// RejectOrderRequest carries the mandatory rejection reason
type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// Reject handles POST /platform-orders/:id/reject
func (h *PlatformOrderHandler) Reject(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Rejection reason is required")
		return
	}

	result, err := h.orderService.RejectOrder(c.Request.Context(), tenantID, recordID, req.Reason)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, result)
}

// UpdateOrderStatusRequest pushes a kitchen status to the platform
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles POST /platform-orders/:id/status
func (h *PlatformOrderHandler) UpdateStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	status := integration.PlatformOrderStatus(strings.ToUpper(req.Status))
	if !status.IsValid() {
		h.BadRequest(c, "Unknown order status")
		return
	}

	result, err := h.orderService.PushStatusUpdate(c.Request.Context(), tenantID, recordID, status)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, result)
}

// GetByID handles GET /platform-orders/:id
func (h *PlatformOrderHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	record, err := h.orderService.GetOrder(c.Request.Context(), tenantID, recordID)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, record)
}

// List handles GET /platform-orders with platform, status, since and
// pagination query filters
func (h *PlatformOrderHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter integrationapp.OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter.Platform = strings.ToUpper(filter.Platform)
	filter.Status = strings.ToUpper(filter.Status)

	domainFilter := filter.ToDomainFilter()
	records, total, err := h.orderService.ListOrders(c.Request.Context(), tenantID, domainFilter)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	page := domainFilter.Page
	pageSize := domainFilter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, records, total, page, pageSize)
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/posbridge/backend/internal/application/integration"
)

// MenuSyncHandler pushes menu, availability and price changes to the
// delivery platforms
type MenuSyncHandler struct {
	BaseHandler
	syncService *integrationapp.MenuSyncService
}

// NewMenuSyncHandler creates a new MenuSyncHandler
func NewMenuSyncHandler(syncService *integrationapp.MenuSyncService) *MenuSyncHandler {
	return &MenuSyncHandler{
		syncService: syncService,
	}
}

// TriggerMenuSyncRequest selects the sync scope
type TriggerMenuSyncRequest struct {
	FullSync   bool     `json:"full_sync"`
	ProductIDs []string `json:"product_ids" binding:"omitempty,dive,uuid"`
}

// SyncMenu handles POST /integrations/:platform/sync/menu
func (h *MenuSyncHandler) SyncMenu(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req TriggerMenuSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if !req.FullSync && len(req.ProductIDs) == 0 {
		h.BadRequest(c, "Either full_sync or product_ids must be given")
		return
	}

	appReq := integrationapp.TriggerMenuSyncRequest{FullSync: req.FullSync}
	for _, id := range req.ProductIDs {
		productID, err := uuid.Parse(id)
		if err != nil {
			h.BadRequest(c, "Invalid product ID format")
			return
		}
		appReq.ProductIDs = append(appReq.ProductIDs, productID)
	}

	result, err := h.syncService.TriggerMenuSync(c.Request.Context(), tenantID, platform, appReq)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, result)
}

// SyncAvailabilityRequest flips one product's availability
type SyncAvailabilityRequest struct {
	ProductID   string `json:"product_id" binding:"required,uuid"`
	IsAvailable *bool  `json:"is_available" binding:"required"`
}

// SyncAvailability handles POST /integrations/:platform/sync/availability
func (h *MenuSyncHandler) SyncAvailability(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SyncAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	if err := h.syncService.SyncAvailability(c.Request.Context(), tenantID, platform, productID, *req.IsAvailable); err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, gin.H{"product_id": req.ProductID, "is_available": *req.IsAvailable})
}

// SyncPriceRequest pushes one product's current price
type SyncPriceRequest struct {
	ProductID string  `json:"product_id" binding:"required,uuid"`
	Price     float64 `json:"price" binding:"required,gt=0"`
}

// SyncPrice handles POST /integrations/:platform/sync/prices
func (h *MenuSyncHandler) SyncPrice(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SyncPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	if err := h.syncService.SyncPrice(c.Request.Context(), tenantID, platform, productID, toDecimal(req.Price)); err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, gin.H{"product_id": req.ProductID})
}

// GetSyncStatus handles GET /integrations/:platform/sync/status
func (h *MenuSyncHandler) GetSyncStatus(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	report, err := h.syncService.GetSyncStatus(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, report)
}

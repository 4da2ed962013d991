package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/posbridge/backend/internal/application/integration"
	"github.com/posbridge/backend/internal/domain/integration"
)

// ProductMappingHandler manages local-product-to-platform-product mappings
type ProductMappingHandler struct {
	BaseHandler
	mappingService *integrationapp.ProductMappingService
}

// NewProductMappingHandler creates a new ProductMappingHandler
func NewProductMappingHandler(mappingService *integrationapp.ProductMappingService) *ProductMappingHandler {
	return &ProductMappingHandler{
		mappingService: mappingService,
	}
}

// CreateMappingRequest maps one local product to one platform product
type CreateMappingRequest struct {
	LocalProductID      string   `json:"local_product_id" binding:"required,uuid"`
	Platform            string   `json:"platform" binding:"required"`
	PlatformProductID   string   `json:"platform_product_id" binding:"required,min=1,max=200"`
	PlatformProductName string   `json:"platform_product_name" binding:"max=200"`
	PriceMultiplier     *float64 `json:"price_multiplier" binding:"omitempty,gt=0"`
}

func (r CreateMappingRequest) toApp() (integrationapp.CreateProductMappingRequest, bool) {
	localProductID, err := uuid.Parse(r.LocalProductID)
	if err != nil {
		return integrationapp.CreateProductMappingRequest{}, false
	}
	platform := integration.PlatformCode(strings.ToUpper(r.Platform))
	if !platform.IsValid() {
		return integrationapp.CreateProductMappingRequest{}, false
	}
	req := integrationapp.CreateProductMappingRequest{
		LocalProductID:      localProductID,
		Platform:            platform,
		PlatformProductID:   r.PlatformProductID,
		PlatformProductName: r.PlatformProductName,
	}
	if r.PriceMultiplier != nil {
		req.PriceMultiplier = toDecimalPtr(*r.PriceMultiplier)
	}
	return req, true
}

// Create handles POST /product-mappings
func (h *ProductMappingHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	appReq, ok := req.toApp()
	if !ok {
		h.BadRequest(c, "Invalid product ID or platform")
		return
	}

	mapping, err := h.mappingService.CreateMapping(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Created(c, integrationapp.ToProductMappingResponse(mapping))
}

// CreateBatch handles POST /product-mappings/batch. Items fail
// independently; the per-item results report which ones stuck.
func (h *ProductMappingHandler) CreateBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var reqs []CreateMappingRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if len(reqs) == 0 {
		h.BadRequest(c, "At least one mapping is required")
		return
	}

	appReqs := make([]integrationapp.CreateProductMappingRequest, 0, len(reqs))
	for _, r := range reqs {
		appReq, ok := r.toApp()
		if !ok {
			h.BadRequest(c, "Invalid product ID or platform")
			return
		}
		appReqs = append(appReqs, appReq)
	}

	results, err := h.mappingService.CreateBatchMappings(c.Request.Context(), tenantID, appReqs)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, results)
}

// UpdateMappingRequest is a partial update, all fields optional
type UpdateMappingRequest struct {
	PlatformProductID   *string  `json:"platform_product_id" binding:"omitempty,min=1,max=200"`
	PlatformProductName *string  `json:"platform_product_name" binding:"omitempty,max=200"`
	PriceMultiplier     *float64 `json:"price_multiplier" binding:"omitempty,gt=0"`
	IsActive            *bool    `json:"is_active"`
	SyncEnabled         *bool    `json:"sync_enabled"`
}

// Update handles PUT /product-mappings/:id
func (h *ProductMappingHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	var req UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := integrationapp.UpdateProductMappingRequest{
		PlatformProductID:   req.PlatformProductID,
		PlatformProductName: req.PlatformProductName,
		IsActive:            req.IsActive,
		SyncEnabled:         req.SyncEnabled,
	}
	if req.PriceMultiplier != nil {
		appReq.PriceMultiplier = toDecimalPtr(*req.PriceMultiplier)
	}

	mapping, err := h.mappingService.UpdateMapping(c.Request.Context(), tenantID, mappingID, appReq)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, integrationapp.ToProductMappingResponse(mapping))
}

// Delete handles DELETE /product-mappings/:id
func (h *ProductMappingHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	if err := h.mappingService.DeleteMapping(c.Request.Context(), tenantID, mappingID); err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.NoContent(c)
}

// GetByID handles GET /product-mappings/:id
func (h *ProductMappingHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	mapping, err := h.mappingService.GetMapping(c.Request.Context(), tenantID, mappingID)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, integrationapp.ToProductMappingResponse(mapping))
}

// ListMappingsQuery holds the list filters
type ListMappingsQuery struct {
	Platform    string `form:"platform"`
	IsActive    *bool  `form:"is_active"`
	SyncEnabled *bool  `form:"sync_enabled"`
	Search      string `form:"search"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}

// List handles GET /product-mappings
func (h *ProductMappingHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var q ListMappingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := integration.ProductMappingFilter{
		IsActive:      q.IsActive,
		SyncEnabled:   q.SyncEnabled,
		SearchKeyword: q.Search,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	if q.Platform != "" {
		platform := integration.PlatformCode(strings.ToUpper(q.Platform))
		if !platform.IsValid() {
			h.BadRequest(c, "Unknown platform")
			return
		}
		filter.Platform = &platform
	}

	mappings, total, err := h.mappingService.ListMappings(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	page := filter.Page
	pageSize := filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, integrationapp.ToProductMappingResponses(mappings), total, page, pageSize)
}

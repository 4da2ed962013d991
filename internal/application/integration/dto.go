package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Product Mapping DTOs
// ---------------------------------------------------------------------------

// CreateProductMappingRequest represents a request to create a product mapping
type CreateProductMappingRequest struct {
	LocalProductID      uuid.UUID                `json:"local_product_id" validate:"required"`
	Platform            integration.PlatformCode `json:"platform" validate:"required"`
	PlatformProductID   string                   `json:"platform_product_id" validate:"required"`
	PlatformProductName string                   `json:"platform_product_name,omitempty"`
	PriceMultiplier     *decimal.Decimal         `json:"price_multiplier,omitempty"`
}

// UpdateProductMappingRequest represents a partial update to a product mapping
type UpdateProductMappingRequest struct {
	PlatformProductID   *string          `json:"platform_product_id,omitempty"`
	PlatformProductName *string          `json:"platform_product_name,omitempty"`
	PriceMultiplier     *decimal.Decimal `json:"price_multiplier,omitempty"`
	IsActive            *bool            `json:"is_active,omitempty"`
	SyncEnabled         *bool            `json:"sync_enabled,omitempty"`
}

// CreateMappingResult represents the per-item result of a batch create
type CreateMappingResult struct {
	LocalProductID    uuid.UUID                `json:"local_product_id"`
	Platform          integration.PlatformCode `json:"platform"`
	PlatformProductID string                   `json:"platform_product_id"`
	MappingID         uuid.UUID                `json:"mapping_id,omitempty"`
	Success           bool                     `json:"success"`
	Error             string                   `json:"error,omitempty"`
}

// ProductMappingResponse represents a product mapping in API responses
type ProductMappingResponse struct {
	ID                  uuid.UUID                `json:"id"`
	TenantID            uuid.UUID                `json:"tenant_id"`
	LocalProductID      uuid.UUID                `json:"local_product_id"`
	Platform            integration.PlatformCode `json:"platform"`
	PlatformDisplayName string                   `json:"platform_display_name"`
	PlatformProductID   string                   `json:"platform_product_id"`
	PlatformProductName string                   `json:"platform_product_name,omitempty"`
	PriceMultiplier     decimal.Decimal          `json:"price_multiplier"`
	IsActive            bool                     `json:"is_active"`
	SyncEnabled         bool                     `json:"sync_enabled"`
	LastSyncAt          *time.Time               `json:"last_sync_at,omitempty"`
	LastSyncStatus      integration.SyncStatus   `json:"last_sync_status"`
	LastSyncError       string                   `json:"last_sync_error,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// ToProductMappingResponse converts a domain ProductMapping to a response DTO
func ToProductMappingResponse(m *integration.ProductMapping) ProductMappingResponse {
	return ProductMappingResponse{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		LocalProductID:      m.LocalProductID,
		Platform:            m.Platform,
		PlatformDisplayName: m.Platform.DisplayName(),
		PlatformProductID:   m.PlatformProductID,
		PlatformProductName: m.PlatformProductName,
		PriceMultiplier:     m.PriceMultiplier,
		IsActive:            m.IsActive,
		SyncEnabled:         m.SyncEnabled,
		LastSyncAt:          m.LastSyncAt,
		LastSyncStatus:      m.LastSyncStatus,
		LastSyncError:       m.LastSyncError,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// ToProductMappingResponses converts a slice of mappings to response DTOs
func ToProductMappingResponses(mappings []integration.ProductMapping) []ProductMappingResponse {
	responses := make([]ProductMappingResponse, len(mappings))
	for i := range mappings {
		responses[i] = ToProductMappingResponse(&mappings[i])
	}
	return responses
}

// ---------------------------------------------------------------------------
// Order DTOs
// ---------------------------------------------------------------------------

// OrderListFilter represents filter options for listing platform orders
type OrderListFilter struct {
	Platform string     `form:"platform"`
	Status   string     `form:"status"`
	Since    *time.Time `form:"since"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// ToDomainFilter converts the HTTP-facing filter to the domain filter
func (f OrderListFilter) ToDomainFilter() integration.PlatformOrderFilter {
	filter := integration.PlatformOrderFilter{
		Since:    f.Since,
		Page:     f.Page,
		PageSize: f.PageSize,
	}

	if f.Platform != "" {
		pc := integration.PlatformCode(f.Platform)
		if pc.IsValid() {
			filter.Platform = &pc
		}
	}
	if f.Status != "" {
		st := integration.PlatformOrderStatus(f.Status)
		if st.IsValid() {
			filter.Status = &st
		}
	}

	return filter
}

package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product mapping errors
var (
	ErrMappingNotFound            = errors.New("integration: mapping not found")
	ErrMappingAlreadyExists       = errors.New("integration: mapping already exists for this product and platform")
	ErrMappingInvalidTenantID     = errors.New("integration: invalid tenant ID")
	ErrMappingInvalidProductID    = errors.New("integration: invalid product ID")
	ErrMappingInvalidPlatformCode = errors.New("integration: invalid platform code")
	ErrMappingInvalidPlatformID   = errors.New("integration: invalid platform product ID")
	ErrMappingInvalidMultiplier   = errors.New("integration: price multiplier must be positive")
)

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links a local menu product to its counterpart on one
// delivery platform. Platforms usually list the same dish at a markup, so
// each mapping carries a price multiplier applied on outbound price sync.
type ProductMapping struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// LocalProductID is our internal product ID
	LocalProductID uuid.UUID
	// Platform this mapping is for
	Platform PlatformCode
	// PlatformProductID is the product's ID on the platform
	PlatformProductID string
	// PlatformProductName is the name on the platform, for reference
	PlatformProductName string
	// PriceMultiplier scales the local price for this platform
	PriceMultiplier decimal.Decimal
	// IsActive indicates if this mapping is currently used
	IsActive bool
	// SyncEnabled indicates if auto-sync includes this mapping
	SyncEnabled bool
	// Last sync bookkeeping
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus
	LastSyncError  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProductMapping creates a product mapping with multiplier 1
func NewProductMapping(tenantID, localProductID uuid.UUID, platform PlatformCode, platformProductID string) (*ProductMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMappingInvalidTenantID
	}
	if localProductID == uuid.Nil {
		return nil, ErrMappingInvalidProductID
	}
	if !platform.IsValid() {
		return nil, ErrMappingInvalidPlatformCode
	}
	if platformProductID == "" {
		return nil, ErrMappingInvalidPlatformID
	}

	now := time.Now()
	return &ProductMapping{
		ID:                uuid.New(),
		TenantID:          tenantID,
		LocalProductID:    localProductID,
		Platform:          platform,
		PlatformProductID: platformProductID,
		PriceMultiplier:   decimal.NewFromInt(1),
		IsActive:          true,
		SyncEnabled:       true,
		LastSyncStatus:    SyncStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Validate validates the product mapping
func (m *ProductMapping) Validate() error {
	if m.TenantID == uuid.Nil {
		return ErrMappingInvalidTenantID
	}
	if m.LocalProductID == uuid.Nil {
		return ErrMappingInvalidProductID
	}
	if !m.Platform.IsValid() {
		return ErrMappingInvalidPlatformCode
	}
	if m.PlatformProductID == "" {
		return ErrMappingInvalidPlatformID
	}
	if !m.PriceMultiplier.IsPositive() {
		return ErrMappingInvalidMultiplier
	}
	return nil
}

// PlatformPrice applies the multiplier to a local price, rounded to kuruş
func (m *ProductMapping) PlatformPrice(localPrice decimal.Decimal) decimal.Decimal {
	return localPrice.Mul(m.PriceMultiplier).Round(2)
}

// SetPriceMultiplier updates the multiplier
func (m *ProductMapping) SetPriceMultiplier(mult decimal.Decimal) error {
	if !mult.IsPositive() {
		return ErrMappingInvalidMultiplier
	}
	m.PriceMultiplier = mult
	m.UpdatedAt = time.Now()
	return nil
}

// Activate activates this mapping
func (m *ProductMapping) Activate() {
	m.IsActive = true
	m.UpdatedAt = time.Now()
}

// Deactivate deactivates this mapping
func (m *ProductMapping) Deactivate() {
	m.IsActive = false
	m.UpdatedAt = time.Now()
}

// EnableSync enables automatic synchronization
func (m *ProductMapping) EnableSync() {
	m.SyncEnabled = true
	m.UpdatedAt = time.Now()
}

// DisableSync disables automatic synchronization
func (m *ProductMapping) DisableSync() {
	m.SyncEnabled = false
	m.UpdatedAt = time.Now()
}

// RecordSyncSuccess records a successful sync
func (m *ProductMapping) RecordSyncSuccess() {
	now := time.Now()
	m.LastSyncAt = &now
	m.LastSyncStatus = SyncStatusSuccess
	m.LastSyncError = ""
	m.UpdatedAt = now
}

// RecordSyncFailure records a failed sync
func (m *ProductMapping) RecordSyncFailure(errMsg string) {
	now := time.Now()
	m.LastSyncAt = &now
	m.LastSyncStatus = SyncStatusFailed
	m.LastSyncError = errMsg
	m.UpdatedAt = now
}

// ---------------------------------------------------------------------------
// ProductMappingRepository
// ---------------------------------------------------------------------------

// ProductMappingFilter defines filter criteria for product mappings
type ProductMappingFilter struct {
	Platform       *PlatformCode
	IsActive       *bool
	SyncEnabled    *bool
	LastSyncStatus *SyncStatus
	SearchKeyword  string
	Page           int
	PageSize       int
}

// ProductMappingRepository persists product mappings
type ProductMappingRepository interface {
	// FindByID finds a mapping by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ProductMapping, error)

	// FindByLocalProduct finds a product's mappings across platforms
	FindByLocalProduct(ctx context.Context, tenantID, localProductID uuid.UUID) ([]ProductMapping, error)

	// FindByLocalProductAndPlatform finds a specific mapping
	FindByLocalProductAndPlatform(ctx context.Context, tenantID, localProductID uuid.UUID, platform PlatformCode) (*ProductMapping, error)

	// FindByPlatformProduct resolves an inbound platform product ID
	FindByPlatformProduct(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, platformProductID string) (*ProductMapping, error)

	// FindAll lists mappings matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ProductMappingFilter) ([]ProductMapping, error)

	// FindSyncEnabled returns the active, sync-enabled mappings for a platform
	FindSyncEnabled(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) ([]ProductMapping, error)

	// Count counts mappings matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter ProductMappingFilter) (int64, error)

	// ExistsByLocalProductAndPlatform checks if a mapping exists
	ExistsByLocalProductAndPlatform(ctx context.Context, tenantID, localProductID uuid.UUID, platform PlatformCode) (bool, error)

	// ExistsByPlatformProduct checks if a platform product is already mapped
	ExistsByPlatformProduct(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, platformProductID string) (bool, error)

	// Save creates or updates a mapping
	Save(ctx context.Context, mapping *ProductMapping) error

	// Delete deletes a mapping
	Delete(ctx context.Context, id uuid.UUID) error
}

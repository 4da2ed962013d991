package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/domain/shared"
)

// ProductMappingService manages the links between local menu products and
// their listings on delivery platforms.
type ProductMappingService struct {
	mappingRepo integration.ProductMappingRepository
}

// NewProductMappingService creates a new ProductMappingService
func NewProductMappingService(mappingRepo integration.ProductMappingRepository) *ProductMappingService {
	return &ProductMappingService{
		mappingRepo: mappingRepo,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// CreateMapping creates a new product mapping
func (s *ProductMappingService) CreateMapping(
	ctx context.Context,
	tenantID uuid.UUID,
	req CreateProductMappingRequest,
) (*integration.ProductMapping, error) {
	// Check if the local product is already mapped on this platform
	exists, err := s.mappingRepo.ExistsByLocalProductAndPlatform(ctx, tenantID, req.LocalProductID, req.Platform)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, integration.ErrMappingAlreadyExists
	}

	// Check if the platform product is already mapped to another local product
	exists, err = s.mappingRepo.ExistsByPlatformProduct(ctx, tenantID, req.Platform, req.PlatformProductID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_MAPPED", "Platform product is already mapped to another local product")
	}

	mapping, err := integration.NewProductMapping(tenantID, req.LocalProductID, req.Platform, req.PlatformProductID)
	if err != nil {
		return nil, err
	}
	mapping.PlatformProductName = req.PlatformProductName
	if req.PriceMultiplier != nil {
		if err := mapping.SetPriceMultiplier(*req.PriceMultiplier); err != nil {
			return nil, err
		}
	}

	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, err
	}

	return mapping, nil
}

// UpdateMapping applies a partial update to an existing mapping
func (s *ProductMappingService) UpdateMapping(
	ctx context.Context,
	tenantID uuid.UUID,
	id uuid.UUID,
	req UpdateProductMappingRequest,
) (*integration.ProductMapping, error) {
	mapping, err := s.getOwned(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.PlatformProductID != nil && *req.PlatformProductID != mapping.PlatformProductID {
		exists, err := s.mappingRepo.ExistsByPlatformProduct(ctx, tenantID, mapping.Platform, *req.PlatformProductID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError("ALREADY_MAPPED", "Platform product is already mapped to another local product")
		}
		mapping.PlatformProductID = *req.PlatformProductID
	}
	if req.PlatformProductName != nil {
		mapping.PlatformProductName = *req.PlatformProductName
	}
	if req.PriceMultiplier != nil {
		if err := mapping.SetPriceMultiplier(*req.PriceMultiplier); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		if *req.IsActive {
			mapping.Activate()
		} else {
			mapping.Deactivate()
		}
	}
	if req.SyncEnabled != nil {
		if *req.SyncEnabled {
			mapping.EnableSync()
		} else {
			mapping.DisableSync()
		}
	}

	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// DeleteMapping deletes a mapping
func (s *ProductMappingService) DeleteMapping(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, tenantID, id); err != nil {
		return err
	}
	return s.mappingRepo.Delete(ctx, id)
}

// GetMapping retrieves a mapping by ID
func (s *ProductMappingService) GetMapping(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*integration.ProductMapping, error) {
	return s.getOwned(ctx, tenantID, id)
}

// ListMappings lists mappings with filtering and pagination
func (s *ProductMappingService) ListMappings(
	ctx context.Context,
	tenantID uuid.UUID,
	filter integration.ProductMappingFilter,
) ([]integration.ProductMapping, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	mappings, err := s.mappingRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.mappingRepo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}

	return mappings, count, nil
}

// ---------------------------------------------------------------------------
// Lookup Operations
// ---------------------------------------------------------------------------

// GetLocalProductID resolves an inbound platform product ID to the local one
func (s *ProductMappingService) GetLocalProductID(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	platformProductID string,
) (uuid.UUID, error) {
	mapping, err := s.mappingRepo.FindByPlatformProduct(ctx, tenantID, platform, platformProductID)
	if err != nil {
		return uuid.Nil, err
	}
	return mapping.LocalProductID, nil
}

// GetPlatformProductID resolves a local product ID to its platform listing
func (s *ProductMappingService) GetPlatformProductID(
	ctx context.Context,
	tenantID uuid.UUID,
	localProductID uuid.UUID,
	platform integration.PlatformCode,
) (string, error) {
	mapping, err := s.mappingRepo.FindByLocalProductAndPlatform(ctx, tenantID, localProductID, platform)
	if err != nil {
		return "", err
	}
	return mapping.PlatformProductID, nil
}

// GetMappingsForProduct returns a product's mappings across all platforms
func (s *ProductMappingService) GetMappingsForProduct(
	ctx context.Context,
	tenantID uuid.UUID,
	localProductID uuid.UUID,
) ([]integration.ProductMapping, error) {
	return s.mappingRepo.FindByLocalProduct(ctx, tenantID, localProductID)
}

// ---------------------------------------------------------------------------
// Sync Operations
// ---------------------------------------------------------------------------

// SetPriceMultiplier updates the platform markup for a mapping
func (s *ProductMappingService) SetPriceMultiplier(
	ctx context.Context,
	tenantID uuid.UUID,
	mappingID uuid.UUID,
	multiplier decimal.Decimal,
) error {
	mapping, err := s.getOwned(ctx, tenantID, mappingID)
	if err != nil {
		return err
	}
	if err := mapping.SetPriceMultiplier(multiplier); err != nil {
		return err
	}
	return s.mappingRepo.Save(ctx, mapping)
}

// EnableSync includes a mapping in automatic synchronization
func (s *ProductMappingService) EnableSync(ctx context.Context, tenantID uuid.UUID, mappingID uuid.UUID) error {
	mapping, err := s.getOwned(ctx, tenantID, mappingID)
	if err != nil {
		return err
	}
	mapping.EnableSync()
	return s.mappingRepo.Save(ctx, mapping)
}

// DisableSync excludes a mapping from automatic synchronization
func (s *ProductMappingService) DisableSync(ctx context.Context, tenantID uuid.UUID, mappingID uuid.UUID) error {
	mapping, err := s.getOwned(ctx, tenantID, mappingID)
	if err != nil {
		return err
	}
	mapping.DisableSync()
	return s.mappingRepo.Save(ctx, mapping)
}

// GetMappingsForSync returns the active, sync-enabled mappings for a platform
func (s *ProductMappingService) GetMappingsForSync(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
) ([]integration.ProductMapping, error) {
	return s.mappingRepo.FindSyncEnabled(ctx, tenantID, platform)
}

// ---------------------------------------------------------------------------
// Batch Operations
// ---------------------------------------------------------------------------

// CreateBatchMappings creates multiple product mappings, reporting per-item results
func (s *ProductMappingService) CreateBatchMappings(
	ctx context.Context,
	tenantID uuid.UUID,
	requests []CreateProductMappingRequest,
) ([]CreateMappingResult, error) {
	results := make([]CreateMappingResult, len(requests))

	for i, req := range requests {
		result := CreateMappingResult{
			LocalProductID:    req.LocalProductID,
			Platform:          req.Platform,
			PlatformProductID: req.PlatformProductID,
		}

		mapping, err := s.CreateMapping(ctx, tenantID, req)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Success = true
			result.MappingID = mapping.ID
		}

		results[i] = result
	}

	return results, nil
}

// ActivateMappings activates multiple mappings
func (s *ProductMappingService) ActivateMappings(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		mapping, err := s.getOwned(ctx, tenantID, id)
		if err != nil {
			return err
		}
		mapping.Activate()
		if err := s.mappingRepo.Save(ctx, mapping); err != nil {
			return err
		}
	}
	return nil
}

// DeactivateMappings deactivates multiple mappings
func (s *ProductMappingService) DeactivateMappings(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		mapping, err := s.getOwned(ctx, tenantID, id)
		if err != nil {
			return err
		}
		mapping.Deactivate()
		if err := s.mappingRepo.Save(ctx, mapping); err != nil {
			return err
		}
	}
	return nil
}

// getOwned loads a mapping and verifies tenant ownership
func (s *ProductMappingService) getOwned(ctx context.Context, tenantID, id uuid.UUID) (*integration.ProductMapping, error) {
	mapping, err := s.mappingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mapping.TenantID != tenantID {
		return nil, integration.ErrMappingNotFound
	}
	return mapping, nil
}

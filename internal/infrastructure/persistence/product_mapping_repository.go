package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormProductMappingRepository implements ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// FindByID finds a mapping by its ID
func (r *GormProductMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLocalProduct finds a product's mappings across platforms
func (r *GormProductMappingRepository) FindByLocalProduct(ctx context.Context, tenantID, localProductID uuid.UUID) ([]integration.ProductMapping, error) {
	var mappingModels []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND local_product_id = ?", tenantID, localProductID).
		Order("platform ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// FindByLocalProductAndPlatform finds a specific mapping
func (r *GormProductMappingRepository) FindByLocalProductAndPlatform(ctx context.Context, tenantID, localProductID uuid.UUID, platform integration.PlatformCode) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND local_product_id = ? AND platform = ?", tenantID, localProductID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPlatformProduct resolves an inbound platform product ID
func (r *GormProductMappingRepository) FindByPlatformProduct(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, platformProductID string) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND platform_product_id = ?", tenantID, platform, platformProductID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists mappings matching the filter
func (r *GormProductMappingRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, error) {
	query := r.filtered(ctx, tenantID, filter).Order("updated_at DESC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 1 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var mappingModels []models.ProductMappingModel
	if err := query.Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// FindSyncEnabled returns the active, sync-enabled mappings for a platform
func (r *GormProductMappingRepository) FindSyncEnabled(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.ProductMapping, error) {
	var mappingModels []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND is_active = ? AND sync_enabled = ?",
			tenantID, platform, true, true).
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// Count counts mappings matching the filter
func (r *GormProductMappingRepository) Count(ctx context.Context, tenantID uuid.UUID, filter integration.ProductMappingFilter) (int64, error) {
	var count int64
	err := r.filtered(ctx, tenantID, filter).Count(&count).Error
	return count, err
}

// ExistsByLocalProductAndPlatform checks if a mapping exists
func (r *GormProductMappingRepository) ExistsByLocalProductAndPlatform(ctx context.Context, tenantID, localProductID uuid.UUID, platform integration.PlatformCode) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("tenant_id = ? AND local_product_id = ? AND platform = ?", tenantID, localProductID, platform).
		Count(&count).Error
	return count > 0, err
}

// ExistsByPlatformProduct checks if a platform product is already mapped
func (r *GormProductMappingRepository) ExistsByPlatformProduct(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, platformProductID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("tenant_id = ? AND platform = ? AND platform_product_id = ?", tenantID, platform, platformProductID).
		Count(&count).Error
	return count > 0, err
}

// Save creates or updates a mapping
func (r *GormProductMappingRepository) Save(ctx context.Context, mapping *integration.ProductMapping) error {
	var model models.ProductMappingModel
	model.FromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// Delete deletes a mapping
func (r *GormProductMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ProductMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

func (r *GormProductMappingRepository) filtered(ctx context.Context, tenantID uuid.UUID, filter integration.ProductMappingFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.SyncEnabled != nil {
		query = query.Where("sync_enabled = ?", *filter.SyncEnabled)
	}
	if filter.LastSyncStatus != nil {
		query = query.Where("last_sync_status = ?", *filter.LastSyncStatus)
	}
	if keyword := strings.TrimSpace(filter.SearchKeyword); keyword != "" {
		pattern := "%" + keyword + "%"
		query = query.Where("platform_product_name ILIKE ? OR platform_product_id ILIKE ?", pattern, pattern)
	}
	return query
}

func toDomainMappings(mappingModels []models.ProductMappingModel) []integration.ProductMapping {
	mappings := make([]integration.ProductMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = *mappingModels[i].ToDomain()
	}
	return mappings
}

var _ integration.ProductMappingRepository = (*GormProductMappingRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormPlatformOrderRepository implements PlatformOrderRepository using GORM
type GormPlatformOrderRepository struct {
	db *gorm.DB
}

// NewGormPlatformOrderRepository creates a new GormPlatformOrderRepository
func NewGormPlatformOrderRepository(db *gorm.DB) *GormPlatformOrderRepository {
	return &GormPlatformOrderRepository{db: db}
}

// FindByID finds a record by its ID
func (r *GormPlatformOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.PlatformOrderRecord, error) {
	var model models.PlatformOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByPlatformOrderID is the dedup lookup under at-least-once delivery
func (r *GormPlatformOrderRepository) FindByPlatformOrderID(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, platformOrderID string) (*integration.PlatformOrderRecord, error) {
	var model models.PlatformOrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND platform_order_id = ?", tenantID, platform, platformOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll lists records matching the filter, newest first
func (r *GormPlatformOrderRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.PlatformOrderFilter) ([]integration.PlatformOrderRecord, error) {
	query := r.filtered(ctx, tenantID, filter).Order("received_at DESC")

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 1 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var orderModels []models.PlatformOrderModel
	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}

	records := make([]integration.PlatformOrderRecord, 0, len(orderModels))
	for i := range orderModels {
		record, err := orderModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// FindActiveSince returns non-final orders received after the cutoff
func (r *GormPlatformOrderRepository) FindActiveSince(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, since time.Time) ([]integration.PlatformOrderRecord, error) {
	finalStatuses := []integration.PlatformOrderStatus{
		integration.OrderStatusRejected,
		integration.OrderStatusDelivered,
		integration.OrderStatusCancelled,
	}

	var orderModels []models.PlatformOrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND received_at >= ? AND status NOT IN ?",
			tenantID, platform, since, finalStatuses).
		Order("received_at ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}

	records := make([]integration.PlatformOrderRecord, 0, len(orderModels))
	for i := range orderModels {
		record, err := orderModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// Count counts records matching the filter
func (r *GormPlatformOrderRepository) Count(ctx context.Context, tenantID uuid.UUID, filter integration.PlatformOrderFilter) (int64, error) {
	var count int64
	err := r.filtered(ctx, tenantID, filter).Count(&count).Error
	return count, err
}

// Save creates or updates a record
func (r *GormPlatformOrderRepository) Save(ctx context.Context, record *integration.PlatformOrderRecord) error {
	var model models.PlatformOrderModel
	if err := model.FromDomain(record); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

func (r *GormPlatformOrderRepository) filtered(ctx context.Context, tenantID uuid.UUID, filter integration.PlatformOrderFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.PlatformOrderModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Since != nil {
		query = query.Where("received_at >= ?", *filter.Since)
	}
	return query
}

var _ integration.PlatformOrderRepository = (*GormPlatformOrderRepository)(nil)

package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Save writes a log entry
func (r *GormSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	var model models.SyncLogModel
	model.FromDomain(log)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindLatest returns the most recent entry for an operation, or nil
func (r *GormSyncLogRepository) FindLatest(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, op integration.SyncOperation) (*integration.SyncLog, error) {
	var model models.SyncLogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND operation = ?", tenantID, platform, op).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists entries matching the filter, newest first
func (r *GormSyncLogRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLog, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SyncLogModel{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")

	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.Operation != nil {
		query = query.Where("operation = ?", *filter.Operation)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 1 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	var logModels []models.SyncLogModel
	if err := query.Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]integration.SyncLog, len(logModels))
	for i := range logModels {
		logs[i] = *logModels[i].ToDomain()
	}
	return logs, nil
}

// CountPendingItems sums item counts of pending entries for a platform
func (r *GormSyncLogRepository) CountPendingItems(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.SyncLogModel{}).
		Where("tenant_id = ? AND platform = ? AND status = ?", tenantID, platform, integration.SyncStatusPending).
		Select("COALESCE(SUM(item_count), 0)").
		Scan(&total).Error
	return int(total), err
}

var _ integration.SyncLogRepository = (*GormSyncLogRepository)(nil)

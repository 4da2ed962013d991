package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormDeadLetterRepository implements DeadLetterRepository using GORM
type GormDeadLetterRepository struct {
	db *gorm.DB
}

// NewGormDeadLetterRepository creates a new GormDeadLetterRepository
func NewGormDeadLetterRepository(db *gorm.DB) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: db}
}

// Save creates or updates an entry
func (r *GormDeadLetterRepository) Save(ctx context.Context, dl *integration.WebhookDeadLetter) error {
	var model models.WebhookDeadLetterModel
	model.FromDomain(dl)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindDue returns entries whose retry time has passed, oldest first
func (r *GormDeadLetterRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]integration.WebhookDeadLetter, error) {
	retryable := []integration.DeadLetterStatus{
		integration.DeadLetterStatusPending,
		integration.DeadLetterStatusRetrying,
	}

	query := r.db.WithContext(ctx).
		Where("status IN ? AND next_retry_at <= ?", retryable, now).
		Order("next_retry_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dlModels []models.WebhookDeadLetterModel
	if err := query.Find(&dlModels).Error; err != nil {
		return nil, err
	}
	return toDomainDeadLetters(dlModels), nil
}

// FindByTenant lists a tenant's entries, newest first
func (r *GormDeadLetterRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookDeadLetter, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dlModels []models.WebhookDeadLetterModel
	if err := query.Find(&dlModels).Error; err != nil {
		return nil, err
	}
	return toDomainDeadLetters(dlModels), nil
}

// DeleteOlderThan purges delivered and exhausted entries past retention
func (r *GormDeadLetterRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	finished := []integration.DeadLetterStatus{
		integration.DeadLetterStatusDelivered,
		integration.DeadLetterStatusExhausted,
	}
	result := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", finished, cutoff).
		Delete(&models.WebhookDeadLetterModel{})
	return result.RowsAffected, result.Error
}

func toDomainDeadLetters(dlModels []models.WebhookDeadLetterModel) []integration.WebhookDeadLetter {
	out := make([]integration.WebhookDeadLetter, len(dlModels))
	for i := range dlModels {
		out[i] = *dlModels[i].ToDomain()
	}
	return out
}

var _ integration.DeadLetterRepository = (*GormDeadLetterRepository)(nil)

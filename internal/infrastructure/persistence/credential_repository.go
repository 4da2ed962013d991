package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormCredentialRepository implements CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// Find returns the credentials for a tenant and platform
func (r *GormCredentialRepository) Find(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (*integration.PlatformCredentials, error) {
	var model models.PlatformCredentialModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrPlatformNotConfigured
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByTenant returns all stored credentials for a tenant
func (r *GormCredentialRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.PlatformCredentials, error) {
	var credentialModels []models.PlatformCredentialModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("platform ASC").
		Find(&credentialModels).Error; err != nil {
		return nil, err
	}

	out := make([]integration.PlatformCredentials, 0, len(credentialModels))
	for i := range credentialModels {
		creds, err := credentialModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *creds)
	}
	return out, nil
}

// FindPollingEnabled returns configured credentials with polling turned on,
// across all tenants
func (r *GormCredentialRepository) FindPollingEnabled(ctx context.Context) ([]integration.PlatformCredentials, error) {
	var credentialModels []models.PlatformCredentialModel
	if err := r.db.WithContext(ctx).
		Where("is_configured = ? AND polling_enabled = ?", true, true).
		Find(&credentialModels).Error; err != nil {
		return nil, err
	}

	out := make([]integration.PlatformCredentials, 0, len(credentialModels))
	for i := range credentialModels {
		creds, err := credentialModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *creds)
	}
	return out, nil
}

// Save creates or overwrites the credentials for a tenant and platform
func (r *GormCredentialRepository) Save(ctx context.Context, creds *integration.PlatformCredentials) error {
	var model models.PlatformCredentialModel
	if err := model.FromDomain(creds); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "platform"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

var _ integration.CredentialRepository = (*GormCredentialRepository)(nil)

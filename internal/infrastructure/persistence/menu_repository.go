package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/posbridge/backend/internal/domain/menu"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// GormMenuItemRepository implements menu.ItemRepository using GORM
type GormMenuItemRepository struct {
	db *gorm.DB
}

// NewGormMenuItemRepository creates a new GormMenuItemRepository
func NewGormMenuItemRepository(db *gorm.DB) *GormMenuItemRepository {
	return &GormMenuItemRepository{db: db}
}

// Save creates or updates a menu item
func (r *GormMenuItemRepository) Save(ctx context.Context, item *menu.Item) error {
	var model models.MenuItemModel
	model.FromDomain(item)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindByID finds an item within the tenant
func (r *GormMenuItemRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*menu.Item, error) {
	var model models.MenuItemModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, menu.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the subset of the given items that exist for the tenant
func (r *GormMenuItemRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]menu.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var itemModels []models.MenuItemModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("sort_order ASC, name ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	return toDomainMenuItems(itemModels), nil
}

// FindAll returns the tenant's whole menu in sort order
func (r *GormMenuItemRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]menu.Item, error) {
	var itemModels []models.MenuItemModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sort_order ASC, name ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	return toDomainMenuItems(itemModels), nil
}

// Delete removes an item
func (r *GormMenuItemRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&models.MenuItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return menu.ErrItemNotFound
	}
	return nil
}

func toDomainMenuItems(itemModels []models.MenuItemModel) []menu.Item {
	items := make([]menu.Item, len(itemModels))
	for i := range itemModels {
		items[i] = *itemModels[i].ToDomain()
	}
	return items
}

var _ menu.ItemRepository = (*GormMenuItemRepository)(nil)

// GormMenuCategoryRepository implements menu.CategoryRepository using GORM
type GormMenuCategoryRepository struct {
	db *gorm.DB
}

// NewGormMenuCategoryRepository creates a new GormMenuCategoryRepository
func NewGormMenuCategoryRepository(db *gorm.DB) *GormMenuCategoryRepository {
	return &GormMenuCategoryRepository{db: db}
}

// Save creates or updates a category
func (r *GormMenuCategoryRepository) Save(ctx context.Context, category *menu.Category) error {
	var model models.MenuCategoryModel
	model.FromDomain(category)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// FindAll returns the tenant's categories in sort order
func (r *GormMenuCategoryRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]menu.Category, error) {
	var categoryModels []models.MenuCategoryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sort_order ASC, name ASC").
		Find(&categoryModels).Error; err != nil {
		return nil, err
	}
	categories := make([]menu.Category, len(categoryModels))
	for i := range categoryModels {
		categories[i] = *categoryModels[i].ToDomain()
	}
	return categories, nil
}

// Delete removes a category
func (r *GormMenuCategoryRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&models.MenuCategoryModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return menu.ErrCategoryNotFound
	}
	return nil
}

var _ menu.CategoryRepository = (*GormMenuCategoryRepository)(nil)

// GormTicketRepository implements menu.TicketRepository using GORM
type GormTicketRepository struct {
	db *gorm.DB
}

// NewGormTicketRepository creates a new GormTicketRepository
func NewGormTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db}
}

// Save inserts a ticket. Tickets are immutable after creation.
func (r *GormTicketRepository) Save(ctx context.Context, ticket *menu.Ticket) error {
	var model models.TicketModel
	if err := model.FromDomain(ticket); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID finds a ticket within the tenant
func (r *GormTicketRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*menu.Ticket, error) {
	var model models.TicketModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, menu.ErrTicketNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByExternalRef finds the ticket created for a platform order
func (r *GormTicketRepository) FindByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*menu.Ticket, error) {
	var model models.TicketModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_ref = ?", tenantID, ref).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, menu.ErrTicketNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

var _ menu.TicketRepository = (*GormTicketRepository)(nil)

package menu

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Menu errors
var (
	ErrItemNotFound        = errors.New("menu: item not found")
	ErrCategoryNotFound    = errors.New("menu: category not found")
	ErrItemInvalidTenantID = errors.New("menu: invalid tenant ID")
	ErrItemInvalidName     = errors.New("menu: item name must be 1-200 characters")
	ErrItemNegativePrice   = errors.New("menu: item price cannot be negative")
	ErrCategoryInvalidName = errors.New("menu: category name must be 1-100 characters")
)

// Item is one sellable dish or product on the tenant's local menu. Prices
// are in the tenant's currency; platform markups live on the product
// mapping, not here.
type Item struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  *uuid.UUID
	IsAvailable bool
	ImageURL    string
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewItem creates a menu item. New items start available.
func NewItem(tenantID uuid.UUID, name string, price decimal.Decimal) (*Item, error) {
	if tenantID == uuid.Nil {
		return nil, ErrItemInvalidTenantID
	}
	if name == "" || len(name) > 200 {
		return nil, ErrItemInvalidName
	}
	if price.IsNegative() {
		return nil, ErrItemNegativePrice
	}
	now := time.Now().UTC()
	return &Item{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        name,
		Price:       price,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SetPrice updates the local price
func (i *Item) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrItemNegativePrice
	}
	i.Price = price
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAvailability toggles whether the item can be ordered
func (i *Item) SetAvailability(available bool) {
	i.IsAvailable = available
	i.UpdatedAt = time.Now().UTC()
}

// Category groups menu items for display
type Category struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCategory creates a menu category
func NewCategory(tenantID uuid.UUID, name string, sortOrder int) (*Category, error) {
	if tenantID == uuid.Nil {
		return nil, ErrItemInvalidTenantID
	}
	if name == "" || len(name) > 100 {
		return nil, ErrCategoryInvalidName
	}
	now := time.Now().UTC()
	return &Category{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ItemRepository persists menu items
type ItemRepository interface {
	// Save inserts or updates an item
	Save(ctx context.Context, item *Item) error

	// FindByID finds an item within the tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Item, error)

	// FindByIDs returns the subset of the given items that exist for the
	// tenant, in sort order
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Item, error)

	// FindAll returns the tenant's whole menu in sort order
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Item, error)

	// Delete removes an item
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// CategoryRepository persists menu categories
type CategoryRepository interface {
	Save(ctx context.Context, category *Category) error
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Category, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/menu"
)

// ============================================================================
// Menu items
// ============================================================================

// MenuItemModel is the persistence model for menu.Item
type MenuItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_menu_item_tenant"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid;index"`
	IsAvailable bool            `gorm:"not null"`
	ImageURL    string          `gorm:"type:varchar(500)"`
	SortOrder   int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (MenuItemModel) TableName() string {
	return "menu_items"
}

// ToDomain converts the model to a domain item
func (m *MenuItemModel) ToDomain() *menu.Item {
	return &menu.Item{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		CategoryID:  m.CategoryID,
		IsAvailable: m.IsAvailable,
		ImageURL:    m.ImageURL,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain fills the model from a domain item
func (m *MenuItemModel) FromDomain(item *menu.Item) {
	m.ID = item.ID
	m.TenantID = item.TenantID
	m.Name = item.Name
	m.Description = item.Description
	m.Price = item.Price
	m.CategoryID = item.CategoryID
	m.IsAvailable = item.IsAvailable
	m.ImageURL = item.ImageURL
	m.SortOrder = item.SortOrder
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}

// ============================================================================
// Menu categories
// ============================================================================

// MenuCategoryModel is the persistence model for menu.Category
type MenuCategoryModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(100);not null"`
	SortOrder int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (MenuCategoryModel) TableName() string {
	return "menu_categories"
}

// ToDomain converts the model to a domain category
func (m *MenuCategoryModel) ToDomain() *menu.Category {
	return &menu.Category{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		SortOrder: m.SortOrder,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain fills the model from a domain category
func (m *MenuCategoryModel) FromDomain(c *menu.Category) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Name = c.Name
	m.SortOrder = c.SortOrder
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// ============================================================================
// Kitchen tickets
// ============================================================================

// TicketModel is the persistence model for menu.Ticket. Lines are stored as
// JSON; tickets are insert-only.
type TicketModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_ticket_external_ref,priority:1"`
	Source        string          `gorm:"type:varchar(20);not null"`
	ExternalRef   string          `gorm:"type:varchar(150);uniqueIndex:uq_ticket_external_ref,priority:2"`
	CustomerName  string          `gorm:"type:varchar(200)"`
	CustomerPhone string          `gorm:"type:varchar(50)"`
	Address       string          `gorm:"type:text"`
	Notes         string          `gorm:"type:text"`
	LinesJSON     string          `gorm:"type:jsonb;column:lines;not null"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IsPrepaid     bool            `gorm:"not null;default:false"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TicketModel) TableName() string {
	return "kitchen_tickets"
}

type ticketLineJSON struct {
	ItemName  string          `json:"itemName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Note      string          `json:"note,omitempty"`
}

// ToDomain converts the model to a domain ticket
func (m *TicketModel) ToDomain() (*menu.Ticket, error) {
	var rawLines []ticketLineJSON
	if err := json.Unmarshal([]byte(m.LinesJSON), &rawLines); err != nil {
		return nil, err
	}
	lines := make([]menu.TicketLine, len(rawLines))
	for i, l := range rawLines {
		lines[i] = menu.TicketLine{
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			Note:      l.Note,
		}
	}
	return &menu.Ticket{
		ID:            m.ID,
		TenantID:      m.TenantID,
		Source:        menu.TicketSource(m.Source),
		ExternalRef:   m.ExternalRef,
		CustomerName:  m.CustomerName,
		CustomerPhone: m.CustomerPhone,
		Address:       m.Address,
		Notes:         m.Notes,
		Lines:         lines,
		Total:         m.Total,
		IsPrepaid:     m.IsPrepaid,
		CreatedAt:     m.CreatedAt,
	}, nil
}

// FromDomain fills the model from a domain ticket
func (m *TicketModel) FromDomain(t *menu.Ticket) error {
	rawLines := make([]ticketLineJSON, len(t.Lines))
	for i, l := range t.Lines {
		rawLines[i] = ticketLineJSON{
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			Note:      l.Note,
		}
	}
	blob, err := json.Marshal(rawLines)
	if err != nil {
		return err
	}
	m.ID = t.ID
	m.TenantID = t.TenantID
	m.Source = string(t.Source)
	m.ExternalRef = t.ExternalRef
	m.CustomerName = t.CustomerName
	m.CustomerPhone = t.CustomerPhone
	m.Address = t.Address
	m.Notes = t.Notes
	m.LinesJSON = string(blob)
	m.Total = t.Total
	m.IsPrepaid = t.IsPrepaid
	m.CreatedAt = t.CreatedAt
	return nil
}

package menu

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/domain/menu"
)

// Service exposes the tenant's local menu to the platform sync pipeline and
// turns accepted platform orders into kitchen tickets.
type Service struct {
	items      menu.ItemRepository
	categories menu.CategoryRepository
	tickets    menu.TicketRepository
	logger     *zap.Logger
}

// NewService creates a new menu Service
func NewService(
	items menu.ItemRepository,
	categories menu.CategoryRepository,
	tickets menu.TicketRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		items:      items,
		categories: categories,
		tickets:    tickets,
		logger:     logger,
	}
}

// GetMenu returns the tenant's full menu in outbound sync shapes
func (s *Service) GetMenu(ctx context.Context, tenantID uuid.UUID) ([]integration.ProductSync, []integration.CategorySync, error) {
	items, err := s.items.FindAll(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load menu items: %w", err)
	}
	categories, err := s.categories.FindAll(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load menu categories: %w", err)
	}

	products := make([]integration.ProductSync, 0, len(items))
	for _, item := range items {
		products = append(products, toProductSync(item))
	}
	cats := make([]integration.CategorySync, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, integration.CategorySync{
			LocalCategoryID: c.ID,
			Name:            c.Name,
			SortOrder:       c.SortOrder,
		})
	}
	return products, cats, nil
}

// GetProducts returns specific menu items for a partial sync. Unknown IDs
// are silently skipped; the caller decides how to report unmapped products.
func (s *Service) GetProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]integration.ProductSync, error) {
	items, err := s.items.FindByIDs(ctx, tenantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	products := make([]integration.ProductSync, 0, len(items))
	for _, item := range items {
		products = append(products, toProductSync(item))
	}
	return products, nil
}

// CreateFromPlatformOrder creates the kitchen ticket for an accepted
// platform order and returns its ID. Calling it twice for the same platform
// order returns the existing ticket.
func (s *Service) CreateFromPlatformOrder(ctx context.Context, tenantID uuid.UUID, order *integration.PlatformOrder) (uuid.UUID, error) {
	ref := fmt.Sprintf("%s:%s", order.Platform, order.PlatformOrderID)

	existing, err := s.tickets.FindByExternalRef(ctx, tenantID, ref)
	if err == nil {
		return existing.ID, nil
	}

	lines := make([]menu.TicketLine, 0, len(order.Items))
	for _, item := range order.Items {
		note := item.Note
		for _, mod := range item.Modifiers {
			if note != "" {
				note += "; "
			}
			note += mod.Name
		}
		lines = append(lines, menu.TicketLine{
			ItemName:  item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.TotalPrice,
			Note:      note,
		})
	}

	ticket, err := menu.NewTicket(tenantID, menu.TicketSourceDelivery, lines)
	if err != nil {
		return uuid.Nil, err
	}
	ticket.ExternalRef = ref
	ticket.CustomerName = order.CustomerName
	ticket.CustomerPhone = order.CustomerPhone
	ticket.Address = order.DeliveryAddress
	ticket.Notes = order.DeliveryNotes
	ticket.Total = order.Total
	ticket.IsPrepaid = order.IsPrepaid

	if err := s.tickets.Save(ctx, ticket); err != nil {
		return uuid.Nil, fmt.Errorf("save ticket: %w", err)
	}

	s.logger.Info("kitchen ticket created from platform order",
		zap.String("tenant_id", tenantID.String()),
		zap.String("external_ref", ref),
		zap.String("ticket_id", ticket.ID.String()))

	return ticket.ID, nil
}

func toProductSync(item menu.Item) integration.ProductSync {
	p := integration.ProductSync{
		LocalProductID: item.ID,
		Name:           item.Name,
		Description:    item.Description,
		Price:          item.Price,
		IsAvailable:    item.IsAvailable,
		ImageURL:       item.ImageURL,
	}
	if item.CategoryID != nil {
		p.CategoryID = *item.CategoryID
	}
	return p
}

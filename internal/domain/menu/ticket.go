package menu

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket errors
var (
	ErrTicketNotFound = errors.New("menu: ticket not found")
	ErrTicketNoLines  = errors.New("menu: ticket must have at least one line")
)

// TicketSource identifies where a kitchen ticket came from
type TicketSource string

const (
	TicketSourceCounter  TicketSource = "COUNTER"
	TicketSourceDelivery TicketSource = "DELIVERY"
)

// Ticket is the local kitchen order that fulfils a sale. Delivery-platform
// orders become tickets on acceptance; the external reference keeps the link
// back to the platform order.
type Ticket struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Source   TicketSource
	// ExternalRef is "<platform>:<platformOrderID>" for delivery tickets
	ExternalRef   string
	CustomerName  string
	CustomerPhone string
	Address       string
	Notes         string
	Lines         []TicketLine
	Total         decimal.Decimal
	IsPrepaid     bool
	CreatedAt     time.Time
}

// TicketLine is one prepared item on a ticket
type TicketLine struct {
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Note      string
}

// NewTicket creates a kitchen ticket
func NewTicket(tenantID uuid.UUID, source TicketSource, lines []TicketLine) (*Ticket, error) {
	if tenantID == uuid.Nil {
		return nil, ErrItemInvalidTenantID
	}
	if len(lines) == 0 {
		return nil, ErrTicketNoLines
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return &Ticket{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Source:    source,
		Lines:     lines,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TicketRepository persists kitchen tickets
type TicketRepository interface {
	Save(ctx context.Context, ticket *Ticket) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error)
	FindByExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*Ticket, error)
}

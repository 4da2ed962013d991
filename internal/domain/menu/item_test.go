package menu

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	tenantID := uuid.New()

	item, err := NewItem(tenantID, "Lahmacun", decimal.RequireFromString("45.00"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, tenantID, item.TenantID)
	assert.True(t, item.IsAvailable)

	_, err = NewItem(uuid.Nil, "Lahmacun", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrItemInvalidTenantID)

	_, err = NewItem(tenantID, "", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrItemInvalidName)

	_, err = NewItem(tenantID, "Ayran", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrItemNegativePrice)
}

func TestItem_SetPrice(t *testing.T) {
	item, err := NewItem(uuid.New(), "Ayran", decimal.RequireFromString("15.00"))
	require.NoError(t, err)

	require.NoError(t, item.SetPrice(decimal.RequireFromString("17.50")))
	assert.True(t, item.Price.Equal(decimal.RequireFromString("17.50")))

	assert.ErrorIs(t, item.SetPrice(decimal.NewFromInt(-1)), ErrItemNegativePrice)
}

func TestNewTicket_SumsLines(t *testing.T) {
	tenantID := uuid.New()
	lines := []TicketLine{
		{ItemName: "Lahmacun", Quantity: 2, UnitPrice: decimal.RequireFromString("45.00"), LineTotal: decimal.RequireFromString("90.00")},
		{ItemName: "Ayran", Quantity: 1, UnitPrice: decimal.RequireFromString("15.00"), LineTotal: decimal.RequireFromString("15.00")},
	}

	ticket, err := NewTicket(tenantID, TicketSourceDelivery, lines)
	require.NoError(t, err)
	assert.True(t, ticket.Total.Equal(decimal.RequireFromString("105.00")))

	_, err = NewTicket(tenantID, TicketSourceDelivery, nil)
	assert.ErrorIs(t, err, ErrTicketNoLines)

	_, err = NewTicket(uuid.Nil, TicketSourceCounter, lines)
	assert.ErrorIs(t, err, ErrItemInvalidTenantID)
}

package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlatformOrderRecord is the persisted lifecycle record of an order received
// from a delivery platform. The normalized PlatformOrder snapshot is embedded
// at creation and stays immutable; only the lifecycle fields change.
type PlatformOrderRecord struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Platform PlatformCode
	// PlatformOrderID is the dedup key under at-least-once delivery
	PlatformOrderID string
	Status          PlatformOrderStatus
	// Order is the immutable normalized snapshot
	Order PlatformOrder
	// LocalOrderID links to the internal order created on accept
	LocalOrderID *uuid.UUID
	AcceptedAt   *time.Time
	RejectedAt   *time.Time
	RejectReason string
	PreparedAt   *time.Time
	ReadyAt      *time.Time
	DeliveredAt  *time.Time
	ReceivedAt   time.Time
	UpdatedAt    time.Time
}

// NewPlatformOrderRecord creates a record from a normalized order
func NewPlatformOrderRecord(tenantID uuid.UUID, order *PlatformOrder) *PlatformOrderRecord {
	now := time.Now()
	return &PlatformOrderRecord{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Platform:        order.Platform,
		PlatformOrderID: order.PlatformOrderID,
		Status:          order.Status,
		Order:           *order,
		ReceivedAt:      now,
		UpdatedAt:       now,
	}
}

// IsAccepted reports whether the order has been accepted
func (r *PlatformOrderRecord) IsAccepted() bool {
	return r.AcceptedAt != nil
}

// MarkAccepted records acceptance and the internal order it produced.
// A Nil localOrderID leaves the link unset; not every accept creates one.
func (r *PlatformOrderRecord) MarkAccepted(localOrderID uuid.UUID) {
	now := time.Now()
	r.Status = OrderStatusAccepted
	if localOrderID != uuid.Nil {
		r.LocalOrderID = &localOrderID
	}
	r.AcceptedAt = &now
	r.UpdatedAt = now
}

// MarkRejected records rejection with the mandatory reason. The reason is
// kept locally even when the platform API has no field for it.
func (r *PlatformOrderRecord) MarkRejected(reason string) {
	now := time.Now()
	r.Status = OrderStatusRejected
	r.RejectReason = reason
	r.RejectedAt = &now
	r.UpdatedAt = now
}

// ApplyStatus advances the lifecycle and stamps the transition time
func (r *PlatformOrderRecord) ApplyStatus(status PlatformOrderStatus) {
	now := time.Now()
	r.Status = status
	switch status {
	case OrderStatusPreparing:
		r.PreparedAt = &now
	case OrderStatusReady:
		r.ReadyAt = &now
	case OrderStatusDelivered:
		r.DeliveredAt = &now
	}
	r.UpdatedAt = now
}

// PlatformOrderFilter narrows order record queries
type PlatformOrderFilter struct {
	Platform *PlatformCode
	Status   *PlatformOrderStatus
	Since    *time.Time
	Page     int
	PageSize int
}

// PlatformOrderRepository persists platform order records
type PlatformOrderRepository interface {
	// FindByID finds a record by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*PlatformOrderRecord, error)

	// FindByPlatformOrderID is the dedup lookup; returns ErrOrderNotFound
	// when the platform order has not been seen
	FindByPlatformOrderID(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, platformOrderID string) (*PlatformOrderRecord, error)

	// FindAll lists records matching the filter, newest first
	FindAll(ctx context.Context, tenantID uuid.UUID, filter PlatformOrderFilter) ([]PlatformOrderRecord, error)

	// FindActiveSince returns non-final orders received after the cutoff,
	// used by status reconciliation
	FindActiveSince(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, since time.Time) ([]PlatformOrderRecord, error)

	// Count counts records matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter PlatformOrderFilter) (int64, error)

	// Save creates or updates a record
	Save(ctx context.Context, record *PlatformOrderRecord) error
}

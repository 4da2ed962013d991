package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncOperation identifies what kind of integration work a log row records
type SyncOperation string

const (
	SyncOpOrderReceived    SyncOperation = "ORDER_RECEIVED"
	SyncOpOrderAccept      SyncOperation = "ORDER_ACCEPT"
	SyncOpOrderReject      SyncOperation = "ORDER_REJECT"
	SyncOpStatusPush       SyncOperation = "STATUS_PUSH"
	SyncOpMenuSync         SyncOperation = "MENU_SYNC"
	SyncOpAvailabilitySync SyncOperation = "AVAILABILITY_SYNC"
	SyncOpPriceSync        SyncOperation = "PRICE_SYNC"
	SyncOpPoll             SyncOperation = "POLL"
)

// SyncDirection records which way data flowed
type SyncDirection string

const (
	SyncDirectionInbound  SyncDirection = "INBOUND"
	SyncDirectionOutbound SyncDirection = "OUTBOUND"
)

// SyncLog is an audit record of one integration operation. Written on both
// success and failure; the operator-facing sync status view is derived from
// the latest rows.
type SyncLog struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Platform   PlatformCode
	Operation  SyncOperation
	Direction  SyncDirection
	Status     SyncStatus
	Duration   time.Duration
	ItemCount  int
	ErrorMsg   string
	RetryCount int
	CreatedAt  time.Time
}

// NewSyncLog creates a sync log entry
func NewSyncLog(tenantID uuid.UUID, platform PlatformCode, op SyncOperation, dir SyncDirection) *SyncLog {
	return &SyncLog{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Platform:  platform,
		Operation: op,
		Direction: dir,
		Status:    SyncStatusPending,
		CreatedAt: time.Now(),
	}
}

// Complete marks the log entry with an outcome
func (l *SyncLog) Complete(status SyncStatus, duration time.Duration, errMsg string) {
	l.Status = status
	l.Duration = duration
	l.ErrorMsg = errMsg
}

// SyncLogFilter narrows sync log queries
type SyncLogFilter struct {
	Platform  *PlatformCode
	Operation *SyncOperation
	Status    *SyncStatus
	Since     *time.Time
	Page      int
	PageSize  int
}

// SyncLogRepository persists sync audit records
type SyncLogRepository interface {
	// Save writes a log entry
	Save(ctx context.Context, log *SyncLog) error

	// FindLatest returns the most recent entry for an operation, or nil
	// when none exists
	FindLatest(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, op SyncOperation) (*SyncLog, error)

	// FindAll lists entries matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter SyncLogFilter) ([]SyncLog, error)

	// CountPendingItems sums item counts of pending entries for a platform
	CountPendingItems(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) (int, error)
}

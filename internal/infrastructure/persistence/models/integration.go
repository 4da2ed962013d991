package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/posbridge/backend/internal/domain/integration"
)

// ============================================================================
// Platform credentials
// ============================================================================

// PlatformCredentialModel stores one tenant's credentials for one platform.
// The variant payload lives in a JSON column; SchemaVersion is duplicated as
// a real column so stored blobs can be migrated by version without decoding
// every row.
type PlatformCredentialModel struct {
	TenantID        uuid.UUID                `gorm:"type:uuid;primaryKey"`
	Platform        integration.PlatformCode `gorm:"type:varchar(20);primaryKey"`
	SchemaVersion   int                      `gorm:"not null"`
	IsConfigured    bool                     `gorm:"not null;default:false"`
	PollingEnabled  bool                     `gorm:"not null;default:false;index"`
	LastPolledAt    *time.Time
	CredentialsJSON string    `gorm:"type:jsonb;column:credentials;not null"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (PlatformCredentialModel) TableName() string {
	return "platform_credentials"
}

// ToDomain decodes the stored blob through the schema-checked codec
func (m *PlatformCredentialModel) ToDomain() (*integration.PlatformCredentials, error) {
	creds, err := integration.DecodeCredentials([]byte(m.CredentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("stored credentials for tenant %s platform %s: %w", m.TenantID, m.Platform, err)
	}
	creds.LastPolledAt = m.LastPolledAt
	creds.UpdatedAt = m.UpdatedAt
	return creds, nil
}

// FromDomain encodes the credential record into the model
func (m *PlatformCredentialModel) FromDomain(creds *integration.PlatformCredentials) error {
	blob, err := integration.EncodeCredentials(creds)
	if err != nil {
		return err
	}
	m.TenantID = creds.TenantID
	m.Platform = creds.Platform
	m.SchemaVersion = creds.SchemaVersion
	m.IsConfigured = creds.IsConfigured
	m.PollingEnabled = creds.PollingEnabled
	m.LastPolledAt = creds.LastPolledAt
	m.CredentialsJSON = string(blob)
	m.UpdatedAt = creds.UpdatedAt
	return nil
}

// ============================================================================
// Platform order records
// ============================================================================

// PlatformOrderModel is the persistence model for PlatformOrderRecord. The
// normalized order snapshot is stored as JSON and never updated after insert.
type PlatformOrderModel struct {
	ID              uuid.UUID                       `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:uq_platform_order_dedup,priority:1"`
	Platform        integration.PlatformCode        `gorm:"type:varchar(20);not null;uniqueIndex:uq_platform_order_dedup,priority:2"`
	PlatformOrderID string                          `gorm:"type:varchar(100);not null;uniqueIndex:uq_platform_order_dedup,priority:3"`
	Status          integration.PlatformOrderStatus `gorm:"type:varchar(20);not null;index"`
	OrderJSON       string                          `gorm:"type:jsonb;column:order_snapshot;not null"`
	LocalOrderID    *uuid.UUID                      `gorm:"type:uuid;index"`
	AcceptedAt      *time.Time
	RejectedAt      *time.Time
	RejectReason    string `gorm:"type:text"`
	PreparedAt      *time.Time
	ReadyAt         *time.Time
	DeliveredAt     *time.Time
	ReceivedAt      time.Time `gorm:"not null;index"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (PlatformOrderModel) TableName() string {
	return "platform_orders"
}

// orderSnapshot is the JSON shape of the stored normalized order
type orderSnapshot struct {
	PlatformOrderID     string                          `json:"platform_order_id"`
	PlatformOrderNumber string                          `json:"platform_order_number"`
	Platform            integration.PlatformCode        `json:"platform"`
	Status              integration.PlatformOrderStatus `json:"status"`
	RawStatus           string                          `json:"raw_status"`
	CustomerName        string                          `json:"customer_name"`
	CustomerPhone       string                          `json:"customer_phone"`
	DeliveryAddress     string                          `json:"delivery_address"`
	DeliveryNotes       string                          `json:"delivery_notes"`
	Items               []orderItemSnapshot             `json:"items"`
	Subtotal            decimal.Decimal                 `json:"subtotal"`
	DeliveryFee         decimal.Decimal                 `json:"delivery_fee"`
	Discount            decimal.Decimal                 `json:"discount"`
	Total               decimal.Decimal                 `json:"total"`
	IsPrepaid           bool                            `json:"is_prepaid"`
	PaymentMethod       string                          `json:"payment_method"`
	PlacedAt            time.Time                       `json:"placed_at"`
	RawData             map[string]any                  `json:"raw_data,omitempty"`
}

type orderItemSnapshot struct {
	PlatformProductID string                  `json:"platform_product_id"`
	Name              string                  `json:"name"`
	Quantity          int                     `json:"quantity"`
	UnitPrice         decimal.Decimal         `json:"unit_price"`
	TotalPrice        decimal.Decimal         `json:"total_price"`
	Note              string                  `json:"note,omitempty"`
	Modifiers         []orderModifierSnapshot `json:"modifiers,omitempty"`
}

type orderModifierSnapshot struct {
	PlatformModifierID string          `json:"platform_modifier_id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
}

func snapshotFromOrder(o *integration.PlatformOrder) orderSnapshot {
	items := make([]orderItemSnapshot, len(o.Items))
	for i, item := range o.Items {
		modifiers := make([]orderModifierSnapshot, len(item.Modifiers))
		for j, mod := range item.Modifiers {
			modifiers[j] = orderModifierSnapshot{
				PlatformModifierID: mod.PlatformModifierID,
				Name:               mod.Name,
				Price:              mod.Price,
				Quantity:           mod.Quantity,
			}
		}
		items[i] = orderItemSnapshot{
			PlatformProductID: item.PlatformProductID,
			Name:              item.Name,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			TotalPrice:        item.TotalPrice,
			Note:              item.Note,
			Modifiers:         modifiers,
		}
	}
	return orderSnapshot{
		PlatformOrderID:     o.PlatformOrderID,
		PlatformOrderNumber: o.PlatformOrderNumber,
		Platform:            o.Platform,
		Status:              o.Status,
		RawStatus:           o.RawStatus,
		CustomerName:        o.CustomerName,
		CustomerPhone:       o.CustomerPhone,
		DeliveryAddress:     o.DeliveryAddress,
		DeliveryNotes:       o.DeliveryNotes,
		Items:               items,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Discount:            o.Discount,
		Total:               o.Total,
		IsPrepaid:           o.IsPrepaid,
		PaymentMethod:       o.PaymentMethod,
		PlacedAt:            o.PlacedAt,
		RawData:             o.RawData,
	}
}

func (s orderSnapshot) toOrder() integration.PlatformOrder {
	items := make([]integration.PlatformOrderItem, len(s.Items))
	for i, item := range s.Items {
		modifiers := make([]integration.PlatformOrderModifier, len(item.Modifiers))
		for j, mod := range item.Modifiers {
			modifiers[j] = integration.PlatformOrderModifier{
				PlatformModifierID: mod.PlatformModifierID,
				Name:               mod.Name,
				Price:              mod.Price,
				Quantity:           mod.Quantity,
			}
		}
		items[i] = integration.PlatformOrderItem{
			PlatformProductID: item.PlatformProductID,
			Name:              item.Name,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			TotalPrice:        item.TotalPrice,
			Note:              item.Note,
			Modifiers:         modifiers,
		}
	}
	return integration.PlatformOrder{
		PlatformOrderID:     s.PlatformOrderID,
		PlatformOrderNumber: s.PlatformOrderNumber,
		Platform:            s.Platform,
		Status:              s.Status,
		RawStatus:           s.RawStatus,
		CustomerName:        s.CustomerName,
		CustomerPhone:       s.CustomerPhone,
		DeliveryAddress:     s.DeliveryAddress,
		DeliveryNotes:       s.DeliveryNotes,
		Items:               items,
		Subtotal:            s.Subtotal,
		DeliveryFee:         s.DeliveryFee,
		Discount:            s.Discount,
		Total:               s.Total,
		IsPrepaid:           s.IsPrepaid,
		PaymentMethod:       s.PaymentMethod,
		PlacedAt:            s.PlacedAt,
		RawData:             s.RawData,
	}
}

// ToDomain converts the persistence model to a PlatformOrderRecord
func (m *PlatformOrderModel) ToDomain() (*integration.PlatformOrderRecord, error) {
	var snapshot orderSnapshot
	if err := json.Unmarshal([]byte(m.OrderJSON), &snapshot); err != nil {
		return nil, fmt.Errorf("stored order snapshot %s: %w", m.ID, err)
	}
	return &integration.PlatformOrderRecord{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Platform:        m.Platform,
		PlatformOrderID: m.PlatformOrderID,
		Status:          m.Status,
		Order:           snapshot.toOrder(),
		LocalOrderID:    m.LocalOrderID,
		AcceptedAt:      m.AcceptedAt,
		RejectedAt:      m.RejectedAt,
		RejectReason:    m.RejectReason,
		PreparedAt:      m.PreparedAt,
		ReadyAt:         m.ReadyAt,
		DeliveredAt:     m.DeliveredAt,
		ReceivedAt:      m.ReceivedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a PlatformOrderRecord
func (m *PlatformOrderModel) FromDomain(r *integration.PlatformOrderRecord) error {
	blob, err := json.Marshal(snapshotFromOrder(&r.Order))
	if err != nil {
		return err
	}
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.Platform = r.Platform
	m.PlatformOrderID = r.PlatformOrderID
	m.Status = r.Status
	m.OrderJSON = string(blob)
	m.LocalOrderID = r.LocalOrderID
	m.AcceptedAt = r.AcceptedAt
	m.RejectedAt = r.RejectedAt
	m.RejectReason = r.RejectReason
	m.PreparedAt = r.PreparedAt
	m.ReadyAt = r.ReadyAt
	m.DeliveredAt = r.DeliveredAt
	m.ReceivedAt = r.ReceivedAt
	m.UpdatedAt = r.UpdatedAt
	return nil
}

// ============================================================================
// Product mappings
// ============================================================================

// ProductMappingModel is the persistence model for the ProductMapping entity
type ProductMappingModel struct {
	ID                  uuid.UUID                `gorm:"type:uuid;primaryKey"`
	TenantID            uuid.UUID                `gorm:"type:uuid;not null;index:idx_product_mapping_tenant,priority:1"`
	LocalProductID      uuid.UUID                `gorm:"type:uuid;not null;index:idx_product_mapping_local_product"`
	Platform            integration.PlatformCode `gorm:"type:varchar(20);not null;index:idx_product_mapping_tenant,priority:2"`
	PlatformProductID   string                   `gorm:"type:varchar(100);not null;index"`
	PlatformProductName string                   `gorm:"type:varchar(255)"`
	PriceMultiplier     decimal.Decimal          `gorm:"type:decimal(8,4);not null;default:1"`
	IsActive            bool                     `gorm:"not null"`
	SyncEnabled         bool                     `gorm:"not null"`
	LastSyncAt          *time.Time               `gorm:"index"`
	LastSyncStatus      integration.SyncStatus   `gorm:"type:varchar(20);not null;default:'PENDING'"`
	LastSyncError       string                   `gorm:"type:text"`
	CreatedAt           time.Time                `gorm:"not null;autoCreateTime:false"`
	UpdatedAt           time.Time                `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping
func (m *ProductMappingModel) ToDomain() *integration.ProductMapping {
	return &integration.ProductMapping{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		LocalProductID:      m.LocalProductID,
		Platform:            m.Platform,
		PlatformProductID:   m.PlatformProductID,
		PlatformProductName: m.PlatformProductName,
		PriceMultiplier:     m.PriceMultiplier,
		IsActive:            m.IsActive,
		SyncEnabled:         m.SyncEnabled,
		LastSyncAt:          m.LastSyncAt,
		LastSyncStatus:      m.LastSyncStatus,
		LastSyncError:       m.LastSyncError,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ProductMapping
func (m *ProductMappingModel) FromDomain(pm *integration.ProductMapping) {
	m.ID = pm.ID
	m.TenantID = pm.TenantID
	m.LocalProductID = pm.LocalProductID
	m.Platform = pm.Platform
	m.PlatformProductID = pm.PlatformProductID
	m.PlatformProductName = pm.PlatformProductName
	m.PriceMultiplier = pm.PriceMultiplier
	m.IsActive = pm.IsActive
	m.SyncEnabled = pm.SyncEnabled
	m.LastSyncAt = pm.LastSyncAt
	m.LastSyncStatus = pm.LastSyncStatus
	m.LastSyncError = pm.LastSyncError
	m.CreatedAt = pm.CreatedAt
	m.UpdatedAt = pm.UpdatedAt
}

// ============================================================================
// Sync logs
// ============================================================================

// SyncLogModel is the persistence model for sync audit entries
type SyncLogModel struct {
	ID         uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_log_tenant,priority:1"`
	Platform   integration.PlatformCode  `gorm:"type:varchar(20);not null;index:idx_sync_log_tenant,priority:2"`
	Operation  integration.SyncOperation `gorm:"type:varchar(30);not null;index:idx_sync_log_tenant,priority:3"`
	Direction  integration.SyncDirection `gorm:"type:varchar(10);not null"`
	Status     integration.SyncStatus    `gorm:"type:varchar(20);not null"`
	DurationMS int64                     `gorm:"not null;default:0"`
	ItemCount  int                       `gorm:"not null;default:0"`
	ErrorMsg   string                    `gorm:"type:text"`
	RetryCount int                       `gorm:"not null;default:0"`
	CreatedAt  time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	return &integration.SyncLog{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Platform:   m.Platform,
		Operation:  m.Operation,
		Direction:  m.Direction,
		Status:     m.Status,
		Duration:   time.Duration(m.DurationMS) * time.Millisecond,
		ItemCount:  m.ItemCount,
		ErrorMsg:   m.ErrorMsg,
		RetryCount: m.RetryCount,
		CreatedAt:  m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncLog
func (m *SyncLogModel) FromDomain(l *integration.SyncLog) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.Platform = l.Platform
	m.Operation = l.Operation
	m.Direction = l.Direction
	m.Status = l.Status
	m.DurationMS = l.Duration.Milliseconds()
	m.ItemCount = l.ItemCount
	m.ErrorMsg = l.ErrorMsg
	m.RetryCount = l.RetryCount
	m.CreatedAt = l.CreatedAt
}

// ============================================================================
// Webhook dead letters
// ============================================================================

// WebhookDeadLetterModel is the persistence model for failed webhook
// deliveries waiting for retry
type WebhookDeadLetterModel struct {
	ID          uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Platform    integration.PlatformCode     `gorm:"type:varchar(20);not null"`
	Payload     []byte                       `gorm:"type:bytea;not null"`
	HeadersJSON string                       `gorm:"type:jsonb;column:headers"`
	SourceIP    string                       `gorm:"type:varchar(45)"`
	Status      integration.DeadLetterStatus `gorm:"type:varchar(20);not null;index:idx_dead_letter_due,priority:1"`
	Attempts    int                          `gorm:"not null;default:0"`
	LastError   string                       `gorm:"type:text"`
	NextRetryAt time.Time                    `gorm:"not null;index:idx_dead_letter_due,priority:2"`
	CreatedAt   time.Time                    `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt   time.Time                    `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (WebhookDeadLetterModel) TableName() string {
	return "webhook_dead_letters"
}

// ToDomain converts the persistence model to a domain WebhookDeadLetter
func (m *WebhookDeadLetterModel) ToDomain() *integration.WebhookDeadLetter {
	headers := map[string]string{}
	if m.HeadersJSON != "" {
		_ = json.Unmarshal([]byte(m.HeadersJSON), &headers)
	}
	return &integration.WebhookDeadLetter{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Platform:    m.Platform,
		Payload:     m.Payload,
		Headers:     headers,
		SourceIP:    m.SourceIP,
		Status:      m.Status,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		NextRetryAt: m.NextRetryAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookDeadLetter
func (m *WebhookDeadLetterModel) FromDomain(dl *integration.WebhookDeadLetter) {
	m.ID = dl.ID
	m.TenantID = dl.TenantID
	m.Platform = dl.Platform
	m.Payload = dl.Payload
	m.SourceIP = dl.SourceIP
	m.Status = dl.Status
	m.Attempts = dl.Attempts
	m.LastError = dl.LastError
	m.NextRetryAt = dl.NextRetryAt
	m.CreatedAt = dl.CreatedAt
	m.UpdatedAt = dl.UpdatedAt

	if len(dl.Headers) > 0 {
		if blob, err := json.Marshal(dl.Headers); err == nil {
			m.HeadersJSON = string(blob)
		}
	} else {
		m.HeadersJSON = "{}"
	}
}

package integration

import "errors"

// Sentinel errors for the delivery platform integration domain
var (
	// ErrTenantContextNotSet is returned when an adapter operation is invoked
	// before the adapter has been bound to a tenant
	ErrTenantContextNotSet = errors.New("integration: tenant context not set")
	// ErrPlatformNotConfigured is returned when a tenant has no usable
	// credentials for the requested platform
	ErrPlatformNotConfigured = errors.New("integration: platform not configured for tenant")
	// ErrPlatformNotSupported is returned for unknown platform codes
	ErrPlatformNotSupported = errors.New("integration: platform not supported")
	// ErrOrderNotFound is returned when a platform order cannot be located
	ErrOrderNotFound = errors.New("integration: platform order not found")
	// ErrOrderAlreadyAccepted is returned when accepting an order that was
	// already accepted; callers generally treat this as a success
	ErrOrderAlreadyAccepted = errors.New("integration: order already accepted")
	// ErrInvalidWebhookPayload is returned for structurally invalid webhook bodies
	ErrInvalidWebhookPayload = errors.New("integration: invalid webhook payload")
	// ErrInvalidCredentials is returned when a credential blob fails validation
	ErrInvalidCredentials = errors.New("integration: invalid credentials")
	// ErrCredentialSchemaVersion is returned when a stored credential blob
	// carries a schema version this build does not understand
	ErrCredentialSchemaVersion = errors.New("integration: unsupported credential schema version")
	// ErrRejectReasonRequired is returned when rejecting an order without a reason
	ErrRejectReasonRequired = errors.New("integration: reject reason is required")
	// ErrAPIRequest is returned when a platform API call fails
	ErrAPIRequest = errors.New("integration: platform API request failed")
	// ErrAPIResponse is returned when a platform API response cannot be parsed
	ErrAPIResponse = errors.New("integration: invalid platform API response")
)

// ---------------------------------------------------------------------------
// PlatformCode
// ---------------------------------------------------------------------------

// PlatformCode identifies a food delivery platform
type PlatformCode string

const (
	PlatformCodeTrendyol    PlatformCode = "TRENDYOL"
	PlatformCodeYemeksepeti PlatformCode = "YEMEKSEPETI"
	PlatformCodeGetir       PlatformCode = "GETIR"
	PlatformCodeMigros      PlatformCode = "MIGROS"
	PlatformCodeFuudy       PlatformCode = "FUUDY"
)

// AllPlatformCodes returns every supported platform code.
// The order is stable and used for registry iteration.
func AllPlatformCodes() []PlatformCode {
	return []PlatformCode{
		PlatformCodeTrendyol,
		PlatformCodeYemeksepeti,
		PlatformCodeGetir,
		PlatformCodeMigros,
		PlatformCodeFuudy,
	}
}

// IsValid checks if the platform code is valid
func (p PlatformCode) IsValid() bool {
	switch p {
	case PlatformCodeTrendyol, PlatformCodeYemeksepeti, PlatformCodeGetir,
		PlatformCodeMigros, PlatformCodeFuudy:
		return true
	}
	return false
}

// String returns the string representation
func (p PlatformCode) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p PlatformCode) DisplayName() string {
	switch p {
	case PlatformCodeTrendyol:
		return "Trendyol Yemek"
	case PlatformCodeYemeksepeti:
		return "Yemeksepeti"
	case PlatformCodeGetir:
		return "GetirYemek"
	case PlatformCodeMigros:
		return "Migros Yemek"
	case PlatformCodeFuudy:
		return "Fuudy"
	default:
		return string(p)
	}
}

// ---------------------------------------------------------------------------
// PlatformOrderStatus
// ---------------------------------------------------------------------------

// PlatformOrderStatus represents the normalized lifecycle status of a
// delivery platform order. Adapters translate each platform's own status
// vocabulary into this set.
type PlatformOrderStatus string

const (
	OrderStatusReceived  PlatformOrderStatus = "RECEIVED"
	OrderStatusAccepted  PlatformOrderStatus = "ACCEPTED"
	OrderStatusRejected  PlatformOrderStatus = "REJECTED"
	OrderStatusPreparing PlatformOrderStatus = "PREPARING"
	OrderStatusReady     PlatformOrderStatus = "READY"
	OrderStatusPickedUp  PlatformOrderStatus = "PICKED_UP"
	OrderStatusDelivered PlatformOrderStatus = "DELIVERED"
	OrderStatusCancelled PlatformOrderStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s PlatformOrderStatus) IsValid() bool {
	switch s {
	case OrderStatusReceived, OrderStatusAccepted, OrderStatusRejected,
		OrderStatusPreparing, OrderStatusReady, OrderStatusPickedUp,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsFinal returns true when no further transitions are expected
func (s PlatformOrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusRejected, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s PlatformOrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of a sync operation
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// IsValid checks if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed:
		return true
	}
	return false
}

// String returns the string representation
func (s SyncStatus) String() string {
	return string(s)
}

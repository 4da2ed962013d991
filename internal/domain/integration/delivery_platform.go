package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Normalized Order Value Objects
// ---------------------------------------------------------------------------

// PlatformOrder is the normalized order shape every adapter produces from an
// inbound webhook or a poll result. It is immutable after normalization;
// status transitions are tracked by the order pipeline, not by mutating this
// value.
type PlatformOrder struct {
	// PlatformOrderID is the order's unique ID on the platform
	PlatformOrderID string
	// PlatformOrderNumber is the human-facing order number shown to couriers
	PlatformOrderNumber string
	// Platform identifies the source platform
	Platform PlatformCode
	// Status is the normalized order status
	Status PlatformOrderStatus
	// RawStatus is the platform's own status string, kept for diagnostics
	RawStatus string
	// Customer information
	CustomerName  string
	CustomerPhone string
	// Delivery information
	DeliveryAddress string
	DeliveryNotes   string
	// Items in the order
	Items []PlatformOrderItem
	// Financials
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	// IsPrepaid indicates the platform collected payment online
	IsPrepaid bool
	// PaymentMethod is the platform's payment method label
	PaymentMethod string
	// PlacedAt is when the customer placed the order on the platform
	PlacedAt time.Time
	// RawData is the untouched platform payload, retained for audit
	RawData map[string]any
}

// PlatformOrderItem represents a line item in a normalized order
type PlatformOrderItem struct {
	// PlatformProductID is the product ID on the platform
	PlatformProductID string
	// Name is the product name as sent by the platform
	Name string
	// Quantity ordered
	Quantity int
	// UnitPrice per item
	UnitPrice decimal.Decimal
	// TotalPrice for the line including modifiers
	TotalPrice decimal.Decimal
	// Note is the item-level customer note
	Note string
	// Modifiers selected for this item
	Modifiers []PlatformOrderModifier
}

// PlatformOrderModifier represents a selected modifier on an order item
type PlatformOrderModifier struct {
	// PlatformModifierID is the modifier ID on the platform
	PlatformModifierID string
	// Name of the modifier
	Name string
	// Price delta contributed by this modifier
	Price decimal.Decimal
	// Quantity of the modifier, usually 1
	Quantity int
}

// Validate performs basic validation of a normalized order
func (o *PlatformOrder) Validate() error {
	if o.PlatformOrderID == "" {
		return ErrInvalidWebhookPayload
	}
	if !o.Platform.IsValid() {
		return ErrPlatformNotSupported
	}
	if !o.Status.IsValid() {
		return ErrInvalidWebhookPayload
	}
	return nil
}

// ---------------------------------------------------------------------------
// Outbound Menu Sync Shapes
// ---------------------------------------------------------------------------

// ModifierSelectionType constrains how many modifiers a group allows
type ModifierSelectionType string

const (
	SelectionTypeSingle   ModifierSelectionType = "SINGLE"
	SelectionTypeMultiple ModifierSelectionType = "MULTIPLE"
)

// ProductSync is the internal menu shape handed to adapters for outbound sync
type ProductSync struct {
	// LocalProductID is our internal product ID
	LocalProductID uuid.UUID
	// PlatformProductID is the product's ID on the platform, empty when the
	// product has never been pushed
	PlatformProductID string
	// Name of the product
	Name string
	// Description shown to the customer
	Description string
	// Price in the tenant's currency, already multiplied by the mapping's
	// price multiplier
	Price decimal.Decimal
	// CategoryID links to a CategorySync entry
	CategoryID uuid.UUID
	// IsAvailable marks whether the product can currently be ordered
	IsAvailable bool
	// ImageURL is an optional product image
	ImageURL string
	// ModifierGroups attached to the product
	ModifierGroups []ModifierGroupSync
}

// ModifierGroupSync describes a group of selectable modifiers
type ModifierGroupSync struct {
	LocalGroupID    uuid.UUID
	PlatformGroupID string
	Name            string
	SelectionType   ModifierSelectionType
	MinSelections   int
	// MaxSelections is nil for unbounded MULTIPLE groups
	MaxSelections *int
	IsRequired    bool
	Modifiers     []ModifierSync
}

// ModifierSync describes a single modifier option
type ModifierSync struct {
	LocalModifierID    uuid.UUID
	PlatformModifierID string
	Name               string
	Price              decimal.Decimal
	IsAvailable        bool
}

// CategorySync describes a menu category
type CategorySync struct {
	LocalCategoryID    uuid.UUID
	PlatformCategoryID string
	Name               string
	SortOrder          int
}

// ---------------------------------------------------------------------------
// Operation Results
// ---------------------------------------------------------------------------

// ConnectionTestResult reports the outcome of a credential connectivity check
type ConnectionTestResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	LatencyMS int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// MenuSyncError is a per-item failure inside a menu sync batch
type MenuSyncError struct {
	// ProductID is the local product the failure belongs to; modifier
	// failures reference their parent product
	ProductID uuid.UUID `json:"product_id"`
	Error     string    `json:"error"`
}

// MenuSyncResult aggregates per-item outcomes of a menu sync. One failing
// product never aborts the batch; it lands in Errors instead. Every entry in
// Errors increments exactly one of FailedProducts or FailedModifiers, so
// FailedProducts + FailedModifiers == len(Errors).
type MenuSyncResult struct {
	Success         bool            `json:"success"`
	SyncedProducts  int             `json:"synced_products"`
	FailedProducts  int             `json:"failed_products"`
	SyncedModifiers int             `json:"synced_modifiers"`
	FailedModifiers int             `json:"failed_modifiers"`
	Errors          []MenuSyncError `json:"errors,omitempty"`
	SyncedAt        time.Time       `json:"synced_at"`
}

// AddProductFailure records a product-level failure
func (r *MenuSyncResult) AddProductFailure(productID uuid.UUID, errMsg string) {
	r.FailedProducts++
	r.Errors = append(r.Errors, MenuSyncError{ProductID: productID, Error: errMsg})
}

// AddModifierFailure records a modifier failure under its parent product
func (r *MenuSyncResult) AddModifierFailure(productID uuid.UUID, errMsg string) {
	r.FailedModifiers++
	r.Errors = append(r.Errors, MenuSyncError{ProductID: productID, Error: errMsg})
}

// Resolve finalizes the aggregate success flag
func (r *MenuSyncResult) Resolve() {
	r.Success = len(r.Errors) == 0
	r.SyncedAt = time.Now()
}

// Status maps the aggregate outcome to a SyncStatus
func (r *MenuSyncResult) Status() SyncStatus {
	switch {
	case len(r.Errors) == 0:
		return SyncStatusSuccess
	case r.SyncedProducts > 0 || r.SyncedModifiers > 0:
		return SyncStatusPartial
	default:
		return SyncStatusFailed
	}
}

// OrderAcceptResult reports the outcome of accepting an order
type OrderAcceptResult struct {
	Success           bool   `json:"success"`
	EstimatedPrepTime int    `json:"estimated_prep_time,omitempty"`
	Message           string `json:"message,omitempty"`
}

// OrderRejectResult reports the outcome of rejecting an order
type OrderRejectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OrderStatusUpdateResult reports the outcome of pushing a status update
type OrderStatusUpdateResult struct {
	Success   bool                `json:"success"`
	NewStatus PlatformOrderStatus `json:"new_status"`
	Message   string              `json:"message,omitempty"`
}

// RestaurantStatus reflects platform-side availability of the restaurant
type RestaurantStatus struct {
	IsOpen       bool       `json:"is_open"`
	ClosedReason string     `json:"closed_reason,omitempty"`
	NextOpenTime *time.Time `json:"next_open_time,omitempty"`
}

// ---------------------------------------------------------------------------
// DeliveryPlatform Port
// ---------------------------------------------------------------------------

// WebhookRequest carries everything an adapter needs to verify and parse an
// inbound webhook: the raw body exactly as received, the request headers, and
// the remote address for optional IP allowlisting.
type WebhookRequest struct {
	Body     []byte
	Headers  map[string]string
	SourceIP string
}

// Header returns a header value by canonical name, tolerating lowercase keys
func (w *WebhookRequest) Header(name string) string {
	if v, ok := w.Headers[name]; ok {
		return v
	}
	for k, v := range w.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// DeliveryPlatform is the uniform contract every platform adapter satisfies.
// The rest of the system never branches on platform type outside the adapter.
//
// Lifecycle: an adapter instance starts unbound. SetTenantContext loads the
// tenant's credentials and binds the instance to that tenant; every other
// method fails with ErrTenantContextNotSet until then. Methods that reach the
// network additionally require a configured credential set and fail with
// ErrPlatformNotConfigured otherwise.
type DeliveryPlatform interface {
	// Platform returns the platform this adapter serves
	Platform() PlatformCode

	// SetTenantContext binds the adapter to one tenant's credentials.
	// Instances bound to different tenants share no mutable state.
	SetTenantContext(ctx context.Context, tenantID uuid.UUID) error

	// TenantID returns the bound tenant, or uuid.Nil when unbound
	TenantID() uuid.UUID

	// IsConfigured reports whether the bound tenant has usable credentials
	IsConfigured() bool

	// GetCredentials returns the bound tenant's credentials with secrets
	// redacted, or nil when unbound or unconfigured
	GetCredentials() *PlatformCredentials

	// TestConnection verifies the credentials against the platform API
	TestConnection(ctx context.Context) (*ConnectionTestResult, error)

	// AcceptOrder confirms an incoming order. Accepting an already-accepted
	// order is not a hard failure; adapters translate the platform's
	// conflict response into a successful result with a message.
	AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*OrderAcceptResult, error)

	// RejectOrder declines an incoming order. The reason is mandatory and
	// forwarded verbatim where the platform supports it.
	RejectOrder(ctx context.Context, platformOrderID string, reason string) (*OrderRejectResult, error)

	// UpdateOrderStatus pushes a normalized status to the platform,
	// translated into the platform's own vocabulary
	UpdateOrderStatus(ctx context.Context, platformOrderID string, status PlatformOrderStatus) (*OrderStatusUpdateResult, error)

	// GetOrderStatus returns the platform's raw status string for diagnostics
	GetOrderStatus(ctx context.Context, platformOrderID string) (string, error)

	// SyncMenu pushes a full or partial menu. Per-item failures are
	// aggregated into the result, never escalated to a batch error.
	SyncMenu(ctx context.Context, products []ProductSync, categories []CategorySync) (*MenuSyncResult, error)

	// SyncProductAvailability flips a single product's availability.
	// Near-real-time path, independent of full menu syncs.
	SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error

	// SyncProductPrice updates a single product's price
	SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error

	// SetRestaurantOpen resumes ordering on the platform
	SetRestaurantOpen(ctx context.Context) error

	// SetRestaurantClosed pauses ordering on the platform
	SetRestaurantClosed(ctx context.Context, reason string) error

	// GetRestaurantStatus reads platform-side truth where the platform
	// exposes a status endpoint
	GetRestaurantStatus(ctx context.Context) (*RestaurantStatus, error)

	// FetchNewOrders polls for orders created since the given time.
	// Safe to call with overlapping windows; duplicate suppression is the
	// caller's responsibility, keyed on PlatformOrderID.
	FetchNewOrders(ctx context.Context, since time.Time) ([]PlatformOrder, error)

	// VerifyWebhook checks the request signature with a constant-time
	// comparison. Returns false for any malformed or wrong signature; a
	// missing configured secret passes with a logged warning.
	VerifyWebhook(req *WebhookRequest) bool

	// ParseWebhookPayload normalizes a webhook body into a PlatformOrder.
	// Returns (nil, nil) for valid-but-irrelevant events such as pings, and
	// an error wrapping ErrInvalidWebhookPayload for malformed bodies.
	ParseWebhookPayload(payload []byte) (*PlatformOrder, error)
}

// ---------------------------------------------------------------------------
// PlatformRegistry
// ---------------------------------------------------------------------------

// PlatformRegistry resolves a tenant-bound adapter for a platform. This is
// the single dispatch site over platform identity; resolution happens once
// per tenant request and the returned adapter is isolated to that tenant.
type PlatformRegistry interface {
	// Resolve returns an adapter bound to the tenant's credentials.
	// Returns ErrPlatformNotSupported for unknown codes.
	Resolve(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) (DeliveryPlatform, error)

	// SupportedPlatforms lists every platform the registry can resolve
	SupportedPlatforms() []PlatformCode
}

// ---------------------------------------------------------------------------
// Credential Repository
// ---------------------------------------------------------------------------

// CredentialRepository persists per-tenant platform credentials
type CredentialRepository interface {
	// Find returns the credentials for a tenant and platform, or
	// ErrPlatformNotConfigured when none are stored
	Find(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) (*PlatformCredentials, error)

	// FindByTenant returns all stored credentials for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]PlatformCredentials, error)

	// FindPollingEnabled returns credentials across all tenants for
	// platforms with polling enabled
	FindPollingEnabled(ctx context.Context) ([]PlatformCredentials, error)

	// Save creates or overwrites the credentials for a tenant and platform.
	// Credentials are never deleted, only overwritten.
	Save(ctx context.Context, creds *PlatformCredentials) error
}

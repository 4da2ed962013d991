package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// MockDeliveryPlatform
// ---------------------------------------------------------------------------

type MockDeliveryPlatform struct {
	mock.Mock
	platform integration.PlatformCode
	tenantID uuid.UUID
}

func NewMockDeliveryPlatform(platform integration.PlatformCode, tenantID uuid.UUID) *MockDeliveryPlatform {
	return &MockDeliveryPlatform{platform: platform, tenantID: tenantID}
}

func (m *MockDeliveryPlatform) Platform() integration.PlatformCode { return m.platform }

func (m *MockDeliveryPlatform) SetTenantContext(ctx context.Context, tenantID uuid.UUID) error {
	m.tenantID = tenantID
	return nil
}

func (m *MockDeliveryPlatform) TenantID() uuid.UUID { return m.tenantID }

func (m *MockDeliveryPlatform) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockDeliveryPlatform) GetCredentials() *integration.PlatformCredentials {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*integration.PlatformCredentials)
}

func (m *MockDeliveryPlatform) TestConnection(ctx context.Context) (*integration.ConnectionTestResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ConnectionTestResult), args.Error(1)
}

func (m *MockDeliveryPlatform) AcceptOrder(ctx context.Context, platformOrderID string, estimatedPrepTime int) (*integration.OrderAcceptResult, error) {
	args := m.Called(ctx, platformOrderID, estimatedPrepTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderAcceptResult), args.Error(1)
}

func (m *MockDeliveryPlatform) RejectOrder(ctx context.Context, platformOrderID string, reason string) (*integration.OrderRejectResult, error) {
	args := m.Called(ctx, platformOrderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderRejectResult), args.Error(1)
}

func (m *MockDeliveryPlatform) UpdateOrderStatus(ctx context.Context, platformOrderID string, status integration.PlatformOrderStatus) (*integration.OrderStatusUpdateResult, error) {
	args := m.Called(ctx, platformOrderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderStatusUpdateResult), args.Error(1)
}

func (m *MockDeliveryPlatform) GetOrderStatus(ctx context.Context, platformOrderID string) (string, error) {
	args := m.Called(ctx, platformOrderID)
	return args.String(0), args.Error(1)
}

func (m *MockDeliveryPlatform) SyncMenu(ctx context.Context, products []integration.ProductSync, categories []integration.CategorySync) (*integration.MenuSyncResult, error) {
	args := m.Called(ctx, products, categories)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MenuSyncResult), args.Error(1)
}

func (m *MockDeliveryPlatform) SyncProductAvailability(ctx context.Context, platformProductID string, isAvailable bool) error {
	args := m.Called(ctx, platformProductID, isAvailable)
	return args.Error(0)
}

func (m *MockDeliveryPlatform) SyncProductPrice(ctx context.Context, platformProductID string, price decimal.Decimal) error {
	args := m.Called(ctx, platformProductID, price)
	return args.Error(0)
}

func (m *MockDeliveryPlatform) SetRestaurantOpen(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDeliveryPlatform) SetRestaurantClosed(ctx context.Context, reason string) error {
	args := m.Called(ctx, reason)
	return args.Error(0)
}

func (m *MockDeliveryPlatform) GetRestaurantStatus(ctx context.Context) (*integration.RestaurantStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RestaurantStatus), args.Error(1)
}

func (m *MockDeliveryPlatform) FetchNewOrders(ctx context.Context, since time.Time) ([]integration.PlatformOrder, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformOrder), args.Error(1)
}

func (m *MockDeliveryPlatform) VerifyWebhook(req *integration.WebhookRequest) bool {
	args := m.Called(req)
	return args.Bool(0)
}

func (m *MockDeliveryPlatform) ParseWebhookPayload(payload []byte) (*integration.PlatformOrder, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformOrder), args.Error(1)
}

var _ integration.DeliveryPlatform = (*MockDeliveryPlatform)(nil)

// ---------------------------------------------------------------------------
// MockPlatformRegistry
// ---------------------------------------------------------------------------

type MockPlatformRegistry struct {
	mock.Mock
}

func (m *MockPlatformRegistry) Resolve(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (integration.DeliveryPlatform, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.DeliveryPlatform), args.Error(1)
}

func (m *MockPlatformRegistry) SupportedPlatforms() []integration.PlatformCode {
	return integration.AllPlatformCodes()
}

var _ integration.PlatformRegistry = (*MockPlatformRegistry)(nil)

// ---------------------------------------------------------------------------
// MockPlatformOrderRepository
// ---------------------------------------------------------------------------

type MockPlatformOrderRepository struct {
	mock.Mock
}

func (m *MockPlatformOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.PlatformOrderRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformOrderRecord), args.Error(1)
}

func (m *MockPlatformOrderRepository) FindByPlatformOrderID(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, platformOrderID string) (*integration.PlatformOrderRecord, error) {
	args := m.Called(ctx, tenantID, platform, platformOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformOrderRecord), args.Error(1)
}

func (m *MockPlatformOrderRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.PlatformOrderFilter) ([]integration.PlatformOrderRecord, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformOrderRecord), args.Error(1)
}

func (m *MockPlatformOrderRepository) FindActiveSince(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, since time.Time) ([]integration.PlatformOrderRecord, error) {
	args := m.Called(ctx, tenantID, platform, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformOrderRecord), args.Error(1)
}

func (m *MockPlatformOrderRepository) Count(ctx context.Context, tenantID uuid.UUID, filter integration.PlatformOrderFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatformOrderRepository) Save(ctx context.Context, record *integration.PlatformOrderRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

var _ integration.PlatformOrderRepository = (*MockPlatformOrderRepository)(nil)

// ---------------------------------------------------------------------------
// MockCredentialRepository
// ---------------------------------------------------------------------------

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Find(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (*integration.PlatformCredentials, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformCredentials), args.Error(1)
}

func (m *MockCredentialRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.PlatformCredentials, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformCredentials), args.Error(1)
}

func (m *MockCredentialRepository) FindPollingEnabled(ctx context.Context) ([]integration.PlatformCredentials, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformCredentials), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, creds *integration.PlatformCredentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

var _ integration.CredentialRepository = (*MockCredentialRepository)(nil)

// ---------------------------------------------------------------------------
// MockDeadLetterRepository
// ---------------------------------------------------------------------------

type MockDeadLetterRepository struct {
	mock.Mock
}

func (m *MockDeadLetterRepository) Save(ctx context.Context, dl *integration.WebhookDeadLetter) error {
	args := m.Called(ctx, dl)
	return args.Error(0)
}

func (m *MockDeadLetterRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]integration.WebhookDeadLetter, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.WebhookDeadLetter), args.Error(1)
}

func (m *MockDeadLetterRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.WebhookDeadLetter, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.WebhookDeadLetter), args.Error(1)
}

func (m *MockDeadLetterRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

var _ integration.DeadLetterRepository = (*MockDeadLetterRepository)(nil)

// ---------------------------------------------------------------------------
// MockSyncLogRepository
// ---------------------------------------------------------------------------

type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockSyncLogRepository) FindLatest(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, op integration.SyncOperation) (*integration.SyncLog, error) {
	args := m.Called(ctx, tenantID, platform, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncLog), args.Error(1)
}

func (m *MockSyncLogRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLog, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncLog), args.Error(1)
}

func (m *MockSyncLogRepository) CountPendingItems(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (int, error) {
	args := m.Called(ctx, tenantID, platform)
	return args.Int(0), args.Error(1)
}

var _ integration.SyncLogRepository = (*MockSyncLogRepository)(nil)

// ---------------------------------------------------------------------------
// In-memory idempotency store for tests
// ---------------------------------------------------------------------------

type fakeIdempotencyStore struct {
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return f.seen[key], nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }

var _ shared.IdempotencyStore = (*fakeIdempotencyStore)(nil)

// ---------------------------------------------------------------------------
// MockMenuProvider
// ---------------------------------------------------------------------------

type MockMenuProvider struct {
	mock.Mock
}

func (m *MockMenuProvider) GetMenu(ctx context.Context, tenantID uuid.UUID) ([]integration.ProductSync, []integration.CategorySync, error) {
	args := m.Called(ctx, tenantID)
	var products []integration.ProductSync
	var categories []integration.CategorySync
	if args.Get(0) != nil {
		products = args.Get(0).([]integration.ProductSync)
	}
	if args.Get(1) != nil {
		categories = args.Get(1).([]integration.CategorySync)
	}
	return products, categories, args.Error(2)
}

func (m *MockMenuProvider) GetProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]integration.ProductSync, error) {
	args := m.Called(ctx, tenantID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductSync), args.Error(1)
}

var _ MenuProvider = (*MockMenuProvider)(nil)

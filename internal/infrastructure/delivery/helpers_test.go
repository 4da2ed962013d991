package delivery

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/webhook"
)

// ============================================================================
// Mocks
// ============================================================================

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

// ============================================================================
// Fixtures
// ============================================================================

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func testDependencies(repo integration.CredentialRepository) Dependencies {
	logger := zap.NewNop()
	return Dependencies{
		Credentials: repo,
		Verifier:    webhook.NewVerifier(logger),
		IPAllowlist: webhook.NewIPAllowlist(logger),
		HTTPClient:  &http.Client{Timeout: 5 * time.Second},
		Logger:      logger,
	}
}

func trendyolTestCredentials(tenantID uuid.UUID) *integration.PlatformCredentials {
	return &integration.PlatformCredentials{
		SchemaVersion:   integration.CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        integration.PlatformCodeTrendyol,
		IsConfigured:    true,
		DefaultPrepTime: 30,
		Trendyol: &integration.TrendyolCredentials{
			APIKey:        "ty-key",
			APISecret:     "ty-secret",
			StoreID:       "store-42",
			WebhookSecret: "ty-webhook-secret",
		},
		UpdatedAt: time.Now(),
	}
}

func getirTestCredentials(tenantID uuid.UUID) *integration.PlatformCredentials {
	return &integration.PlatformCredentials{
		SchemaVersion:   integration.CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        integration.PlatformCodeGetir,
		IsConfigured:    true,
		DefaultPrepTime: 25,
		Getir: &integration.GetirCredentials{
			APIKey:        "getir-key",
			RestaurantID:  "rest-7",
			WebhookSecret: "getir-webhook-secret",
		},
		UpdatedAt: time.Now(),
	}
}

func yemeksepetiTestCredentials(tenantID uuid.UUID) *integration.PlatformCredentials {
	return &integration.PlatformCredentials{
		SchemaVersion:   integration.CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        integration.PlatformCodeYemeksepeti,
		IsConfigured:    true,
		DefaultPrepTime: 20,
		Yemeksepeti: &integration.YemeksepetiCredentials{
			ClientID:      "ys-client",
			ClientSecret:  "ys-secret",
			VendorID:      "vendor-12",
			WebhookSecret: "ys-webhook-secret",
		},
		UpdatedAt: time.Now(),
	}
}

func migrosTestCredentials(tenantID uuid.UUID) *integration.PlatformCredentials {
	return &integration.PlatformCredentials{
		SchemaVersion:   integration.CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        integration.PlatformCodeMigros,
		IsConfigured:    true,
		DefaultPrepTime: 30,
		Migros: &integration.MigrosCredentials{
			ClientID:      "mg-client",
			ClientSecret:  "mg-secret",
			StoreCode:     "store-301",
			WebhookSecret: "mg-webhook-secret",
		},
		UpdatedAt: time.Now(),
	}
}

func fuudyTestCredentials(tenantID uuid.UUID) *integration.PlatformCredentials {
	return &integration.PlatformCredentials{
		SchemaVersion:   integration.CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        integration.PlatformCodeFuudy,
		IsConfigured:    true,
		DefaultPrepTime: 30,
		Fuudy: &integration.FuudyCredentials{
			APIKey:        "fuudy-key",
			RestaurantID:  "rest-9",
			WebhookSecret: "fuudy-webhook-secret",
			IPAllowlist:   []string{"198.51.100.0/24"},
		},
		UpdatedAt: time.Now(),
	}
}

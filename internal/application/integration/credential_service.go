package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

// CredentialService manages per-tenant platform credentials and the
// platform-level controls that ride on them.
type CredentialService struct {
	registry    integration.PlatformRegistry
	credentials integration.CredentialRepository
	logger      *zap.Logger
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(
	registry integration.PlatformRegistry,
	credentials integration.CredentialRepository,
	logger *zap.Logger,
) *CredentialService {
	return &CredentialService{
		registry:    registry,
		credentials: credentials,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ConfigurePlatformRequest carries the credential payload for one platform.
// Exactly one variant must be set and it must match the target platform.
type ConfigurePlatformRequest struct {
	AutoAccept      bool `json:"auto_accept"`
	DefaultPrepTime int  `json:"default_prep_time" validate:"omitempty,min=1,max=120"`
	PollingEnabled  bool `json:"polling_enabled"`

	Trendyol    *integration.TrendyolCredentials    `json:"trendyol,omitempty"`
	Yemeksepeti *integration.YemeksepetiCredentials `json:"yemeksepeti,omitempty"`
	Getir       *integration.GetirCredentials       `json:"getir,omitempty"`
	Migros      *integration.MigrosCredentials      `json:"migros,omitempty"`
	Fuudy       *integration.FuudyCredentials       `json:"fuudy,omitempty"`
}

// ConfigurePlatform stores a tenant's credentials for one platform,
// overwriting any previous record. The polling high-water mark of the
// previous record survives the overwrite. Returns the stored record with
// secrets redacted.
func (s *CredentialService) ConfigurePlatform(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	req ConfigurePlatformRequest,
) (*integration.PlatformCredentials, error) {
	creds := integration.NewPlatformCredentials(tenantID, platform)
	creds.AutoAccept = req.AutoAccept
	if req.DefaultPrepTime > 0 {
		creds.DefaultPrepTime = req.DefaultPrepTime
	}
	creds.PollingEnabled = req.PollingEnabled
	creds.Trendyol = req.Trendyol
	creds.Yemeksepeti = req.Yemeksepeti
	creds.Getir = req.Getir
	creds.Migros = req.Migros
	creds.Fuudy = req.Fuudy
	creds.IsConfigured = true

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	// carry the polling mark across reconfiguration so the next poll window
	// does not re-cover days of history
	if existing, err := s.credentials.Find(ctx, tenantID, platform); err == nil {
		creds.LastPolledAt = existing.LastPolledAt
	} else if !errors.Is(err, integration.ErrPlatformNotConfigured) {
		return nil, err
	}

	if err := s.credentials.Save(ctx, creds); err != nil {
		return nil, err
	}

	s.logger.Info("platform credentials configured",
		zap.String("platform", platform.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("auto_accept", creds.AutoAccept),
		zap.Bool("polling_enabled", creds.PollingEnabled))

	return creds.Redacted(), nil
}

// GetCredentials returns a tenant's credentials for one platform with
// secrets redacted
func (s *CredentialService) GetCredentials(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
) (*integration.PlatformCredentials, error) {
	creds, err := s.credentials.Find(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	return creds.Redacted(), nil
}

// ListCredentials returns all of a tenant's configured platforms, redacted
func (s *CredentialService) ListCredentials(ctx context.Context, tenantID uuid.UUID) ([]integration.PlatformCredentials, error) {
	all, err := s.credentials.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	redacted := make([]integration.PlatformCredentials, len(all))
	for i := range all {
		redacted[i] = *all[i].Redacted()
	}
	return redacted, nil
}

// SetPollingEnabled toggles the polling fallback for one platform
func (s *CredentialService) SetPollingEnabled(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	enabled bool,
) error {
	creds, err := s.credentials.Find(ctx, tenantID, platform)
	if err != nil {
		return err
	}
	creds.PollingEnabled = enabled
	return s.credentials.Save(ctx, creds)
}

// TestConnection verifies the stored credentials against the platform API
func (s *CredentialService) TestConnection(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
) (*integration.ConnectionTestResult, error) {
	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	return adapter.TestConnection(ctx)
}

// ---------------------------------------------------------------------------
// Restaurant Controls
// ---------------------------------------------------------------------------

// SetRestaurantOpen resumes ordering on one platform
func (s *CredentialService) SetRestaurantOpen(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) error {
	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return err
	}
	if err := adapter.SetRestaurantOpen(ctx); err != nil {
		return err
	}
	s.logger.Info("restaurant opened on platform",
		zap.String("platform", platform.String()),
		zap.String("tenant_id", tenantID.String()))
	return nil
}

// SetRestaurantClosed pauses ordering on one platform
func (s *CredentialService) SetRestaurantClosed(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, reason string) error {
	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return err
	}
	if err := adapter.SetRestaurantClosed(ctx, reason); err != nil {
		return err
	}
	s.logger.Info("restaurant closed on platform",
		zap.String("platform", platform.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("reason", reason))
	return nil
}

// GetRestaurantStatus reads the platform-side restaurant status
func (s *CredentialService) GetRestaurantStatus(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (*integration.RestaurantStatus, error) {
	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	return adapter.GetRestaurantStatus(ctx)
}

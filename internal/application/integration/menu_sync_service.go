package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/telemetry"
)

// MenuProvider supplies the tenant's local menu in outbound sync shapes.
// Prices are local; the per-mapping multiplier is applied by the service.
type MenuProvider interface {
	// GetMenu returns the tenant's full menu
	GetMenu(ctx context.Context, tenantID uuid.UUID) ([]integration.ProductSync, []integration.CategorySync, error)

	// GetProducts returns specific products for a partial sync
	GetProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]integration.ProductSync, error)
}

// MenuSyncService pushes menu, price and availability changes out to the
// delivery platforms, driven by the tenant's product mappings.
type MenuSyncService struct {
	registry    integration.PlatformRegistry
	mappingRepo integration.ProductMappingRepository
	syncLogs    integration.SyncLogRepository
	credentials integration.CredentialRepository
	menu        MenuProvider
	logger      *zap.Logger
}

// NewMenuSyncService creates a new MenuSyncService
func NewMenuSyncService(
	registry integration.PlatformRegistry,
	mappingRepo integration.ProductMappingRepository,
	syncLogs integration.SyncLogRepository,
	credentials integration.CredentialRepository,
	menu MenuProvider,
	logger *zap.Logger,
) *MenuSyncService {
	return &MenuSyncService{
		registry:    registry,
		mappingRepo: mappingRepo,
		syncLogs:    syncLogs,
		credentials: credentials,
		menu:        menu,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Menu Sync
// ---------------------------------------------------------------------------

// TriggerMenuSyncRequest selects what to sync. FullSync pushes the whole
// mapped menu; otherwise only the listed products go out.
type TriggerMenuSyncRequest struct {
	FullSync   bool        `json:"full_sync"`
	ProductIDs []uuid.UUID `json:"product_ids,omitempty"`
}

// TriggerMenuSync pushes the tenant's menu to one platform. Only mapped,
// sync-enabled products are sent; each product's price is scaled by its
// mapping's multiplier. Per-item failures never abort the batch.
func (s *MenuSyncService) TriggerMenuSync(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	req TriggerMenuSyncRequest,
) (*integration.MenuSyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "menu_sync", "trigger",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
		telemetry.WithAttribute("full_sync", req.FullSync))
	defer span.End()

	started := time.Now()

	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	mappings, err := s.mappingRepo.FindSyncEnabled(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	byLocalID := make(map[uuid.UUID]*integration.ProductMapping, len(mappings))
	for i := range mappings {
		byLocalID[mappings[i].LocalProductID] = &mappings[i]
	}

	var (
		products   []integration.ProductSync
		categories []integration.CategorySync
	)
	if req.FullSync {
		products, categories, err = s.menu.GetMenu(ctx, tenantID)
	} else {
		products, err = s.menu.GetProducts(ctx, tenantID, req.ProductIDs)
	}
	if err != nil {
		return nil, err
	}

	// keep only mapped products, with platform IDs and scaled prices applied
	outbound := make([]integration.ProductSync, 0, len(products))
	for _, p := range products {
		mapping, ok := byLocalID[p.LocalProductID]
		if !ok {
			continue
		}
		p.PlatformProductID = mapping.PlatformProductID
		p.Price = mapping.PlatformPrice(p.Price)
		outbound = append(outbound, p)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrItemCount, len(outbound))

	result, err := adapter.SyncMenu(ctx, outbound, categories)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpMenuSync,
			integration.SyncStatusFailed, started, len(outbound), err.Error())
		s.markMappings(ctx, outbound, byLocalID, failedProductIDs(nil), err.Error())
		return nil, err
	}

	s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpMenuSync,
		result.Status(), started, result.SyncedProducts, firstError(result))
	s.markMappings(ctx, outbound, byLocalID, failedProductIDs(result), firstError(result))

	s.logger.Info("menu sync completed",
		zap.String("platform", platform.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("full_sync", req.FullSync),
		zap.Int("synced_products", result.SyncedProducts),
		zap.Int("failed_products", result.FailedProducts),
		zap.Int("failed_modifiers", result.FailedModifiers))

	return result, nil
}

// ---------------------------------------------------------------------------
// Single-Item Sync
// ---------------------------------------------------------------------------

// SyncAvailability flips one product's availability on one platform.
// Near-real-time path for stock-outs.
func (s *MenuSyncService) SyncAvailability(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	localProductID uuid.UUID,
	isAvailable bool,
) error {
	started := time.Now()

	mapping, err := s.mappingRepo.FindByLocalProductAndPlatform(ctx, tenantID, localProductID, platform)
	if err != nil {
		return err
	}

	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return err
	}

	if err := adapter.SyncProductAvailability(ctx, mapping.PlatformProductID, isAvailable); err != nil {
		mapping.RecordSyncFailure(err.Error())
		s.saveMapping(ctx, mapping)
		s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpAvailabilitySync,
			integration.SyncStatusFailed, started, 1, err.Error())
		return err
	}

	mapping.RecordSyncSuccess()
	s.saveMapping(ctx, mapping)
	s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpAvailabilitySync,
		integration.SyncStatusSuccess, started, 1, "")
	return nil
}

// SyncPrice pushes one product's local price to one platform, scaled by the
// mapping's multiplier.
func (s *MenuSyncService) SyncPrice(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	localProductID uuid.UUID,
	localPrice decimal.Decimal,
) error {
	started := time.Now()

	mapping, err := s.mappingRepo.FindByLocalProductAndPlatform(ctx, tenantID, localProductID, platform)
	if err != nil {
		return err
	}

	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return err
	}

	platformPrice := mapping.PlatformPrice(localPrice)
	if err := adapter.SyncProductPrice(ctx, mapping.PlatformProductID, platformPrice); err != nil {
		mapping.RecordSyncFailure(err.Error())
		s.saveMapping(ctx, mapping)
		s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpPriceSync,
			integration.SyncStatusFailed, started, 1, err.Error())
		return err
	}

	mapping.RecordSyncSuccess()
	s.saveMapping(ctx, mapping)
	s.recordSyncLog(ctx, tenantID, platform, integration.SyncOpPriceSync,
		integration.SyncStatusSuccess, started, 1, "")
	return nil
}

// ---------------------------------------------------------------------------
// Sync Status
// ---------------------------------------------------------------------------

// SyncStatusReport is the operator-facing view of one platform's sync health
type SyncStatusReport struct {
	Platform       integration.PlatformCode `json:"platform"`
	IsConfigured   bool                     `json:"is_configured"`
	SyncEnabled    bool                     `json:"sync_enabled"`
	MappedProducts int64                    `json:"mapped_products"`
	LastSyncedAt   *time.Time               `json:"last_synced_at,omitempty"`
	LastSyncStatus integration.SyncStatus   `json:"last_sync_status"`
	LastSyncError  string                   `json:"last_sync_error,omitempty"`
	LastItemCount  int                      `json:"last_item_count"`
	PendingItems   int                      `json:"pending_items"`
}

// GetSyncStatus assembles the sync health report for one platform from the
// stored credentials, mappings and the latest menu sync log.
func (s *MenuSyncService) GetSyncStatus(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
) (*SyncStatusReport, error) {
	report := &SyncStatusReport{
		Platform:       platform,
		LastSyncStatus: integration.SyncStatusPending,
	}

	creds, err := s.credentials.Find(ctx, tenantID, platform)
	switch {
	case err == nil:
		report.IsConfigured = creds.IsConfigured
	case errors.Is(err, integration.ErrPlatformNotConfigured):
		// report stays unconfigured
	default:
		return nil, err
	}

	enabled := true
	count, err := s.mappingRepo.Count(ctx, tenantID, integration.ProductMappingFilter{
		Platform:    &platform,
		SyncEnabled: &enabled,
	})
	if err != nil {
		return nil, err
	}
	report.MappedProducts = count
	report.SyncEnabled = count > 0

	latest, err := s.syncLogs.FindLatest(ctx, tenantID, platform, integration.SyncOpMenuSync)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		at := latest.CreatedAt
		report.LastSyncedAt = &at
		report.LastSyncStatus = latest.Status
		report.LastSyncError = latest.ErrorMsg
		report.LastItemCount = latest.ItemCount
	}

	pending, err := s.syncLogs.CountPendingItems(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	report.PendingItems = pending

	return report, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// markMappings updates last-sync bookkeeping on every mapping that took part
// in a batch. Failures are matched by product ID; everything else succeeded.
func (s *MenuSyncService) markMappings(
	ctx context.Context,
	outbound []integration.ProductSync,
	byLocalID map[uuid.UUID]*integration.ProductMapping,
	failed map[uuid.UUID]bool,
	errMsg string,
) {
	for _, p := range outbound {
		mapping, ok := byLocalID[p.LocalProductID]
		if !ok {
			continue
		}
		if failed == nil || failed[p.LocalProductID] {
			mapping.RecordSyncFailure(errMsg)
		} else {
			mapping.RecordSyncSuccess()
		}
		s.saveMapping(ctx, mapping)
	}
}

func (s *MenuSyncService) saveMapping(ctx context.Context, mapping *integration.ProductMapping) {
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		s.logger.Warn("failed to update mapping sync state",
			zap.String("mapping_id", mapping.ID.String()), zap.Error(err))
	}
}

func (s *MenuSyncService) recordSyncLog(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	op integration.SyncOperation,
	status integration.SyncStatus,
	started time.Time,
	itemCount int,
	errMsg string,
) {
	entry := integration.NewSyncLog(tenantID, platform, op, integration.SyncDirectionOutbound)
	entry.ItemCount = itemCount
	entry.Complete(status, time.Since(started), errMsg)
	if err := s.syncLogs.Save(ctx, entry); err != nil {
		s.logger.Warn("failed to write sync log",
			zap.String("operation", string(op)), zap.Error(err))
	}
}

// failedProductIDs indexes a result's errors by product; nil result means a
// whole-batch failure and every participant is marked failed.
func failedProductIDs(result *integration.MenuSyncResult) map[uuid.UUID]bool {
	if result == nil {
		return nil
	}
	failed := make(map[uuid.UUID]bool, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.ProductID] = true
	}
	return failed
}

func firstError(result *integration.MenuSyncResult) string {
	if result == nil || len(result.Errors) == 0 {
		return ""
	}
	return result.Errors[0].Error
}

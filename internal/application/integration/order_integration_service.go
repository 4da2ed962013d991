package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/domain/shared"
	"github.com/posbridge/backend/internal/infrastructure/telemetry"
)

// ErrWebhookVerificationFailed is returned when a webhook signature does not
// verify. The HTTP layer maps it to 401.
var ErrWebhookVerificationFailed = errors.New("integration: webhook signature verification failed")

// how long a processed platform order ID stays in the idempotency store
const idempotencyTTL = 24 * time.Hour

// LocalOrderFactory creates the internal order that fulfils an accepted
// platform order. Optional; without it accepted records carry no local link.
type LocalOrderFactory interface {
	CreateFromPlatformOrder(ctx context.Context, tenantID uuid.UUID, order *integration.PlatformOrder) (uuid.UUID, error)
}

// OrderIntegrationService owns the inbound order pipeline: webhook ingestion,
// dedup, lifecycle actions pushed back to the platforms, and reconciliation.
type OrderIntegrationService struct {
	registry    integration.PlatformRegistry
	orders      integration.PlatformOrderRepository
	credentials integration.CredentialRepository
	deadLetters integration.DeadLetterRepository
	syncLogs    integration.SyncLogRepository
	idempotency shared.IdempotencyStore
	localOrders LocalOrderFactory
	logger      *zap.Logger
}

// NewOrderIntegrationService creates a new OrderIntegrationService.
// localOrders may be nil.
func NewOrderIntegrationService(
	registry integration.PlatformRegistry,
	orders integration.PlatformOrderRepository,
	credentials integration.CredentialRepository,
	deadLetters integration.DeadLetterRepository,
	syncLogs integration.SyncLogRepository,
	idempotency shared.IdempotencyStore,
	localOrders LocalOrderFactory,
	logger *zap.Logger,
) *OrderIntegrationService {
	return &OrderIntegrationService{
		registry:    registry,
		orders:      orders,
		credentials: credentials,
		deadLetters: deadLetters,
		syncLogs:    syncLogs,
		idempotency: idempotency,
		localOrders: localOrders,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Webhook Ingestion
// ---------------------------------------------------------------------------

// WebhookProcessResult reports what happened to an inbound webhook
type WebhookProcessResult struct {
	// Ping marks a valid-but-irrelevant event; nothing was stored
	Ping bool
	// Duplicate marks an order that had already been processed
	Duplicate bool
	// DeadLettered marks a processing failure parked for retry
	DeadLettered bool
	// Record is the stored order record, nil for pings and dead letters
	Record *integration.PlatformOrderRecord
}

// ProcessWebhook runs the full inbound pipeline for one webhook request:
// verify, parse, dedup, persist. Verification and parse failures surface as
// errors for the HTTP layer to map; downstream processing failures are
// dead-lettered and reported as handled so the platform stops retrying.
func (s *OrderIntegrationService) ProcessWebhook(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	req *integration.WebhookRequest,
) (*WebhookProcessResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_integration", "process_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()))
	defer span.End()

	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !adapter.VerifyWebhook(req) {
		s.logger.Warn("webhook signature rejected",
			zap.String("platform", platform.String()),
			zap.String("tenant_id", tenantID.String()),
			zap.String("source_ip", req.SourceIP))
		telemetry.RecordError(span, ErrWebhookVerificationFailed)
		return nil, ErrWebhookVerificationFailed
	}

	order, err := adapter.ParseWebhookPayload(req.Body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if order == nil {
		telemetry.AddEvent(span, "webhook_acknowledged")
		return &WebhookProcessResult{Ping: true}, nil
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPlatformOrderID, order.PlatformOrderID)

	record, isNew, err := s.ProcessIncomingOrder(ctx, tenantID, order)
	if err != nil {
		dl := integration.NewWebhookDeadLetter(tenantID, platform, req, err)
		if saveErr := s.deadLetters.Save(ctx, dl); saveErr != nil {
			// nowhere left to park the webhook; let the platform retry
			s.logger.Error("failed to dead-letter webhook",
				zap.String("platform", platform.String()),
				zap.Error(saveErr))
			telemetry.RecordError(span, saveErr)
			return nil, err
		}
		s.logger.Warn("webhook processing failed, dead-lettered",
			zap.String("platform", platform.String()),
			zap.String("platform_order_id", order.PlatformOrderID),
			zap.String("dead_letter_id", dl.ID.String()),
			zap.Error(err))
		telemetry.AddEvent(span, "webhook_dead_lettered",
			telemetry.SpanAttrSourceID, dl.ID.String())
		return &WebhookProcessResult{DeadLettered: true}, nil
	}

	return &WebhookProcessResult{Record: record, Duplicate: !isNew}, nil
}

// ProcessIncomingOrder persists a normalized order exactly once. The second
// return value is false when the order had already been seen. Safe under
// at-least-once webhook delivery and overlapping poll windows.
func (s *OrderIntegrationService) ProcessIncomingOrder(
	ctx context.Context,
	tenantID uuid.UUID,
	order *integration.PlatformOrder,
) (*integration.PlatformOrderRecord, bool, error) {
	if err := order.Validate(); err != nil {
		return nil, false, err
	}

	key := idempotencyKey(order.Platform, order.PlatformOrderID)

	// fast path; the store is advisory, the DB lookup below is authoritative
	if processed, err := s.idempotency.IsProcessed(ctx, key); err != nil {
		s.logger.Warn("idempotency check failed, falling back to database",
			zap.String("key", key), zap.Error(err))
	} else if processed {
		record, err := s.orders.FindByPlatformOrderID(ctx, tenantID, order.Platform, order.PlatformOrderID)
		if err == nil {
			return record, false, nil
		}
		if !errors.Is(err, integration.ErrOrderNotFound) {
			return nil, false, err
		}
		// marked processed but no record; fall through and store it
	}

	existing, err := s.orders.FindByPlatformOrderID(ctx, tenantID, order.Platform, order.PlatformOrderID)
	if err == nil {
		s.markProcessed(ctx, key)
		return existing, false, nil
	}
	if !errors.Is(err, integration.ErrOrderNotFound) {
		return nil, false, err
	}

	started := time.Now()
	record := integration.NewPlatformOrderRecord(tenantID, order)
	if err := s.orders.Save(ctx, record); err != nil {
		s.recordSyncLog(ctx, tenantID, order.Platform, integration.SyncOpOrderReceived,
			integration.SyncDirectionInbound, integration.SyncStatusFailed, started, 1, err.Error())
		return nil, false, err
	}
	s.markProcessed(ctx, key)
	s.recordSyncLog(ctx, tenantID, order.Platform, integration.SyncOpOrderReceived,
		integration.SyncDirectionInbound, integration.SyncStatusSuccess, started, 1, "")

	s.logger.Info("platform order received",
		zap.String("platform", order.Platform.String()),
		zap.String("platform_order_id", order.PlatformOrderID),
		zap.String("tenant_id", tenantID.String()),
		zap.String("total", order.Total.String()))

	s.maybeAutoAccept(ctx, record)

	return record, true, nil
}

// HandlePolledOrder adapts ProcessIncomingOrder to the poll scheduler's
// handler shape; false means the order was a duplicate.
func (s *OrderIntegrationService) HandlePolledOrder(ctx context.Context, tenantID uuid.UUID, order *integration.PlatformOrder) (bool, error) {
	_, isNew, err := s.ProcessIncomingOrder(ctx, tenantID, order)
	return isNew, err
}

// ReprocessDeadLetter replays a parked webhook body through the normal
// pipeline. Signature verification is skipped; it passed at receipt.
func (s *OrderIntegrationService) ReprocessDeadLetter(ctx context.Context, dl *integration.WebhookDeadLetter) error {
	adapter, err := s.registry.Resolve(ctx, dl.TenantID, dl.Platform)
	if err != nil {
		return err
	}

	order, err := adapter.ParseWebhookPayload(dl.Payload)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}

	_, _, err = s.ProcessIncomingOrder(ctx, dl.TenantID, order)
	return err
}

// ---------------------------------------------------------------------------
// Order Actions
// ---------------------------------------------------------------------------

// AcceptOrder confirms an order on its platform. Idempotent: accepting an
// already-accepted order returns success. A non-positive prep time falls back
// to the tenant's configured default, then to 30 minutes.
func (s *OrderIntegrationService) AcceptOrder(
	ctx context.Context,
	tenantID uuid.UUID,
	recordID uuid.UUID,
	estimatedPrepTime int,
) (*integration.OrderAcceptResult, error) {
	record, err := s.getOwnedRecord(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record.IsAccepted() {
		return &integration.OrderAcceptResult{Success: true, Message: "order already accepted"}, nil
	}

	prepTime := s.resolvePrepTime(ctx, tenantID, record.Platform, estimatedPrepTime)
	return s.acceptRecord(ctx, record, prepTime)
}

func (s *OrderIntegrationService) acceptRecord(
	ctx context.Context,
	record *integration.PlatformOrderRecord,
	prepTime int,
) (*integration.OrderAcceptResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_integration", "accept")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlatform, record.Platform.String(),
		telemetry.SpanAttrPlatformOrderID, record.PlatformOrderID,
		"prep_time_minutes", prepTime,
	)

	started := time.Now()

	adapter, err := s.registry.Resolve(ctx, record.TenantID, record.Platform)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := adapter.AcceptOrder(ctx, record.PlatformOrderID, prepTime)
	if err != nil && !errors.Is(err, integration.ErrOrderAlreadyAccepted) {
		telemetry.RecordError(span, err)
		s.recordSyncLog(ctx, record.TenantID, record.Platform, integration.SyncOpOrderAccept,
			integration.SyncDirectionOutbound, integration.SyncStatusFailed, started, 1, err.Error())
		return nil, err
	}
	if result == nil {
		result = &integration.OrderAcceptResult{Success: true, Message: "order already accepted"}
	}

	localOrderID := uuid.Nil
	if s.localOrders != nil {
		localOrderID, err = s.localOrders.CreateFromPlatformOrder(ctx, record.TenantID, &record.Order)
		if err != nil {
			// accepted on the platform; the local order can be created later
			s.logger.Error("failed to create local order for accepted platform order",
				zap.String("platform_order_id", record.PlatformOrderID),
				zap.Error(err))
			localOrderID = uuid.Nil
		}
	}

	record.MarkAccepted(localOrderID)
	if err := s.orders.Save(ctx, record); err != nil {
		return nil, err
	}
	s.recordSyncLog(ctx, record.TenantID, record.Platform, integration.SyncOpOrderAccept,
		integration.SyncDirectionOutbound, integration.SyncStatusSuccess, started, 1, "")

	s.logger.Info("platform order accepted",
		zap.String("platform", record.Platform.String()),
		zap.String("platform_order_id", record.PlatformOrderID),
		zap.Int("prep_time", prepTime))

	return result, nil
}

// RejectOrder declines an order with a mandatory reason. The reason is stored
// locally even for platforms whose API has no field for it.
func (s *OrderIntegrationService) RejectOrder(
	ctx context.Context,
	tenantID uuid.UUID,
	recordID uuid.UUID,
	reason string,
) (*integration.OrderRejectResult, error) {
	if reason == "" {
		return nil, integration.ErrRejectReasonRequired
	}

	record, err := s.getOwnedRecord(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status == integration.OrderStatusRejected {
		return &integration.OrderRejectResult{Success: true, Message: "order already rejected"}, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order_integration", "reject",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, record.Platform.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPlatformOrderID, record.PlatformOrderID))
	defer span.End()

	started := time.Now()
	adapter, err := s.registry.Resolve(ctx, tenantID, record.Platform)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := adapter.RejectOrder(ctx, record.PlatformOrderID, reason)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordSyncLog(ctx, tenantID, record.Platform, integration.SyncOpOrderReject,
			integration.SyncDirectionOutbound, integration.SyncStatusFailed, started, 1, err.Error())
		return nil, err
	}

	record.MarkRejected(reason)
	if err := s.orders.Save(ctx, record); err != nil {
		return nil, err
	}
	s.recordSyncLog(ctx, tenantID, record.Platform, integration.SyncOpOrderReject,
		integration.SyncDirectionOutbound, integration.SyncStatusSuccess, started, 1, "")

	s.logger.Info("platform order rejected",
		zap.String("platform", record.Platform.String()),
		zap.String("platform_order_id", record.PlatformOrderID),
		zap.String("reason", reason))

	return result, nil
}

// PushStatusUpdate pushes a normalized lifecycle status to the platform and
// advances the local record on success.
func (s *OrderIntegrationService) PushStatusUpdate(
	ctx context.Context,
	tenantID uuid.UUID,
	recordID uuid.UUID,
	status integration.PlatformOrderStatus,
) (*integration.OrderStatusUpdateResult, error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("unknown order status %q", status))
	}

	record, err := s.getOwnedRecord(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order_integration", "push_status",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, record.Platform.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderStatus, status.String()))
	defer span.End()

	started := time.Now()
	adapter, err := s.registry.Resolve(ctx, tenantID, record.Platform)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := adapter.UpdateOrderStatus(ctx, record.PlatformOrderID, status)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordSyncLog(ctx, tenantID, record.Platform, integration.SyncOpStatusPush,
			integration.SyncDirectionOutbound, integration.SyncStatusFailed, started, 1, err.Error())
		return nil, err
	}

	record.ApplyStatus(status)
	if err := s.orders.Save(ctx, record); err != nil {
		return nil, err
	}
	s.recordSyncLog(ctx, tenantID, record.Platform, integration.SyncOpStatusPush,
		integration.SyncDirectionOutbound, integration.SyncStatusSuccess, started, 1, "")

	return result, nil
}

// GetOrder retrieves one order record
func (s *OrderIntegrationService) GetOrder(ctx context.Context, tenantID, recordID uuid.UUID) (*integration.PlatformOrderRecord, error) {
	return s.getOwnedRecord(ctx, tenantID, recordID)
}

// ListOrders lists order records with filtering and pagination
func (s *OrderIntegrationService) ListOrders(
	ctx context.Context,
	tenantID uuid.UUID,
	filter integration.PlatformOrderFilter,
) ([]integration.PlatformOrderRecord, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	records, err := s.orders.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.orders.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// ReconcileActiveOrders re-fetches recent orders for every polling-enabled
// tenant+platform pair and repairs local state: orders the webhooks missed are
// ingested, and stale statuses on active records are advanced. Failures are
// logged per pair and never abort the sweep.
func (s *OrderIntegrationService) ReconcileActiveOrders(ctx context.Context, window time.Duration) error {
	enabled, err := s.credentials.FindPollingEnabled(ctx)
	if err != nil {
		return err
	}

	since := time.Now().Add(-window)
	for i := range enabled {
		creds := &enabled[i]
		if err := s.reconcilePair(ctx, creds.TenantID, creds.Platform, since); err != nil {
			s.logger.Warn("reconciliation failed for platform",
				zap.String("tenant_id", creds.TenantID.String()),
				zap.String("platform", creds.Platform.String()),
				zap.Error(err))
		}
	}
	return nil
}

func (s *OrderIntegrationService) reconcilePair(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	since time.Time,
) error {
	adapter, err := s.registry.Resolve(ctx, tenantID, platform)
	if err != nil {
		return err
	}
	if !adapter.IsConfigured() {
		return nil
	}

	fetched, err := adapter.FetchNewOrders(ctx, since)
	if err != nil {
		return err
	}

	for i := range fetched {
		order := &fetched[i]

		record, err := s.orders.FindByPlatformOrderID(ctx, tenantID, platform, order.PlatformOrderID)
		if errors.Is(err, integration.ErrOrderNotFound) {
			// missed webhook; ingest through the normal pipeline
			if _, _, err := s.ProcessIncomingOrder(ctx, tenantID, order); err != nil {
				s.logger.Warn("reconciliation could not ingest missed order",
					zap.String("platform_order_id", order.PlatformOrderID),
					zap.Error(err))
			}
			continue
		}
		if err != nil {
			return err
		}

		if record.Status.IsFinal() || record.Status == order.Status || !order.Status.IsValid() {
			continue
		}
		record.ApplyStatus(order.Status)
		if err := s.orders.Save(ctx, record); err != nil {
			return err
		}
		s.logger.Info("reconciled platform order status",
			zap.String("platform", platform.String()),
			zap.String("platform_order_id", order.PlatformOrderID),
			zap.String("status", order.Status.String()))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (s *OrderIntegrationService) maybeAutoAccept(ctx context.Context, record *integration.PlatformOrderRecord) {
	creds, err := s.credentials.Find(ctx, record.TenantID, record.Platform)
	if err != nil || !creds.AutoAccept {
		return
	}
	if record.Status != integration.OrderStatusReceived {
		return
	}

	prepTime := creds.DefaultPrepTime
	if prepTime <= 0 {
		prepTime = 30
	}
	if _, err := s.acceptRecord(ctx, record, prepTime); err != nil {
		// order stays RECEIVED for manual action
		s.logger.Error("auto-accept failed",
			zap.String("platform", record.Platform.String()),
			zap.String("platform_order_id", record.PlatformOrderID),
			zap.Error(err))
	}
}

func (s *OrderIntegrationService) resolvePrepTime(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, estimate int) int {
	if estimate > 0 {
		return estimate
	}
	if creds, err := s.credentials.Find(ctx, tenantID, platform); err == nil && creds.DefaultPrepTime > 0 {
		return creds.DefaultPrepTime
	}
	return 30
}

func (s *OrderIntegrationService) getOwnedRecord(ctx context.Context, tenantID, recordID uuid.UUID) (*integration.PlatformOrderRecord, error) {
	record, err := s.orders.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.TenantID != tenantID {
		return nil, integration.ErrOrderNotFound
	}
	return record, nil
}

func (s *OrderIntegrationService) markProcessed(ctx context.Context, key string) {
	if _, err := s.idempotency.MarkProcessed(ctx, key, idempotencyTTL); err != nil {
		s.logger.Warn("failed to mark order processed", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderIntegrationService) recordSyncLog(
	ctx context.Context,
	tenantID uuid.UUID,
	platform integration.PlatformCode,
	op integration.SyncOperation,
	dir integration.SyncDirection,
	status integration.SyncStatus,
	started time.Time,
	itemCount int,
	errMsg string,
) {
	entry := integration.NewSyncLog(tenantID, platform, op, dir)
	entry.ItemCount = itemCount
	entry.Complete(status, time.Since(started), errMsg)
	if err := s.syncLogs.Save(ctx, entry); err != nil {
		s.logger.Warn("failed to write sync log",
			zap.String("operation", string(op)), zap.Error(err))
	}
}

func idempotencyKey(platform integration.PlatformCode, platformOrderID string) string {
	return fmt.Sprintf("%s:%s", platform, platformOrderID)
}

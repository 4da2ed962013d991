package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

// OrderHandler processes one fetched order. The boolean result reports
// whether the order was newly ingested; false means it was a duplicate of an
// order already received through a webhook or an earlier poll.
type OrderHandler func(ctx context.Context, tenantID uuid.UUID, order *integration.PlatformOrder) (bool, error)

// PollExecutorImpl implements PollExecutor against the platform registry
type PollExecutorImpl struct {
	registry    integration.PlatformRegistry
	credentials integration.CredentialRepository
	syncLogs    integration.SyncLogRepository
	handleOrder OrderHandler
	logger      *zap.Logger
}

// NewPollExecutor creates a new poll executor
func NewPollExecutor(
	registry integration.PlatformRegistry,
	credentials integration.CredentialRepository,
	syncLogs integration.SyncLogRepository,
	handleOrder OrderHandler,
	logger *zap.Logger,
) *PollExecutorImpl {
	return &PollExecutorImpl{
		registry:    registry,
		credentials: credentials,
		syncLogs:    syncLogs,
		handleOrder: handleOrder,
		logger:      logger,
	}
}

// Execute fetches new orders from the platform and hands each one to the
// order handler. The last-polled mark is advanced only after a successful
// fetch so that a failed poll is re-covered by the next one.
func (e *PollExecutorImpl) Execute(ctx context.Context, job *PollJob) error {
	started := time.Now()

	adapter, err := e.registry.Resolve(ctx, job.TenantID, job.Platform)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPollPlatformUnavailable, err)
	}
	if !adapter.IsConfigured() {
		return fmt.Errorf("%w: platform %s not configured for tenant", ErrPollPlatformUnavailable, job.Platform)
	}

	orders, err := adapter.FetchNewOrders(ctx, job.Since)
	if err != nil {
		e.recordLog(ctx, job, integration.SyncStatusFailed, 0, time.Since(started), err)
		if errors.Is(err, integration.ErrAPIRequest) {
			return fmt.Errorf("%w: %v", ErrPollFailed, err)
		}
		return err
	}

	successCount := 0
	failedCount := 0
	skippedCount := 0
	failedOrderIDs := make([]string, 0)

	for i := range orders {
		select {
		case <-ctx.Done():
			return ErrPollTimeout
		default:
		}

		order := &orders[i]
		ingested, err := e.handleOrder(ctx, job.TenantID, order)
		if err != nil {
			e.logger.Error("Failed to process polled order",
				zap.String("tenant_id", job.TenantID.String()),
				zap.String("platform", string(job.Platform)),
				zap.String("platform_order_id", order.PlatformOrderID),
				zap.Error(err),
			)
			failedCount++
			failedOrderIDs = append(failedOrderIDs, order.PlatformOrderID)
			continue
		}
		if !ingested {
			skippedCount++
			continue
		}
		successCount++
	}

	job.Complete(len(orders), successCount, failedCount, skippedCount)
	job.FailedOrderIDs = failedOrderIDs

	e.advanceLastPolled(ctx, job.TenantID, job.Platform, started)

	status := integration.SyncStatusSuccess
	if failedCount > 0 {
		status = integration.SyncStatusPartial
		if successCount == 0 && skippedCount == 0 {
			status = integration.SyncStatusFailed
		}
	}
	e.recordLog(ctx, job, status, len(orders), time.Since(started), nil)

	return nil
}

// advanceLastPolled moves the polling high-water mark to the poll start time
func (e *PollExecutorImpl) advanceLastPolled(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, mark time.Time) {
	creds, err := e.credentials.Find(ctx, tenantID, platform)
	if err != nil {
		e.logger.Warn("Failed to load credentials to advance poll mark",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
		return
	}

	creds.LastPolledAt = &mark
	if err := e.credentials.Save(ctx, creds); err != nil {
		e.logger.Warn("Failed to advance poll mark",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
	}
}

// recordLog writes the poll audit entry. Audit failures are logged, never
// propagated into the job result.
func (e *PollExecutorImpl) recordLog(ctx context.Context, job *PollJob, status integration.SyncStatus, itemCount int, duration time.Duration, cause error) {
	if e.syncLogs == nil {
		return
	}

	log := integration.NewSyncLog(job.TenantID, job.Platform, integration.SyncOpPoll, integration.SyncDirectionInbound)
	log.ItemCount = itemCount
	log.RetryCount = job.RetryCount
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	log.Complete(status, duration, msg)

	if err := e.syncLogs.Save(ctx, log); err != nil {
		e.logger.Warn("Failed to write poll sync log",
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("platform", string(job.Platform)),
			zap.Error(err),
		)
	}
}

// Ensure PollExecutorImpl implements PollExecutor
var _ PollExecutor = (*PollExecutorImpl)(nil)

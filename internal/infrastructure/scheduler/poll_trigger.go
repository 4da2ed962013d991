package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// PollTriggerConfig
// ---------------------------------------------------------------------------

// PollTriggerConfig holds configuration for the poll trigger
type PollTriggerConfig struct {
	// CheckInterval is how often to look for tenant/platform pairs due a poll
	CheckInterval time.Duration
}

// DefaultPollTriggerConfig returns default configuration
func DefaultPollTriggerConfig() PollTriggerConfig {
	return PollTriggerConfig{
		CheckInterval: 30 * time.Second,
	}
}

// ---------------------------------------------------------------------------
// PollTrigger
// ---------------------------------------------------------------------------

// PollTrigger submits poll jobs for every tenant/platform pair with polling
// enabled. Webhooks remain the primary ingestion path; the trigger covers
// gaps from missed deliveries and platforms without webhook support.
type PollTrigger struct {
	config      PollTriggerConfig
	scheduler   *PollScheduler
	credentials integration.CredentialRepository
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Track last scheduled time per tenant/platform to avoid duplicate scheduling
	lastScheduledMu sync.RWMutex
	lastScheduled   map[string]time.Time
}

// NewPollTrigger creates a new poll trigger
func NewPollTrigger(
	config PollTriggerConfig,
	scheduler *PollScheduler,
	credentials integration.CredentialRepository,
	logger *zap.Logger,
) *PollTrigger {
	return &PollTrigger{
		config:        config,
		scheduler:     scheduler,
		credentials:   credentials,
		logger:        logger,
		lastScheduled: make(map[string]time.Time),
	}
}

// Start starts the poll trigger
func (t *PollTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Poll trigger started",
		zap.Duration("check_interval", t.config.CheckInterval),
		zap.Duration("poll_interval", t.scheduler.config.PollInterval),
	)

	return nil
}

// Stop stops the poll trigger
func (t *PollTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Poll trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop periodically checks and submits poll jobs
func (t *PollTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	t.checkAndSchedule(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndSchedule(ctx)
		}
	}
}

// checkAndSchedule submits a poll job for every pair that is due one
func (t *PollTrigger) checkAndSchedule(ctx context.Context) {
	enabled, err := t.credentials.FindPollingEnabled(ctx)
	if err != nil {
		t.logger.Error("Failed to list polling-enabled credentials", zap.Error(err))
		return
	}

	if len(enabled) == 0 {
		t.logger.Debug("No platforms with polling enabled")
		return
	}

	now := time.Now()

	for i := range enabled {
		creds := &enabled[i]
		due, since := t.shouldSchedulePoll(creds, now)
		if !due {
			continue
		}

		t.logger.Info("Scheduling poll job",
			zap.String("tenant_id", creds.TenantID.String()),
			zap.String("platform", string(creds.Platform)),
			zap.Time("since", since),
		)

		if err := t.scheduler.SchedulePoll(creds.TenantID, creds.Platform, since); err != nil {
			t.logger.Error("Failed to schedule poll job",
				zap.String("tenant_id", creds.TenantID.String()),
				zap.String("platform", string(creds.Platform)),
				zap.Error(err),
			)
			continue
		}

		t.updateLastScheduled(creds.TenantID, creds.Platform, now)
	}
}

// shouldSchedulePoll determines if this pair is due a poll and from when
func (t *PollTrigger) shouldSchedulePoll(creds *integration.PlatformCredentials, now time.Time) (bool, time.Time) {
	key := t.makeKey(creds.TenantID, creds.Platform)

	t.lastScheduledMu.RLock()
	lastScheduled, exists := t.lastScheduled[key]
	t.lastScheduledMu.RUnlock()

	if exists && now.Sub(lastScheduled) < t.scheduler.config.PollInterval {
		return false, time.Time{}
	}

	var since time.Time
	if creds.LastPolledAt != nil {
		// Overlap with the previous window so in-flight orders are not missed
		since = creds.LastPolledAt.Add(-t.scheduler.config.LookbackBuffer)
	} else {
		since = now.Add(-t.scheduler.config.FirstPollLookback)
	}

	return true, since
}

// makeKey creates a unique key for a tenant/platform combination
func (t *PollTrigger) makeKey(tenantID uuid.UUID, platform integration.PlatformCode) string {
	return tenantID.String() + ":" + string(platform)
}

// updateLastScheduled updates the last scheduled time for a tenant/platform
func (t *PollTrigger) updateLastScheduled(tenantID uuid.UUID, platform integration.PlatformCode, at time.Time) {
	key := t.makeKey(tenantID, platform)
	t.lastScheduledMu.Lock()
	t.lastScheduled[key] = at
	t.lastScheduledMu.Unlock()
}

// TriggerManualPoll submits an immediate poll for a specific tenant/platform
func (t *PollTrigger) TriggerManualPoll(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, since time.Time) error {
	if since.After(time.Now()) {
		return ErrPollInvalidTimeRange
	}
	if time.Since(since) > 7*24*time.Hour {
		return ErrPollInvalidTimeRange // Max 7 days per poll
	}

	t.logger.Info("Manual poll triggered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", string(platform)),
		zap.Time("since", since),
	)

	return t.scheduler.SchedulePoll(tenantID, platform, since)
}

// GetStats returns statistics about the trigger
func (t *PollTrigger) GetStats() map[string]interface{} {
	t.lastScheduledMu.RLock()
	defer t.lastScheduledMu.RUnlock()

	stats := make(map[string]interface{})
	stats["is_running"] = t.isRunning
	stats["check_interval"] = t.config.CheckInterval.String()
	stats["tracked_pairs"] = len(t.lastScheduled)

	lastScheduledTimes := make(map[string]string)
	for key, at := range t.lastScheduled {
		lastScheduledTimes[key] = at.Format(time.RFC3339)
	}
	stats["last_scheduled"] = lastScheduledTimes

	return stats
}

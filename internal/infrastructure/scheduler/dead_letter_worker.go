package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
)

// Reprocessor replays a dead-lettered webhook through the ingestion pipeline
type Reprocessor func(ctx context.Context, dl *integration.WebhookDeadLetter) error

// DeadLetterWorkerConfig holds configuration for the dead-letter worker
type DeadLetterWorkerConfig struct {
	// Enabled determines if the worker is active
	Enabled bool

	// CheckInterval is how often to look for due entries
	CheckInterval time.Duration

	// BatchSize is the maximum number of entries retried per check
	BatchSize int

	// RetryTimeout is the maximum time for one retry attempt
	RetryTimeout time.Duration

	// PurgeHour is the hour (0-23) when retention purge runs
	PurgeHour int
}

// DefaultDeadLetterWorkerConfig returns default configuration
func DefaultDeadLetterWorkerConfig() DeadLetterWorkerConfig {
	return DeadLetterWorkerConfig{
		Enabled:       true,
		CheckInterval: 30 * time.Second,
		BatchSize:     50,
		RetryTimeout:  30 * time.Second,
		PurgeHour:     4, // 4 AM
	}
}

// DeadLetterWorker retries dead-lettered webhooks on their backoff schedule
// and purges delivered and exhausted entries past retention
type DeadLetterWorker struct {
	config      DeadLetterWorkerConfig
	deadLetters integration.DeadLetterRepository
	reprocess   Reprocessor
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDeadLetterWorker creates a new dead-letter worker
func NewDeadLetterWorker(
	config DeadLetterWorkerConfig,
	deadLetters integration.DeadLetterRepository,
	reprocess Reprocessor,
	logger *zap.Logger,
) *DeadLetterWorker {
	return &DeadLetterWorker{
		config:      config,
		deadLetters: deadLetters,
		reprocess:   reprocess,
		logger:      logger,
	}
}

// Start starts the worker
func (w *DeadLetterWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	if !w.config.Enabled {
		w.mu.Unlock()
		w.logger.Info("Dead-letter worker is disabled")
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.runRetryLoop(ctx)

	w.wg.Add(1)
	go w.runPurgeLoop(ctx)

	w.logger.Info("Dead-letter worker started",
		zap.Duration("check_interval", w.config.CheckInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("purge_hour", w.config.PurgeHour),
	)

	return nil
}

// Stop gracefully stops the worker
func (w *DeadLetterWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Dead-letter worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Dead-letter worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is running
func (w *DeadLetterWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// runRetryLoop periodically retries due entries
func (w *DeadLetterWorker) runRetryLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Dead-letter retry loop stopping")
			return
		case <-ticker.C:
			w.retryDue(ctx)
		}
	}
}

// runPurgeLoop runs retention purge once per day at the configured hour
func (w *DeadLetterWorker) runPurgeLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		now := time.Now()
		nextRun := time.Date(now.Year(), now.Month(), now.Day(), w.config.PurgeHour, 0, 0, 0, now.Location())
		if now.After(nextRun) {
			nextRun = nextRun.Add(24 * time.Hour)
		}

		select {
		case <-ctx.Done():
			w.logger.Debug("Dead-letter purge loop stopping")
			return
		case <-time.After(time.Until(nextRun)):
			w.purgeExpired(ctx)
		}
	}
}

// retryDue replays every entry whose retry time has passed
func (w *DeadLetterWorker) retryDue(ctx context.Context) {
	due, err := w.deadLetters.FindDue(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list due dead letters", zap.Error(err))
		return
	}

	if len(due) == 0 {
		return
	}

	w.logger.Info("Retrying dead-lettered webhooks", zap.Int("count", len(due)))

	for i := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.retryOne(ctx, &due[i])
	}
}

// retryOne replays a single entry and records the outcome
func (w *DeadLetterWorker) retryOne(ctx context.Context, dl *integration.WebhookDeadLetter) {
	retryCtx, cancel := context.WithTimeout(ctx, w.config.RetryTimeout)
	defer cancel()

	err := w.reprocess(retryCtx, dl)
	if err != nil {
		dl.RecordFailure(err)
		w.logger.Warn("Dead-letter retry failed",
			zap.String("dead_letter_id", dl.ID.String()),
			zap.String("tenant_id", dl.TenantID.String()),
			zap.String("platform", string(dl.Platform)),
			zap.Int("attempts", dl.Attempts),
			zap.String("status", string(dl.Status)),
			zap.Error(err),
		)
	} else {
		dl.RecordDelivery()
		w.logger.Info("Dead-lettered webhook delivered",
			zap.String("dead_letter_id", dl.ID.String()),
			zap.String("tenant_id", dl.TenantID.String()),
			zap.String("platform", string(dl.Platform)),
			zap.Int("attempts", dl.Attempts),
		)
	}

	if err := w.deadLetters.Save(ctx, dl); err != nil {
		w.logger.Error("Failed to persist dead-letter outcome",
			zap.String("dead_letter_id", dl.ID.String()),
			zap.Error(err),
		)
	}
}

// purgeExpired removes delivered and exhausted entries past retention
func (w *DeadLetterWorker) purgeExpired(ctx context.Context) {
	cutoff := time.Now().Add(-integration.DeadLetterRetention)
	purged, err := w.deadLetters.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("Dead-letter retention purge failed", zap.Error(err))
		return
	}

	if purged > 0 {
		w.logger.Info("Purged expired dead letters",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}

// TriggerImmediateRetry runs one retry pass outside the schedule
func (w *DeadLetterWorker) TriggerImmediateRetry(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		w.retryDue(ctx)
	}()

	return nil
}

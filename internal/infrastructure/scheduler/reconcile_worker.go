package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reconciler pulls authoritative order statuses from the platforms and
// applies them to locally tracked active orders
type Reconciler interface {
	ReconcileActiveOrders(ctx context.Context, window time.Duration) error
}

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	// Enabled determines if the worker is active
	Enabled bool

	// Interval is how often reconciliation runs
	Interval time.Duration

	// Window is how far back active orders are considered
	Window time.Duration

	// Timeout is the maximum time for one reconciliation run
	Timeout time.Duration
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		Enabled:  true,
		Interval: 10 * time.Minute,
		Window:   24 * time.Hour,
		Timeout:  5 * time.Minute,
	}
}

// ReconcileWorker periodically repairs order statuses that drifted from the
// platform's view, typically after missed status webhooks
type ReconcileWorker struct {
	config     ReconcileWorkerConfig
	reconciler Reconciler
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(config ReconcileWorkerConfig, reconciler Reconciler, logger *zap.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		config:     config,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start starts the worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	if !w.config.Enabled {
		w.mu.Unlock()
		w.logger.Info("Reconcile worker is disabled")
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.runLoop(ctx)

	w.logger.Info("Reconcile worker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("window", w.config.Window),
	)

	return nil
}

// Stop gracefully stops the worker
func (w *ReconcileWorker) Stop(ctx context.Context) error {
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
		w.logger.Info("Reconcile worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Reconcile worker stop timed out")
		return ctx.Err()
	}
}

// runLoop runs reconciliation on the configured interval
func (w *ReconcileWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Reconcile loop stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single reconciliation pass
func (w *ReconcileWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	started := time.Now()
	err := w.reconciler.ReconcileActiveOrders(runCtx, w.config.Window)
	duration := time.Since(started)

	if err != nil {
		w.logger.Error("Order status reconciliation failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	w.logger.Debug("Order status reconciliation completed",
		zap.Duration("duration", duration),
	)
}

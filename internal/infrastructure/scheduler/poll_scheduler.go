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
// Poll Job Types
// ---------------------------------------------------------------------------

// PollJobStatus represents the status of an order poll job
type PollJobStatus string

const (
	PollJobStatusPending PollJobStatus = "PENDING"
	PollJobStatusRunning PollJobStatus = "RUNNING"
	PollJobStatusSuccess PollJobStatus = "SUCCESS"
	PollJobStatusPartial PollJobStatus = "PARTIAL"
	PollJobStatusFailed  PollJobStatus = "FAILED"
)

// PollJob represents one scheduled poll of a tenant's platform for new orders
type PollJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Platform    integration.PlatformCode
	Since       time.Time
	Status      PollJobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Poll results
	TotalOrders    int
	SuccessCount   int
	FailedCount    int
	SkippedCount   int
	FailedOrderIDs []string
}

// NewPollJob creates a new poll job
func NewPollJob(tenantID uuid.UUID, platform integration.PlatformCode, since time.Time, maxRetries int) *PollJob {
	return &PollJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Platform:   platform,
		Since:      since,
		Status:     PollJobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *PollJob) Start() {
	now := time.Now()
	j.Status = PollJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as finished with the given counts
func (j *PollJob) Complete(totalOrders, successCount, failedCount, skippedCount int) {
	now := time.Now()
	j.TotalOrders = totalOrders
	j.SuccessCount = successCount
	j.FailedCount = failedCount
	j.SkippedCount = skippedCount
	j.CompletedAt = &now

	if failedCount == 0 {
		j.Status = PollJobStatusSuccess
	} else if successCount > 0 {
		j.Status = PollJobStatusPartial
	} else {
		j.Status = PollJobStatusFailed
	}
}

// Fail marks the job as failed
func (j *PollJob) Fail(err string) {
	now := time.Now()
	j.Status = PollJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *PollJob) ShouldRetry() bool {
	return j.Status == PollJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff
func (j *PollJob) ScheduleRetry(baseDelay time.Duration) {
	j.RetryCount++
	j.Status = PollJobStatusPending
	// Exponential backoff: baseDelay * 2^(retryCount-1)
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute // Cap at 30 minutes
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// ---------------------------------------------------------------------------
// PollExecutor Interface
// ---------------------------------------------------------------------------

// PollExecutor executes poll jobs
type PollExecutor interface {
	// Execute fetches new orders from the platform and processes them
	Execute(ctx context.Context, job *PollJob) error
}

// ---------------------------------------------------------------------------
// PollSchedulerConfig
// ---------------------------------------------------------------------------

// PollSchedulerConfig holds configuration for the poll scheduler
type PollSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// MaxConcurrentJobs is the maximum number of concurrent poll jobs
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// PollInterval is how often each enabled tenant/platform pair is polled
	PollInterval time.Duration
	// LookbackBuffer is subtracted from the last-polled mark to cover requests
	// that landed while the previous poll was in flight
	LookbackBuffer time.Duration
	// FirstPollLookback is how far back the first poll of a pair reaches
	FirstPollLookback time.Duration
}

// DefaultPollSchedulerConfig returns default configuration
func DefaultPollSchedulerConfig() PollSchedulerConfig {
	return PollSchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 5,
		JobTimeout:        5 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Minute,
		PollInterval:      2 * time.Minute,
		LookbackBuffer:    1 * time.Minute,
		FirstPollLookback: 24 * time.Hour,
	}
}

// Validate validates the configuration
func (c *PollSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.FirstPollLookback <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// PollScheduler
// ---------------------------------------------------------------------------

// PollScheduler manages scheduled order poll jobs
type PollScheduler struct {
	config   PollSchedulerConfig
	executor PollExecutor
	logger   *zap.Logger

	jobs      chan *PollJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Job history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*PollJob
	maxHistory int
}

// NewPollScheduler creates a new poll scheduler
func NewPollScheduler(config PollSchedulerConfig, executor PollExecutor, logger *zap.Logger) (*PollScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PollScheduler{
		config:     config,
		executor:   executor,
		logger:     logger,
		jobs:       make(chan *PollJob, 100),
		history:    make([]*PollJob, 0, 100),
		maxHistory: 100,
	}, nil
}

// Start starts the scheduler
func (s *PollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start worker pool
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Poll scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *PollScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Close job channel
	close(s.jobs)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Poll scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Poll scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution
func (s *PollScheduler) SubmitJob(job *PollJob) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logger.Debug("Poll job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("platform", string(job.Platform)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// SchedulePoll schedules a poll job for a tenant and platform
func (s *PollScheduler) SchedulePoll(tenantID uuid.UUID, platform integration.PlatformCode, since time.Time) error {
	job := NewPollJob(tenantID, platform, since, s.config.RetryAttempts)
	return s.SubmitJob(job)
}

// worker processes jobs from the queue
func (s *PollScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Poll worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Poll worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Poll job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *PollScheduler) processJob(ctx context.Context, job *PollJob, workerID int) {
	// Check if job is ready to run (for retries)
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		// Re-queue the job
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("Failed to re-queue poll job for retry",
				zap.String("job_id", job.ID.String()),
			)
		}
		return
	}

	job.Start()
	s.logger.Info("Processing poll job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("platform", string(job.Platform)),
		zap.Time("since", job.Since),
	)

	// Create context with timeout
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	// Execute the job
	err := s.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Poll job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("platform", string(job.Platform)),
			zap.Error(err),
		)

		// Check if should retry
		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Poll job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", *job.NextRetryAt),
			)
			// Re-submit job
			select {
			case s.jobs <- job:
			default:
				s.logger.Warn("Failed to re-queue poll job for retry",
					zap.String("job_id", job.ID.String()),
				)
			}
		}

		s.addToHistory(job)
		return
	}

	s.logger.Info("Poll job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("platform", string(job.Platform)),
		zap.String("status", string(job.Status)),
		zap.Int("total_orders", job.TotalOrders),
		zap.Int("success_count", job.SuccessCount),
		zap.Int("failed_count", job.FailedCount),
		zap.Int("skipped_count", job.SkippedCount),
	)

	s.addToHistory(job)
}

// addToHistory adds a completed job to history
func (s *PollScheduler) addToHistory(job *PollJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	// Add to front
	s.history = append([]*PollJob{job}, s.history...)

	// Trim if over limit
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetJobHistory returns recent job history
func (s *PollScheduler) GetJobHistory(limit int) []*PollJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*PollJob, limit)
	copy(result, s.history[:limit])
	return result
}

// GetJobHistoryByTenant returns job history for a specific tenant
func (s *PollScheduler) GetJobHistoryByTenant(tenantID uuid.UUID, limit int) []*PollJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	result := make([]*PollJob, 0, limit)
	for _, job := range s.history {
		if job.TenantID == tenantID {
			result = append(result, job)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ---------------------------------------------------------------------------
	// Poll Errors
	// ---------------------------------------------------------------------------

	// ErrPollFailed is returned when an order poll fails
	ErrPollFailed = errors.New("order poll failed")

	// ErrPollTimeout is returned when an order poll times out
	ErrPollTimeout = errors.New("order poll timed out")

	// ErrPollPlatformUnavailable is returned when the platform adapter cannot be resolved
	ErrPollPlatformUnavailable = errors.New("platform unavailable for order poll")

	// ErrPollInvalidTimeRange is returned for invalid poll time ranges
	ErrPollInvalidTimeRange = errors.New("invalid poll time range")

	// ErrPollNoEnabledPlatforms is returned when no platforms have polling enabled
	ErrPollNoEnabledPlatforms = errors.New("no platforms with polling enabled")
)

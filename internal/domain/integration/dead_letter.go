package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadLetterStatus tracks where a failed webhook sits on the retry ladder
type DeadLetterStatus string

const (
	DeadLetterStatusPending   DeadLetterStatus = "PENDING"
	DeadLetterStatusRetrying  DeadLetterStatus = "RETRYING"
	DeadLetterStatusDelivered DeadLetterStatus = "DELIVERED"
	DeadLetterStatusExhausted DeadLetterStatus = "EXHAUSTED"
)

// Retry ladder for failed webhook processing. After the last rung the entry
// is marked exhausted and left for operator inspection.
var deadLetterRetryDelays = [...]time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

// MaxDeadLetterAttempts is the retry ceiling for a dead-lettered webhook
const MaxDeadLetterAttempts = len(deadLetterRetryDelays)

// DeadLetterRetention is how long delivered and exhausted entries are kept
const DeadLetterRetention = 30 * 24 * time.Hour

// WebhookDeadLetter holds a webhook whose processing failed after signature
// verification succeeded. Verification failures are terminal and never
// dead-lettered; this queue exists for downstream processing faults only.
type WebhookDeadLetter struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Platform    PlatformCode
	Payload     []byte
	Headers     map[string]string
	SourceIP    string
	Status      DeadLetterStatus
	Attempts    int
	LastError   string
	NextRetryAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewWebhookDeadLetter enqueues a failed webhook on the first retry rung
func NewWebhookDeadLetter(tenantID uuid.UUID, platform PlatformCode, req *WebhookRequest, cause error) *WebhookDeadLetter {
	now := time.Now()
	dl := &WebhookDeadLetter{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Platform:    platform,
		Payload:     req.Body,
		Headers:     req.Headers,
		SourceIP:    req.SourceIP,
		Status:      DeadLetterStatusPending,
		Attempts:    0,
		NextRetryAt: now.Add(deadLetterRetryDelays[0]),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cause != nil {
		dl.LastError = cause.Error()
	}
	return dl
}

// IsDue reports whether the entry is eligible for a retry attempt
func (d *WebhookDeadLetter) IsDue(now time.Time) bool {
	if d.Status != DeadLetterStatusPending && d.Status != DeadLetterStatusRetrying {
		return false
	}
	return !now.Before(d.NextRetryAt)
}

// RecordFailure advances the retry ladder after a failed attempt. When the
// ceiling is reached the entry becomes exhausted.
func (d *WebhookDeadLetter) RecordFailure(cause error) {
	now := time.Now()
	d.Attempts++
	d.UpdatedAt = now
	if cause != nil {
		d.LastError = cause.Error()
	}
	if d.Attempts >= MaxDeadLetterAttempts {
		d.Status = DeadLetterStatusExhausted
		return
	}
	d.Status = DeadLetterStatusRetrying
	d.NextRetryAt = now.Add(deadLetterRetryDelays[d.Attempts])
}

// RecordDelivery marks the entry as successfully reprocessed
func (d *WebhookDeadLetter) RecordDelivery() {
	d.Status = DeadLetterStatusDelivered
	d.UpdatedAt = time.Now()
}

// ToRequest reconstructs the webhook request for reprocessing
func (d *WebhookDeadLetter) ToRequest() *WebhookRequest {
	return &WebhookRequest{
		Body:     d.Payload,
		Headers:  d.Headers,
		SourceIP: d.SourceIP,
	}
}

// DeadLetterRepository persists the webhook dead-letter queue
type DeadLetterRepository interface {
	// Save creates or updates an entry
	Save(ctx context.Context, dl *WebhookDeadLetter) error

	// FindDue returns entries whose retry time has passed, oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]WebhookDeadLetter, error)

	// FindByTenant lists a tenant's entries, newest first
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]WebhookDeadLetter, error)

	// DeleteOlderThan purges delivered and exhausted entries past retention
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

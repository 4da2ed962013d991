package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestDeadLetter() *WebhookDeadLetter {
	req := &WebhookRequest{
		Body:     []byte(`{"orderId":"x"}`),
		Headers:  map[string]string{"X-Getir-Signature": "sig"},
		SourceIP: "10.0.0.1",
	}
	return NewWebhookDeadLetter(uuid.New(), PlatformCodeGetir, req, errors.New("db unavailable"))
}

func TestDeadLetter_InitialState(t *testing.T) {
	dl := newTestDeadLetter()

	assert.Equal(t, DeadLetterStatusPending, dl.Status)
	assert.Equal(t, 0, dl.Attempts)
	assert.Equal(t, "db unavailable", dl.LastError)
	// First rung of the ladder is one minute out
	assert.WithinDuration(t, time.Now().Add(time.Minute), dl.NextRetryAt, 2*time.Second)
}

func TestDeadLetter_IsDue(t *testing.T) {
	dl := newTestDeadLetter()

	assert.False(t, dl.IsDue(time.Now()))
	assert.True(t, dl.IsDue(time.Now().Add(2*time.Minute)))

	dl.RecordDelivery()
	assert.False(t, dl.IsDue(time.Now().Add(time.Hour)))
}

func TestDeadLetter_RetryLadder(t *testing.T) {
	dl := newTestDeadLetter()

	// Ceiling must match the ladder length
	assert.Equal(t, 5, MaxDeadLetterAttempts)

	delays := []time.Duration{5, 15, 30, 60}
	for i, mins := range delays {
		dl.RecordFailure(errors.New("still failing"))
		assert.Equal(t, i+1, dl.Attempts)
		assert.Equal(t, DeadLetterStatusRetrying, dl.Status)
		assert.WithinDuration(t, time.Now().Add(mins*time.Minute), dl.NextRetryAt, 2*time.Second)
	}

	// Fifth failure exhausts the entry
	dl.RecordFailure(errors.New("gave up"))
	assert.Equal(t, MaxDeadLetterAttempts, dl.Attempts)
	assert.Equal(t, DeadLetterStatusExhausted, dl.Status)
	assert.False(t, dl.IsDue(time.Now().Add(24*time.Hour)))
}

func TestDeadLetter_ToRequest(t *testing.T) {
	dl := newTestDeadLetter()
	req := dl.ToRequest()

	assert.Equal(t, dl.Payload, req.Body)
	assert.Equal(t, "sig", req.Header("X-Getir-Signature"))
	assert.Equal(t, "10.0.0.1", req.SourceIP)
}

// Package delivery contains the platform adapters for the supported food
// delivery marketplaces. Every adapter implements the
// integration.DeliveryPlatform port against one platform's wire protocol and
// webhook vocabulary; nothing outside this package branches on platform type.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/webhook"
)

// maxResponseSize bounds platform API response reads (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Outbound retry policy. Transient failures back off exponentially;
// permanent platform responses short-circuit the loop.
const (
	maxAttempts        = 3
	retryBaseDelay     = 500 * time.Millisecond
	defaultHTTPTimeout = 15 * time.Second
)

// Dependencies carries the shared collaborators every adapter needs
type Dependencies struct {
	Credentials integration.CredentialRepository
	Verifier    *webhook.Verifier
	IPAllowlist *webhook.IPAllowlist
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

func (d *Dependencies) validate() error {
	if d.Credentials == nil {
		return errors.New("delivery: credential repository is required")
	}
	if d.Verifier == nil {
		return errors.New("delivery: webhook verifier is required")
	}
	if d.IPAllowlist == nil {
		return errors.New("delivery: IP allowlist is required")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return nil
}

// baseAdapter implements the tenant binding, credential handling, and HTTP
// plumbing shared by all adapters. Each platform adapter embeds it and adds
// the wire protocol.
type baseAdapter struct {
	platform integration.PlatformCode
	deps     Dependencies

	mu       sync.RWMutex
	tenantID uuid.UUID
	creds    *integration.PlatformCredentials

	// extraIPRanges extracts credential-pinned webhook source ranges,
	// set only by platforms that support them
	extraIPRanges func(*integration.PlatformCredentials) []string
}

func newBaseAdapter(platform integration.PlatformCode, deps Dependencies) baseAdapter {
	return baseAdapter{platform: platform, deps: deps}
}

// Platform returns the platform this adapter serves
func (a *baseAdapter) Platform() integration.PlatformCode {
	return a.platform
}

// SetTenantContext binds the adapter to a tenant. Missing credentials are
// not an error here: the adapter binds as not-configured and network
// operations fail with ErrPlatformNotConfigured.
func (a *baseAdapter) SetTenantContext(ctx context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return integration.ErrTenantContextNotSet
	}

	creds, err := a.deps.Credentials.Find(ctx, tenantID, a.platform)
	if err != nil && !errors.Is(err, integration.ErrPlatformNotConfigured) {
		return fmt.Errorf("delivery: loading credentials: %w", err)
	}

	a.mu.Lock()
	a.tenantID = tenantID
	a.creds = creds
	a.mu.Unlock()
	return nil
}

// TenantID returns the bound tenant
func (a *baseAdapter) TenantID() uuid.UUID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tenantID
}

// IsConfigured reports whether the bound tenant has usable credentials
func (a *baseAdapter) IsConfigured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds != nil && a.creds.IsConfigured
}

// GetCredentials returns the bound credentials with secrets redacted
func (a *baseAdapter) GetCredentials() *integration.PlatformCredentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.creds == nil {
		return nil
	}
	return a.creds.Redacted()
}

// credentials returns the live credential record for network operations
func (a *baseAdapter) credentials() (*integration.PlatformCredentials, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tenantID == uuid.Nil {
		return nil, integration.ErrTenantContextNotSet
	}
	if a.creds == nil || !a.creds.IsConfigured {
		return nil, integration.ErrPlatformNotConfigured
	}
	return a.creds, nil
}

// boundCheck is for non-network operations that only need a tenant
func (a *baseAdapter) boundCheck() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tenantID == uuid.Nil {
		return integration.ErrTenantContextNotSet
	}
	return nil
}

// VerifyWebhook runs the source IP gate and the signature gate. Unbound
// adapters reject everything.
func (a *baseAdapter) VerifyWebhook(req *integration.WebhookRequest) bool {
	a.mu.RLock()
	creds := a.creds
	tenantID := a.tenantID
	a.mu.RUnlock()

	if tenantID == uuid.Nil {
		a.deps.Logger.Warn("webhook received for unbound adapter",
			zap.String("platform", a.platform.String()),
		)
		return false
	}

	var extra []string
	if a.extraIPRanges != nil && creds != nil {
		extra = a.extraIPRanges(creds)
	}
	if req.SourceIP != "" && !a.deps.IPAllowlist.Allowed(a.platform, req.SourceIP, extra) {
		return false
	}

	secret := ""
	if creds != nil {
		secret = creds.WebhookSecret()
	}
	return a.deps.Verifier.Verify(a.platform, secret, req)
}

// apiError carries a platform HTTP error through the retry loop
type apiError struct {
	status int
	body   []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("platform returned HTTP %d", e.status)
}

// retryable reports whether the response status is worth another attempt.
// Client errors are permanent except timeout and throttling.
func (e *apiError) retryable() bool {
	if e.status >= 500 {
		return true
	}
	return e.status == http.StatusRequestTimeout || e.status == http.StatusTooManyRequests
}

// doRequest performs one platform API call with bounded retries and
// exponential backoff. headers are set on every attempt; the body is
// replayed from the buffered slice.
func (a *baseAdapter) doRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		respBody, err := a.doOnce(ctx, method, url, headers, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		var apiErr *apiError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}

		a.deps.Logger.Warn("platform API call failed, retrying",
			zap.String("platform", a.platform.String()),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	var apiErr *apiError
	if errors.As(lastErr, &apiErr) {
		return apiErr.body, fmt.Errorf("%w: %w", integration.ErrAPIRequest, apiErr)
	}
	return nil, fmt.Errorf("%w: %v", integration.ErrAPIRequest, lastErr)
}

func (a *baseAdapter) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &apiError{status: resp.StatusCode, body: respBody}
	}
	return respBody, nil
}

// timeConnection wraps a connection test call with latency measurement
func timeConnection(fn func() error) *integration.ConnectionTestResult {
	start := time.Now()
	err := fn()
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return &integration.ConnectionTestResult{
			Success:   false,
			Message:   err.Error(),
			LatencyMS: latency,
		}
	}
	return &integration.ConnectionTestResult{
		Success:   true,
		Message:   "connection OK",
		LatencyMS: latency,
	}
}

// isConflict reports whether an API error was an HTTP 409. Platforms answer
// a second accept with a conflict; callers translate that into idempotent
// success.
func isConflict(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.status == http.StatusConflict
}

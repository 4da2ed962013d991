package webhook

import (
	"testing"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func signedRequest(platform integration.PlatformCode, secret string, body []byte) *integration.WebhookRequest {
	scheme := SchemeFor(platform)
	return &integration.WebhookRequest{
		Body: body,
		Headers: map[string]string{
			scheme.Header: Sign(scheme, secret, body),
		},
	}
}

func TestVerify_RoundTrip_AllPlatforms(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	body := []byte(`{"orderId":"1001","eventType":"ORDER_CREATED"}`)

	for _, platform := range integration.AllPlatformCodes() {
		req := signedRequest(platform, "top-secret", body)
		assert.True(t, v.Verify(platform, "top-secret", req), platform.String())
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	body := []byte(`{"orderId":"1001"}`)

	for _, platform := range integration.AllPlatformCodes() {
		req := signedRequest(platform, "right-secret", body)
		assert.False(t, v.Verify(platform, "wrong-secret", req), platform.String())
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	req := signedRequest(integration.PlatformCodeTrendyol, "s3cret", []byte(`{"total":100}`))
	req.Body = []byte(`{"total":999}`)

	assert.False(t, v.Verify(integration.PlatformCodeTrendyol, "s3cret", req))
}

func TestVerify_MalformedSignature(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	body := []byte(`{}`)

	// Not decodable, truncated, and empty signatures all fail the same way
	cases := []string{"not-hex!!", "abcd", ""}
	for _, sig := range cases {
		req := &integration.WebhookRequest{
			Body:    body,
			Headers: map[string]string{"X-Getir-Signature": sig},
		}
		assert.False(t, v.Verify(integration.PlatformCodeGetir, "secret", req), sig)
	}
}

func TestVerify_MissingHeader(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	req := &integration.WebhookRequest{Body: []byte(`{}`), Headers: map[string]string{}}

	assert.False(t, v.Verify(integration.PlatformCodeMigros, "secret", req))
}

func TestVerify_NoSecretConfigured(t *testing.T) {
	// Explicit insecure fallback: no secret means the signature gate is open
	v := NewVerifier(zap.NewNop())
	req := &integration.WebhookRequest{Body: []byte(`{}`), Headers: map[string]string{}}

	assert.True(t, v.Verify(integration.PlatformCodeFuudy, "", req))
}

func TestVerify_CaseInsensitiveHeader(t *testing.T) {
	v := NewVerifier(zap.NewNop())
	body := []byte(`{"ping":true}`)
	scheme := SchemeFor(integration.PlatformCodeYemeksepeti)

	req := &integration.WebhookRequest{
		Body: body,
		Headers: map[string]string{
			"x-yemeksepeti-signature": Sign(scheme, "secret", body),
		},
	}
	assert.True(t, v.Verify(integration.PlatformCodeYemeksepeti, "secret", req))
}

func TestSchemeFor_PlatformConventions(t *testing.T) {
	assert.Equal(t, EncodingBase64, SchemeFor(integration.PlatformCodeTrendyol).Encoding)
	assert.Equal(t, AlgorithmSHA512, SchemeFor(integration.PlatformCodeGetir).Algorithm)
	assert.Equal(t, "X-Fuudy-Signature", SchemeFor(integration.PlatformCodeFuudy).Header)
}

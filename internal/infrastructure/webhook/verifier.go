// Package webhook implements signature verification and source-IP
// allowlisting for inbound delivery-platform webhooks.
//
// Verification is fail-closed: any malformed, missing, or mismatched
// signature produces the same boolean false as a forged one, and the
// comparison runs in constant time. The only pass-through is the explicit
// no-secret-configured fallback, which is logged loudly every time.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/posbridge/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Algorithm selects the HMAC hash function
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// Encoding selects how the platform encodes the signature header
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// Scheme describes one platform's signature convention
type Scheme struct {
	// Header carrying the signature
	Header string
	// Algorithm used for the HMAC
	Algorithm Algorithm
	// Encoding of the header value
	Encoding Encoding
}

// SchemeFor returns the signature scheme a platform uses
func SchemeFor(platform integration.PlatformCode) Scheme {
	switch platform {
	case integration.PlatformCodeTrendyol:
		return Scheme{Header: "X-Trendyol-Signature", Algorithm: AlgorithmSHA256, Encoding: EncodingBase64}
	case integration.PlatformCodeYemeksepeti:
		return Scheme{Header: "X-Yemeksepeti-Signature", Algorithm: AlgorithmSHA256, Encoding: EncodingHex}
	case integration.PlatformCodeGetir:
		return Scheme{Header: "X-Getir-Signature", Algorithm: AlgorithmSHA512, Encoding: EncodingHex}
	case integration.PlatformCodeMigros:
		return Scheme{Header: "X-Migros-Signature", Algorithm: AlgorithmSHA256, Encoding: EncodingHex}
	case integration.PlatformCodeFuudy:
		return Scheme{Header: "X-Fuudy-Signature", Algorithm: AlgorithmSHA256, Encoding: EncodingHex}
	default:
		return Scheme{Header: "X-Webhook-Signature", Algorithm: AlgorithmSHA256, Encoding: EncodingHex}
	}
}

func (a Algorithm) newHash() func() hash.Hash {
	if a == AlgorithmSHA512 {
		return sha512.New
	}
	return sha256.New
}

// Sign computes the encoded signature for a payload under a scheme.
// Exposed for adapter tests and for signing test requests against sandboxes.
func Sign(scheme Scheme, secret string, payload []byte) string {
	mac := hmac.New(scheme.Algorithm.newHash(), []byte(secret))
	mac.Write(payload)
	sum := mac.Sum(nil)
	if scheme.Encoding == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

// Verifier checks webhook signatures for all platforms
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a Verifier
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// Verify checks the request signature for a platform under the tenant's
// secret. Returns false for any wrong or undecodable signature. An empty
// secret passes with a warning: that tenant runs unverified until a webhook
// secret is configured.
func (v *Verifier) Verify(platform integration.PlatformCode, secret string, req *integration.WebhookRequest) bool {
	if secret == "" {
		v.logger.Warn("webhook secret not configured, accepting unverified webhook",
			zap.String("platform", platform.String()),
		)
		return true
	}

	scheme := SchemeFor(platform)
	provided := req.Header(scheme.Header)
	if provided == "" {
		v.logger.Warn("webhook signature header missing",
			zap.String("platform", platform.String()),
			zap.String("header", scheme.Header),
		)
		return false
	}

	received, err := decodeSignature(scheme.Encoding, provided)
	if err != nil {
		v.logger.Warn("webhook signature not decodable",
			zap.String("platform", platform.String()),
			zap.Error(err),
		)
		return false
	}

	mac := hmac.New(scheme.Algorithm.newHash(), []byte(secret))
	mac.Write(req.Body)
	expected := mac.Sum(nil)

	// hmac.Equal is constant time and tolerates length mismatches
	if !hmac.Equal(expected, received) {
		v.logger.Warn("webhook signature mismatch",
			zap.String("platform", platform.String()),
		)
		return false
	}
	return true
}

func decodeSignature(enc Encoding, value string) ([]byte, error) {
	if enc == EncodingBase64 {
		return base64.StdEncoding.DecodeString(value)
	}
	return hex.DecodeString(value)
}

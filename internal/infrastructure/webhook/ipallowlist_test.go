package webhook

import (
	"testing"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func allowlistWithEnv(env map[string]string) *IPAllowlist {
	a := NewIPAllowlist(zap.NewNop())
	a.lookupEnv = func(key string) string { return env[key] }
	return a
}

func TestAllowed_NoRangesConfigured(t *testing.T) {
	// Signature-only mode: with no ranges the IP check is skipped
	a := allowlistWithEnv(nil)
	assert.True(t, a.Allowed(integration.PlatformCodeTrendyol, "203.0.113.5", nil))
}

func TestAllowed_CIDRMatch(t *testing.T) {
	a := allowlistWithEnv(map[string]string{
		"POS_TRENDYOL_WEBHOOK_IP_RANGES": "52.58.100.0/24",
	})

	assert.True(t, a.Allowed(integration.PlatformCodeTrendyol, "52.58.100.42", nil))
	assert.False(t, a.Allowed(integration.PlatformCodeTrendyol, "52.58.101.1", nil))
}

func TestAllowed_MultipleRangesAndBareIPs(t *testing.T) {
	a := allowlistWithEnv(map[string]string{
		"POS_GETIR_WEBHOOK_IP_RANGES": "10.1.0.0/16, 203.0.113.7",
	})

	assert.True(t, a.Allowed(integration.PlatformCodeGetir, "10.1.44.2", nil))
	assert.True(t, a.Allowed(integration.PlatformCodeGetir, "203.0.113.7", nil))
	assert.False(t, a.Allowed(integration.PlatformCodeGetir, "203.0.113.8", nil))
}

func TestAllowed_ExtraRangesFromCredentials(t *testing.T) {
	a := allowlistWithEnv(nil)

	// Fuudy tenants can pin ranges in their credentials
	extra := []string{"198.51.100.0/28"}
	assert.True(t, a.Allowed(integration.PlatformCodeFuudy, "198.51.100.9", extra))
	assert.False(t, a.Allowed(integration.PlatformCodeFuudy, "198.51.100.200", extra))
}

func TestAllowed_UnparseableSourceIP(t *testing.T) {
	a := allowlistWithEnv(map[string]string{
		"POS_MIGROS_WEBHOOK_IP_RANGES": "10.0.0.0/8",
	})

	assert.False(t, a.Allowed(integration.PlatformCodeMigros, "not-an-ip", nil))
}

func TestAllowed_BadRangeIgnored(t *testing.T) {
	a := allowlistWithEnv(map[string]string{
		"POS_MIGROS_WEBHOOK_IP_RANGES": "garbage/99,10.0.0.0/8",
	})

	assert.True(t, a.Allowed(integration.PlatformCodeMigros, "10.2.3.4", nil))
	assert.False(t, a.Allowed(integration.PlatformCodeMigros, "11.0.0.1", nil))
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "POS_YEMEKSEPETI_WEBHOOK_IP_RANGES", EnvVar(integration.PlatformCodeYemeksepeti))
}

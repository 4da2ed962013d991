package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CredentialSchemaVersion is the current on-disk schema version for
// credential blobs. Bump when a variant's field set changes shape.
const CredentialSchemaVersion = 1

// Prep time bounds in minutes, enforced at configuration time
const (
	MinPrepTime = 1
	MaxPrepTime = 120
)

// PlatformCredentials is the per-tenant, per-platform credential record.
// Exactly one variant pointer is non-nil and it must match Platform; the
// JSON codec enforces this, so a stored blob can never be decoded into the
// wrong shape.
type PlatformCredentials struct {
	SchemaVersion int          `json:"schema_version"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	Platform      PlatformCode `json:"platform"`

	// IsConfigured marks the credentials as complete and usable
	IsConfigured bool `json:"is_configured"`
	// AutoAccept makes incoming orders accepted without operator action
	AutoAccept bool `json:"auto_accept"`
	// DefaultPrepTime in minutes, used when an accept carries no estimate
	DefaultPrepTime int `json:"default_prep_time"`
	// PollingEnabled turns on the polling fallback for this platform
	PollingEnabled bool `json:"polling_enabled"`
	// LastPolledAt is the high-water mark of the polling fallback
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`

	Trendyol    *TrendyolCredentials    `json:"trendyol,omitempty"`
	Yemeksepeti *YemeksepetiCredentials `json:"yemeksepeti,omitempty"`
	Getir       *GetirCredentials       `json:"getir,omitempty"`
	Migros      *MigrosCredentials      `json:"migros,omitempty"`
	Fuudy       *FuudyCredentials       `json:"fuudy,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TrendyolCredentials authenticates against the Trendyol partner API
type TrendyolCredentials struct {
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	StoreID       string `json:"store_id"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// YemeksepetiCredentials authenticates via OAuth client credentials
type YemeksepetiCredentials struct {
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
	VendorID      string `json:"vendor_id"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	// AccessToken and TokenExpiresAt cache the current OAuth token
	AccessToken    string     `json:"access_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// GetirCredentials authenticates with a static API key
type GetirCredentials struct {
	APIKey        string `json:"api_key"`
	RestaurantID  string `json:"restaurant_id"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// MigrosCredentials authenticates via OAuth client credentials
type MigrosCredentials struct {
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	StoreCode       string `json:"store_code"`
	CertificatePath string `json:"certificate_path,omitempty"`
	WebhookSecret   string `json:"webhook_secret,omitempty"`
}

// FuudyCredentials authenticates with a static API key. Fuudy can also pin
// webhook source IPs per tenant.
type FuudyCredentials struct {
	APIKey        string   `json:"api_key"`
	RestaurantID  string   `json:"restaurant_id"`
	WebhookSecret string   `json:"webhook_secret,omitempty"`
	IPAllowlist   []string `json:"ip_allowlist,omitempty"`
}

// NewPlatformCredentials creates an empty credential record for a tenant
func NewPlatformCredentials(tenantID uuid.UUID, platform PlatformCode) *PlatformCredentials {
	return &PlatformCredentials{
		SchemaVersion:   CredentialSchemaVersion,
		TenantID:        tenantID,
		Platform:        platform,
		DefaultPrepTime: 30,
		UpdatedAt:       time.Now(),
	}
}

// Validate checks the record's structural invariants: a valid platform, a
// prep time inside bounds, and exactly one variant matching the platform tag.
func (c *PlatformCredentials) Validate() error {
	if c.TenantID == uuid.Nil {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidCredentials)
	}
	if !c.Platform.IsValid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidCredentials, c.Platform)
	}
	if c.SchemaVersion != CredentialSchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrCredentialSchemaVersion, c.SchemaVersion, CredentialSchemaVersion)
	}
	if c.DefaultPrepTime < MinPrepTime || c.DefaultPrepTime > MaxPrepTime {
		return fmt.Errorf("%w: default prep time %d outside [%d,%d]", ErrInvalidCredentials, c.DefaultPrepTime, MinPrepTime, MaxPrepTime)
	}

	variants := 0
	if c.Trendyol != nil {
		variants++
		if c.Platform != PlatformCodeTrendyol {
			return fmt.Errorf("%w: trendyol variant on platform %s", ErrInvalidCredentials, c.Platform)
		}
	}
	if c.Yemeksepeti != nil {
		variants++
		if c.Platform != PlatformCodeYemeksepeti {
			return fmt.Errorf("%w: yemeksepeti variant on platform %s", ErrInvalidCredentials, c.Platform)
		}
	}
	if c.Getir != nil {
		variants++
		if c.Platform != PlatformCodeGetir {
			return fmt.Errorf("%w: getir variant on platform %s", ErrInvalidCredentials, c.Platform)
		}
	}
	if c.Migros != nil {
		variants++
		if c.Platform != PlatformCodeMigros {
			return fmt.Errorf("%w: migros variant on platform %s", ErrInvalidCredentials, c.Platform)
		}
	}
	if c.Fuudy != nil {
		variants++
		if c.Platform != PlatformCodeFuudy {
			return fmt.Errorf("%w: fuudy variant on platform %s", ErrInvalidCredentials, c.Platform)
		}
	}
	if variants != 1 {
		return fmt.Errorf("%w: expected exactly one credential variant, got %d", ErrInvalidCredentials, variants)
	}

	if c.IsConfigured {
		if err := c.validateVariantComplete(); err != nil {
			return err
		}
	}
	return nil
}

// validateVariantComplete checks the required fields of the active variant
func (c *PlatformCredentials) validateVariantComplete() error {
	switch c.Platform {
	case PlatformCodeTrendyol:
		if c.Trendyol.APIKey == "" || c.Trendyol.APISecret == "" || c.Trendyol.StoreID == "" {
			return fmt.Errorf("%w: trendyol requires api_key, api_secret, store_id", ErrInvalidCredentials)
		}
	case PlatformCodeYemeksepeti:
		if c.Yemeksepeti.ClientID == "" || c.Yemeksepeti.ClientSecret == "" || c.Yemeksepeti.VendorID == "" {
			return fmt.Errorf("%w: yemeksepeti requires client_id, client_secret, vendor_id", ErrInvalidCredentials)
		}
	case PlatformCodeGetir:
		if c.Getir.APIKey == "" || c.Getir.RestaurantID == "" {
			return fmt.Errorf("%w: getir requires api_key, restaurant_id", ErrInvalidCredentials)
		}
	case PlatformCodeMigros:
		if c.Migros.ClientID == "" || c.Migros.ClientSecret == "" || c.Migros.StoreCode == "" {
			return fmt.Errorf("%w: migros requires client_id, client_secret, store_code", ErrInvalidCredentials)
		}
	case PlatformCodeFuudy:
		if c.Fuudy.APIKey == "" || c.Fuudy.RestaurantID == "" {
			return fmt.Errorf("%w: fuudy requires api_key, restaurant_id", ErrInvalidCredentials)
		}
	}
	return nil
}

// WebhookSecret returns the active variant's webhook secret, empty when unset
func (c *PlatformCredentials) WebhookSecret() string {
	switch c.Platform {
	case PlatformCodeTrendyol:
		if c.Trendyol != nil {
			return c.Trendyol.WebhookSecret
		}
	case PlatformCodeYemeksepeti:
		if c.Yemeksepeti != nil {
			return c.Yemeksepeti.WebhookSecret
		}
	case PlatformCodeGetir:
		if c.Getir != nil {
			return c.Getir.WebhookSecret
		}
	case PlatformCodeMigros:
		if c.Migros != nil {
			return c.Migros.WebhookSecret
		}
	case PlatformCodeFuudy:
		if c.Fuudy != nil {
			return c.Fuudy.WebhookSecret
		}
	}
	return ""
}

// Redacted returns a deep copy with every secret masked to its last four
// characters. Used by all read paths; the unmasked record never leaves the
// repository except into adapters.
func (c *PlatformCredentials) Redacted() *PlatformCredentials {
	out := *c
	if c.Trendyol != nil {
		t := *c.Trendyol
		t.APISecret = maskSecret(t.APISecret)
		t.WebhookSecret = maskSecret(t.WebhookSecret)
		out.Trendyol = &t
	}
	if c.Yemeksepeti != nil {
		y := *c.Yemeksepeti
		y.ClientSecret = maskSecret(y.ClientSecret)
		y.WebhookSecret = maskSecret(y.WebhookSecret)
		y.AccessToken = maskSecret(y.AccessToken)
		out.Yemeksepeti = &y
	}
	if c.Getir != nil {
		g := *c.Getir
		g.APIKey = maskSecret(g.APIKey)
		g.WebhookSecret = maskSecret(g.WebhookSecret)
		out.Getir = &g
	}
	if c.Migros != nil {
		m := *c.Migros
		m.ClientSecret = maskSecret(m.ClientSecret)
		m.WebhookSecret = maskSecret(m.WebhookSecret)
		out.Migros = &m
	}
	if c.Fuudy != nil {
		f := *c.Fuudy
		f.APIKey = maskSecret(f.APIKey)
		f.WebhookSecret = maskSecret(f.WebhookSecret)
		out.Fuudy = &f
	}
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// DecodeCredentials decodes a stored credential blob, rejecting unknown
// schema versions and wrong-shaped variants.
func DecodeCredentials(data []byte) (*PlatformCredentials, error) {
	var c PlatformCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// EncodeCredentials validates and serializes a credential record
func EncodeCredentials(c *PlatformCredentials) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/infrastructure/logger"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

// Gin context keys planted by the tenant middleware.
const (
	TenantIDKey     = "tenant_id"
	TenantCodeKey   = "tenant_code"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantInfo is what a TenantValidator resolves a raw tenant ID into.
type TenantInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// TenantValidator checks that a tenant exists and is active. Plug one into
// TenantMiddlewareConfig to reject requests for suspended tenants at the edge.
type TenantValidator interface {
	ValidateTenant(tenantID string) (*TenantInfo, error)
}

// TenantMiddlewareConfig controls how the tenant is resolved.
type TenantMiddlewareConfig struct {
	// HeaderEnabled reads the tenant from the X-Tenant-ID header.
	HeaderEnabled bool
	// SubdomainEnabled derives the tenant from the request host.
	SubdomainEnabled bool
	// BaseDomain anchors subdomain extraction, e.g. "posbridge.app".
	BaseDomain string
	// SkipPaths bypass tenant resolution entirely (health, ping).
	SkipPaths []string
	// Required rejects requests without a resolvable tenant.
	Required  bool
	Validator TenantValidator
	Logger    *zap.Logger
}

// DefaultTenantConfig resolves tenants from the header only and requires one.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddleware resolves the tenant with the default configuration.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig resolves the tenant for each request, header
// before subdomain, and stores it in both the gin context and the request
// context so the service layer and logs see the same tenant.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipTenantResolution(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, source := resolveTenant(c, cfg)

		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				rejectTenant(c, "Invalid tenant ID format")
				return
			}
		}
		if tenantID == "" && cfg.Required {
			rejectTenant(c, "Tenant identification required")
			return
		}
		if tenantID == "" {
			c.Next()
			return
		}

		var info *TenantInfo
		if cfg.Validator != nil {
			resolved, err := cfg.Validator.ValidateTenant(tenantID)
			if err != nil {
				tenantLogger(c, cfg).Warn("Tenant validation failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
				rejectTenant(c, "Invalid or inactive tenant")
				return
			}
			info = resolved
		}

		c.Set(TenantIDKey, tenantID)
		if info != nil {
			c.Set(TenantCodeKey, info.Code)
		}

		// Propagate into the request context so repositories and the gorm
		// logger pick the tenant up without touching gin.
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("source", source),
			)
		}

		c.Next()
	}
}

func skipTenantResolution(skipPaths []string, path string) bool {
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip+"/") {
			return true
		}
	}
	return false
}

func resolveTenant(c *gin.Context, cfg TenantMiddlewareConfig) (tenantID, source string) {
	if cfg.HeaderEnabled {
		if id := c.GetHeader(TenantHeaderKey); id != "" {
			return id, "header"
		}
	}
	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if id := tenantFromSubdomain(c.Request.Host, cfg.BaseDomain); id != "" {
			return id, "subdomain"
		}
	}
	return "", ""
}

// tenantFromSubdomain maps "acme.posbridge.app" under base domain
// "posbridge.app" to "acme". "www" and the bare base domain yield nothing.
func tenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+baseDomain)
	if sub == host || sub == "" || sub == "www" {
		return ""
	}
	// Multi-level subdomains keep only the leftmost label.
	return strings.Split(sub, ".")[0]
}

func tenantLogger(c *gin.Context, cfg TenantMiddlewareConfig) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logger.FromContext(c.Request.Context())
}

func rejectTenant(c *gin.Context, message string) {
	resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, c.GetString(RequestIDContextKey))
	c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
}

// GetTenantID returns the tenant resolved by the middleware, or "".
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID returns the resolved tenant as a UUID. A missing tenant
// yields uuid.Nil with no error.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	id := GetTenantID(c)
	if id == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(id)
}

// GetTenantCode returns the tenant code set by the validator, or "".
func GetTenantCode(c *gin.Context) string {
	return c.GetString(TenantCodeKey)
}

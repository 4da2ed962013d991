package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/backend/internal/infrastructure/logger"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTenantValidator struct {
	tenants map[string]*TenantInfo
	err     error
}

func (s *stubTenantValidator) ValidateTenant(tenantID string) (*TenantInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	if info, ok := s.tenants[tenantID]; ok {
		return info, nil
	}
	return nil, errors.New("tenant not found")
}

// tenantRouter mounts the middleware in front of a handler that captures the
// resolved tenant.
func tenantRouter(cfg TenantMiddlewareConfig, captured *string) *gin.Engine {
	router := gin.New()
	router.Use(TenantMiddlewareWithConfig(cfg))
	router.GET("/orders", func(c *gin.Context) {
		if captured != nil {
			*captured = GetTenantID(c)
		}
		c.Status(http.StatusOK)
	})
	return router
}

func getWithTenant(router *gin.Engine, path, tenantHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tenantHeader != "" {
		req.Header.Set(TenantHeaderKey, tenantHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTenantMiddleware_HeaderResolution(t *testing.T) {
	tenantID := uuid.New().String()

	var captured string
	router := tenantRouter(DefaultTenantConfig(), &captured)

	w := getWithTenant(router, "/orders", tenantID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, captured)
}

func TestTenantMiddleware_MissingTenantRejected(t *testing.T) {
	router := tenantRouter(DefaultTenantConfig(), nil)

	w := getWithTenant(router, "/orders", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
}

func TestTenantMiddleware_MalformedTenantRejected(t *testing.T) {
	router := tenantRouter(DefaultTenantConfig(), nil)

	w := getWithTenant(router, "/orders", "not-a-uuid")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantMiddleware_HeaderBeatsSubdomain(t *testing.T) {
	headerTenant := uuid.New().String()

	cfg := DefaultTenantConfig()
	cfg.SubdomainEnabled = true
	cfg.BaseDomain = "posbridge.app"

	var captured string
	router := tenantRouter(cfg, &captured)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Host = "acme.posbridge.app"
	req.Header.Set(TenantHeaderKey, headerTenant)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, headerTenant, captured)
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		skipPaths  []string
		wantStatus int
	}{
		{"exact match skipped", "/health", []string{"/health"}, http.StatusOK},
		{"nested path skipped", "/health/ready", []string{"/health"}, http.StatusOK},
		{"unlisted path still gated", "/orders", []string{"/health"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig()
			cfg.SkipPaths = tt.skipPaths

			router := gin.New()
			router.Use(TenantMiddlewareWithConfig(cfg))
			router.GET(tt.path, func(c *gin.Context) { c.Status(http.StatusOK) })

			w := getWithTenant(router, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTenantMiddleware_NotRequired(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.Required = false

	captured := "sentinel"
	router := tenantRouter(cfg, &captured)

	w := getWithTenant(router, "/orders", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, captured)
}

func TestTenantMiddleware_Validator(t *testing.T) {
	knownTenant := uuid.New().String()
	validator := &stubTenantValidator{
		tenants: map[string]*TenantInfo{
			knownTenant: {ID: uuid.MustParse(knownTenant), Code: "ACME"},
		},
	}

	cfg := DefaultTenantConfig()
	cfg.Validator = validator

	var capturedCode string
	router := gin.New()
	router.Use(TenantMiddlewareWithConfig(cfg))
	router.GET("/orders", func(c *gin.Context) {
		capturedCode = GetTenantCode(c)
		c.Status(http.StatusOK)
	})

	t.Run("known tenant passes and carries its code", func(t *testing.T) {
		w := getWithTenant(router, "/orders", knownTenant)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ACME", capturedCode)
	})

	t.Run("unknown tenant rejected", func(t *testing.T) {
		w := getWithTenant(router, "/orders", uuid.New().String())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTenantMiddleware_ValidatorFailureRejects(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.Validator = &stubTenantValidator{err: errors.New("database connection failed")}

	router := tenantRouter(cfg, nil)

	w := getWithTenant(router, "/orders", uuid.New().String())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantMiddleware_HeaderDisabled(t *testing.T) {
	cfg := DefaultTenantConfig()
	cfg.HeaderEnabled = false
	cfg.Required = false

	captured := "sentinel"
	router := tenantRouter(cfg, &captured)

	w := getWithTenant(router, "/orders", uuid.New().String())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, captured)
}

func TestTenantMiddleware_PropagatesIntoRequestContext(t *testing.T) {
	tenantID := uuid.New().String()

	router := gin.New()
	router.Use(TenantMiddleware())
	router.GET("/orders", func(c *gin.Context) {
		assert.Equal(t, tenantID, logger.GetTenantID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w := getWithTenant(router, "/orders", tenantID)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetTenantUUID(t *testing.T) {
	tenantID := uuid.New()

	router := gin.New()
	router.Use(TenantMiddleware())
	router.GET("/orders", func(c *gin.Context) {
		got, err := GetTenantUUID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
		c.Status(http.StatusOK)
	})

	w := getWithTenant(router, "/orders", tenantID.String())

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetTenantUUID_MissingTenantIsNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	got, err := GetTenantUUID(c)

	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
}

func TestTenantFromSubdomain(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"simple subdomain", "acme.posbridge.app", "acme"},
		{"subdomain with port", "acme.posbridge.app:8080", "acme"},
		{"bare base domain", "posbridge.app", ""},
		{"www ignored", "www.posbridge.app", ""},
		{"foreign domain", "acme.other.com", ""},
		{"multi-level keeps leftmost", "app.acme.posbridge.app", "app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tenantFromSubdomain(tt.host, "posbridge.app"))
		})
	}
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()

	assert.True(t, cfg.HeaderEnabled)
	assert.False(t, cfg.SubdomainEnabled)
	assert.True(t, cfg.Required)
	assert.Nil(t, cfg.Validator)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
}

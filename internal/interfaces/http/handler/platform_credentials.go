package handler

import (
	"github.com/gin-gonic/gin"

	integrationapp "github.com/posbridge/backend/internal/application/integration"
)

// PlatformCredentialsHandler manages per-platform credential configuration
// and the platform-level restaurant controls
type PlatformCredentialsHandler struct {
	BaseHandler
	credentialService *integrationapp.CredentialService
}

// NewPlatformCredentialsHandler creates a new PlatformCredentialsHandler
func NewPlatformCredentialsHandler(credentialService *integrationapp.CredentialService) *PlatformCredentialsHandler {
	return &PlatformCredentialsHandler{
		credentialService: credentialService,
	}
}

// Configure handles PUT /integrations/:platform/credentials. The stored
// record is returned with all secrets redacted.
func (h *PlatformCredentialsHandler) Configure(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req integrationapp.ConfigurePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	creds, err := h.credentialService.ConfigurePlatform(c.Request.Context(), tenantID, platform, req)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, creds)
}

// Get handles GET /integrations/:platform/credentials
func (h *PlatformCredentialsHandler) Get(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	creds, err := h.credentialService.GetCredentials(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, creds)
}

// List handles GET /integrations/credentials
func (h *PlatformCredentialsHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	all, err := h.credentialService.ListCredentials(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, all)
}

// TestConnection handles POST /integrations/:platform/credentials/test
func (h *PlatformCredentialsHandler) TestConnection(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.credentialService.TestConnection(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, result)
}

// SetPollingRequest toggles the polling fallback for a platform
type SetPollingRequest struct {
	Enabled bool `json:"enabled"`
}

// SetPolling handles PUT /integrations/:platform/polling
func (h *PlatformCredentialsHandler) SetPolling(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SetPollingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.credentialService.SetPollingEnabled(c.Request.Context(), tenantID, platform, req.Enabled); err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, gin.H{"polling_enabled": req.Enabled})
}

// RestaurantStatusRequest opens or closes the restaurant on a platform
type RestaurantStatusRequest struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason" binding:"max=500"`
}

// GetRestaurantStatus handles GET /integrations/:platform/restaurant-status
func (h *PlatformCredentialsHandler) GetRestaurantStatus(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	status, err := h.credentialService.GetRestaurantStatus(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, status)
}

// SetRestaurantStatus handles POST /integrations/:platform/restaurant-status
func (h *PlatformCredentialsHandler) SetRestaurantStatus(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RestaurantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.Open {
		err = h.credentialService.SetRestaurantOpen(ctx, tenantID, platform)
	} else {
		err = h.credentialService.SetRestaurantClosed(ctx, tenantID, platform, req.Reason)
	}
	if err != nil {
		h.HandleIntegrationError(c, err)
		return
	}

	h.Success(c, gin.H{"open": req.Open})
}

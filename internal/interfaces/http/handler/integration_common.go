package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

// platformParam parses the :platform path parameter, case-insensitively
func platformParam(c *gin.Context) (integration.PlatformCode, bool) {
	code := integration.PlatformCode(strings.ToUpper(c.Param("platform")))
	if !code.IsValid() {
		return "", false
	}
	return code, true
}

// integrationErrorStatus maps integration domain sentinels to error codes.
// Anything unmapped falls through to the generic handlers.
var integrationErrorCodes = []struct {
	err  error
	code string
}{
	{integration.ErrOrderNotFound, dto.ErrCodeNotFound},
	{integration.ErrMappingNotFound, dto.ErrCodeNotFound},
	{integration.ErrPlatformNotConfigured, dto.ErrCodeNotFound},
	{integration.ErrMappingAlreadyExists, dto.ErrCodeAlreadyExists},
	{integration.ErrOrderAlreadyAccepted, dto.ErrCodeConflict},
	{integration.ErrPlatformNotSupported, dto.ErrCodeBadRequest},
	{integration.ErrInvalidCredentials, dto.ErrCodeBadRequest},
	{integration.ErrCredentialSchemaVersion, dto.ErrCodeBadRequest},
	{integration.ErrRejectReasonRequired, dto.ErrCodeBadRequest},
	{integration.ErrMappingInvalidMultiplier, dto.ErrCodeBadRequest},
	{integration.ErrInvalidWebhookPayload, dto.ErrCodeBadRequest},
	{integration.ErrTenantContextNotSet, dto.ErrCodeInternal},
	{integration.ErrAPIRequest, dto.ErrCodeUpstream},
	{integration.ErrAPIResponse, dto.ErrCodeUpstream},
}

// HandleIntegrationError converts integration domain errors to HTTP
// responses, delegating everything else to HandleError
func (h *BaseHandler) HandleIntegrationError(c *gin.Context, err error) {
	for _, m := range integrationErrorCodes {
		if errors.Is(err, m.err) {
			h.ErrorWithCode(c, m.code, err.Error())
			return
		}
	}
	h.HandleError(c, err)
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/posbridge/backend/internal/application/integration"
	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
)

// WebhookHandler receives order webhooks from the delivery platforms
type WebhookHandler struct {
	BaseHandler
	orderService *integrationapp.OrderIntegrationService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(orderService *integrationapp.OrderIntegrationService) *WebhookHandler {
	return &WebhookHandler{
		orderService: orderService,
	}
}

// WebhookAckResponse is the body returned to the platform on 200
type WebhookAckResponse struct {
	Received  bool   `json:"received"`
	Ping      bool   `json:"ping,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Queued    bool   `json:"queued,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

// Receive handles POST /webhooks/:platform. The response codes are part of
// the platform contract: 401 tells the platform its signature was rejected,
// 400 that the payload is structurally broken, and 200 that we own the event
// from here on, including events parked on the dead-letter queue.
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		h.BadRequest(c, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil || tenantID == uuid.Nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}

	req := &integration.WebhookRequest{
		Body:     body,
		Headers:  headers,
		SourceIP: c.ClientIP(),
	}

	result, err := h.orderService.ProcessWebhook(c.Request.Context(), tenantID, platform, req)
	if err != nil {
		switch {
		case errors.Is(err, integrationapp.ErrWebhookVerificationFailed):
			h.Unauthorized(c, "Webhook signature verification failed")
		case errors.Is(err, integration.ErrInvalidWebhookPayload),
			errors.Is(err, integration.ErrPlatformNotSupported):
			h.BadRequest(c, "Invalid webhook payload")
		case errors.Is(err, integration.ErrPlatformNotConfigured):
			h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Platform not configured for tenant")
		default:
			h.InternalError(c, "Webhook processing failed")
		}
		return
	}

	ack := WebhookAckResponse{
		Received:  true,
		Ping:      result.Ping,
		Duplicate: result.Duplicate,
		Queued:    result.DeadLettered,
	}
	if result.Record != nil {
		ack.OrderID = result.Record.ID.String()
	}
	h.Success(c, ack)
}

package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	cases := map[string]int{
		ErrCodeUnknown:             http.StatusInternalServerError,
		ErrCodeInternal:            http.StatusInternalServerError,
		ErrCodeValidation:          http.StatusBadRequest,
		ErrCodeValidationRequired:  http.StatusBadRequest,
		ErrCodeBadRequest:          http.StatusBadRequest,
		ErrCodeInvalidInput:        http.StatusBadRequest,
		ErrCodeInvalidJSON:         http.StatusBadRequest,
		ErrCodeUnauthorized:        http.StatusUnauthorized,
		ErrCodeWebhookRejected:     http.StatusUnauthorized,
		ErrCodeForbidden:           http.StatusForbidden,
		ErrCodeNotFound:            http.StatusNotFound,
		ErrCodeAlreadyExists:       http.StatusConflict,
		ErrCodeConflict:            http.StatusConflict,
		ErrCodeConcurrencyConflict: http.StatusConflict,
		ErrCodeInvalidState:        http.StatusUnprocessableEntity,
		ErrCodeBusinessRule:        http.StatusUnprocessableEntity,
		ErrCodeNotConfigured:       http.StatusUnprocessableEntity,
		ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
		ErrCodeRateLimited:         http.StatusTooManyRequests,
		ErrCodeUpstream:            http.StatusBadGateway,
		ErrCodeUpstreamTimeout:     http.StatusGatewayTimeout,
	}

	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, GetHTTPStatus(code))
		})
	}

	t.Run("unmapped code falls back to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_SOMETHING_NEW"))
	})
}

func TestEveryErrorCodeHasAStatus(t *testing.T) {
	for code, status := range ErrorCodeHTTPStatus {
		assert.Contains(t, code, "ERR_", "code %s", code)
		assert.GreaterOrEqual(t, status, 400, "code %s maps to a non-error status", code)
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	t.Run("domain codes map to wire codes", func(t *testing.T) {
		for legacy, want := range map[string]string{
			"NOT_FOUND":            ErrCodeNotFound,
			"ALREADY_EXISTS":       ErrCodeAlreadyExists,
			"INVALID_INPUT":        ErrCodeInvalidInput,
			"INVALID_STATE":        ErrCodeInvalidState,
			"UNAUTHORIZED":         ErrCodeUnauthorized,
			"FORBIDDEN":            ErrCodeForbidden,
			"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
			"NOT_CONFIGURED":       ErrCodeNotConfigured,
			"WEBHOOK_REJECTED":     ErrCodeWebhookRejected,
			"VALIDATION_ERROR":     ErrCodeValidation,
			"BAD_REQUEST":          ErrCodeBadRequest,
			"INTERNAL_ERROR":       ErrCodeInternal,
		} {
			assert.Equal(t, want, NormalizeErrorCode(legacy))
		}
	})

	t.Run("wire codes pass through", func(t *testing.T) {
		assert.Equal(t, ErrCodeUpstream, NormalizeErrorCode(ErrCodeUpstream))
		assert.Equal(t, ErrCodeWebhookRejected, NormalizeErrorCode(ErrCodeWebhookRejected))
	})

	t.Run("unknown codes pass through", func(t *testing.T) {
		assert.Equal(t, "PLATFORM_SPECIFIC", NormalizeErrorCode("PLATFORM_SPECIFIC"))
	})
}

func TestNewErrorResponse(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse("NOT_FOUND", "order mapping not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	if assert.NotNil(t, resp.Error) {
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code, "domain code should be normalized")
		assert.Equal(t, "order mapping not found", resp.Error.Message)
		assert.False(t, resp.Error.Timestamp.Before(before))
		assert.False(t, resp.Error.Timestamp.After(time.Now()))
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeWebhookRejected, "signature mismatch", "req-ty-42")

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeWebhookRejected, resp.Error.Code)
	assert.Equal(t, "signature mismatch", resp.Error.Message)
	assert.Equal(t, "req-ty-42", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "platform", Message: "Must be one of TRENDYOL YEMEKSEPETI GETIR MIGROS FUUDY"},
		{Field: "prep_time_minutes", Message: "Must be greater than 0"},
	}

	resp := NewValidationErrorResponse("Validation failed", "req-55", details)

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-55", resp.Error.RequestID)
	if assert.Len(t, resp.Error.Details, 2) {
		assert.Equal(t, "platform", resp.Error.Details[0].Field)
		assert.Equal(t, "prep_time_minutes", resp.Error.Details[1].Field)
	}
}

func TestNewErrorResponseWithHelp(t *testing.T) {
	resp := NewErrorResponseWithHelp(ErrCodeNotConfigured, "no credentials for GETIR", "req-9", "/api/v1/integrations/credentials")

	assert.Equal(t, ErrCodeNotConfigured, resp.Error.Code)
	assert.Equal(t, "/api/v1/integrations/credentials", resp.Error.Help)
}

func TestErrorResponseRoundTripsThroughJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeUpstreamTimeout, "platform did not answer", "req-7")

	raw, err := json.Marshal(resp)
	assert.NoError(t, err)

	var decoded Response
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.False(t, decoded.Success)
	assert.Equal(t, ErrCodeUpstreamTimeout, decoded.Error.Code)
	assert.Equal(t, "platform did not answer", decoded.Error.Message)
	assert.Equal(t, "req-7", decoded.Error.RequestID)
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"status": "ACCEPTED"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a", "b"}, 100, 1, 10)

	assert.True(t, resp.Success)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, int64(100), resp.Meta.Total)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 10, resp.Meta.PageSize)
		assert.Equal(t, 10, resp.Meta.TotalPages)
	}
}

func TestNewSuccessResponseWithMetaPagination(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
		wantSize  int
	}{
		{"exact pages", 100, 10, 10, 10},
		{"partial last page", 101, 10, 11, 10},
		{"empty result", 0, 10, 0, 10},
		{"fewer than one page", 9, 10, 1, 10},
		{"exactly one page", 10, 10, 1, 10},
		{"just over one page", 11, 10, 2, 10},
		{"zero page size defaults", 100, 0, 5, 20},
		{"negative page size defaults", 100, -1, 5, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta(nil, tt.total, 1, tt.pageSize)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
			assert.Equal(t, tt.wantSize, resp.Meta.PageSize)
		})
	}
}

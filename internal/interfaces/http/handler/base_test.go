package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/backend/internal/domain/shared"
	"github.com/posbridge/backend/internal/interfaces/http/dto"
	"github.com/posbridge/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordedContext builds a test context with an attached request.
func recordedContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	t.Run("prefers the context value", func(t *testing.T) {
		c, _ := recordedContext()
		c.Set(middleware.RequestIDContextKey, "ctx-id")
		c.Request.Header.Set(middleware.RequestIDHeader, "header-id")

		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("falls back to the header", func(t *testing.T) {
		c, _ := recordedContext()
		c.Request.Header.Set(middleware.RequestIDHeader, "header-id")

		assert.Equal(t, "header-id", getRequestID(c))
	})

	t.Run("empty when neither is set", func(t *testing.T) {
		c, _ := recordedContext()

		assert.Empty(t, getRequestID(c))
	})
}

func TestGetTenantID(t *testing.T) {
	tenantID := uuid.New()

	t.Run("resolved tenant wins", func(t *testing.T) {
		c, _ := recordedContext()
		c.Set(middleware.TenantIDKey, tenantID.String())

		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
	})

	t.Run("header fallback", func(t *testing.T) {
		c, _ := recordedContext()
		c.Request.Header.Set(middleware.TenantHeaderKey, tenantID.String())

		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
	})

	t.Run("missing tenant errors", func(t *testing.T) {
		c, _ := recordedContext()

		_, err := getTenantID(c)
		assert.Error(t, err)
	})

	t.Run("malformed tenant errors", func(t *testing.T) {
		c, _ := recordedContext()
		c.Set(middleware.TenantIDKey, "not-a-uuid")

		_, err := getTenantID(c)
		assert.Error(t, err)
	})
}

func TestBaseHandler_SuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success", func(t *testing.T) {
		c, w := recordedContext()
		h.Success(c, map[string]string{"status": "ACCEPTED"})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("SuccessWithMeta", func(t *testing.T) {
		c, w := recordedContext()
		h.SuccessWithMeta(c, []string{"m1", "m2"}, 42, 2, 20)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(42), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
	})

	t.Run("Created", func(t *testing.T) {
		c, w := recordedContext()
		h.Created(c, map[string]string{"id": "pm-1"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeResponse(t, w).Success)
	})

	t.Run("NoContent", func(t *testing.T) {
		c, w := recordedContext()
		h.NoContent(c)
		c.Writer.WriteHeaderNow()

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestBaseHandler_ErrorResponses(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name       string
		send       func(c *gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"BadRequest", func(c *gin.Context) { h.BadRequest(c, "bad payload") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(c *gin.Context) { h.NotFound(c, "no such mapping") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Unauthorized", func(c *gin.Context) { h.Unauthorized(c, "signature mismatch") }, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"InternalError", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"Error with explicit status", func(c *gin.Context) { h.Error(c, http.StatusTeapot, dto.ErrCodeBusinessRule, "nope") }, http.StatusTeapot, dto.ErrCodeBusinessRule},
		{"ErrorWithCode derives status", func(c *gin.Context) { h.ErrorWithCode(c, dto.ErrCodeUpstream, "platform down") }, http.StatusBadGateway, dto.ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := recordedContext()
			tt.send(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandler_ErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := recordedContext()
	c.Set(middleware.RequestIDContextKey, "req-77")

	h.BadRequest(c, "bad payload")

	resp := decodeResponse(t, w)
	assert.Equal(t, "req-77", resp.Error.RequestID)
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "domain not found",
			err:        shared.NewDomainError("NOT_FOUND", "order mapping not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
			wantMsg:    "order mapping not found",
		},
		{
			name:       "domain invalid state",
			err:        shared.NewDomainError("INVALID_STATE", "order already cancelled"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeInvalidState,
			wantMsg:    "order already cancelled",
		},
		{
			name:       "wrapped domain error unwraps",
			err:        fmt.Errorf("accept order: %w", shared.NewDomainError("NOT_CONFIGURED", "no credentials for platform")),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeNotConfigured,
			wantMsg:    "no credentials for platform",
		},
		{
			name:       "plain error stays opaque",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
			wantMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := recordedContext()
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestBaseHandler_HandleErrorNilWritesNothing(t *testing.T) {
	h := &BaseHandler{}
	c, w := recordedContext()

	h.HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}

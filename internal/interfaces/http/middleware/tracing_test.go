package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordedSpans installs an in-memory tracer provider for the duration of the
// test and returns the recorder.
func recordedSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

// tracedRequest serves one GET request through the given middleware chain and
// a handler answering with the given status.
func tracedRequest(t *testing.T, status int, headers map[string]string, mw ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	for _, m := range mw {
		router.Use(m)
	}
	router.GET("/orders/:id", func(c *gin.Context) {
		c.JSON(status, gin.H{"status": status})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/orders/o-1", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

// httpSpan finds the server span otelgin names after the route pattern.
func httpSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == "GET /orders/:id" {
			return span
		}
	}
	t.Fatal("server span not recorded")
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestTracingWithConfig_DisabledIsPassthrough(t *testing.T) {
	sr := recordedSpans(t)

	w := tracedRequest(t, http.StatusOK, nil,
		TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "posbridge"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracingWithConfig_RecordsServerSpan(t *testing.T) {
	sr := recordedSpans(t)

	w := tracedRequest(t, http.StatusOK, nil,
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, sr.Ended())
	httpSpan(t, sr)
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	sr := recordedSpans(t)

	tracedRequest(t, http.StatusOK,
		map[string]string{RequestIDHeader: "req-trace-1"},
		RequestID(),
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		TracingAttributeInjector())

	got, ok := spanAttr(httpSpan(t, sr), "request_id")
	require.True(t, ok, "request_id attribute missing")
	assert.Equal(t, "req-trace-1", got)
}

func TestTracing_TenantAttributeFromResolvedTenant(t *testing.T) {
	sr := recordedSpans(t)

	tracedRequest(t, http.StatusOK, nil,
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		func(c *gin.Context) {
			c.Set(TenantIDKey, "tenant-456")
			c.Next()
		},
		TracingAttributeInjector())

	got, ok := spanAttr(httpSpan(t, sr), "tenant_id")
	require.True(t, ok, "tenant_id attribute missing")
	assert.Equal(t, "tenant-456", got)
}

func TestTracing_TenantAttributeFromHeader(t *testing.T) {
	sr := recordedSpans(t)

	tracedRequest(t, http.StatusOK,
		map[string]string{"X-Tenant-ID": "12345678-1234-1234-1234-123456789abc"},
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		TracingAttributeInjector())

	got, ok := spanAttr(httpSpan(t, sr), "tenant_id")
	require.True(t, ok)
	assert.Equal(t, "12345678-1234-1234-1234-123456789abc", got)
}

func TestTracing_MalformedTenantHeaderIgnored(t *testing.T) {
	sr := recordedSpans(t)

	tracedRequest(t, http.StatusOK,
		map[string]string{"X-Tenant-ID": "<script>alert(1)</script>"},
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		TracingAttributeInjector())

	_, ok := spanAttr(httpSpan(t, sr), "tenant_id")
	assert.False(t, ok, "malformed header must not reach the span")
}

func TestSpanErrorMarker_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusBadRequest, "Bad Request"},
		{http.StatusUnauthorized, "Unauthorized"},
		{http.StatusForbidden, "Forbidden"},
		{http.StatusNotFound, "Not Found"},
		{http.StatusUnprocessableEntity, "Unprocessable Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			sr := recordedSpans(t)

			w := tracedRequest(t, tt.status, nil,
				TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
				SpanErrorMarker())

			assert.Equal(t, tt.status, w.Code)
			span := httpSpan(t, sr)
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.message, span.Status().Description)
		})
	}
}

func TestSpanErrorMarker_5xx(t *testing.T) {
	sr := recordedSpans(t)

	w := tracedRequest(t, http.StatusBadGateway, nil,
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		SpanErrorMarker())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	// otelgin may set the error status first; either way the code is Error.
	assert.Equal(t, codes.Error, httpSpan(t, sr).Status().Code)
}

func TestSpanErrorMarker_SuccessLeftUnmarked(t *testing.T) {
	sr := recordedSpans(t)

	tracedRequest(t, http.StatusOK, nil,
		TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "posbridge"}),
		SpanErrorMarker())

	assert.NotEqual(t, codes.Error, httpSpan(t, sr).Status().Code)
}

func TestSpanErrorMarker_NoRecordingSpan(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	w := tracedRequest(t, http.StatusInternalServerError, nil, SpanErrorMarker())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTracingAttributeInjector_NoRecordingSpan(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	w := tracedRequest(t, http.StatusOK, nil, TracingAttributeInjector())

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	assert.Equal(t, "posbridge", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}

func TestTracing_DefaultConfigRecords(t *testing.T) {
	sr := recordedSpans(t)

	w := tracedRequest(t, http.StatusOK, nil, Tracing())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, sr.Ended())
}

func TestSpanRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("prefers the context value", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDHeader, "from-header")
		c.Set(RequestIDContextKey, "from-context")

		assert.Equal(t, "from-context", spanRequestID(c))
	})

	t.Run("falls back to the header", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDHeader, "from-header")

		assert.Equal(t, "from-header", spanRequestID(c))
	})

	t.Run("truncates oversized headers", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDHeader, strings.Repeat("x", 500))

		assert.Len(t, spanRequestID(c), MaxRequestIDLength)
	})
}

func TestSpanTenantID_HeaderValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"lowercase uuid", "12345678-1234-1234-1234-123456789abc", "12345678-1234-1234-1234-123456789abc"},
		{"uppercase uuid", "12345678-1234-1234-1234-123456789ABC", "12345678-1234-1234-1234-123456789ABC"},
		{"truncated uuid", "12345678-1234-1234", ""},
		{"no dashes", "12345678123412341234123456789abc", ""},
		{"special characters", "12345678-1234-1234-1234-123456789<>!", ""},
		{"script injection", "<script>alert(1)</script>", ""},
		{"embedded space", "12345678-1234 -1234-1234-123456789abc", ""},
		{"empty", "", ""},
		{"overlong", "12345678-1234-1234-1234-123456789abc" + strings.Repeat("a", 100), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("X-Tenant-ID", tt.header)
			}

			assert.Equal(t, tt.want, spanTenantID(c))
		})
	}
}

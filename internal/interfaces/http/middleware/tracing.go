// Package middleware provides HTTP middleware for the POS bridge API.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Header values copied into span attributes are bounded and validated so a
// caller cannot inflate or poison trace data.
const (
	MaxRequestIDLength = 128
	MaxTenantIDLength  = 64
)

var tenantHeaderPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns the tracing configuration used by the server.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "posbridge", Enabled: true}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin and tags each span with request_id and
// tenant_id. Span names come from otelgin as "METHOD route_pattern". When
// disabled the middleware is a passthrough.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	base := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		base(c)

		// otelgin has created the span by now; tag it.
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			tagSpan(c, span)
		}
	}
}

func tagSpan(c *gin.Context, span trace.Span) {
	if id := spanRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if id := spanTenantID(c); id != "" {
		span.SetAttributes(attribute.String("tenant_id", id))
	}
}

// spanRequestID prefers the id planted by the RequestID middleware and falls
// back to the inbound header, truncated to a sane length.
func spanRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDContextKey); id != "" {
		return id
	}
	header := c.GetHeader(RequestIDHeader)
	if len(header) > MaxRequestIDLength {
		return header[:MaxRequestIDLength]
	}
	return header
}

// spanTenantID prefers the tenant resolved by the tenant middleware. The
// header fallback covers requests traced before tenant resolution ran, and
// only accepts well-formed UUIDs.
func spanTenantID(c *gin.Context) string {
	if id := c.GetString(TenantIDKey); id != "" {
		return id
	}
	header := c.GetHeader("X-Tenant-ID")
	if len(header) <= MaxTenantIDLength && tenantHeaderPattern.MatchString(header) {
		return header
	}
	return ""
}

// SpanErrorMarker marks the current span with an error status for 4xx/5xx
// responses. Place it after the Tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		msg := http.StatusText(status)
		if msg == "" {
			msg = "Request Failed"
		}
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// TracingAttributeInjector re-tags the current span once tenant resolution
// has run. Place it after both the Tracing and Tenant middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			tagSpan(c, span)
		}
		c.Next()
	}
}

package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type loggerKey struct{}
type requestIDKey struct{}
type tenantIDKey struct{}

// WithContext attaches the logger to the context
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the context's logger, or a no-op logger when none is
// attached. Callers never need to nil-check the result.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID and returns the context together with a
// logger that stamps request_id on every entry
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	l = l.With(zap.String("request_id", requestID))
	return WithContext(ctx, l), l
}

// GetRequestID returns the request ID stored in the context, if any
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTenantID stores the resolved tenant and returns the context together
// with a logger that stamps tenant_id on every entry. Every request past
// tenant resolution logs through one of these.
func WithTenantID(ctx context.Context, l *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, tenantIDKey{}, tenantID)
	l = l.With(zap.String("tenant_id", tenantID))
	return WithContext(ctx, l), l
}

// GetTenantID returns the tenant ID stored in the context, if any
func GetTenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey{}).(string)
	return id
}

// WithTraceContext stamps trace_id and span_id from the active span onto the
// logger so log lines can be joined with traces. Without a recording span the
// logger is returned unchanged.
func WithTraceContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies business spans started through this package.
const TracerName = "posbridge"

// Span attribute keys used across the integration pipeline. Metric labels
// live in metrics.go as attribute.Key values; these are plain strings for
// the variadic span helpers.
const (
	SpanAttrOrderID         = "order_id"
	SpanAttrPlatformOrderID = "platform_order_id"
	SpanAttrOrderStatus     = "order_status"

	SpanAttrPlatform   = "platform"
	SpanAttrWebhookKey = "webhook_event"

	SpanAttrSyncType  = "sync_type"
	SpanAttrItemCount = "item_count"

	SpanAttrAttempt    = "attempt"
	SpanAttrSourceType = "source_type"
	SpanAttrSourceID   = "source_id"
)

// SpanOption configures span creation.
type SpanOption func(*spanSettings)

type spanSettings struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// WithAttribute attaches an attribute at span start.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(s *spanSettings) {
		s.attrs = append(s.attrs, anyAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(s *spanSettings) {
		s.kind = kind
	}
}

// StartSpan opens a span on the package tracer. The caller owns span.End.
//
//	ctx, span := telemetry.StartSpan(ctx, "order_integration.process_webhook")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	settings := spanSettings{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&settings)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(settings.kind)}
	if len(settings.attrs) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(settings.attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, startOpts...)
}

// StartServiceSpan opens a span named {service}.{method}, the convention the
// application services follow.
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttribute sets one attribute on an existing span. Nil spans are ignored.
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(anyAttribute(key, value))
}

// SetAttributes sets attributes from alternating key/value arguments.
// Pairs whose key is not a string are skipped.
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(pairAttributes(keyValues)...)
}

// AddEvent records a timestamped annotation with alternating key/value
// attribute arguments.
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairAttributes(keyValues)...))
}

// RecordError marks the span failed and records the error event.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK explicitly marks the span successful. Optional; spans without an
// error status already count as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SpanFromContext returns the span carried by ctx, if any.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// ContextWithSpan attaches span to ctx.
func ContextWithSpan(ctx context.Context, span trace.Span) context.Context {
	return trace.ContextWithSpan(ctx, span)
}

// GetTraceID returns the active trace ID, or "" outside a recording trace.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the active span ID, or "" outside a recording trace.
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.SpanID().IsValid() {
		return ""
	}
	return sc.SpanID().String()
}

func pairAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, anyAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func anyAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case []int:
		return attribute.IntSlice(key, v)
	case []int64:
		return attribute.Int64Slice(key, v)
	case []float64:
		return attribute.Float64Slice(key, v)
	case []bool:
		return attribute.BoolSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

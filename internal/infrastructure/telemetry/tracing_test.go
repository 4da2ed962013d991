package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/posbridge/backend/internal/infrastructure/telemetry"
)

// recordSpans swaps in an in-memory tracer provider for the duration of a
// test and returns the recorder for assertions.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStartSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.process_webhook")
	require.NotNil(t, span)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "order_integration.process_webhook", ended[0].Name())
	assert.Equal(t, trace.SpanKindInternal, ended[0].SpanKind())
}

func TestStartSpan_Options(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "webhook.receive",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, "trendyol"),
		telemetry.WithAttribute(telemetry.SpanAttrAttempt, 2),
		telemetry.WithSpanKind(trace.SpanKindServer))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())

	attrs := spanAttrs(ended[0])
	assert.Equal(t, "trendyol", attrs["platform"].AsString())
	assert.Equal(t, int64(2), attrs["attempt"].AsInt64())
}

func TestStartServiceSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "menu_sync", "trigger")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "menu_sync.trigger", ended[0].Name())
}

func TestSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.accept")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlatformOrderID, "TY-9001",
		telemetry.SpanAttrItemCount, 4,
		"auto_accepted", true,
	)
	span.End()

	attrs := spanAttrs(recorder.Ended()[0])
	assert.Equal(t, "TY-9001", attrs["platform_order_id"].AsString())
	assert.Equal(t, int64(4), attrs["item_count"].AsInt64())
	assert.True(t, attrs["auto_accepted"].AsBool())
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.accept")
	telemetry.SetAttributes(span, 42, "dropped", telemetry.SpanAttrPlatform, "getir")
	span.End()

	attrs := spanAttrs(recorder.Ended()[0])
	assert.Equal(t, "getir", attrs["platform"].AsString())
	assert.Len(t, attrs, 1)
}

func TestSetAttribute_ValueCoercion(t *testing.T) {
	recorder := recordSpans(t)

	type payload struct{}
	_, span := telemetry.StartSpan(context.Background(), "coerce")
	telemetry.SetAttribute(span, "count64", int64(7))
	telemetry.SetAttribute(span, "ratio", 0.5)
	telemetry.SetAttribute(span, "codes", []string{"a", "b"})
	telemetry.SetAttribute(span, "opaque", payload{})
	span.End()

	attrs := spanAttrs(recorder.Ended()[0])
	assert.Equal(t, int64(7), attrs["count64"].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.Equal(t, []string{"a", "b"}, attrs["codes"].AsStringSlice())
	assert.Equal(t, "{}", attrs["opaque"].AsString(), "unknown types stringify")
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.reject")
	telemetry.RecordError(span, errors.New("platform returned 502"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "platform returned 502", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestRecordError_NilErrorIsNoop(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.reject")
	telemetry.RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Empty(t, ended[0].Events())
}

func TestSetOK(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.accept")
	telemetry.SetOK(span)
	span.End()

	assert.Equal(t, codes.Ok, recorder.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	recorder := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "order_integration.process_webhook")
	telemetry.AddEvent(span, "webhook_dead_lettered",
		telemetry.SpanAttrSourceID, "dl-123",
		telemetry.SpanAttrAttempt, 1)
	span.End()

	events := recorder.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "webhook_dead_lettered", events[0].Name)

	byKey := make(map[attribute.Key]attribute.Value)
	for _, kv := range events[0].Attributes {
		byKey[kv.Key] = kv.Value
	}
	assert.Equal(t, "dl-123", byKey["source_id"].AsString())
	assert.Equal(t, int64(1), byKey["attempt"].AsInt64())
}

func TestNilSpanHelpersDoNotPanic(t *testing.T) {
	telemetry.SetAttribute(nil, "k", "v")
	telemetry.SetAttributes(nil, "k", "v")
	telemetry.AddEvent(nil, "event")
	telemetry.RecordError(nil, errors.New("ignored"))
	telemetry.SetOK(nil)
}

func TestTraceAndSpanIDs(t *testing.T) {
	recordSpans(t)

	ctx := context.Background()
	assert.Empty(t, telemetry.GetTraceID(ctx), "no trace outside a span")
	assert.Empty(t, telemetry.GetSpanID(ctx))

	ctx, span := telemetry.StartSpan(ctx, "order_integration.accept")
	defer span.End()

	assert.Len(t, telemetry.GetTraceID(ctx), 32)
	assert.Len(t, telemetry.GetSpanID(ctx), 16)
}

func TestSpanContextRoundTrip(t *testing.T) {
	recordSpans(t)

	ctx, span := telemetry.StartSpan(context.Background(), "order_integration.accept")
	defer span.End()

	assert.Equal(t, span, telemetry.SpanFromContext(ctx))

	fresh := telemetry.ContextWithSpan(context.Background(), span)
	assert.Equal(t, span, telemetry.SpanFromContext(fresh))
}

func TestNestedSpansShareTrace(t *testing.T) {
	recorder := recordSpans(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "order_integration.process_webhook")
	_, child := telemetry.StartSpan(ctx, "order_integration.ingest")
	child.End()
	parent.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

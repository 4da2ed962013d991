package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/posbridge/backend/internal/infrastructure/telemetry"
)

// instrumentReader pairs a manual reader with a meter so the helpers can be
// exercised without an OTLP collector.
func instrumentReader(t *testing.T) (*sdkmetric.ManualReader, metric.Meter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider.Meter("telemetry.test")
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "posbridge-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("orders"), "disabled provider should still hand out meters")
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMeterProvider_EnabledWithoutCollector(t *testing.T) {
	// The OTLP gRPC exporter connects lazily, so construction succeeds even
	// when nothing listens on the endpoint.
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "posbridge-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx) // export failure is expected, shutdown must still return
}

func TestMeterProvider_GetConfig(t *testing.T) {
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "collector:4317",
		ExportInterval:    30 * time.Second,
		ServiceName:       "posbridge-test",
	}
	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, cfg, mp.GetConfig())
}

func TestCounter(t *testing.T) {
	reader, meter := instrumentReader(t)

	c, err := telemetry.NewCounter(meter, "webhook_received_total", "Webhooks received", "{webhook}")
	require.NoError(t, err)

	ctx := context.Background()
	c.Inc(ctx, telemetry.AttrPlatform.String("trendyol"))
	c.Inc(ctx, telemetry.AttrPlatform.String("trendyol"))
	c.Add(ctx, 3, telemetry.AttrPlatform.String("getir"))

	m := collectMetric(t, reader, "webhook_received_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byPlatform := map[string]int64{}
	for _, dp := range sum.DataPoints {
		for _, attr := range dp.Attributes.ToSlice() {
			if attr.Key == "platform" {
				byPlatform[attr.Value.AsString()] = dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), byPlatform["trendyol"])
	assert.Equal(t, int64(3), byPlatform["getir"])
}

func TestHistogram(t *testing.T) {
	reader, meter := instrumentReader(t)

	h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "order_accept_duration_seconds",
		Description: "End to end order accept latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	h.Record(ctx, 0.042)
	h.RecordDuration(ctx, 150*time.Millisecond)

	m := collectMetric(t, reader, "order_accept_duration_seconds")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.192, hist.DataPoints[0].Sum, 0.001)
	assert.Equal(t, telemetry.HTTPDurationBuckets, hist.DataPoints[0].Bounds)
}

func TestHistogram_DefaultBoundaries(t *testing.T) {
	reader, meter := instrumentReader(t)

	h, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "payload_bytes",
		Description: "Webhook payload size",
		Unit:        "By",
	})
	require.NoError(t, err)
	h.Record(context.Background(), 512)

	m := collectMetric(t, reader, "payload_bytes")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints[0].Bounds, "SDK default buckets expected")
}

func TestGauge(t *testing.T) {
	reader, meter := instrumentReader(t)

	g, err := telemetry.NewGauge(meter, "poll_jobs_active", "Active poll jobs", "{job}")
	require.NoError(t, err)

	ctx := context.Background()
	g.Record(ctx, 5)
	g.Record(ctx, 2) // last write wins

	m := collectMetric(t, reader, "poll_jobs_active")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}

func TestFloatGauge(t *testing.T) {
	reader, meter := instrumentReader(t)

	g, err := telemetry.NewFloatGauge(meter, "sync_success_ratio", "Share of successful syncs", "1")
	require.NoError(t, err)
	g.Record(context.Background(), 0.97, telemetry.AttrSyncType.String("menu"))

	m := collectMetric(t, reader, "sync_success_ratio")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 0.97, gauge.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	// The exported keys are the dashboard contract.
	assert.Equal(t, "tenant_id", string(telemetry.AttrTenantID))
	assert.Equal(t, "user_id", string(telemetry.AttrUserID))
	assert.Equal(t, "http.method", string(telemetry.AttrHTTPMethod))
	assert.Equal(t, "http.status_code", string(telemetry.AttrHTTPStatusCode))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "db.table", string(telemetry.AttrDBTable))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
	assert.Equal(t, "platform", string(telemetry.AttrPlatform))
	assert.Equal(t, "order_status", string(telemetry.AttrOrderStatus))
	assert.Equal(t, "sync_type", string(telemetry.AttrSyncType))
	assert.Equal(t, "sync_status", string(telemetry.AttrSyncStatus))
	assert.Equal(t, "retry_status", string(telemetry.AttrRetryStatus))
}

func TestDurationBucketsAscending(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http":  telemetry.HTTPDurationBuckets,
		"db":    telemetry.DBDurationBuckets,
		"small": telemetry.SmallDurationBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			assert.Greater(t, buckets[i], buckets[i-1], "%s bucket %d out of order", name, i)
		}
	}
}

func TestCounterAttributesRoundTrip(t *testing.T) {
	reader, meter := instrumentReader(t)

	c, err := telemetry.NewCounter(meter, "order_status_total", "Orders by status", "{order}")
	require.NoError(t, err)

	attrs := []attribute.KeyValue{
		telemetry.AttrPlatform.String("yemeksepeti"),
		telemetry.AttrOrderStatus.String("accepted"),
		telemetry.AttrTenantID.String("tenant-42"),
	}
	c.Inc(context.Background(), attrs...)

	m := collectMetric(t, reader, "order_status_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	set := sum.DataPoints[0].Attributes
	for _, want := range attrs {
		got, ok := set.Value(want.Key)
		require.True(t, ok, "missing attribute %s", want.Key)
		assert.Equal(t, want.Value.AsString(), got.AsString())
	}
}

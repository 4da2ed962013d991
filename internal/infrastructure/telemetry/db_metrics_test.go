package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMetricsHarness(t *testing.T, cfg DBMetricsConfig) (*DBMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewDBMetrics(provider.Meter("test"), cfg, zap.NewNop())
	require.NoError(t, err)

	return metrics, reader
}

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics_AppliesDefaults(t *testing.T) {
	metrics, _ := newMetricsHarness(t, DBMetricsConfig{Enabled: true})

	assert.Equal(t, 200*time.Millisecond, metrics.config.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, metrics.config.PoolStatsInterval)
	assert.NotNil(t, metrics.logger)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("records count and duration", func(t *testing.T) {
		metrics, reader := newMetricsHarness(t, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 200 * time.Millisecond,
		})

		metrics.RecordQuery(ctx, "SELECT", "platform_credentials", 50*time.Millisecond)

		byName := collectMetricNames(t, reader)
		assert.Contains(t, byName, "db_query_total")
		assert.Contains(t, byName, "db_query_duration_seconds")
	})

	t.Run("flags queries over the threshold", func(t *testing.T) {
		metrics, reader := newMetricsHarness(t, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 100 * time.Millisecond,
		})

		metrics.RecordQuery(ctx, "SELECT", "platform_orders", 250*time.Millisecond)

		byName := collectMetricNames(t, reader)
		require.Contains(t, byName, "db_slow_query_total")
	})

	t.Run("fast queries do not count as slow", func(t *testing.T) {
		metrics, reader := newMetricsHarness(t, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 200 * time.Millisecond,
		})

		metrics.RecordQuery(ctx, "SELECT", "product_mappings", 50*time.Millisecond)

		byName := collectMetricNames(t, reader)
		if m, ok := byName["db_slow_query_total"]; ok {
			sum := m.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				assert.Equal(t, int64(0), dp.Value)
			}
		}
	})

	t.Run("missing operation and table fall back to placeholders", func(t *testing.T) {
		metrics, reader := newMetricsHarness(t, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 10 * time.Millisecond,
		})

		metrics.RecordQuery(ctx, "", "", 50*time.Millisecond)

		byName := collectMetricNames(t, reader)
		assert.Contains(t, byName, "db_query_total")
		assert.Contains(t, byName, "db_slow_query_total")
	})
}

func TestDBMetrics_PoolStatsCollection(t *testing.T) {
	t.Run("samples pool gauges on the interval", func(t *testing.T) {
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		metrics, reader := newMetricsHarness(t, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: 20 * time.Millisecond,
		})
		metrics.SetSQLDB(mockDB)

		metrics.StartPoolStatsCollection(context.Background())
		time.Sleep(60 * time.Millisecond)
		metrics.Stop()

		byName := collectMetricNames(t, reader)
		assert.Contains(t, byName, "db_pool_connections")
		assert.Contains(t, byName, "db_pool_connections_max")
	})

	t.Run("refuses to start without a pool handle", func(t *testing.T) {
		metrics, _ := newMetricsHarness(t, DBMetricsConfig{Enabled: true})

		metrics.StartPoolStatsCollection(context.Background())
		metrics.Stop()
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		metrics, _ := newMetricsHarness(t, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: time.Second,
		})
		metrics.SetSQLDB(mockDB)

		ctx, cancel := context.WithCancel(context.Background())
		metrics.StartPoolStatsCollection(ctx)
		cancel()
		metrics.Stop()
	})
}

func TestDBMetrics_StopIsIdempotent(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	metrics, _ := newMetricsHarness(t, DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 50 * time.Millisecond,
	})
	metrics.SetSQLDB(mockDB)
	metrics.StartPoolStatsCollection(context.Background())

	done := make(chan struct{})
	go func() {
		metrics.Stop()
		metrics.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked")
	}
}

func TestDBMetricsPlugin_Initialize(t *testing.T) {
	metrics, reader := newMetricsHarness(t, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	})

	plugin := NewDBMetricsPlugin(metrics, zap.NewNop())
	assert.Equal(t, "db_metrics", plugin.Name())

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, gormDB.Use(plugin))

	// A query through GORM lands in the instruments via the callbacks.
	mock.ExpectQuery("SELECT .* FROM \"sync_logs\"").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var ids []int64
	gormDB.Table("sync_logs").Pluck("id", &ids)

	byName := collectMetricNames(t, reader)
	assert.Contains(t, byName, "db_query_total")
	assert.Contains(t, byName, "db_query_duration_seconds")
}

func TestSniffOperation(t *testing.T) {
	tests := []struct {
		sql      string
		expected string
	}{
		{"SELECT * FROM platform_orders", "SELECT"},
		{"  select id from sync_logs", "SELECT"},
		{"INSERT INTO dead_letters (id) VALUES (1)", "INSERT"},
		{"update menu_items set price = 10", "UPDATE"},
		{"DELETE FROM product_mappings WHERE id = 1", "DELETE"},
		{"TRUNCATE TABLE sync_logs", "OTHER"},
		{"", "OTHER"},
	}

	for _, tc := range tests {
		t.Run(tc.sql, func(t *testing.T) {
			assert.Equal(t, tc.expected, sniffOperation(tc.sql))
		})
	}
}

func TestDBMetrics_ConcurrentRecordQuery(t *testing.T) {
	ctx := context.Background()
	metrics, reader := newMetricsHarness(t, DefaultDBMetricsConfig())

	operations := []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	tables := []string{"platform_orders", "sync_logs", "product_mappings", "menu_items"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			metrics.RecordQuery(ctx, operations[i%4], tables[i%4], time.Duration(i)*time.Millisecond)
		}(i)
	}
	wg.Wait()

	byName := collectMetricNames(t, reader)
	assert.Contains(t, byName, "db_query_total")
}

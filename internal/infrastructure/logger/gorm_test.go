package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func traceQuery(l *GormLogger, ctx context.Context, elapsed time.Duration, sql string, err error) {
	l.Trace(ctx, time.Now().Add(-elapsed), func() (string, int64) {
		return sql, 1
	}, err)
}

func TestGormLogger_Silent(t *testing.T) {
	log, logs := observedLogger()
	gl := NewGormLogger(log, gormlogger.Silent)

	traceQuery(gl, context.Background(), time.Millisecond, "SELECT * FROM platform_orders", nil)
	assert.Zero(t, logs.Len())
}

func TestGormLogger_QueryAtInfo(t *testing.T) {
	log, logs := observedLogger()
	gl := NewGormLogger(log, gormlogger.Info)

	traceQuery(gl, context.Background(), time.Millisecond, "SELECT * FROM platform_credentials", nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "query", entry.Message)
	assert.Equal(t, zap.DebugLevel, entry.Level)
	assert.Equal(t, "SELECT * FROM platform_credentials", entry.ContextMap()["sql"])
}

func TestGormLogger_SlowQuery(t *testing.T) {
	log, logs := observedLogger()
	gl := NewGormLogger(log, gormlogger.Warn)

	traceQuery(gl, context.Background(), time.Second, "SELECT * FROM webhook_dead_letters", nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow query", entry.Message)
	assert.Equal(t, zap.WarnLevel, entry.Level)
}

func TestGormLogger_ErrorSuppressesNotFound(t *testing.T) {
	log, logs := observedLogger()
	gl := NewGormLogger(log, gormlogger.Error)

	traceQuery(gl, context.Background(), time.Millisecond, "SELECT 1", gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len(), "not-found misses are routine")

	traceQuery(gl, context.Background(), time.Millisecond, "SELECT 1", assert.AnError)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "query failed", logs.All()[0].Message)
}

func TestGormLogger_CorrelatesContext(t *testing.T) {
	log, logs := observedLogger()
	gl := NewGormLogger(log, gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), log, "req-9")
	ctx, _ = WithTenantID(ctx, log, "tenant-abc")

	traceQuery(gl, ctx, time.Millisecond, "SELECT * FROM product_mappings", nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "tenant-abc", fields["tenant_id"])
}

func TestGormLogger_LogMode(t *testing.T) {
	log, _ := observedLogger()
	gl := NewGormLogger(log, gormlogger.Warn)

	quiet := gl.LogMode(gormlogger.Silent)
	assert.NotSame(t, gl, quiet)
	assert.Equal(t, gormlogger.Warn, gl.level, "original is untouched")
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("banana"))
}

package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig controls query and connection pool metrics collection
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DefaultDBMetricsConfig returns the settings used when telemetry config is absent
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBMetrics owns the database-side instruments: per-operation query counts
// and latencies, a slow query counter, and connection pool gauges sampled on
// an interval.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
}

// NewDBMetrics builds the instruments on the given meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	poolConnections, err := NewGauge(meter, "db_pool_connections",
		"Number of connections in the pool by state", "{connection}")
	if err != nil {
		return nil, err
	}
	poolConnectionsMax, err := NewGauge(meter, "db_pool_connections_max",
		"Maximum number of connections in the pool", "{connection}")
	if err != nil {
		return nil, err
	}
	queryTotal, err := NewCounter(meter, "db_query_total",
		"Total number of database queries by operation type", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	slowQueryTotal, err := NewCounter(meter, "db_slow_query_total",
		"Total number of database queries over the slow threshold", "{query}")
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		poolConnections:    poolConnections,
		poolConnectionsMax: poolConnectionsMax,
		queryTotal:         queryTotal,
		queryDuration:      queryDuration,
		slowQueryTotal:     slowQueryTotal,
		config:             cfg,
		logger:             logger,
		stopCh:             make(chan struct{}),
	}, nil
}

// SetSQLDB provides the pool handle for stats sampling; must be called before
// StartPoolStatsCollection
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = sqlDB
}

// StartPoolStatsCollection samples pool statistics on the configured interval
// until Stop is called or the context ends
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()
	if sqlDB == nil {
		m.logger.Warn("pool stats collection needs SetSQLDB first")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		m.samplePoolStats(ctx)
		for {
			select {
			case <-ticker.C:
				m.samplePoolStats(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("collecting connection pool stats",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

func (m *DBMetrics) samplePoolStats(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()
	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	// OpenConnections = Idle + InUse; WaitCount is cumulative so it is not a
	// pool state and is left out
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RecordQuery records one completed query
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// ============================================================================
// GORM plugin
// ============================================================================

// DBMetricsPlugin feeds DBMetrics from GORM callbacks
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

// NewDBMetricsPlugin wraps the metrics in a gorm.Plugin
func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{metrics: metrics, logger: logger}
}

// Name implements gorm.Plugin
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize implements gorm.Plugin, bracketing every operation with a timing
// marker and a metrics recorder
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op        string
		operation string // fixed SQL verb; empty means sniff from the statement
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.before("db_metrics:before_"+h.op, markMetricsStart); err != nil {
			return err
		}
		operation := h.operation
		if err := h.after("db_metrics:after_"+h.op, func(db *gorm.DB) {
			p.record(db, operation)
		}); err != nil {
			return err
		}
	}

	p.logger.Info("database metrics plugin initialized")
	return nil
}

func markMetricsStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbMetricsStartTimeKey{}, time.Now())
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if operation == "" {
		operation = sniffOperation(db.Statement.SQL.String())
	}

	var duration time.Duration
	if start, ok := ctx.Value(dbMetricsStartTimeKey{}).(time.Time); ok {
		duration = time.Since(start)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration)
}

// sniffOperation guesses the SQL verb for Row/Raw statements
func sniffOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}

type dbMetricsStartTimeKey struct{}

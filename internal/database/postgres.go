package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vijayg2124/affilink-performance-hub/internal/config"
	"github.com/vijayg2124/affilink-performance-hub/internal/metrics"
	"go.uber.org/zap"
)

// healthCheckPeriod is fixed; the pool is small and the hub tolerates a
// stale connection for up to a minute before the refresher notices.
const healthCheckPeriod = time.Minute

// PostgresDB owns the pgx pool backing the link registry and, on the
// postgres backend, the click store.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDB opens a pooled connection to the link database and verifies
// it with a ping. Pool sizing and connection recycling come from cfg.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping link database: %w", err)
	}

	logger.Info("link database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
		zap.Int("max_conns", cfg.MaxConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return &PostgresDB{
		Pool:   pool,
		logger: logger,
	}, nil
}

// Close drains the pool.
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("link database pool closed")
	}
}

// Health reports whether the link database is reachable.
func (db *PostgresDB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// ReportPoolStats pushes current pool gauges into m. m may be nil.
func (db *PostgresDB) ReportPoolStats(m *metrics.Metrics) {
	if m == nil {
		return
	}
	st := db.Pool.Stat()
	m.UpdateDBStats(int(st.IdleConns()), int(st.AcquiredConns()), int(st.TotalConns()))
}

// CollectPoolStats reports pool gauges on a fixed cadence until ctx ends.
func (db *PostgresDB) CollectPoolStats(ctx context.Context, interval time.Duration, m *metrics.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.ReportPoolStats(m)
		}
	}
}

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vijayg2124/affilink-performance-hub/internal/config"
	"go.uber.org/zap"
)

func TestNewPostgresDB_BadDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "bad host",
		Port:            5432,
		User:            "u",
		Password:        "p",
		DBName:          "affilink",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	db, err := NewPostgresDB(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestNewRedisDB_Unreachable(t *testing.T) {
	cfg := config.RedisConfig{
		Enabled:  true,
		Addr:     "127.0.0.1:1",
		PoolSize: 2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := NewRedisDB(ctx, cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestReportPoolStats_NilMetrics(t *testing.T) {
	db := &PostgresDB{logger: zap.NewNop()}
	require.NotPanics(t, func() {
		db.ReportPoolStats(nil)
	})
}

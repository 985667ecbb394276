package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backend names accepted by AFFILINK_STORAGE_BACKEND.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Config holds all configuration for the AffiLink hub.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Storage    StorageConfig
	Dashboard  DashboardConfig
	Links      LinksConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	// ConnMaxLifetime recycles pooled connections; keeps the pool from
	// pinning a Postgres backend across failovers.
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// PoolSize caps Redis connections. The hub only publishes change
	// notifications and mirrors one snapshot key, so a small pool is enough.
	PoolSize int
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

// StorageConfig selects the event/link storage backend.
type StorageConfig struct {
	// Backend is one of memory, postgres, clickhouse. The clickhouse
	// backend stores events only; links stay in Postgres.
	Backend string
	// SeedDemoData seeds the memory backend with sample links and a week
	// of clicks.
	SeedDemoData bool
}

// DashboardConfig bounds the snapshot computation and refresh loop.
type DashboardConfig struct {
	// UserID is the tenant served by this process.
	UserID string
	// WindowDays is how far back the event fetch reaches.
	WindowDays int
	// RefreshInterval between timer-driven snapshot refreshes.
	RefreshInterval time.Duration
	// TimeSeriesDays is the length of the daily click/revenue series.
	TimeSeriesDays int
	// TopCountries caps the country breakdown.
	TopCountries int
	// RecentActivity caps the recent click feed.
	RecentActivity int
	// SnapshotTTL bounds the Redis snapshot mirror.
	SnapshotTTL time.Duration
}

// Window returns the event fetch window as a duration.
func (d DashboardConfig) Window() time.Duration {
	return time.Duration(d.WindowDays) * 24 * time.Hour
}

type LinksConfig struct {
	// ShortBaseURL is the public prefix for generated short URLs.
	ShortBaseURL string
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("AFFILINK_HTTP_ADDR", ":8080"),
			Env:             getEnv("AFFILINK_ENV", "development"),
			ShutdownTimeout: getDurationEnv("AFFILINK_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("AFFILINK_DB_HOST", "localhost"),
			Port:            getIntEnv("AFFILINK_DB_PORT", 5432),
			User:            getEnv("AFFILINK_DB_USER", "affilink"),
			Password:        getEnv("AFFILINK_DB_PASSWORD", "affilink_secret"),
			DBName:          getEnv("AFFILINK_DB_NAME", "affilink"),
			SSLMode:         getEnv("AFFILINK_DB_SSLMODE", "disable"),
			MaxConns:        getIntEnv("AFFILINK_DB_MAX_CONNS", 25),
			MinConns:        getIntEnv("AFFILINK_DB_MIN_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("AFFILINK_DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("AFFILINK_DB_CONN_MAX_IDLE", 10*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("AFFILINK_REDIS_ENABLED", true),
			Addr:     getEnv("AFFILINK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("AFFILINK_REDIS_PASSWORD", ""),
			DB:       getIntEnv("AFFILINK_REDIS_DB", 0),
			PoolSize: getIntEnv("AFFILINK_REDIS_POOL_SIZE", 10),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("AFFILINK_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("AFFILINK_CLICKHOUSE_DB", "affilink"),
			User:     getEnv("AFFILINK_CLICKHOUSE_USER", "default"),
			Password: getEnv("AFFILINK_CLICKHOUSE_PASSWORD", ""),
		},
		Storage: StorageConfig{
			Backend:      getEnv("AFFILINK_STORAGE_BACKEND", BackendMemory),
			SeedDemoData: getBoolEnv("AFFILINK_SEED_DEMO_DATA", true),
		},
		Dashboard: DashboardConfig{
			UserID:          getEnv("AFFILINK_USER_ID", "demo-user"),
			WindowDays:      getIntEnv("AFFILINK_DASHBOARD_WINDOW_DAYS", 30),
			RefreshInterval: getDurationEnv("AFFILINK_REFRESH_INTERVAL", 30*time.Second),
			TimeSeriesDays:  getIntEnv("AFFILINK_TIME_SERIES_DAYS", 7),
			TopCountries:    getIntEnv("AFFILINK_TOP_COUNTRIES", 10),
			RecentActivity:  getIntEnv("AFFILINK_RECENT_ACTIVITY", 10),
			SnapshotTTL:     getDurationEnv("AFFILINK_SNAPSHOT_TTL", 24*time.Hour),
		},
		Links: LinksConfig{
			ShortBaseURL: getEnv("AFFILINK_SHORT_BASE_URL", "https://afl.ink"),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("AFFILINK_AUTH_ENABLED", false),
			MasterKey: getEnv("AFFILINK_API_KEY", ""),
			SkipPaths: getSliceEnv("AFFILINK_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("AFFILINK_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("AFFILINK_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("AFFILINK_RATE_LIMIT_BURST", 50),
		},
		Log: LogConfig{
			Level:  getEnv("AFFILINK_LOG_LEVEL", "info"),
			Format: getEnv("AFFILINK_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("AFFILINK_METRICS_ENABLED", true),
			Path:    getEnv("AFFILINK_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres, BackendClickHouse:
	default:
		return fmt.Errorf("AFFILINK_STORAGE_BACKEND must be one of %s, %s, %s",
			BackendMemory, BackendPostgres, BackendClickHouse)
	}
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("AFFILINK_API_KEY is required when auth is enabled")
	}
	if c.Dashboard.UserID == "" {
		return fmt.Errorf("AFFILINK_USER_ID must not be empty")
	}
	if c.Dashboard.WindowDays <= 0 {
		return fmt.Errorf("AFFILINK_DASHBOARD_WINDOW_DAYS must be positive")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("AFFILINK_REFRESH_INTERVAL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

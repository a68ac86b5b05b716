package config

import (
	"time"

	"github.com/vietddude/buildforge/internal/aggregate"
	"github.com/vietddude/buildforge/internal/calc"
	redisclient "github.com/vietddude/buildforge/internal/infra/redis"
	"github.com/vietddude/buildforge/internal/infra/resilience"
	"github.com/vietddude/buildforge/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Redis        redisclient.Config `yaml:"redis"`
	Database     postgres.Config    `yaml:"database"`
	Orchestrator aggregate.Config   `yaml:"orchestrator"`
	Cache        CacheConfig        `yaml:"cache"`
	Sources      []SourceConfig     `yaml:"sources"`
	Calculator   calc.Params        `yaml:"calculator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig holds payload cache and snapshot retention settings.
type CacheConfig struct {
	Backend string `yaml:"backend"` // memory, redis
	// StaleRetention is how long expired entries stay readable as fallback.
	StaleRetention time.Duration `yaml:"stale_retention"`
	PruneInterval  time.Duration `yaml:"prune_interval"`
	// SnapshotRetention bounds how long last-known-good snapshots are kept.
	SnapshotRetention time.Duration `yaml:"snapshot_retention"`
}

// Source kinds.
const (
	KindMarket    = "market"
	KindStaticDB  = "staticdb"
	KindCommunity = "community"
)

// Source transports.
const (
	TypeHTTP = "http"
	TypeFile = "file"
)

// SourceConfig holds settings for a single data source.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // market, staticdb, community
	Type string `yaml:"type"` // http, file
	URL  string `yaml:"url"`
	Path string `yaml:"path"`

	Endpoints  map[string]string `yaml:"endpoints"`
	ResultPath string            `yaml:"result_path"`
	HealthPath string            `yaml:"health_path"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout"`

	// Query is the query kind requested from this source by default.
	Query  string            `yaml:"query"`
	Params map[string]string `yaml:"params"`

	Trust   int                      `yaml:"trust"`
	TTL     time.Duration            `yaml:"ttl"`
	Rate    resilience.LimiterConfig `yaml:"rate"`
	Breaker resilience.BreakerConfig `yaml:"breaker"`
	Retry   resilience.RetryConfig   `yaml:"retry"`
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/buildforge/internal/aggregate"
	"github.com/vietddude/buildforge/internal/calc"
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/resilience"
)

// Default returns the configuration used for keys absent from the file.
func Default() AppConfig {
	return AppConfig{
		Server:       ServerConfig{Port: 8080},
		Logging:      LoggingConfig{Level: "info"},
		Orchestrator: aggregate.DefaultConfig(),
		Cache: CacheConfig{
			Backend:           CacheMemory,
			StaleRetention:    24 * time.Hour,
			PruneInterval:     5 * time.Minute,
			SnapshotRetention: 7 * 24 * time.Hour,
		},
		Calculator: calc.DefaultParams(),
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references first.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Sources {
		applySourceDefaults(&cfg.Sources[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applySourceDefaults(s *SourceConfig) {
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))

	if s.Type == "" {
		if s.Path != "" {
			s.Type = TypeFile
		} else {
			s.Type = TypeHTTP
		}
	}
	if s.Query == "" {
		s.Query = DefaultQuery(s.Kind)
	}
	if s.TTL == 0 {
		s.TTL = aggregate.DefaultTTL
	}

	def := resilience.DefaultBreakerConfig()
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = def.FailureThreshold
	}
	if s.Breaker.RecoveryTimeout == 0 {
		s.Breaker.RecoveryTimeout = def.RecoveryTimeout
	}
	if s.Breaker.BackoffMultiplier == 0 {
		s.Breaker.BackoffMultiplier = def.BackoffMultiplier
	}
	if s.Breaker.MaxRecoveryTimeout == 0 {
		s.Breaker.MaxRecoveryTimeout = def.MaxRecoveryTimeout
	}

	if s.Retry.MaxAttempts == 0 {
		s.Retry = resilience.DefaultRetryConfig
	}
}

// DefaultQuery returns the query kind a source kind serves by default.
func DefaultQuery(kind string) string {
	switch kind {
	case KindMarket:
		return domain.KindMarketPrices
	case KindStaticDB:
		return domain.KindStaticSkills
	case KindCommunity:
		return domain.KindCommunityBuilds
	default:
		return ""
	}
}

// Validate checks the configuration for values the service cannot start with.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url: required for the redis cache backend")
		}
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Calculator.ResistanceFloor >= c.Calculator.ResistanceCap {
		return fmt.Errorf("calculator: resistance_floor %v must be below resistance_cap %v",
			c.Calculator.ResistanceFloor, c.Calculator.ResistanceCap)
	}
	if c.Calculator.ResistanceCap >= 100 {
		return fmt.Errorf("calculator.resistance_cap: must be below 100, got %v", c.Calculator.ResistanceCap)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources: at least one source is required")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if err := s.validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

func (s SourceConfig) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("id: must not be empty")
	}
	switch s.Kind {
	case KindMarket, KindStaticDB, KindCommunity:
	default:
		return fmt.Errorf("kind: unknown source kind %q", s.Kind)
	}
	switch s.Type {
	case TypeHTTP:
		if s.URL == "" {
			return fmt.Errorf("url: required for http sources")
		}
	case TypeFile:
		if s.Path == "" {
			return fmt.Errorf("path: required for file sources")
		}
	default:
		return fmt.Errorf("type: unknown source type %q", s.Type)
	}
	if s.Query == "" {
		return fmt.Errorf("query: must not be empty")
	}
	if s.Trust < 0 {
		return fmt.Errorf("trust: must not be negative")
	}
	if s.Rate.RequestsPerMinute < 0 || s.Rate.DailyQuota < 0 {
		return fmt.Errorf("rate: limits must not be negative")
	}
	return nil
}

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// FileConfig configures a source backed by JSON files on disk.
type FileConfig struct {
	ID string
	// Dir holds one <kind>.json file per query kind.
	Dir        string
	ResultPath string
	Logger     *slog.Logger
}

// FileSource reads payloads from a local static database export.
type FileSource struct {
	cfg     FileConfig
	monitor *Monitor
	log     *slog.Logger
}

// NewStaticDBSource creates a client for the static game database export.
func NewStaticDBSource(cfg FileConfig) *FileSource {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		cfg:     cfg,
		monitor: NewMonitor(),
		log:     logger.With("source", cfg.ID),
	}
}

// Fetch reads <dir>/<kind>.json. A missing file is a network error, since
// the export is treated as a remote that may be unavailable.
func (s *FileSource) Fetch(ctx context.Context, q domain.SourceQuery) (domain.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewNetworkError(s.cfg.ID, err)
	}

	kind := strings.ToLower(strings.TrimSpace(q.Kind))
	if kind == "" || strings.ContainsAny(kind, `/\`) || strings.Contains(kind, "..") {
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("invalid kind %q", q.Kind)}
	}

	start := time.Now()
	body, err := os.ReadFile(filepath.Join(s.cfg.Dir, kind+".json"))
	if err != nil {
		s.monitor.RecordFailure()
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("no export for %s: %w", kind, err))
		}
		return nil, domain.NewNetworkError(s.cfg.ID, err)
	}

	payload, err := decodeObject(s.cfg.ID, body, s.cfg.ResultPath)
	if err != nil {
		s.monitor.RecordFailure()
		return nil, err
	}

	latency := time.Since(start)
	s.monitor.RecordSuccess(latency)
	s.log.Debug("loaded", "kind", kind, "fields", len(payload))
	return payload, nil
}

// HealthCheck reports whether the export directory is readable.
func (s *FileSource) HealthCheck(ctx context.Context) bool {
	info, err := os.Stat(s.cfg.Dir)
	return err == nil && info.IsDir()
}

// SourceID returns the source identifier.
func (s *FileSource) SourceID() string {
	return s.cfg.ID
}

// CacheKey returns the cache key for q.
func (s *FileSource) CacheKey(q domain.SourceQuery) string {
	return cacheKey(s.cfg.ID, q)
}

// Monitor returns the request monitor of the source.
func (s *FileSource) Monitor() *Monitor {
	return s.monitor
}

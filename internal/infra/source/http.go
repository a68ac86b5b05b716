package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 16 << 20

// HTTPConfig configures an HTTP JSON source.
type HTTPConfig struct {
	ID      string
	BaseURL string
	// Endpoints maps a query kind to a path. Kinds without an entry use
	// "/" + kind with dots replaced by slashes.
	Endpoints map[string]string
	// ResultPath is an optional gjson path selecting the payload object
	// inside the response body.
	ResultPath string
	// HealthPath is probed by HealthCheck (default "/health").
	HealthPath string
	Headers    map[string]string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// HTTPSource fetches JSON objects from an HTTP API.
type HTTPSource struct {
	cfg        HTTPConfig
	httpClient *http.Client
	monitor    *Monitor
	log        *slog.Logger
}

// NewHTTPSource creates an HTTP-based source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[strings.ToLower(strings.TrimSpace(k))] = v
	}
	cfg.Endpoints = endpoints

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		monitor: NewMonitor(),
		log:     logger.With("source", cfg.ID),
	}
}

// NewMarketSource creates a client for a market price API.
func NewMarketSource(cfg HTTPConfig) *HTTPSource {
	cfg.Endpoints = withDefaultEndpoint(cfg.Endpoints, domain.KindMarketPrices, "/prices")
	return NewHTTPSource(cfg)
}

// NewCommunitySource creates a client for a community analytics API.
func NewCommunitySource(cfg HTTPConfig) *HTTPSource {
	cfg.Endpoints = withDefaultEndpoint(cfg.Endpoints, domain.KindCommunityBuilds, "/builds")
	return NewHTTPSource(cfg)
}

// Fetch performs a GET against the endpoint of q.Kind with q.Params as the
// query string and returns the JSON object found in the body.
func (s *HTTPSource) Fetch(ctx context.Context, q domain.SourceQuery) (domain.Payload, error) {
	if status := s.monitor.Status(); status == StatusBlocked || status == StatusThrottled {
		return nil, domain.NewNetworkError(s.cfg.ID,
			fmt.Errorf("source %s, retry after: %v", status, s.monitor.RetryAfter()))
	}

	target, err := s.url(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.monitor.RecordFailure()
		}
		return nil, domain.NewNetworkError(s.cfg.ID, err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		s.monitor.RecordThrottle(http.StatusTooManyRequests, retryAfter)
		s.monitor.RecordFailure()
		return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("rate limited (429), retry after: %s", retryAfter))
	}

	// IP blocked detection
	if resp.StatusCode == http.StatusForbidden {
		s.monitor.RecordThrottle(http.StatusForbidden, "")
		s.monitor.RecordFailure()
		return nil, domain.NewNetworkError(s.cfg.ID, errors.New("ip blocked (403)"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		s.monitor.RecordFailure()
		return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.monitor.RecordFailure()
		if s.monitor.DetectThrottlePattern(string(body)) {
			return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("throttle detected in response: %s", truncate(body)))
		}
		return nil, domain.NewNetworkError(s.cfg.ID, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body)))
	}

	payload, err := decodeObject(s.cfg.ID, body, s.cfg.ResultPath)
	if err != nil {
		s.monitor.RecordFailure()
		return nil, err
	}

	latency := time.Since(start)
	s.monitor.RecordSuccess(latency)
	s.log.Debug("fetched", "kind", q.Kind, "latency", latency, "fields", len(payload))
	return payload, nil
}

// HealthCheck probes HealthPath; any 2xx or 3xx answer counts as healthy.
func (s *HTTPSource) HealthCheck(ctx context.Context) bool {
	if s.monitor.Status() == StatusBlocked {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+s.cfg.HealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// SourceID returns the source identifier.
func (s *HTTPSource) SourceID() string {
	return s.cfg.ID
}

// CacheKey returns the cache key for q.
func (s *HTTPSource) CacheKey(q domain.SourceQuery) string {
	return cacheKey(s.cfg.ID, q)
}

// Monitor returns the request monitor of the source.
func (s *HTTPSource) Monitor() *Monitor {
	return s.monitor
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) url(q domain.SourceQuery) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(q.Kind))
	if kind == "" {
		return "", &domain.ValidationError{Field: "kind", Reason: "must not be empty"}
	}

	path, ok := s.cfg.Endpoints[kind]
	if !ok {
		path = "/" + strings.ReplaceAll(kind, ".", "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := s.cfg.BaseURL + path
	if len(q.Params) > 0 {
		values := url.Values{}
		for k, v := range q.Params {
			values.Set(k, v)
		}
		// Encode sorts by key.
		target += "?" + values.Encode()
	}
	return target, nil
}

// decodeObject validates body as JSON and returns the object at path (or the
// whole document when path is empty).
func decodeObject(sourceID string, body []byte, path string) (domain.Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, domain.NewParseError(sourceID, errors.New("invalid json"))
	}

	result := gjson.ParseBytes(body)
	if path != "" {
		result = result.Get(path)
		if !result.Exists() {
			return nil, domain.NewParseError(sourceID, fmt.Errorf("result path %q not found", path))
		}
	}
	if !result.IsObject() {
		return nil, domain.NewParseError(sourceID, fmt.Errorf("expected json object, got %s", result.Type))
	}

	var payload domain.Payload
	if err := json.Unmarshal([]byte(result.Raw), &payload); err != nil {
		return nil, domain.NewParseError(sourceID, err)
	}
	return payload, nil
}

func withDefaultEndpoint(endpoints map[string]string, kind, path string) map[string]string {
	out := make(map[string]string, len(endpoints)+1)
	for k, v := range endpoints {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if _, ok := out[kind]; !ok {
		out[kind] = path
	}
	return out
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

package domain

import "time"

// ResultStatus describes how a single source pipeline ended.
type ResultStatus string

const (
	ResultOK       ResultStatus = "ok"       // live or fresh cached data
	ResultDegraded ResultStatus = "degraded" // stale cache or last-known-good snapshot
	ResultFailed   ResultStatus = "failed"   // synthetic placeholder
)

// SourceResult is produced exactly once per source per orchestration pass.
type SourceResult struct {
	SourceID   string       `json:"source_id"`
	Status     ResultStatus `json:"status"`
	Payload    Payload      `json:"payload"`
	FetchedAt  time.Time    `json:"fetched_at"`
	IsFallback bool         `json:"is_fallback"`
	CacheHit   bool         `json:"cache_hit"`
	Error      string       `json:"error,omitempty"`
}

// DatasetStatus is the aggregate status of an orchestration pass.
type DatasetStatus string

const (
	DatasetSuccess DatasetStatus = "success" // every source returned real data
	DatasetPartial DatasetStatus = "partial" // some sources fell back
	DatasetMock    DatasetStatus = "mock"    // every source fell back
)

// Provenance records where merged data came from.
type Provenance struct {
	SourcesUsed     []string          `json:"sources_used"`
	CacheHits       []string          `json:"cache_hits"`
	DegradedSources []string          `json:"degraded_sources"`
	FallbackSources []string          `json:"fallback_sources"`
	FieldSources    map[string]string `json:"field_sources"`
}

// Dataset is the merged output of Orchestrator.FetchAll.
type Dataset struct {
	Status     DatasetStatus           `json:"status"`
	Data       Payload                 `json:"data"`
	Results    map[string]SourceResult `json:"results"`
	Provenance Provenance              `json:"provenance"`
}

// CircuitStateName is one of the breaker states.
type CircuitStateName string

const (
	CircuitClosed   CircuitStateName = "closed"
	CircuitOpen     CircuitStateName = "open"
	CircuitHalfOpen CircuitStateName = "half_open"
)

// CircuitState is a read-only snapshot of a breaker.
type CircuitState struct {
	State         CircuitStateName `json:"state"`
	FailureCount  int              `json:"failure_count"`
	LastFailureAt time.Time        `json:"last_failure_at"`
	NextProbeAt   time.Time        `json:"next_probe_at"`
}

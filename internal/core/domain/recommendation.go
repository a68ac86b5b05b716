package domain

import "time"

// RecommendationStatus mirrors the dataset status the recommendation was built from.
type RecommendationStatus string

const (
	RecommendationSuccess RecommendationStatus = "success"
	RecommendationPartial RecommendationStatus = "partial"
	RecommendationMock    RecommendationStatus = "mock"
)

// RecommendationProvenance is the per-recommendation view of the data origin.
type RecommendationProvenance struct {
	SourcesUsed     []string `json:"sources_used"`
	CacheHits       int      `json:"cache_hits"`
	DegradedSources []string `json:"degraded_sources"`
}

// Recommendation pairs a build with its derived statistics.
type Recommendation struct {
	BuildConfig BuildConfig              `json:"build_config"`
	BuildStats  BuildStats               `json:"build_stats"`
	Provenance  RecommendationProvenance `json:"provenance"`
	Status      RecommendationStatus     `json:"status"`
}

// ResponseMetadata summarises a recommendation response.
type ResponseMetadata struct {
	DataSourcesUsed []string      `json:"data_sources_used"`
	CalculationTime time.Duration `json:"calculation_time"`
	CacheHits       int           `json:"cache_hits"`
	DatasetStatus   DatasetStatus `json:"dataset_status"`
}

// RecommendationResponse is returned to callers of the recommendation service.
type RecommendationResponse struct {
	RequestID       string           `json:"request_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResponseMetadata `json:"metadata"`
	Timestamp       time.Time        `json:"timestamp"`
}

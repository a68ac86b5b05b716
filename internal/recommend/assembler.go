// Package recommend turns a merged dataset and calculated builds into a
// recommendation response.
package recommend

import (
	"slices"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// Evaluated is a candidate build with its calculated statistics.
type Evaluated struct {
	Build domain.BuildConfig
	Stats domain.BuildStats
}

// Assembler composes responses. It performs no calculation.
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an assembler. A nil clock uses time.Now.
func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble builds the response for evaluated builds computed from ds.
// elapsed is the wall-clock time of the whole request.
func (a *Assembler) Assemble(ds *domain.Dataset, evaluated []Evaluated, elapsed time.Duration) *domain.RecommendationResponse {
	prov := recommendationProvenance(ds)
	status := recommendationStatus(ds.Status)

	recs := make([]domain.Recommendation, 0, len(evaluated))
	for _, ev := range evaluated {
		recs = append(recs, domain.Recommendation{
			BuildConfig: ev.Build,
			BuildStats:  ev.Stats,
			Provenance: domain.RecommendationProvenance{
				SourcesUsed:     slices.Clone(prov.SourcesUsed),
				CacheHits:       prov.CacheHits,
				DegradedSources: slices.Clone(prov.DegradedSources),
			},
			Status: status,
		})
	}

	return &domain.RecommendationResponse{
		Recommendations: recs,
		Metadata: domain.ResponseMetadata{
			DataSourcesUsed: prov.SourcesUsed,
			CalculationTime: elapsed,
			CacheHits:       prov.CacheHits,
			DatasetStatus:   ds.Status,
		},
		Timestamp: a.now(),
	}
}

func recommendationProvenance(ds *domain.Dataset) domain.RecommendationProvenance {
	used := slices.Clone(ds.Provenance.SourcesUsed)
	if used == nil {
		used = []string{}
	}
	degraded := slices.Clone(ds.Provenance.DegradedSources)
	if degraded == nil {
		degraded = []string{}
	}
	return domain.RecommendationProvenance{
		SourcesUsed:     used,
		CacheHits:       len(ds.Provenance.CacheHits),
		DegradedSources: degraded,
	}
}

func recommendationStatus(s domain.DatasetStatus) domain.RecommendationStatus {
	switch s {
	case domain.DatasetSuccess:
		return domain.RecommendationSuccess
	case domain.DatasetMock:
		return domain.RecommendationMock
	default:
		return domain.RecommendationPartial
	}
}

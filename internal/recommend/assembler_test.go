package recommend

import (
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestAssembler_Assemble(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAssembler(func() time.Time { return now })

	ds := &domain.Dataset{
		Status: domain.DatasetPartial,
		Data:   domain.Payload{"skills": map[string]any{}},
		Provenance: domain.Provenance{
			SourcesUsed:     []string{"market", "staticdb"},
			CacheHits:       []string{"staticdb"},
			DegradedSources: []string{"community"},
			FallbackSources: []string{"community"},
		},
	}
	evaluated := []Evaluated{
		{Build: domain.BuildConfig{Level: 10, MainSkill: "arc"}, Stats: domain.BuildStats{DPS: domain.DPSStats{TotalDPS: 5}}},
		{Build: domain.BuildConfig{Level: 20, MainSkill: "fireball"}},
	}

	resp := a.Assemble(ds, evaluated, 150*time.Millisecond)

	if len(resp.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].BuildStats.DPS.TotalDPS != 5 {
		t.Errorf("stats not carried through: %+v", resp.Recommendations[0].BuildStats)
	}
	for _, r := range resp.Recommendations {
		if r.Status != domain.RecommendationPartial {
			t.Errorf("expected partial, got %s", r.Status)
		}
		if r.Provenance.CacheHits != 1 {
			t.Errorf("expected 1 cache hit, got %d", r.Provenance.CacheHits)
		}
		if len(r.Provenance.DegradedSources) != 1 || r.Provenance.DegradedSources[0] != "community" {
			t.Errorf("unexpected degraded sources %v", r.Provenance.DegradedSources)
		}
	}
	if got := resp.Metadata.DataSourcesUsed; len(got) != 2 || got[0] != "market" || got[1] != "staticdb" {
		t.Errorf("unexpected sources used %v", got)
	}
	if resp.Metadata.CalculationTime != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %v", resp.Metadata.CalculationTime)
	}
	if resp.Metadata.CacheHits != 1 || resp.Metadata.DatasetStatus != domain.DatasetPartial {
		t.Errorf("unexpected metadata %+v", resp.Metadata)
	}
	if !resp.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, resp.Timestamp)
	}

	// Recommendations do not share provenance slices.
	resp.Recommendations[0].Provenance.SourcesUsed[0] = "mutated"
	if resp.Recommendations[1].Provenance.SourcesUsed[0] != "market" {
		t.Error("provenance slices are shared between recommendations")
	}
}

func TestAssembler_StatusMapping(t *testing.T) {
	a := NewAssembler(nil)
	tests := []struct {
		in   domain.DatasetStatus
		want domain.RecommendationStatus
	}{
		{domain.DatasetSuccess, domain.RecommendationSuccess},
		{domain.DatasetPartial, domain.RecommendationPartial},
		{domain.DatasetMock, domain.RecommendationMock},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			resp := a.Assemble(&domain.Dataset{Status: tt.in}, []Evaluated{{}}, 0)
			if got := resp.Recommendations[0].Status; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if resp.Metadata.DataSourcesUsed == nil {
				t.Error("sources used should be empty, not nil")
			}
		})
	}
}

func TestAssembler_NoCandidates(t *testing.T) {
	resp := NewAssembler(nil).Assemble(&domain.Dataset{Status: domain.DatasetMock}, nil, time.Second)
	if resp.Recommendations == nil || len(resp.Recommendations) != 0 {
		t.Errorf("expected empty recommendations, got %v", resp.Recommendations)
	}
}

package aggregate

import (
	"testing"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestMerge_Precedence(t *testing.T) {
	staticDB := contribution{trust: 10, result: domain.SourceResult{
		SourceID: "staticdb", Status: domain.ResultOK,
		Payload: domain.Payload{"skills": "authoritative", "items": "authoritative"},
	}}
	community := contribution{trust: 1, result: domain.SourceResult{
		SourceID: "community", Status: domain.ResultOK,
		Payload: domain.Payload{"skills": "community", "builds": "community"},
	}}
	synthetic := contribution{trust: 100, result: domain.SourceResult{
		SourceID: "market", Status: domain.ResultFailed, IsFallback: true,
		Payload: domain.Payload{"items": "placeholder", "prices": "placeholder"},
	}}

	orders := [][]contribution{
		{staticDB, community, synthetic},
		{synthetic, community, staticDB},
		{community, synthetic, staticDB},
	}
	for _, contribs := range orders {
		ds := merge(contribs)

		want := map[string]string{
			"skills": "staticdb",
			"items":  "staticdb",
			"builds": "community",
			"prices": "market",
		}
		for field, src := range want {
			if got := ds.Provenance.FieldSources[field]; got != src {
				t.Errorf("field %s: expected %s, got %s", field, src, got)
			}
		}
		if ds.Data["skills"] != "authoritative" || ds.Data["items"] != "authoritative" {
			t.Errorf("higher-trust real data must win, got %v", ds.Data)
		}
		if ds.Status != domain.DatasetPartial {
			t.Errorf("expected partial, got %s", ds.Status)
		}
	}
}

func TestMerge_TrustTieUsesSourceID(t *testing.T) {
	a := contribution{trust: 5, result: domain.SourceResult{SourceID: "alpha", Status: domain.ResultOK, Payload: domain.Payload{"x": "alpha"}}}
	b := contribution{trust: 5, result: domain.SourceResult{SourceID: "beta", Status: domain.ResultOK, Payload: domain.Payload{"x": "beta"}}}

	for _, contribs := range [][]contribution{{a, b}, {b, a}} {
		if got := merge(contribs).Data["x"]; got != "alpha" {
			t.Errorf("expected lexically smaller source to win a tie, got %v", got)
		}
	}
}

func TestMerge_Provenance(t *testing.T) {
	ds := merge([]contribution{
		{result: domain.SourceResult{SourceID: "b", Status: domain.ResultOK, CacheHit: true}},
		{result: domain.SourceResult{SourceID: "a", Status: domain.ResultDegraded, IsFallback: true}},
		{result: domain.SourceResult{SourceID: "c", Status: domain.ResultFailed, IsFallback: true}},
	})

	check := func(name string, got, want []string) {
		t.Helper()
		if len(got) != len(want) {
			t.Errorf("%s: expected %v, got %v", name, want, got)
			return
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: expected %v, got %v", name, want, got)
				return
			}
		}
	}
	check("sources used", ds.Provenance.SourcesUsed, []string{"a", "b"})
	check("cache hits", ds.Provenance.CacheHits, []string{"b"})
	check("degraded", ds.Provenance.DegradedSources, []string{"a", "c"})
	check("fallback", ds.Provenance.FallbackSources, []string{"a", "c"})

	if ds.Status != domain.DatasetPartial {
		t.Errorf("expected partial, got %s", ds.Status)
	}
	if len(ds.Results) != 3 {
		t.Errorf("expected 3 results, got %d", len(ds.Results))
	}
}

func TestMerge_Status(t *testing.T) {
	ok := contribution{result: domain.SourceResult{SourceID: "a", Status: domain.ResultOK}}
	fb := contribution{result: domain.SourceResult{SourceID: "b", Status: domain.ResultDegraded, IsFallback: true}}

	if s := merge([]contribution{ok}).Status; s != domain.DatasetSuccess {
		t.Errorf("expected success, got %s", s)
	}
	if s := merge([]contribution{fb}).Status; s != domain.DatasetMock {
		t.Errorf("expected mock, got %s", s)
	}
}

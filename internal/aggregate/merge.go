package aggregate

import (
	"sort"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// contribution is one source's result together with its merge trust.
type contribution struct {
	result domain.SourceResult
	trust  int
}

// precedes reports whether a outranks b for field ownership: real data beats
// synthetic placeholders, then higher trust wins, then the smaller source id.
func precedes(a, b contribution) bool {
	ar, br := isReal(a.result), isReal(b.result)
	if ar != br {
		return ar
	}
	if a.trust != b.trust {
		return a.trust > b.trust
	}
	return a.result.SourceID < b.result.SourceID
}

func isReal(r domain.SourceResult) bool {
	return r.Status == domain.ResultOK || r.Status == domain.ResultDegraded
}

// merge builds the dataset from per-source results. The outcome does not
// depend on the order of contributions.
func merge(contribs []contribution) *domain.Dataset {
	ranked := make([]contribution, len(contribs))
	copy(ranked, contribs)
	sort.SliceStable(ranked, func(i, j int) bool { return precedes(ranked[i], ranked[j]) })

	ds := &domain.Dataset{
		Data:    make(domain.Payload),
		Results: make(map[string]domain.SourceResult, len(contribs)),
		Provenance: domain.Provenance{
			SourcesUsed:     []string{},
			CacheHits:       []string{},
			DegradedSources: []string{},
			FallbackSources: []string{},
			FieldSources:    make(map[string]string),
		},
	}

	fallbacks := 0
	for _, c := range ranked {
		r := c.result
		ds.Results[r.SourceID] = r

		for field, value := range r.Payload {
			if _, taken := ds.Provenance.FieldSources[field]; taken {
				continue
			}
			ds.Data[field] = value
			ds.Provenance.FieldSources[field] = r.SourceID
		}

		if isReal(r) {
			ds.Provenance.SourcesUsed = append(ds.Provenance.SourcesUsed, r.SourceID)
		}
		if r.CacheHit {
			ds.Provenance.CacheHits = append(ds.Provenance.CacheHits, r.SourceID)
		}
		if r.Status != domain.ResultOK {
			ds.Provenance.DegradedSources = append(ds.Provenance.DegradedSources, r.SourceID)
		}
		if r.IsFallback {
			ds.Provenance.FallbackSources = append(ds.Provenance.FallbackSources, r.SourceID)
			fallbacks++
		}
	}

	sort.Strings(ds.Provenance.SourcesUsed)
	sort.Strings(ds.Provenance.CacheHits)
	sort.Strings(ds.Provenance.DegradedSources)
	sort.Strings(ds.Provenance.FallbackSources)

	switch {
	case fallbacks == 0:
		ds.Status = domain.DatasetSuccess
	case fallbacks == len(contribs):
		ds.Status = domain.DatasetMock
	default:
		ds.Status = domain.DatasetPartial
	}
	return ds
}

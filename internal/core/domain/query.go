package domain

import (
	"sort"
	"strings"
)

// SourceQuery identifies what is requested from a single source.
// Treat it as immutable once built; cache keys are derived from it.
type SourceQuery struct {
	SourceID string            `json:"source_id"`
	Kind     string            `json:"kind"` // e.g. "market.prices", "static.skills"
	Params   map[string]string `json:"params,omitempty"`
}

// Well-known query kinds.
const (
	KindMarketPrices    = "market.prices"
	KindStaticSkills    = "static.skills"
	KindStaticItems     = "static.items"
	KindCommunityBuilds = "community.builds"
)

// Normalize returns the canonical form of the query used for cache keys.
// The source id is not part of it; keys are namespaced by source separately.
func (q SourceQuery) Normalize() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.TrimSpace(q.Kind)))

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(strings.ToLower(strings.TrimSpace(k)))
		sb.WriteByte('=')
		sb.WriteString(strings.TrimSpace(q.Params[k]))
	}
	return sb.String()
}

// Payload is a JSON object returned by a source. Its top-level keys are the
// fields merged across sources.
type Payload map[string]any

// Clone returns a deep copy of the payload. Nested maps and slices are
// copied so cached values never share state with callers.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/resilience"
)

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices" {
			t.Errorf("expected path /prices, got %s", r.URL.Path)
			http.Error(w, "invalid path", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.RawQuery; got != "league=standard&limit=5" {
			t.Errorf("expected sorted params, got %q", got)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing configured header")
		}
		_, _ = w.Write([]byte(`{"prices":{"chaos_orb":1,"divine_orb":180},"league":"standard"}`))
	}))
	defer server.Close()

	src := NewMarketSource(HTTPConfig{
		ID:      "market",
		BaseURL: server.URL + "/",
		Headers: map[string]string{"X-Api-Key": "secret"},
	})

	payload, err := src.Fetch(context.Background(), domain.SourceQuery{
		SourceID: "market",
		Kind:     domain.KindMarketPrices,
		Params:   map[string]string{"limit": "5", "league": "standard"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prices, ok := payload["prices"].(map[string]any)
	if !ok {
		t.Fatalf("expected prices object, got %T", payload["prices"])
	}
	if prices["divine_orb"] != float64(180) {
		t.Errorf("expected divine_orb 180, got %v", prices["divine_orb"])
	}
	if stats := src.Monitor().Stats(); stats.Requests != 1 || stats.Failures != 0 {
		t.Errorf("unexpected monitor stats %+v", stats)
	}
}

func TestHTTPSource_ResultPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"page":1},"data":{"builds":[{"class":"witch"}]}}`))
	}))
	defer server.Close()

	src := NewCommunitySource(HTTPConfig{ID: "community", BaseURL: server.URL, ResultPath: "data"})
	payload, err := src.Fetch(context.Background(), domain.SourceQuery{Kind: domain.KindCommunityBuilds})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := payload["builds"]; !ok {
		t.Errorf("expected builds field, got %v", payload)
	}
	if _, ok := payload["meta"]; ok {
		t.Errorf("fields outside the result path must be dropped")
	}
}

func TestHTTPSource_DerivedEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	src := NewHTTPSource(HTTPConfig{ID: "x", BaseURL: server.URL})
	if _, err := src.Fetch(context.Background(), domain.SourceQuery{Kind: "Static.Items"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/static/items" {
		t.Errorf("expected /static/items, got %s", gotPath)
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		action   resilience.ErrorAction
	}{
		{"server error", http.StatusInternalServerError, "boom", domain.ErrNetwork, resilience.ActionRetry},
		{"rate limited", http.StatusTooManyRequests, "", domain.ErrNetwork, resilience.ActionGiveUp},
		{"blocked", http.StatusForbidden, "", domain.ErrNetwork, resilience.ActionGiveUp},
		{"throttle body", http.StatusServiceUnavailable, "Daily request count exceeded", domain.ErrNetwork, resilience.ActionGiveUp},
		{"invalid json", http.StatusOK, "{not json", domain.ErrParse, resilience.ActionFatal},
		{"array body", http.StatusOK, "[1,2,3]", domain.ErrParse, resilience.ActionFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "30")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := NewMarketSource(HTTPConfig{ID: "market", BaseURL: server.URL})
			_, err := src.Fetch(context.Background(), domain.SourceQuery{Kind: domain.KindMarketPrices})
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			var srcErr *domain.SourceError
			if !errors.As(err, &srcErr) || srcErr.SourceID != "market" {
				t.Errorf("expected SourceError for market, got %v", err)
			}
			if got := resilience.ClassifyError(err); got != tt.action {
				t.Errorf("expected action %v, got %v", tt.action, got)
			}
		})
	}
}

func TestHTTPSource_ThrottleShortCircuits(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := NewMarketSource(HTTPConfig{ID: "market", BaseURL: server.URL})
	q := domain.SourceQuery{Kind: domain.KindMarketPrices}

	_, _ = src.Fetch(context.Background(), q)
	_, err := src.Fetch(context.Background(), q)
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("throttled source must not be called again, got %d calls", calls)
	}
	if got := src.Monitor().RetryAfter(); got <= 100*time.Second {
		t.Errorf("expected retry-after near 120s, got %v", got)
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	src := NewMarketSource(HTTPConfig{ID: "market", BaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx, domain.SourceQuery{Kind: domain.KindMarketPrices})
	if !errors.Is(err, domain.ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected network error wrapping deadline, got %v", err)
	}
}

func TestHTTPSource_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if !NewHTTPSource(HTTPConfig{ID: "a", BaseURL: server.URL}).HealthCheck(context.Background()) {
		t.Errorf("expected healthy")
	}
	if NewHTTPSource(HTTPConfig{ID: "b", BaseURL: server.URL, HealthPath: "/nope"}).HealthCheck(context.Background()) {
		t.Errorf("expected unhealthy on 404")
	}
}

func TestHTTPSource_CacheKeyNamespaced(t *testing.T) {
	q := domain.SourceQuery{Kind: domain.KindMarketPrices}
	a := NewHTTPSource(HTTPConfig{ID: "a"}).CacheKey(q)
	b := NewHTTPSource(HTTPConfig{ID: "b"}).CacheKey(q)
	if a == b {
		t.Errorf("keys of different sources must differ")
	}
	if !strings.HasPrefix(a, "a:") {
		t.Errorf("expected key prefixed by source id, got %s", a)
	}
}

package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/config"
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/recommend"
)

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestApp(t *testing.T, extraSources string) *App {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "static.skills.json", `{"skills": {"fireball": {"base_damage": 20, "damage_growth": 0.1, "casts_per_second": 1.5}}}`)
	writeFixture(t, dir, "community.builds.json", `{"builds": [
		{"class": "witch", "level": 90, "main_skill": "fireball",
		 "items": [{"slot": "body", "modifiers": [{"stat": "energy_shield", "kind": "flat", "value": 300}]}]},
		{"class": "broken", "level": 0, "main_skill": "arc"}
	]}`)

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
server:
  port: 0
logging:
  level: debug
orchestrator:
  deadline: 5s
sources:
  - id: repoe
    kind: staticdb
    path: %[1]s
    trust: 10
  - id: ladder
    kind: community
    path: %[1]s
%[2]s`, dir, extraSources)))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	app, err := NewApp(cfg, nil)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestApp_Lifecycle(t *testing.T) {
	app := newTestApp(t, "")

	if got := app.Registry().IDs(); len(got) != 2 || got[0] != "ladder" || got[1] != "repoe" {
		t.Errorf("unexpected sources %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestApp_RecommendFromFiles(t *testing.T) {
	app := newTestApp(t, "")
	defer app.Stop(context.Background())

	resp, err := app.Service().Recommend(context.Background(), recommend.Request{})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if resp.Metadata.DatasetStatus != domain.DatasetSuccess {
		t.Errorf("expected success, got %s", resp.Metadata.DatasetStatus)
	}
	// The invalid community build is skipped.
	if len(resp.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	rec := resp.Recommendations[0]
	if rec.BuildStats.Survivability.TotalEnergyShield != 300 {
		t.Errorf("expected 300 energy shield, got %v", rec.BuildStats.Survivability.TotalEnergyShield)
	}
	// Skills from the static export replace the built-in numbers.
	if got := rec.BuildStats.DPS.Breakdown["skill_base_damage"]; got != 20 {
		t.Errorf("expected dataset skill base damage 20, got %v", got)
	}

	// A second request is served from cache.
	resp, err = app.Service().Recommend(context.Background(), recommend.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Metadata.CacheHits != 2 {
		t.Errorf("expected 2 cache hits, got %d", resp.Metadata.CacheHits)
	}
}

func TestApp_UnreachableSourceDegrades(t *testing.T) {
	app := newTestApp(t, `  - id: market
    kind: market
    url: http://127.0.0.1:1
    retry:
      max_attempts: 1
`)
	defer app.Stop(context.Background())

	resp, err := app.Service().Recommend(context.Background(), recommend.Request{})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Metadata.DatasetStatus != domain.DatasetPartial {
		t.Errorf("expected partial, got %s", resp.Metadata.DatasetStatus)
	}
	if len(resp.Recommendations) != 1 || len(resp.Recommendations[0].Provenance.DegradedSources) != 1 {
		t.Errorf("expected one recommendation with the market source degraded, got %+v", resp.Recommendations)
	}
}

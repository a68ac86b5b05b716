package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestFileSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "static.skills.json", `{"skills":{"fireball":{"base_damage":40}}}`)
	writeFile(t, dir, "static.items.json", `{"items":`)

	src := NewStaticDBSource(FileConfig{ID: "staticdb", Dir: dir})
	ctx := context.Background()

	payload, err := src.Fetch(ctx, domain.SourceQuery{Kind: domain.KindStaticSkills})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := payload["skills"]; !ok {
		t.Errorf("expected skills field, got %v", payload)
	}

	if _, err := src.Fetch(ctx, domain.SourceQuery{Kind: domain.KindStaticItems}); !errors.Is(err, domain.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}
	if _, err := src.Fetch(ctx, domain.SourceQuery{Kind: "static.unknown"}); !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected network error for missing file, got %v", err)
	}
	if _, err := src.Fetch(ctx, domain.SourceQuery{Kind: "../etc/passwd"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for path kind, got %v", err)
	}

	if stats := src.Monitor().Stats(); stats.Requests != 3 || stats.Failures != 2 {
		t.Errorf("unexpected monitor stats %+v", stats)
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	src := NewStaticDBSource(FileConfig{ID: "staticdb", Dir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, domain.SourceQuery{Kind: domain.KindStaticSkills})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestFileSource_HealthCheck(t *testing.T) {
	dir := t.TempDir()
	if !NewStaticDBSource(FileConfig{ID: "s", Dir: dir}).HealthCheck(context.Background()) {
		t.Errorf("expected healthy for existing dir")
	}
	if NewStaticDBSource(FileConfig{ID: "s", Dir: filepath.Join(dir, "missing")}).HealthCheck(context.Background()) {
		t.Errorf("expected unhealthy for missing dir")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

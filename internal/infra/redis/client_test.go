package redis

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "://bad"}); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestClient_PayloadRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := NewClient(Config{URL: url, KeyPrefix: "buildforge-test:"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.SetPayload(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetPayload failed: %v", err)
	}
	defer client.DeletePayload(ctx, "k")

	data, ok, err := client.GetPayload(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Errorf("unexpected result %q ok=%v err=%v", data, ok, err)
	}

	if _, ok, err := client.GetPayload(ctx, "missing"); ok || err != nil {
		t.Errorf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

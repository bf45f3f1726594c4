package services_test

import (
	"context"
	"testing"

	"charmcraftcache/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "resolve")
	ctx = services.WithCharm(ctx, "canonical_foo:.")
	ctx = services.WithPlatform(ctx, "ubuntu@22.04:amd64")
	ctx = services.WithRequestID(ctx, "req-123")

	if stage, ok := services.StageFromContext(ctx); !ok || stage != "resolve" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if charm, ok := services.CharmFromContext(ctx); !ok || charm != "canonical_foo:." {
		t.Fatalf("unexpected charm: %v %v", charm, ok)
	}
	if platform, ok := services.PlatformFromContext(ctx); !ok || platform != "ubuntu@22.04:amd64" {
		t.Fatalf("unexpected platform: %v %v", platform, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

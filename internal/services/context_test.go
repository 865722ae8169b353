package services_test

import (
	"context"
	"testing"

	"dreary/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithImporter(ctx, "discord")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %q %v", id, ok)
	}
	if name, ok := services.ImporterFromContext(ctx); !ok || name != "discord" {
		t.Fatalf("unexpected importer: %q %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("unexpected request id: %q %v", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected empty run id to be ignored")
	}
	if _, ok := services.ImporterFromContext(context.Background()); ok {
		t.Fatal("expected no importer on bare context")
	}
}

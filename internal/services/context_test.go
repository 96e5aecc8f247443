package services_test

import (
	"context"
	"testing"

	"turnstile/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTokenID(ctx, "tok-1")
	ctx = services.WithWorker(ctx, "desk-a")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TokenIDFromContext(ctx); !ok || id != "tok-1" {
		t.Fatalf("unexpected token id: %v %v", id, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != "desk-a" {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorker(ctx, "")
	ctx = services.WithTokenID(ctx, "")
	if _, ok := services.WorkerFromContext(ctx); ok {
		t.Fatal("expected no worker value")
	}
	if _, ok := services.TokenIDFromContext(ctx); ok {
		t.Fatal("expected no token id value")
	}
}

package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := UserID(ctx); ok {
		t.Fatalf("expected no user id on empty context")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "s-1")
	if got, ok := SessionID(ctx); !ok || got != "s-1" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "")
	if _, ok := UserID(ctx); ok {
		t.Fatalf("empty user id should read as absent")
	}
}

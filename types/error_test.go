package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithUpstream("workflow-api")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[UPSTREAM_ERROR] upstream failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_FoundThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("save workflow: %w", NewNotFoundError("workflow wf-1 not found"))
	assert.True(t, IsErrorCode(wrapped, ErrNotFound))
	assert.False(t, IsErrorCode(wrapped, ErrConflict))
	assert.Equal(t, ErrNotFound, GetErrorCode(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.Empty(t, GetErrorCode(errors.New("plain")))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := map[ErrorCode]int{
		ErrInvalidRequest:     http.StatusBadRequest,
		ErrInvalidDocument:    http.StatusBadRequest,
		ErrUnauthorized:       http.StatusUnauthorized,
		ErrNotFound:           http.StatusNotFound,
		ErrNotExecutable:      http.StatusUnprocessableEntity,
		ErrRateLimited:        http.StatusTooManyRequests,
		ErrUpstreamError:      http.StatusBadGateway,
		ErrUpstreamTimeout:    http.StatusGatewayTimeout,
		ErrServiceUnavailable: http.StatusServiceUnavailable,
		ErrInternalError:      http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

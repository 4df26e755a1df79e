package workflowapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/internal/tlsutil"
	"github.com/BaSui01/flowcanvas/types"
)

// upstreamName labels errors, spans and metrics produced by this client.
const upstreamName = "workflow_api"

// Recorder receives call metrics. *metrics.Collector satisfies it.
type Recorder interface {
	RecordWorkflowRequest(operation, status string, duration time.Duration)
	SetBreakerState(name string, state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordWorkflowRequest(string, string, time.Duration) {}
func (nopRecorder) SetBreakerState(string, int)                        {}

// Client talks to the external workflow persistence and execution API.
type Client struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	streamTimeout time.Duration

	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(cl *Client) {
		if r != nil {
			cl.recorder = r
		}
	}
}

// WithTracer sets the tracer used for client spans.
func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		if t != nil {
			cl.tracer = t
		}
	}
}

// ErrNotConfigured is returned by New when no base URL is set.
var ErrNotConfigured = errors.New("workflow api base url is not configured")

// New creates a client from configuration.
func New(cfg config.WorkflowAPIConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid workflow api base url: %w", err)
	}

	transport, err := tlsutil.Transport(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("workflow api tls: %w", err)
	}

	c := &Client{
		baseURL:       base,
		apiKey:        cfg.APIKey,
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		http:          &http.Client{Transport: transport},
		tracer:        otel.Tracer("github.com/BaSui01/flowcanvas/workflowapi"),
		recorder:      nopRecorder{},
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "workflow_api"))

	threshold := cfg.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        upstreamName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.recorder.SetBreakerState(name, int(to))
		},
		// Only upstream faults count against the breaker; a 4xx answer
		// means the service is healthy.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !types.IsRetryable(err)
		},
	})

	return c, nil
}

// BreakerState returns the current circuit breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// =============================================================================
// Operations
// =============================================================================

// SaveWorkflow creates the document, or updates it when it already has an
// id, and returns the stored version.
func (c *Client) SaveWorkflow(ctx context.Context, doc *canvas.Document) (*canvas.Document, error) {
	if doc == nil {
		return nil, types.NewInvalidRequestError("document is required")
	}
	method, path := http.MethodPost, "/workflows"
	if doc.ID != "" {
		method, path = http.MethodPut, "/workflows/"+url.PathEscape(doc.ID)
	}

	var saved canvas.Document
	if err := c.call(ctx, "save_workflow", method, path, doc, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetWorkflow fetches a stored document.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*canvas.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, types.NewInvalidRequestError("workflow id is required")
	}
	var doc canvas.Document
	if err := c.call(ctx, "get_workflow", http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Execute runs a workflow and waits for the full response.
func (c *Client) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	var res ExecutionResult
	if err := c.call(ctx, "execute", http.MethodPost, "/workflows/execute", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health checks that the upstream answers. It bypasses the breaker so that
// readiness reflects the service itself.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return mapHTTPError(resp.StatusCode, fmt.Sprintf("health check returned %d", resp.StatusCode))
	}
	return nil
}

// call performs one JSON request/response exchange through the breaker.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := c.startSpan(ctx, op, method, path)
	defer span.End()

	ctx, cancel := c.withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, transportError(ctx, err)
		}
		defer resp.Body.Close()
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

		if resp.StatusCode >= 400 {
			return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
		}
		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, types.NewUpstreamError(upstreamName, "failed to decode response").WithCause(err)
		}
		return nil, nil
	})
	err = breakerError(err)
	c.finish(op, span, start, err)
	return err
}

// ExecuteStream runs a workflow and streams its output. The breaker guards
// only the connection; once the stream is open, failures arrive as chunks.
// The channel is closed after a done or error event, when the body ends or
// when ctx is cancelled.
func (c *Client) ExecuteStream(ctx context.Context, req ExecutionRequest) (<-chan StreamChunk, error) {
	const op = "execute_stream"
	ctx, span := c.startSpan(ctx, op, http.MethodPost, "/workflows/execute/stream")
	ctx, cancel := c.withTimeout(ctx, c.streamTimeout)

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := c.newRequest(ctx, http.MethodPost, "/workflows/execute/stream", req)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, transportError(ctx, err)
		}
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
		}
		return resp.Body, nil
	})
	if err != nil {
		err = breakerError(err)
		c.finish(op, span, start, err)
		span.End()
		cancel()
		return nil, err
	}

	body := res.(io.ReadCloser)
	ch := make(chan StreamChunk)
	go func() {
		defer span.End()
		defer cancel()
		streamErr := streamSSE(ctx, body, ch)
		c.finish(op, span, start, streamErr)
	}()
	return ch, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}

func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (c *Client) startSpan(ctx context.Context, op, method, path string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "workflowapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
}

func (c *Client) finish(op string, span trace.Span, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("workflow api call failed",
			zap.String("operation", op),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
	}
	c.recorder.RecordWorkflowRequest(op, status, time.Since(start))
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, err error) *types.Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return types.NewError(types.ErrUpstreamError, "workflow api request cancelled").
			WithHTTPStatus(http.StatusBadGateway).
			WithUpstream(upstreamName).
			WithCause(err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrUpstreamTimeout, "workflow api timed out").
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithRetryable(true).
			WithUpstream(upstreamName).
			WithCause(err)
	}
	return types.NewUpstreamError(upstreamName, "workflow api request failed").WithCause(err)
}

// mapHTTPError converts an upstream status into a structured error.
func mapHTTPError(status int, msg string) *types.Error {
	switch {
	case status == http.StatusNotFound:
		return types.NewNotFoundError(msg).WithUpstream(upstreamName)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).
			WithHTTPStatus(http.StatusBadGateway).
			WithUpstream(upstreamName)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithHTTPStatus(http.StatusTooManyRequests).
			WithRetryable(true).
			WithUpstream(upstreamName)
	case status >= 500:
		return types.NewUpstreamError(upstreamName, msg)
	default:
		return types.NewInvalidRequestError(msg).WithUpstream(upstreamName)
	}
}

// breakerError maps the breaker's own refusals; other errors pass through.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewError(types.ErrServiceUnavailable, "workflow api is temporarily unavailable").
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithUpstream(upstreamName).
			WithCause(err)
	}
	return err
}

// readErrorMessage extracts {"error": "..."} or {"error": {"message": "..."}}
// from an error body, falling back to the raw text.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &flat); err == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return http.StatusText(http.StatusBadGateway)
}

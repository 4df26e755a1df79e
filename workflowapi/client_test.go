package workflowapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/types"
)

type fakeRecorder struct {
	mu     sync.Mutex
	calls  []string
	states []int
}

func (r *fakeRecorder) RecordWorkflowRequest(op, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op+":"+status)
}

func (r *fakeRecorder) SetBreakerState(_ string, state int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *fakeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testConfig(baseURL string) config.WorkflowAPIConfig {
	cfg := config.DefaultWorkflowAPIConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "secret"
	cfg.Timeout = 2 * time.Second
	cfg.StreamTimeout = 2 * time.Second
	cfg.Breaker.FailureThreshold = 2
	cfg.Breaker.Timeout = time.Minute
	return cfg
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *fakeRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := &fakeRecorder{}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithRecorder(rec)}, opts...)
	c, err := New(testConfig(srv.URL), opts...)
	require.NoError(t, err)
	return c, rec
}

func sampleDocument() *canvas.Document {
	return &canvas.Document{
		DocumentMeta: canvas.DocumentMeta{Name: "support bot", Version: 1, Status: canvas.StatusDraft},
		Nodes: []canvas.WireNode{
			{ID: "trigger-1", Type: "trigger", Position: canvas.Point{X: 10, Y: 20}, Data: map[string]any{"label": "Start"}},
			{ID: "output-2", Type: "output", Position: canvas.Point{X: 300, Y: 20}, Data: map[string]any{"label": "End"}},
		},
		Connections: []canvas.WireEdge{
			{ID: "edge-3", Source: "trigger-1", Target: "output-2", Type: "data"},
		},
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(config.DefaultWorkflowAPIConfig())
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg := config.DefaultWorkflowAPIConfig()
	cfg.BaseURL = "not a url"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = config.DefaultWorkflowAPIConfig()
	cfg.BaseURL = "https://workflows.example.com"
	cfg.CAFile = "/nonexistent/ca.pem"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "tls")
}

func TestClient_SaveWorkflow(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotDoc canvas.Document
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		gotDoc.ID = "wf-42"
		_ = json.NewEncoder(w).Encode(gotDoc)
	}))

	saved, err := c.SaveWorkflow(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/workflows", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Len(t, gotDoc.Nodes, 2)
	assert.Equal(t, "wf-42", saved.ID)
	assert.Equal(t, "support bot", saved.Name)

	// 已有 id 时改为 PUT
	doc := sampleDocument()
	doc.ID = "wf-42"
	_, err = c.SaveWorkflow(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/workflows/wf-42", gotPath)

	assert.Equal(t, []string{"save_workflow:success", "save_workflow:success"}, rec.snapshot())
}

func TestClient_GetWorkflow(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/wf-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"workflow not found"}`))
			return
		}
		doc := sampleDocument()
		doc.ID = "wf-1"
		_ = json.NewEncoder(w).Encode(doc)
	}))

	doc, err := c.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", doc.ID)

	_, err = c.GetWorkflow(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
	assert.Contains(t, err.Error(), "workflow not found")

	_, err = c.GetWorkflow(context.Background(), " ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestClient_Execute(t *testing.T) {
	var got ExecutionRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workflows/execute", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"hello","workflow_execution":{"llm_model":"gpt-4o","provider":"openai"}}`))
	}))

	history := []types.Message{types.NewUserMessage("hi"), types.NewAssistantMessage("hey")}
	req := NewExecutionRequest(sampleDocument(), "what's up", "sess-1", history)
	res, err := c.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Response)
	require.NotNil(t, res.WorkflowExecution)
	assert.Equal(t, "gpt-4o", res.WorkflowExecution.LLMModel)
	assert.Equal(t, "openai", res.WorkflowExecution.Provider)

	assert.Equal(t, "what's up", got.Input)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Connections, 1)
	assert.Equal(t, history, got.ConversationHistory)
}

func TestNewExecutionRequest_Snapshot(t *testing.T) {
	doc := sampleDocument()
	req := NewExecutionRequest(doc, "in", "", nil)

	// 构建后修改文档不影响请求
	doc.Nodes[0].ID = "changed"
	doc.Nodes = append(doc.Nodes, canvas.WireNode{ID: "late"})

	assert.Equal(t, "trigger-1", req.Nodes[0].ID)
	assert.Len(t, req.Nodes, 2)
	assert.Nil(t, req.ConversationHistory)

	empty := NewExecutionRequest(nil, "in", "", nil)
	assert.NotNil(t, empty.Nodes)
	assert.NotNil(t, empty.Connections)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, `{"message":"nodes required"}`, types.ErrInvalidRequest, false},
		{"unauthorized", http.StatusUnauthorized, `denied`, types.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.ErrRateLimited, true},
		{"server error", http.StatusInternalServerError, `boom`, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.Execute(context.Background(), ExecutionRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)
	c.timeout = 50 * time.Millisecond

	_, err := c.Execute(context.Background(), ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamTimeout))
}

func TestClient_BreakerOpensOnUpstreamFailures(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		_, err := c.Execute(context.Background(), ExecutionRequest{})
		require.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Execute(context.Background(), ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrServiceUnavailable))

	mu.Lock()
	assert.Equal(t, 2, hits, "open breaker must not reach the upstream")
	mu.Unlock()

	rec.mu.Lock()
	assert.Equal(t, []int{2}, rec.states)
	rec.mu.Unlock()
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	for i := 0; i < 5; i++ {
		_, err := c.Execute(context.Background(), ExecutionRequest{})
		require.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestClient_ExecuteStream(t *testing.T) {
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workflows/execute/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"content\":\"Hel\"}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"lo\"}\n\n")
		fmt.Fprint(w, "data: {\"done\":true}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"ignored\"}\n\n")
	}))

	ch, err := c.ExecuteStream(context.Background(), ExecutionRequest{Input: "hi"})
	require.NoError(t, err)

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.True(t, chunks[2].Done)

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) == 1 && calls[0] == "execute_stream:success"
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ExecuteStreamErrorEvent(t *testing.T) {
	c, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"partial\"}\n")
		fmt.Fprint(w, "data: {\"error\":\"model overloaded\"}\n")
	}))

	ch, err := c.ExecuteStream(context.Background(), ExecutionRequest{})
	require.NoError(t, err)

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "model overloaded", chunks[1].Error)

	require.Eventually(t, func() bool {
		calls := rec.snapshot()
		return len(calls) == 1 && calls[0] == "execute_stream:error"
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ExecuteStreamMalformed(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n")
	}))

	ch, err := c.ExecuteStream(context.Background(), ExecutionRequest{})
	require.NoError(t, err)

	chunk, ok := <-ch
	require.True(t, ok)
	require.NotNil(t, chunk.Err)
	assert.Equal(t, types.ErrUpstreamError, chunk.Err.Code)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestClient_ExecuteStreamRejected(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	}))

	ch, err := c.ExecuteStream(context.Background(), ExecutionRequest{})
	assert.Nil(t, ch)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Health(t *testing.T) {
	var unhealthy atomic.Bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))

	assert.NoError(t, c.Health(context.Background()))
	unhealthy.Store(true)
	assert.Error(t, c.Health(context.Background()))
}

func TestClient_Spans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), WithTracer(tp.Tracer("test")))

	_, err := c.Execute(context.Background(), ExecutionRequest{})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflowapi.execute", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}

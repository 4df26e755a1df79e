package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/flowcanvas/api/handlers"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/testutil/fixtures"
)

// fakeWorkflowAPI 模拟外部工作流服务
func fakeWorkflowAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /workflows/execute", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "handled: " + req.Input})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.RateLimitRPS = 0
	if mutate != nil {
		mutate(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := NewServer(cfg, nil, zap.NewNop(), zap.NewAtomicLevel())
	require.NoError(t, s.init(ctx))

	api := httptest.NewServer(s.apiHandler)
	t.Cleanup(api.Close)
	return s, api
}

func doJSON(t *testing.T, client *http.Client, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func scrapeMetrics(t *testing.T, s *Server) string {
	t.Helper()
	w := httptest.NewRecorder()
	s.metricsHandler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestServer_EditAndExecute(t *testing.T) {
	upstream := fakeWorkflowAPI(t)
	s, api := newTestServer(t, func(cfg *config.Config) {
		cfg.WorkflowAPI.BaseURL = upstream.URL
	})
	client := api.Client()

	resp, body := doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions", fixtures.ExecutableJSON, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	id := created.Data.ID
	require.NotEmpty(t, id)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), created.RequestID)

	resp, body = doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions/"+id+"/execute", `{"input":"ping"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "handled: ping")

	metrics := scrapeMetrics(t, s)
	assert.Contains(t, metrics, "flowcanvas_http_requests_total")
	assert.Contains(t, metrics, `path="/api/v1/sessions/:id/execute"`)
	assert.Contains(t, metrics, "flowcanvas_workflow_api_requests_total")
	assert.Contains(t, metrics, "flowcanvas_canvas_active_sessions 1")
	assert.Contains(t, metrics, "flowcanvas_canvas_validations_total")
	assert.Contains(t, metrics, "go_goroutines")
}

func TestServer_Readiness(t *testing.T) {
	upstream := fakeWorkflowAPI(t)
	_, api := newTestServer(t, func(cfg *config.Config) {
		cfg.WorkflowAPI.BaseURL = upstream.URL
	})

	resp, body := doJSON(t, api.Client(), http.MethodGet, api.URL+"/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["workflow_api"].Status)
	assert.Equal(t, "pass", status.Checks["sessions"].Status)

	// 外部服务下线只会降级
	upstream.Close()
	resp, body = doJSON(t, api.Client(), http.MethodGet, api.URL+"/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "degraded", status.Status)
}

func TestServer_WithoutWorkflowAPI(t *testing.T) {
	_, api := newTestServer(t, nil)
	client := api.Client()

	resp, body := doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions", fixtures.ExecutableJSON, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions/"+created.Data.ID+"/execute", `{"input":"ping"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodGet, api.URL+"/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "workflow_api")
}

func TestServer_JWTOwnership(t *testing.T) {
	_, api := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Mode = "jwt"
		cfg.Auth.JWT.Secret = "s3cret"
	})
	client := api.Client()

	bearer := func(sub string) http.Header {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": sub,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		return http.Header{"Authorization": {"Bearer " + tok}}
	}

	resp, _ := doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, client, http.MethodPost, api.URL+"/api/v1/sessions", "", bearer("alice"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Data struct {
			ID      string `json:"id"`
			OwnerID string `json:"owner_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "alice", created.Data.OwnerID)

	resp, _ = doJSON(t, client, http.MethodGet, api.URL+"/api/v1/sessions/"+created.Data.ID, "", bearer("alice"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodGet, api.URL+"/api/v1/sessions/"+created.Data.ID, "", bearer("bob"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 探针不需要认证
	resp, _ = doJSON(t, client, http.MethodGet, api.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ApplyReload(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	var buf bytes.Buffer
	logger := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), level))

	cfg := config.DefaultConfig()
	s := NewServer(cfg, nil, logger, level)

	next := config.DefaultConfig()
	next.Log.Level = "debug"
	s.applyReload(next)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Contains(t, buf.String(), "Log level changed")

	next = config.DefaultConfig()
	next.Log.Level = "debug"
	next.Server.HTTPPort = 9999
	s.applyReload(next)
	assert.Contains(t, buf.String(), "requires restart")
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"*", "app.example.com", "localhost:3000"},
		originPatterns([]string{"*", "https://app.example.com", "", "http://localhost:3000"}))
}

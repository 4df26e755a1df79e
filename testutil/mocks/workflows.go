// MockWorkflowService 的工作流服务测试模拟实现。
//
// 支持固定响应、流式输出与错误注入场景。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/workflowapi"
)

// --- MockWorkflowService 结构 ---

// MockWorkflowService 是工作流服务的模拟实现
type MockWorkflowService struct {
	mu sync.Mutex

	// 响应配置
	savedID      string
	replyPrefix  string
	streamChunks []workflowapi.StreamChunk
	err          error

	// 调用记录
	saved    []*canvas.Document
	requests []workflowapi.ExecutionRequest
}

// NewMockWorkflowService 创建新的 MockWorkflowService
func NewMockWorkflowService() *MockWorkflowService {
	return &MockWorkflowService{
		savedID:     "wf-42",
		replyPrefix: "echo: ",
	}
}

// WithSavedID 设置保存后返回的工作流 ID
func (m *MockWorkflowService) WithSavedID(id string) *MockWorkflowService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedID = id
	return m
}

// WithReplyPrefix 设置执行回复前缀，回复为前缀加输入
func (m *MockWorkflowService) WithReplyPrefix(prefix string) *MockWorkflowService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyPrefix = prefix
	return m
}

// WithStreamChunks 设置流式响应块
func (m *MockWorkflowService) WithStreamChunks(chunks ...workflowapi.StreamChunk) *MockWorkflowService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithError 设置所有调用返回的错误
func (m *MockWorkflowService) WithError(err error) *MockWorkflowService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// --- 接口实现 ---

// SaveWorkflow 记录文档并返回带 ID、版本加一的副本
func (m *MockWorkflowService) SaveWorkflow(ctx context.Context, doc *canvas.Document) (*canvas.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.saved = append(m.saved, doc)
	out := *doc
	out.ID = m.savedID
	out.Version = doc.Version + 1
	return &out, nil
}

// Execute 记录请求并回显输入
func (m *MockWorkflowService) Execute(ctx context.Context, req workflowapi.ExecutionRequest) (*workflowapi.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.requests = append(m.requests, req)
	return &workflowapi.ExecutionResult{Response: m.replyPrefix + req.Input}, nil
}

// ExecuteStream 记录请求并按顺序发送预设块
func (m *MockWorkflowService) ExecuteStream(ctx context.Context, req workflowapi.ExecutionRequest) (<-chan workflowapi.StreamChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(ctx); err != nil {
		return nil, err
	}
	m.requests = append(m.requests, req)
	ch := make(chan workflowapi.StreamChunk, len(m.streamChunks))
	for _, c := range m.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *MockWorkflowService) fail(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	return ctx.Err()
}

// --- 调用记录 ---

// Saved 返回已保存的文档
func (m *MockWorkflowService) Saved() []*canvas.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*canvas.Document(nil), m.saved...)
}

// Requests 返回已收到的执行请求
func (m *MockWorkflowService) Requests() []workflowapi.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workflowapi.ExecutionRequest(nil), m.requests...)
}

// LastRequest 返回最近一次执行请求，没有时返回零值
func (m *MockWorkflowService) LastRequest() workflowapi.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return workflowapi.ExecutionRequest{}
	}
	return m.requests[len(m.requests)-1]
}

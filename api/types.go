package api

import (
	"time"

	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/types"
	"github.com/BaSui01/flowcanvas/workflowapi"
)

// =============================================================================
// 校验类型
// =============================================================================

// ValidationResponse 是图结构校验结果。
// @Description 校验报告
type ValidationResponse struct {
	// 没有任何问题
	Valid bool `json:"valid"`
	// 没有 error 级别问题，可以执行
	ExecutionReady bool `json:"execution_ready"`
	// 问题列表（按检查顺序）
	Issues []canvas.Issue `json:"issues"`
	// 各严重级别的问题数量
	Counts map[canvas.Severity]int `json:"counts"`
}

// NewValidationResponse 从校验报告构建响应。
func NewValidationResponse(r canvas.Report) ValidationResponse {
	issues := r.Issues
	if issues == nil {
		issues = []canvas.Issue{}
	}
	return ValidationResponse{
		Valid:          r.Valid(),
		ExecutionReady: r.ExecutionReady(),
		Issues:         issues,
		Counts:         r.Count(),
	}
}

// =============================================================================
// 会话类型
// =============================================================================

// SessionResponse 描述一个编辑会话。
// @Description 编辑会话
type SessionResponse struct {
	// 会话 ID
	ID string `json:"id" example:"3f0c8a2e-6d0b-4a55-9c1e-2f0e5b7d9a11"`
	// 所属用户（JWT subject）
	OwnerID string `json:"owner_id,omitempty"`
	// 文档元数据
	Meta canvas.DocumentMeta `json:"meta"`
	// 编辑器状态
	State canvas.State `json:"state"`
	// 当前校验结果
	Validation ValidationResponse `json:"validation"`
	// 创建时间
	CreatedAt time.Time `json:"created_at"`
	// 最后活动时间
	LastActive time.Time `json:"last_active"`
}

// CommandResponse 是单条命令的执行结果。
// @Description 命令结果
type CommandResponse struct {
	// 命令结果（applied=false 时附带 reason）
	Outcome canvas.Outcome `json:"outcome"`
	// 命令执行后的编辑器状态
	State canvas.State `json:"state"`
}

// CommandError 是 websocket 上的命令错误帧。
type CommandError struct {
	Error string `json:"error"`
}

// =============================================================================
// 执行类型
// =============================================================================

// ExecuteRequest 表示一次工作流执行请求。
// @Description 执行请求
type ExecuteRequest struct {
	// 用户输入
	Input string `json:"input" binding:"required"`
	// 对话历史；缺省时使用会话自身记录的历史
	ConversationHistory []types.Message `json:"conversation_history,omitempty"`
	// 以 SSE 形式流式返回
	Stream bool `json:"stream,omitempty"`
}

// ExecuteResponse 是非流式执行结果。
type ExecuteResponse = workflowapi.ExecutionResult

// SaveResponse 是保存到工作流服务后的文档。
type SaveResponse struct {
	Document *canvas.Document `json:"document"`
}

// SessionSummary 是会话列表中的一项。
type SessionSummary struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

package workflowapi

import (
	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/types"
)

// ExecutionRequest is the body sent to the execution endpoint. The graph is
// a snapshot taken when the request is built; later edits do not affect a
// request already in flight.
type ExecutionRequest struct {
	Nodes               []canvas.WireNode `json:"nodes"`
	Connections         []canvas.WireEdge `json:"connections"`
	Input               string            `json:"input"`
	SessionID           string            `json:"session_id,omitempty"`
	ConversationHistory []types.Message   `json:"conversation_history,omitempty"`
}

// NewExecutionRequest builds a request from an encoded document.
func NewExecutionRequest(doc *canvas.Document, input, sessionID string, history []types.Message) ExecutionRequest {
	req := ExecutionRequest{
		Nodes:       []canvas.WireNode{},
		Connections: []canvas.WireEdge{},
		Input:       input,
		SessionID:   sessionID,
	}
	if doc != nil {
		req.Nodes = append(req.Nodes, doc.Nodes...)
		req.Connections = append(req.Connections, doc.Connections...)
	}
	if len(history) > 0 {
		req.ConversationHistory = append([]types.Message(nil), history...)
	}
	return req
}

// ExecutionResult is the non-streaming execution response.
type ExecutionResult struct {
	Response          string             `json:"response"`
	WorkflowExecution *WorkflowExecution `json:"workflow_execution,omitempty"`
}

// WorkflowExecution describes which model served an execution.
type WorkflowExecution struct {
	LLMModel string `json:"llm_model"`
	Provider string `json:"provider"`
}

// StreamChunk is one event of a streaming execution. Exactly one of
// Content, Done, Error or Err is meaningful. Err is set when the stream
// itself broke, as opposed to an error event sent by the server.
type StreamChunk struct {
	Content string       `json:"content,omitempty"`
	Done    bool         `json:"done,omitempty"`
	Error   string       `json:"error,omitempty"`
	Err     *types.Error `json:"-"`
}

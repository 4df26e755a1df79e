// =============================================================================
// 📦 测试数据工厂 - 工作流文档
// =============================================================================
// 提供预定义的工作流文档，覆盖可执行、有环、孤立节点等校验场景
// =============================================================================
package fixtures

import (
	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/types"
)

// ExecutableJSON 触发器连到输出，没有任何问题
const ExecutableJSON = `{
  "name": "support bot",
  "nodes": [
    {"id": "t1", "type": "trigger", "position": {"x": 0, "y": 0}},
    {"id": "o1", "type": "output", "position": {"x": 300, "y": 0}}
  ],
  "connections": [
    {"id": "e1", "source": "t1", "target": "o1", "sourceHandle": "t1-output", "targetHandle": "o1-input"}
  ]
}`

// CyclicJSON 两个节点互连，没有起点
const CyclicJSON = `{
  "name": "loop",
  "nodes": [
    {"id": "a", "type": "trigger", "position": {"x": 0, "y": 0}},
    {"id": "b", "type": "trigger", "position": {"x": 300, "y": 0}}
  ],
  "connections": [
    {"id": "ab", "source": "a", "target": "b", "sourceHandle": "a-output", "targetHandle": "b-input"},
    {"id": "ba", "source": "b", "target": "a", "sourceHandle": "b-output", "targetHandle": "a-input"}
  ]
}`

// OrphanYAML 多出一个未连接的输出节点，只产生警告
const OrphanYAML = `name: support bot
nodes:
  - id: t1
    type: trigger
    position: {x: 0, y: 0}
  - id: o1
    type: output
    position: {x: 300, y: 0}
  - id: o2
    type: output
    position: {x: 300, y: 200}
connections:
  - id: e1
    source: t1
    target: o1
    sourceHandle: t1-output
    targetHandle: o1-input
`

// =============================================================================
// 🧩 文档工厂
// =============================================================================

// ExecutableDocument 返回可执行文档
func ExecutableDocument() *canvas.Document {
	return mustJSON(ExecutableJSON)
}

// CyclicDocument 返回有环文档
func CyclicDocument() *canvas.Document {
	return mustJSON(CyclicJSON)
}

// OrphanDocument 返回带孤立节点的文档
func OrphanDocument() *canvas.Document {
	doc, err := canvas.DocumentFromYAML([]byte(OrphanYAML))
	if err != nil {
		panic(err)
	}
	return doc
}

func mustJSON(s string) *canvas.Document {
	doc, err := canvas.DocumentFromJSON([]byte(s))
	if err != nil {
		panic(err)
	}
	return doc
}

// =============================================================================
// 💬 对话历史
// =============================================================================

// SimpleConversation 返回一问一答的对话历史
func SimpleConversation() []types.Message {
	return []types.Message{
		types.NewUserMessage("Hello"),
		types.NewAssistantMessage("Hi! How can I help you today?"),
	}
}

package canvas

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// NodeData is the kind-specific configuration of a node. Exactly one
// implementation exists per NodeKind; callers switch on the concrete type.
type NodeData interface {
	Kind() NodeKind
	normalize() error
}

// AgentData configures an agent node.
type AgentData struct {
	Name                  string `json:"name" yaml:"name"`
	Description           string `json:"description" yaml:"description"`
	SystemPrompt          string `json:"systemPrompt" yaml:"systemPrompt"`
	ContextWindow         int    `json:"contextWindow" yaml:"contextWindow"`
	MaxConversations      int    `json:"maxConversations" yaml:"maxConversations"`
	IncludeSystemMessages bool   `json:"includeSystemMessages" yaml:"includeSystemMessages"`
}

// LLMData configures a language-model node.
type LLMData struct {
	LLMConfigID     string  `json:"llmConfigId,omitempty" yaml:"llmConfigId,omitempty"`
	Provider        string  `json:"provider" yaml:"provider"`
	Model           string  `json:"model" yaml:"model"`
	APIBase         string  `json:"apiBase" yaml:"apiBase"`
	APIKeySecretRef string  `json:"apiKeySecretRef" yaml:"apiKeySecretRef"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	MaxTokens       int     `json:"maxTokens" yaml:"maxTokens"`
}

// ToolData configures a tool node. Parameters always holds a JSON object.
type ToolData struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Type        string         `json:"type" yaml:"type"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
}

// MemoryData configures a memory node.
type MemoryData struct {
	Type           string  `json:"type" yaml:"type"`
	MaxSize        int     `json:"maxSize" yaml:"maxSize"`
	Similarity     float64 `json:"similarity" yaml:"similarity"`
	Retention      string  `json:"retention" yaml:"retention"`
	MemoryStrategy string  `json:"memoryStrategy" yaml:"memoryStrategy"`
}

// TriggerData configures a trigger node.
type TriggerData struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	TriggerType string `json:"triggerType" yaml:"triggerType"`
	Schedule    string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// OutputData configures an output node.
type OutputData struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Format      string `json:"format" yaml:"format"`
	Destination string `json:"destination" yaml:"destination"`
	Template    string `json:"template,omitempty" yaml:"template,omitempty"`
}

// RoutingRule sends work matching Condition to the agent port Target.
type RoutingRule struct {
	Condition string `json:"condition" yaml:"condition"`
	Target    string `json:"target" yaml:"target"`
}

// OrchestratorData configures an orchestrator node.
type OrchestratorData struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Strategy     string        `json:"strategy" yaml:"strategy"`
	RoutingRules []RoutingRule `json:"routingRules,omitempty" yaml:"routingRules,omitempty"`
}

func (*AgentData) Kind() NodeKind        { return KindAgent }
func (*LLMData) Kind() NodeKind          { return KindLLM }
func (*ToolData) Kind() NodeKind         { return KindTool }
func (*MemoryData) Kind() NodeKind       { return KindMemory }
func (*TriggerData) Kind() NodeKind      { return KindTrigger }
func (*OutputData) Kind() NodeKind       { return KindOutput }
func (*OrchestratorData) Kind() NodeKind { return KindOrchestrator }

// Allowed enumeration values. The first entry of each list is the default.
var (
	ToolTypes         = []string{"function", "api", "database", "file", "webhook", "custom"}
	MemoryTypes       = []string{"conversation", "rag", "vector", "sql", "redis", "file", "custom"}
	Retentions        = []string{"30d", "1d", "7d", "90d", "1y", "never"}
	MemoryStrategies  = []string{"sliding_window", "token_based", "time_based"}
	TriggerTypes      = []string{"manual", "schedule", "webhook", "event"}
	OutputFormats     = []string{"text", "json", "markdown"}
	RoutingStrategies = []string{"sequential", "parallel", "conditional"}
)

// DefaultNodeData returns the configuration a freshly added node of kind
// starts with.
func DefaultNodeData(kind NodeKind) NodeData {
	switch kind {
	case KindAgent:
		return &AgentData{
			Name:                  "New Agent",
			ContextWindow:         4000,
			MaxConversations:      10,
			IncludeSystemMessages: true,
		}
	case KindLLM:
		return &LLMData{
			Temperature: 0.7,
			MaxTokens:   4000,
		}
	case KindTool:
		return &ToolData{
			Name:       "New Tool",
			Type:       ToolTypes[0],
			Parameters: map[string]any{},
			Enabled:    true,
		}
	case KindMemory:
		return &MemoryData{
			Type:           MemoryTypes[0],
			MaxSize:        1000,
			Similarity:     0.8,
			Retention:      Retentions[0],
			MemoryStrategy: MemoryStrategies[0],
		}
	case KindTrigger:
		return &TriggerData{Name: "Trigger", TriggerType: TriggerTypes[0]}
	case KindOutput:
		return &OutputData{Name: "Output", Format: OutputFormats[0], Destination: "chat"}
	case KindOrchestrator:
		return &OrchestratorData{Name: "Orchestrator", Strategy: RoutingStrategies[0]}
	}
	return nil
}

func (d *AgentData) normalize() error {
	if d.ContextWindow < 1 {
		d.ContextWindow = 1
	}
	d.MaxConversations = clampInt(d.MaxConversations, 1, 100)
	return nil
}

func (d *LLMData) normalize() error {
	d.Temperature = clampFloat(d.Temperature, 0, 2)
	if d.MaxTokens < 1 {
		d.MaxTokens = 1
	}
	return nil
}

func (d *ToolData) normalize() error {
	if d.Parameters == nil {
		d.Parameters = map[string]any{}
	}
	return checkEnum("type", &d.Type, ToolTypes)
}

func (d *MemoryData) normalize() error {
	if d.MaxSize < 1 {
		d.MaxSize = 1
	}
	d.Similarity = clampFloat(d.Similarity, 0, 1)
	if err := checkEnum("type", &d.Type, MemoryTypes); err != nil {
		return err
	}
	if err := checkEnum("retention", &d.Retention, Retentions); err != nil {
		return err
	}
	return checkEnum("memoryStrategy", &d.MemoryStrategy, MemoryStrategies)
}

func (d *TriggerData) normalize() error {
	return checkEnum("triggerType", &d.TriggerType, TriggerTypes)
}

func (d *OutputData) normalize() error {
	return checkEnum("format", &d.Format, OutputFormats)
}

func (d *OrchestratorData) normalize() error {
	return checkEnum("strategy", &d.Strategy, RoutingStrategies)
}

// checkEnum fills an empty value with the default and rejects anything
// outside allowed.
func checkEnum(field string, v *string, allowed []string) error {
	if *v == "" {
		*v = allowed[0]
		return nil
	}
	for _, a := range allowed {
		if *v == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q not in %v", ErrInvalidNodeData, field, *v, allowed)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeNodeData builds the data of a kind from its JSON form. Fields
// missing from raw keep their defaults.
func DecodeNodeData(kind NodeKind, raw []byte) (NodeData, error) {
	data := DefaultNodeData(kind)
	if data == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrInvalidNodeData, kind, err)
		}
	}
	if err := data.normalize(); err != nil {
		return nil, err
	}
	return data, nil
}

// NodeDataMap flattens data into its wire map.
func NodeDataMap(data NodeData) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", data.Kind(), err)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s data: %w", data.Kind(), err)
	}
	return m, nil
}

// mergeNodeData shallow-merges partial into a copy of current. current is
// never modified.
func mergeNodeData(current NodeData, partial map[string]any) (NodeData, error) {
	m, err := NodeDataMap(current)
	if err != nil {
		return nil, err
	}
	for k, v := range partial {
		m[k] = v
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNodeData, err)
	}
	return DecodeNodeData(current.Kind(), raw)
}

// unknownNodeDataKeys lists the keys of partial that no json field of data
// accepts, sorted. Merging ignores them.
func unknownNodeDataKeys(data NodeData, partial map[string]any) []string {
	t := reflect.TypeOf(data)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	known := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		known[name] = struct{}{}
	}
	var unknown []string
	for k := range partial {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// sanitizeToolParameters accepts parameters typed as a JSON string and
// parses it into an object. A string that is not a JSON object is dropped
// so the node keeps its last valid parameters; dropped reports whether
// that happened.
func sanitizeToolParameters(partial map[string]any) (out map[string]any, dropped bool) {
	v, present := partial["parameters"]
	if !present {
		return partial, false
	}
	out = make(map[string]any, len(partial))
	for k, val := range partial {
		out[k] = val
	}
	switch p := v.(type) {
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(p), &obj); err != nil || obj == nil {
			delete(out, "parameters")
			return out, true
		}
		out["parameters"] = obj
	case map[string]any:
	default:
		delete(out, "parameters")
		return out, true
	}
	return out, false
}

func cloneNodeData(d NodeData) NodeData {
	switch v := d.(type) {
	case *AgentData:
		c := *v
		return &c
	case *LLMData:
		c := *v
		return &c
	case *ToolData:
		c := *v
		c.Parameters = cloneMap(v.Parameters)
		return &c
	case *MemoryData:
		c := *v
		return &c
	case *TriggerData:
		c := *v
		return &c
	case *OutputData:
		c := *v
		return &c
	case *OrchestratorData:
		c := *v
		if v.RoutingRules != nil {
			c.RoutingRules = append([]RoutingRule(nil), v.RoutingRules...)
		}
		return &c
	}
	return d
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	}
	return v
}

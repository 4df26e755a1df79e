package canvas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// DocumentMeta is the descriptive part of a stored workflow.
type DocumentMeta struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version     int            `json:"version" yaml:"version"`
	Metadata    map[string]any `json:"workflow_metadata,omitempty" yaml:"workflow_metadata,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	IsPublic    bool           `json:"is_public" yaml:"is_public"`
	Status      string         `json:"status,omitempty" yaml:"status,omitempty"`
	IsTemplate  bool           `json:"is_template" yaml:"is_template"`
}

// Document is the wire form of a workflow exchanged with the workflow API.
type Document struct {
	DocumentMeta `yaml:",inline"`
	Nodes        []WireNode `json:"nodes" yaml:"nodes"`
	Connections  []WireEdge `json:"connections" yaml:"connections"`
}

// WireNode is a node as stored: data is the kind's flat field map.
type WireNode struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Position Point          `json:"position" yaml:"position"`
	Data     map[string]any `json:"data" yaml:"data"`
}

// WireEdge is an edge as stored. Handles are port ids.
type WireEdge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Type         string `json:"type" yaml:"type"`
	DataType     string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
}

// EncodeDocument builds the wire form of a graph.
func EncodeDocument(meta DocumentMeta, nodes []Node, edges []Edge) (*Document, error) {
	if meta.Version == 0 {
		meta.Version = 1
	}
	if meta.Status == "" {
		meta.Status = StatusDraft
	}
	doc := &Document{
		DocumentMeta: meta,
		Nodes:        make([]WireNode, 0, len(nodes)),
		Connections:  make([]WireEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		data := n.Data
		if data == nil {
			data = DefaultNodeData(n.Kind)
		}
		m, err := NodeDataMap(data)
		if err != nil {
			return nil, fmt.Errorf("encode node %s: %w", n.ID, err)
		}
		doc.Nodes = append(doc.Nodes, WireNode{
			ID:       n.ID,
			Type:     string(n.Kind),
			Position: n.Position,
			Data:     m,
		})
	}
	for _, e := range edges {
		e.applyDefaults()
		doc.Connections = append(doc.Connections, WireEdge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourcePortID,
			TargetHandle: e.TargetPortID,
			Type:         string(e.Kind),
			DataType:     e.DataType,
		})
	}
	return doc, nil
}

// Decode converts the wire form back into nodes and edges. Node data is
// normalized the same way every model write is. Referential checks are
// left to GraphModel.Load.
func (d *Document) Decode() ([]Node, []Edge, error) {
	nodes := make([]Node, 0, len(d.Nodes))
	for _, wn := range d.Nodes {
		kind, err := ParseNodeKind(wn.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: node %s: %w", ErrInvalidDocument, wn.ID, err)
		}
		fields := wn.Data
		if kind == KindTool && fields != nil {
			// parameters may arrive as a JSON string
			fields, _ = sanitizeToolParameters(fields)
		}
		var raw []byte
		if fields != nil {
			if raw, err = json.Marshal(fields); err != nil {
				return nil, nil, fmt.Errorf("%w: node %s data: %v", ErrInvalidDocument, wn.ID, err)
			}
		}
		data, err := DecodeNodeData(kind, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: node %s: %w", ErrInvalidDocument, wn.ID, err)
		}
		nodes = append(nodes, Node{ID: wn.ID, Kind: kind, Position: wn.Position, Data: data})
	}

	edges := make([]Edge, 0, len(d.Connections))
	for _, we := range d.Connections {
		e := Edge{
			ID:           we.ID,
			Source:       we.Source,
			Target:       we.Target,
			SourcePortID: we.SourceHandle,
			TargetPortID: we.TargetHandle,
			Kind:         EdgeKind(we.Type),
			DataType:     we.DataType,
		}
		e.applyDefaults()
		if !e.Kind.Valid() {
			return nil, nil, fmt.Errorf("%w: edge %s type %q", ErrInvalidDocument, we.ID, we.Type)
		}
		edges = append(edges, e)
	}
	return nodes, edges, nil
}

// ToJSON renders the document as indented JSON.
func (d *Document) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document to JSON: %w", err)
	}
	return data, nil
}

// ToYAML renders the document as YAML.
func (d *Document) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document to YAML: %w", err)
	}
	return data, nil
}

// DocumentFromJSON parses a JSON document.
func DocumentFromJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// DocumentFromYAML parses a YAML document.
func DocumentFromYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// LoadDocumentFile reads a document, choosing YAML for .yaml/.yml files
// and JSON otherwise.
func LoadDocumentFile(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if isYAMLFile(filename) {
		return DocumentFromYAML(data)
	}
	return DocumentFromJSON(data)
}

// SaveFile writes the document in the format its extension names.
func (d *Document) SaveFile(filename string) error {
	var (
		data []byte
		err  error
	)
	if isYAMLFile(filename) {
		data, err = d.ToYAML()
	} else {
		data, err = d.ToJSON()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func isYAMLFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Document returns the wire form of the editor's current graph.
func (e *Editor) Document(meta DocumentMeta) (*Document, error) {
	return EncodeDocument(meta, e.model.Nodes(), e.model.Edges())
}

// LoadDocument decodes doc and loads it, committing one history entry.
func (e *Editor) LoadDocument(doc *Document) error {
	nodes, edges, err := doc.Decode()
	if err != nil {
		e.reject("load", err)
		return err
	}
	return e.Load(nodes, edges)
}

// Package config defines the pipeline configuration format the engine
// traverses: nodes, edges, and the endpoint/type normalization rules
// that govern how a config parses and how it runs.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReservedInput and ReservedOutput are the synthetic source and sink node
// IDs. Neither carries a NodeConfig.
const (
	ReservedInput  = "input"
	ReservedOutput = "output"
)

// NodeType is a closed enum. Unmarshaling an unrecognized value rejects
// the whole config (spec: "unknown type rejects the whole config").
type NodeType string

const (
	NodeLLM          NodeType = "llm"
	NodeWorker       NodeType = "worker"
	NodeRouter       NodeType = "router"
	NodeGate         NodeType = "gate"
	NodeCoordinator  NodeType = "coordinator"
	NodeAggregator   NodeType = "aggregator"
	NodeOrchestrator NodeType = "orchestrator"
	NodeSynthesizer  NodeType = "synthesizer"
	NodeEvaluator    NodeType = "evaluator"
)

func parseNodeType(raw string) (NodeType, error) {
	switch NodeType(raw) {
	case NodeLLM, NodeWorker, NodeRouter, NodeGate, NodeCoordinator,
		NodeAggregator, NodeOrchestrator, NodeSynthesizer, NodeEvaluator:
		return NodeType(raw), nil
	default:
		return "", fmt.Errorf("unknown node type %q", raw)
	}
}

// RequiresLLM reports whether this node type dispatches to an LLM
// executor at all (llm, worker, router). The remaining types are
// pass-through: they copy materialized input to output unchanged.
func (t NodeType) RequiresLLM() bool {
	return t == NodeLLM || t == NodeWorker || t == NodeRouter
}

func (t NodeType) IsRouter() bool { return t == NodeRouter }

// EdgeType is an open enum: unrecognized values normalize silently to
// Direct rather than rejecting the config.
type EdgeType string

const (
	EdgeDirect      EdgeType = "direct"
	EdgeParallel    EdgeType = "parallel"
	EdgeConditional EdgeType = "conditional"
	EdgeDynamic     EdgeType = "dynamic"
)

func normalizeEdgeType(raw string) EdgeType {
	switch EdgeType(raw) {
	case EdgeDirect, EdgeParallel, EdgeConditional, EdgeDynamic:
		return EdgeType(raw)
	default:
		return EdgeDirect
	}
}

// EdgeEndpoint is either a single node ID or an ordered list of them.
// Single(x) is equivalent to Multiple([]string{x}) under traversal; all
// endpoint operations treat an endpoint as an ordered list of length >= 1.
type EdgeEndpoint struct {
	ids []string
}

func SingleEndpoint(id string) EdgeEndpoint   { return EdgeEndpoint{ids: []string{id}} }
func MultiEndpoint(ids []string) EdgeEndpoint { return EdgeEndpoint{ids: append([]string{}, ids...)} }

// IDs returns the ordered list backing this endpoint.
func (e EdgeEndpoint) IDs() []string { return e.ids }

// Is reports whether the endpoint names exactly one target and
// that target is id.
func (e EdgeEndpoint) Is(id string) bool {
	return len(e.ids) == 1 && e.ids[0] == id
}

// Contains reports whether id appears anywhere in the endpoint list.
func (e EdgeEndpoint) Contains(id string) bool {
	for _, v := range e.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (e EdgeEndpoint) MarshalJSON() ([]byte, error) {
	if len(e.ids) == 1 {
		return json.Marshal(e.ids[0])
	}
	return json.Marshal(e.ids)
}

// UnmarshalJSON accepts a bare string, an array of strings, or null
// (normalized to a single empty-string endpoint, matching the original
// From<Value> conversion rules). A "from" or "to" field that is absent
// from an edge object never reaches this method, so such an endpoint
// keeps no IDs at all.
func (e *EdgeEndpoint) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		e.ids = []string{""}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		e.ids = []string{s}
		return nil
	}
	if trimmed[0] != '[' {
		// Number, bool, or object: normalizes to the empty string rather
		// than rejecting the whole config, matching the original From<Value>
		// conversion rules.
		e.ids = []string{""}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		e.ids = []string{""}
		return nil
	}
	if len(list) == 0 {
		list = []string{""}
	}
	e.ids = list
	return nil
}

// NodeConfig describes one node in the pipeline. Prompt, Model, Config,
// and Tools are all optional; Config is opaque JSON the engine never
// interprets itself.
type NodeConfig struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"-"`
	Prompt string          `json:"prompt,omitempty"`
	Model  string          `json:"model,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Tools  []string        `json:"tools,omitempty"`
}

type nodeConfigWire struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Prompt string          `json:"prompt,omitempty"`
	Model  string          `json:"model,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Tools  []string        `json:"tools,omitempty"`
}

func (n NodeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeConfigWire{
		ID: n.ID, Type: string(n.Type), Prompt: n.Prompt,
		Model: n.Model, Config: n.Config, Tools: n.Tools,
	})
}

func (n *NodeConfig) UnmarshalJSON(data []byte) error {
	var w nodeConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing node config: %w", err)
	}
	t, err := parseNodeType(w.Type)
	if err != nil {
		return fmt.Errorf("node %q: %w", w.ID, err)
	}
	n.ID, n.Type, n.Prompt, n.Model, n.Config, n.Tools =
		w.ID, t, w.Prompt, w.Model, w.Config, w.Tools
	return nil
}

// EdgeConfig connects one or more source nodes to one or more target nodes.
type EdgeConfig struct {
	From EdgeEndpoint `json:"from"`
	To   EdgeEndpoint `json:"to"`
	Type EdgeType     `json:"-"`
}

type edgeConfigWire struct {
	From     EdgeEndpoint `json:"from"`
	To       EdgeEndpoint `json:"to"`
	EdgeType string       `json:"edge_type"`
}

func (e EdgeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(edgeConfigWire{From: e.From, To: e.To, EdgeType: string(e.Type)})
}

func (e *EdgeConfig) UnmarshalJSON(data []byte) error {
	var w edgeConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing edge config: %w", err)
	}
	e.From, e.To, e.Type = w.From, w.To, normalizeEdgeType(w.EdgeType)
	return nil
}

// PipelineConfig is the full definition of a DAG the engine can execute.
type PipelineConfig struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Nodes       []NodeConfig `json:"nodes"`
	Edges       []EdgeConfig `json:"edges"`
}

// Parse decodes a pipeline config from JSON. An unknown node type in any
// node rejects the whole config (via the embedded NodeConfig.UnmarshalJSON
// error); an unknown edge_type silently normalizes to "direct" and never
// produces an error.
func Parse(data []byte) (*PipelineConfig, error) {
	var p PipelineConfig
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config_error: %w", err)
	}
	return &p, nil
}

// ToJSON serializes the config back to JSON.
func (p *PipelineConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// NodeByID returns the node config for id, or nil if not present (id may
// also be one of the reserved source/sink IDs, which never have a
// NodeConfig).
func (p *PipelineConfig) NodeByID(id string) *NodeConfig {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

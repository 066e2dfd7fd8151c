package config

import (
	"encoding/json"
	"testing"
)

func TestEdgeEndpoint_UnmarshalString(t *testing.T) {
	var e EdgeEndpoint
	if err := json.Unmarshal([]byte(`"a"`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e.Is("a") {
		t.Fatalf("got %v, want single endpoint %q", e.IDs(), "a")
	}
}

func TestEdgeEndpoint_UnmarshalArray(t *testing.T) {
	var e EdgeEndpoint
	if err := json.Unmarshal([]byte(`["a","b"]`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e.Contains("a") || !e.Contains("b") || e.Is("a") {
		t.Fatalf("got %v, want a multi-endpoint containing a and b", e.IDs())
	}
}

func TestEdgeEndpoint_NullAndEmptyStringNormalizeToEmptyString(t *testing.T) {
	for _, raw := range []string{`null`, `""`} {
		var e EdgeEndpoint
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
		if !e.Is("") {
			t.Fatalf("raw %q: got %v, want single empty-string endpoint", raw, e.IDs())
		}
	}
}

func TestEdgeEndpoint_NonStringNonArrayNormalizesToEmptyString(t *testing.T) {
	for _, raw := range []string{`42`, `true`, `{}`} {
		var e EdgeEndpoint
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
		if !e.Is("") {
			t.Fatalf("raw %q: got %v, want single empty-string endpoint", raw, e.IDs())
		}
	}
}

func TestEdgeEndpoint_EmptyArrayNormalizesToEmptyString(t *testing.T) {
	var e EdgeEndpoint
	if err := json.Unmarshal([]byte(`[]`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !e.Is("") {
		t.Fatalf("got %v, want single empty-string endpoint", e.IDs())
	}
}

func TestEdgeEndpoint_RoundTrip(t *testing.T) {
	single := SingleEndpoint("a")
	data, err := json.Marshal(single)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"a"` {
		t.Fatalf("got %s, want a bare string", data)
	}

	multi := MultiEndpoint([]string{"a", "b"})
	data, err = json.Marshal(multi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["a","b"]` {
		t.Fatalf("got %s, want an array", data)
	}
}

func TestNodeConfig_UnknownTypeRejectsTheWholeConfig(t *testing.T) {
	raw := `{"id":"n","type":"not-a-real-type"}`
	var n NodeConfig
	if err := json.Unmarshal([]byte(raw), &n); err == nil {
		t.Fatal("expected an unknown node type to reject unmarshaling")
	}
}

func TestNodeConfig_KnownTypesRoundTrip(t *testing.T) {
	for _, nt := range []NodeType{NodeLLM, NodeWorker, NodeRouter, NodeGate, NodeCoordinator,
		NodeAggregator, NodeOrchestrator, NodeSynthesizer, NodeEvaluator} {
		n := NodeConfig{ID: "n", Type: nt, Prompt: "p", Model: "m", Tools: []string{"t"}}
		data, err := json.Marshal(n)
		if err != nil {
			t.Fatalf("marshal %v: %v", nt, err)
		}
		var got NodeConfig
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", nt, err)
		}
		if got.Type != nt {
			t.Fatalf("got type %v, want %v", got.Type, nt)
		}
	}
}

func TestEdgeType_UnknownNormalizesToDirectSilently(t *testing.T) {
	raw := `{"from":"a","to":"b","edge_type":"not-a-real-type"}`
	var e EdgeConfig
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != EdgeDirect {
		t.Fatalf("got %v, want %v", e.Type, EdgeDirect)
	}
}

func TestEdgeType_KnownValuesRoundTrip(t *testing.T) {
	for _, et := range []EdgeType{EdgeDirect, EdgeParallel, EdgeConditional, EdgeDynamic} {
		e := EdgeConfig{From: SingleEndpoint("a"), To: SingleEndpoint("b"), Type: et}
		data, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal %v: %v", et, err)
		}
		var got EdgeConfig
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", et, err)
		}
		if got.Type != et {
			t.Fatalf("got %v, want %v", got.Type, et)
		}
	}
}

func TestPipelineConfig_ParseAndNodeByID(t *testing.T) {
	raw := `{
		"id": "p1", "name": "Pipeline",
		"nodes": [{"id":"a","type":"llm"}],
		"edges": [{"from":"input","to":"a"},{"from":"a","to":"output"}]
	}`
	p, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.NodeByID("a") == nil {
		t.Fatal("expected node \"a\" to be found")
	}
	if p.NodeByID("missing") != nil {
		t.Fatal("expected a missing node ID to return nil")
	}
	if p.Edges[0].Type != EdgeDirect {
		t.Fatalf("got %v, want edge_type to default to direct", p.Edges[0].Type)
	}
}

func TestPipelineConfig_UnknownNodeTypeRejectsParse(t *testing.T) {
	raw := `{"id":"p1","name":"p","nodes":[{"id":"a","type":"bogus"}],"edges":[]}`
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatal("expected Parse to reject an unknown node type")
	}
}

func TestBuilder_ProducesTheSameShapeAsHandWrittenJSON(t *testing.T) {
	built := NewBuilder("p1", "Pipeline").
		AddNode(NodeConfig{ID: "a", Type: NodeLLM}).
		AddEdge(SingleEndpoint("input"), SingleEndpoint("a"), EdgeDirect).
		AddEdge(SingleEndpoint("a"), SingleEndpoint("output"), EdgeDirect).
		Build()

	if len(built.Nodes) != 1 || len(built.Edges) != 2 {
		t.Fatalf("got %d nodes / %d edges, want 1 / 2", len(built.Nodes), len(built.Edges))
	}
	if built.Edges[0].From.Is("input") != true || built.Edges[1].To.Is("output") != true {
		t.Fatal("builder produced unexpected edge endpoints")
	}
}

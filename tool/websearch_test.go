package tool

import (
	"context"
	"testing"
)

func TestWebSearchTool_Name(t *testing.T) {
	ws := NewWebSearchTool("key")
	if ws.Name() != "web_search" {
		t.Fatalf("got %q, want %q", ws.Name(), "web_search")
	}
}

func TestWebSearchTool_Execute_InvalidJSON(t *testing.T) {
	ws := NewWebSearchTool("key")
	if _, err := ws.Execute(context.Background(), "not json"); err == nil {
		t.Fatal("expected invalid JSON arguments to error")
	}
}

func TestWebSearchTool_Execute_MissingQuery(t *testing.T) {
	ws := NewWebSearchTool("key")
	if _, err := ws.Execute(context.Background(), `{}`); err == nil {
		t.Fatal("expected a missing query to error")
	}
}

func TestWebSearchTool_Parameters_RequireQuery(t *testing.T) {
	ws := NewWebSearchTool("key")
	params := ws.Parameters()
	required, ok := params["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("got %v, want required=[\"query\"]", params["required"])
	}
}

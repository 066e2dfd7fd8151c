package core

import (
	"errors"
	"testing"
)

func TestAgentError_KindAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(KindExternalAPI, "calling provider", cause)

	if err.Kind() != KindExternalAPI {
		t.Fatalf("got kind %v, want %v", err.Kind(), KindExternalAPI)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through the wrapped cause")
	}
	if got, want := err.Error(), "external_api_error: calling provider: boom"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNewError_NoCause(t *testing.T) {
	err := NewError(KindConfig, "bad pipeline")
	if err.Unwrap() != nil {
		t.Fatal("expected no wrapped cause")
	}
	if got, want := err.Error(), "config_error: bad pipeline"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLLMErrorfAndToolErrorf(t *testing.T) {
	if got := LLMErrorf("tool not found: %s", "echo"); got.Kind() != KindLLM {
		t.Fatalf("got kind %v, want %v", got.Kind(), KindLLM)
	}
	if got := ToolErrorf("invalid arguments: %s", "echo"); got.Kind() != KindTool {
		t.Fatalf("got kind %v, want %v", got.Kind(), KindTool)
	}
}

func TestOllamaMetrics_TokensPerSecond(t *testing.T) {
	cases := []struct {
		name string
		m    OllamaMetrics
		want float64
	}{
		{"zero eval duration", OllamaMetrics{EvalCount: 10, EvalDuration: 0}, 0.0},
		{"one second, ten tokens", OllamaMetrics{EvalCount: 10, EvalDuration: 1_000_000_000}, 10.0},
		{"half second, five tokens", OllamaMetrics{EvalCount: 5, EvalDuration: 500_000_000}, 10.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.m.TokensPerSecond(); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestOllamaMetrics_MillisecondConversions(t *testing.T) {
	m := OllamaMetrics{
		TotalDuration:      2_000_000,
		LoadDuration:       1_000_000,
		PromptEvalDuration: 500_000,
		EvalDuration:       1_500_000,
	}
	if got := m.TotalDurationMS(); got != 2.0 {
		t.Fatalf("TotalDurationMS: got %v, want 2.0", got)
	}
	if got := m.LoadDurationMS(); got != 1.0 {
		t.Fatalf("LoadDurationMS: got %v, want 1.0", got)
	}
	if got := m.PromptEvalMS(); got != 0.5 {
		t.Fatalf("PromptEvalMS: got %v, want 0.5", got)
	}
	if got := m.EvalMS(); got != 1.5 {
		t.Fatalf("EvalMS: got %v, want 1.5", got)
	}
}

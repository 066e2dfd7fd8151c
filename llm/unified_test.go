package llm

import (
	"testing"

	"github.com/fissio-dev/fissio/core"
)

func TestUnifiedClient_Resolve_ClaudePrefixSelectsAnthropic(t *testing.T) {
	u := &UnifiedClient{anthropicAPIKey: "ak"}
	client := u.Resolve(core.ModelConfig{Model: "claude-3-5-sonnet"})
	if _, ok := client.(*AnthropicClient); !ok {
		t.Fatalf("got %T, want *AnthropicClient", client)
	}
}

func TestUnifiedClient_Resolve_OtherwiseUsesOpenAICompatible(t *testing.T) {
	u := &UnifiedClient{openAIAPIKey: "ok"}
	client := u.Resolve(core.ModelConfig{Model: "gpt-4o", APIBase: "http://localhost:11434/v1"})
	if _, ok := client.(*OpenAIClient); !ok {
		t.Fatalf("got %T, want *OpenAIClient", client)
	}
}

func TestUnifiedClient_ResolveByModelName(t *testing.T) {
	u := &UnifiedClient{anthropicAPIKey: "ak"}
	client := u.ResolveByModelName("claude-3-haiku")
	if _, ok := client.(*AnthropicClient); !ok {
		t.Fatalf("got %T, want *AnthropicClient", client)
	}
}

package llm

import (
	"os"
	"strings"

	"github.com/fissio-dev/fissio/core"
)

// UnifiedClient resolves a ModelConfig to the right backend and forwards
// every call to it. The local-native backend is never selected here from
// a model name — callers that want provider-native metrics construct an
// OllamaClient directly and bypass UnifiedClient.
type UnifiedClient struct {
	openAIAPIKey    string
	anthropicAPIKey string
}

func NewUnifiedClient() *UnifiedClient {
	return &UnifiedClient{
		openAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		anthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
	}
}

// Resolve returns the Client for model. A "claude-" model name prefix
// selects the Anthropic backend; everything else goes to the
// OpenAI-compatible backend, with model.APIBase overriding the vendor's
// default base URL when set.
func (u *UnifiedClient) Resolve(model core.ModelConfig) Client {
	if strings.HasPrefix(model.Model, "claude-") {
		return NewAnthropicClient(model.Model, u.anthropicAPIKey)
	}
	return NewOpenAIClient(model.Model, u.openAIAPIKey, model.APIBase)
}

// ResolveByModelName is a convenience for call sites that only have the
// raw model string, not a full ModelConfig; no APIBase override applies.
func (u *UnifiedClient) ResolveByModelName(modelName string) Client {
	return u.Resolve(core.ModelConfig{Model: modelName})
}

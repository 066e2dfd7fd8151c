// Package llm dispatches chat calls to whichever provider a model ID
// names, and exposes a single pull-based streaming abstraction so the
// pipeline engine never has to know which wire protocol is underneath.
package llm

import (
	"context"

	"github.com/fissio-dev/fissio/core"
)

// ToolMessage is one turn of a tool-calling conversation. A plain user or
// assistant turn sets Content; a turn reporting tool results sets
// ToolResults and leaves Content empty.
type ToolMessage struct {
	Role        core.MessageRole
	Content     string
	ToolResults []core.ToolResult
}

// ToolChatRequest is a tool-aware chat call. PendingToolCalls is only
// meaningful to the Anthropic backend, which must reconstruct the
// assistant turn that originally emitted the tool calls a ToolResults
// turn is answering; OpenAI-compatible backends ignore it.
type ToolChatRequest struct {
	System           string
	Messages         []ToolMessage
	Tools            []core.ToolSchema
	PendingToolCalls []core.ToolCall
}

// ToolChatResult is terminal content, or a set of tool calls the caller
// must execute before calling back in with their results.
type ToolChatResult struct {
	Content   string
	ToolCalls []core.ToolCall
	Usage     core.TokenUsage
}

// Client is the provider-facing surface the pipeline engine calls into.
// Implementations are stateless value types, cheap to construct and safe
// to share across requests.
type Client interface {
	// Chat issues a single non-streaming call with a system prompt and one
	// user turn. Used by the router executor's classification call and by
	// llm/worker nodes with no tools attached (or none that resolve).
	Chat(ctx context.Context, system, input string) (string, core.TokenUsage, error)

	// ChatStream issues a streaming call with a system prompt, prior
	// conversation history, and one new user turn. Used by the direct-chat
	// bypass.
	ChatStream(ctx context.Context, system string, history []core.Message, input string) (Stream, error)

	// ChatWithTools issues one iteration of the agentic tool loop.
	ChatWithTools(ctx context.Context, req ToolChatRequest) (ToolChatResult, error)
}

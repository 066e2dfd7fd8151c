package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fissio-dev/fissio/core"
)

// defaultOpenAIBaseURL is used unless a model's APIBase overrides it.
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient speaks the chat-completions protocol: OpenAI itself, and
// any OpenAI-compatible vendor reachable by overriding the base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for model against apiBase (or the
// default OpenAI endpoint when apiBase is empty). When apiBase is set, a
// stub API key is used since most self-hosted OpenAI-compatible servers
// don't check it.
func NewOpenAIClient(model, apiKey, apiBase string) *OpenAIClient {
	base := defaultOpenAIBaseURL
	key := apiKey
	if apiBase != "" {
		base = apiBase
		key = "stub-key"
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = base
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Chat(ctx context.Context, system, input string) (string, core.TokenUsage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.buildMessages(system, nil, input),
	})
	if err != nil {
		return "", core.TokenUsage{}, core.LLMErrorf("openai chat: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", core.TokenUsage{}, core.LLMErrorf("openai chat: no choices returned")
	}
	usage := core.TokenUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, system string, history []core.Message, input string) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.buildMessages(system, history, input),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	s, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, core.LLMErrorf("openai chat stream: %v", err)
	}

	cs := newChanStream()
	go func() {
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				cs.close()
				return
			}
			if err != nil {
				cs.fail(core.LLMErrorf("openai chat stream: %v", err))
				return
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				cs.emit(StreamChunk{Kind: ChunkContent, Content: chunk.Choices[0].Delta.Content})
			}
			if chunk.Usage != nil {
				cs.emit(StreamChunk{Kind: ChunkUsage, Usage: core.TokenUsage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
				}})
			}
		}
	}()
	return cs, nil
}

// ChatWithTools ignores req.PendingToolCalls: each ToolResults turn is
// sent as "tool" role messages, and no assistant message carrying the
// matching tool_calls is inserted before them.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req ToolChatRequest) (ToolChatResult, error) {
	messages, err := c.buildToolMessages(req.System, req.Messages)
	if err != nil {
		return ToolChatResult{}, err
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return ToolChatResult{}, core.LLMErrorf("openai chat with tools: %v", err)
	}
	if len(resp.Choices) == 0 {
		return ToolChatResult{}, core.LLMErrorf("openai chat with tools: no choices returned")
	}

	usage := core.TokenUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]core.ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, core.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		return ToolChatResult{ToolCalls: calls, Usage: usage}, nil
	}
	return ToolChatResult{Content: msg.Content, Usage: usage}, nil
}

func (c *OpenAIClient) buildMessages(system string, history []core.Message, input string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input})
	return messages
}

// buildToolMessages converts the engine's tool-call conversation into the
// chat-completions message list: each ToolResults turn becomes one
// "tool" role message per result, addressed by ToolCallID.
func (c *OpenAIClient) buildToolMessages(system string, turns []ToolMessage) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, turn := range turns {
		if len(turn.ToolResults) > 0 {
			for _, r := range turn.ToolResults {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Content,
					ToolCallID: r.CallID,
				})
			}
			continue
		}
		role := openai.ChatMessageRoleUser
		if turn.Role == core.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return messages, nil
}

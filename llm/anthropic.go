package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fissio-dev/fissio/core"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"
const defaultAnthropicMaxTokens = 4096

// AnthropicClient speaks the messages protocol. Selected whenever a model
// ID carries the "claude-" prefix.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

func NewAnthropicClient(model, apiKey string) *AnthropicClient {
	m := model
	if m == "" {
		m = defaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

func (c *AnthropicClient) Chat(ctx context.Context, system, input string) (string, core.TokenUsage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(input))},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", core.TokenUsage{}, core.LLMErrorf("anthropic chat: %v", err)
	}

	usage := core.TokenUsage{InputTokens: int(resp.Usage.InputTokens), OutputTokens: int(resp.Usage.OutputTokens)}
	return textContent(resp), usage, nil
}

func (c *AnthropicClient) ChatStream(ctx context.Context, system string, history []core.Message, input string) (Stream, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		if m.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	sdkStream := c.client.Messages.NewStreaming(ctx, params)

	cs := newChanStream()
	go func() {
		var inputTokens, outputTokens int
		for sdkStream.Next() {
			event := sdkStream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = int(ms.Message.Usage.InputTokens)
				}
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Text != "" {
					cs.emit(StreamChunk{Kind: ChunkContent, Content: delta.Text})
				}
			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = int(md.Usage.OutputTokens)
					cs.emit(StreamChunk{Kind: ChunkUsage, Usage: core.TokenUsage{
						InputTokens: inputTokens, OutputTokens: outputTokens,
					}})
				}
			}
		}
		if err := sdkStream.Err(); err != nil {
			cs.fail(core.LLMErrorf("anthropic chat stream: %v", err))
			return
		}
		cs.close()
	}()
	return cs, nil
}

// ChatWithTools reconstructs the assistant turn that emitted
// req.PendingToolCalls before flushing any batch of tool-result turns,
// since the messages protocol requires tool_result blocks to immediately
// follow the assistant turn whose tool_use blocks they answer.
func (c *AnthropicClient) ChatWithTools(ctx context.Context, req ToolChatRequest) (ToolChatResult, error) {
	messages, err := convertToAnthropicMessages(req.Messages, req.PendingToolCalls)
	if err != nil {
		return ToolChatResult{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			raw, err := json.Marshal(t.Parameters)
			if err != nil {
				return ToolChatResult{}, core.WrapError(core.KindParse, "marshaling tool schema for "+t.Name, err)
			}
			var schema anthropic.ToolInputSchemaParam
			if err := json.Unmarshal(raw, &schema); err != nil {
				return ToolChatResult{}, core.WrapError(core.KindParse, "parsing tool schema for "+t.Name, err)
			}
			toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
			toolParam.OfTool.Description = anthropic.String(t.Description)
			tools = append(tools, toolParam)
		}
		params.Tools = tools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return ToolChatResult{}, core.LLMErrorf("anthropic chat with tools: %v", err)
	}
	usage := core.TokenUsage{InputTokens: int(resp.Usage.InputTokens), OutputTokens: int(resp.Usage.OutputTokens)}

	var calls []core.ToolCall
	for _, block := range resp.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			args, _ := json.Marshal(tu.Input)
			calls = append(calls, core.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: string(args)})
		}
	}
	if len(calls) > 0 {
		return ToolChatResult{ToolCalls: calls, Usage: usage}, nil
	}
	return ToolChatResult{Content: textContent(resp), Usage: usage}, nil
}

func textContent(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

// convertToAnthropicMessages batches consecutive tool-result turns
// together and inserts a synthesized assistant turn carrying pending
// before flushing each batch, then passes user/assistant text turns
// through unchanged.
func convertToAnthropicMessages(turns []ToolMessage, pending []core.ToolCall) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	var batch []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if len(pending) > 0 {
			var toolUseBlocks []anthropic.ContentBlockParamUnion
			for _, call := range pending {
				var input map[string]any
				_ = json.Unmarshal([]byte(call.Arguments), &input)
				toolUseBlocks = append(toolUseBlocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(toolUseBlocks...))
		}
		out = append(out, anthropic.NewUserMessage(batch...))
		batch = nil
	}

	for _, turn := range turns {
		if len(turn.ToolResults) > 0 {
			for _, r := range turn.ToolResults {
				batch = append(batch, anthropic.NewToolResultBlock(r.CallID, r.Content, r.IsError))
			}
			continue
		}
		flush()
		if turn.Role == core.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	flush()
	return out, nil
}

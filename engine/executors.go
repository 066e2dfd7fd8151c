package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fissio-dev/fissio/config"
	"github.com/fissio-dev/fissio/core"
	"github.com/fissio-dev/fissio/llm"
)

// MaxToolIterations bounds the agentic tool-calling loop. The 11th
// attempted provider call fails the request outright rather than
// returning partial content.
const MaxToolIterations = 10

const defaultRoutingPrompt = "Classify the following input and route to the appropriate target."

// nodeOutput is what executeNode produces: Content flows into the
// shared context map under the node's ID, and NextNodes (set only by a
// router node) narrows which outgoing edges get followed.
type nodeOutput struct {
	Content   string
	NextNodes []string
}

// executeNode dispatches to the router executor, the LLM/tool executor,
// or treats the node as a pass-through that forwards input unchanged —
// gate, coordinator, aggregator, orchestrator, synthesizer, and
// evaluator nodes never call a model themselves.
func (e *Engine) executeNode(ctx context.Context, node *config.NodeConfig, model core.ModelConfig, input string, outgoingTargets []string) (nodeOutput, error) {
	switch {
	case node.Type.IsRouter():
		content, next, err := e.executeRouter(ctx, model, node.Prompt, input, outgoingTargets)
		if err != nil {
			return nodeOutput{}, err
		}
		return nodeOutput{Content: content, NextNodes: next}, nil
	case node.Type.RequiresLLM():
		content, err := e.executeNodeWithTools(ctx, model, node.Prompt, input, node.Tools)
		if err != nil {
			return nodeOutput{}, err
		}
		return nodeOutput{Content: content}, nil
	default:
		return nodeOutput{Content: input}, nil
	}
}

// executeRouter asks the model to classify input against outgoingTargets
// and returns the raw response alongside the chosen next node. A
// response that doesn't exactly match (case-insensitively) any target
// falls back to the first target rather than failing the request; an
// LLM call failure itself is never recovered this way.
func (e *Engine) executeRouter(ctx context.Context, model core.ModelConfig, prompt, input string, outgoingTargets []string) (string, []string, error) {
	client := e.unified.Resolve(model)

	instruction := prompt
	if instruction == "" {
		instruction = defaultRoutingPrompt
	}
	routingPrompt := fmt.Sprintf(
		"%s\n\nYou are a routing classifier. Based on the input, determine which target to route to.\n"+
			"Available targets: [%s]\n\n"+
			"IMPORTANT: Respond with ONLY the target name, nothing else. No explanation, no punctuation.",
		instruction, strings.Join(outgoingTargets, ", "),
	)

	content, _, err := client.Chat(ctx, routingPrompt, input)
	if err != nil {
		return "", nil, err
	}

	decision := strings.ToLower(strings.TrimSpace(content))
	for _, target := range outgoingTargets {
		if strings.ToLower(target) == decision {
			return content, []string{target}, nil
		}
	}

	if len(outgoingTargets) == 0 {
		slog.Warn("router produced no matching target and has none to fall back to", slog.String("decision", decision))
		return content, nil, nil
	}
	slog.Warn("router decision matched no outgoing target, falling back to first",
		slog.String("decision", decision), slog.String("fallback", outgoingTargets[0]))
	return content, []string{outgoingTargets[0]}, nil
}

// executeNodeWithTools runs a single non-streaming call when the node
// has no tools (or none of its named tools resolve), and the full
// agentic tool loop otherwise.
func (e *Engine) executeNodeWithTools(ctx context.Context, model core.ModelConfig, prompt, input string, toolNames []string) (string, error) {
	client := e.unified.Resolve(model)
	system := prompt

	if len(toolNames) == 0 {
		content, _, err := client.Chat(ctx, system, input)
		return content, err
	}

	schemas := e.toolRegistry.SchemasFor(toolNames)
	if len(schemas) == 0 {
		slog.Warn("none of the node's tools are registered, falling back to a plain chat call", slog.Any("tools", toolNames))
		content, _, err := client.Chat(ctx, system, input)
		return content, err
	}

	messages := []llm.ToolMessage{{Role: core.RoleUser, Content: input}}
	var pending []core.ToolCall
	iterations := 0

	for {
		iterations++
		if iterations > MaxToolIterations {
			return "", core.LLMErrorf("max tool iterations (%d) exceeded", MaxToolIterations)
		}

		result, err := client.ChatWithTools(ctx, llm.ToolChatRequest{
			System:           system,
			Messages:         messages,
			Tools:            schemas,
			PendingToolCalls: pending,
		})
		if err != nil {
			return "", err
		}
		if len(result.ToolCalls) == 0 {
			return result.Content, nil
		}

		for _, call := range result.ToolCalls {
			t, ok := e.toolRegistry.Get(call.Name)
			if !ok {
				return "", core.LLMErrorf("tool not found: %s", call.Name)
			}
			out, err := t.Execute(ctx, call.Arguments)
			if err != nil {
				return "", core.LLMErrorf("tool execution failed (%s): %v", call.Name, err)
			}
			messages = append(messages, llm.ToolMessage{
				Role:        core.RoleUser,
				ToolResults: []core.ToolResult{{CallID: call.ID, Content: out}},
			})
		}
		pending = result.ToolCalls
	}
}

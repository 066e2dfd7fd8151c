package engine

import (
	"context"
	"io"
	"time"

	"github.com/fissio-dev/fissio/config"
	"github.com/fissio-dev/fissio/core"
	"github.com/fissio-dev/fissio/llm"
)

// Request is the full HTTP-boundary input shape: a caller always sends a
// message, optional history, a model ID, and an optional pipeline
// identity (by preset or by literal config). NodeModels is consulted only
// on the pipeline paths; Verbose selects the local-native metrics path
// whenever the resolved model carries an api_base.
type Request struct {
	Message        string
	History        []core.Message
	ModelID        string
	PipelineID     string
	PipelineConfig *config.PipelineConfig
	NodeModels     map[string]string
	SystemPrompt   string
	Verbose        bool
}

// Metrics is the terminal object every request emits exactly once,
// after zero or more content chunks. The four local-native fields are
// only populated on the verbose-metrics path.
type Metrics struct {
	InputTokens    uint64
	OutputTokens   uint64
	ElapsedMS      uint64
	LoadDurationMS *float64
	PromptEvalMS   *float64
	EvalMS         *float64
	TokensPerSec   *float64
}

// Response pairs the content stream with a Metrics finalizer that must
// only be called after the stream has been fully drained (returned
// io.EOF or a terminal error).
type Response struct {
	Stream   llm.Stream
	finalize func() Metrics
}

// Metrics returns the terminal metrics object. Safe to call only once
// the stream has yielded io.EOF.
func (r *Response) Metrics() Metrics { return r.finalize() }

const defaultSystemPrompt = "You are a helpful assistant."

// Handler resolves and dispatches one Request according to spec's
// execution-shape priority: verbose-metrics path > runtime config >
// preset > direct chat. It owns no per-request state; every field here
// is shared, read-only configuration.
type Handler struct {
	presets  map[string]*config.PipelineConfig
	models   []core.ModelConfig
	resolver *ModelResolver
	unified  ClientResolver
	events   EventHandler
}

// OnEvent registers a handler forwarded to every pipeline Engine this
// Handler constructs on the runtime-config/preset path. Has no effect on
// the verbose-metrics or direct-chat paths, which never build an Engine.
func (h *Handler) OnEvent(eh EventHandler) { h.events = eh }

func NewHandler(models []core.ModelConfig, defaultModel core.ModelConfig, presets map[string]*config.PipelineConfig) *Handler {
	if presets == nil {
		presets = map[string]*config.PipelineConfig{}
	}
	return &Handler{
		presets:  presets,
		models:   models,
		resolver: NewModelResolver(models, defaultModel),
		unified:  llm.NewUnifiedClient(),
	}
}

// Handle picks an execution shape for req and returns a Response whose
// Stream must be drained before Metrics is read.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	model := h.resolver.Resolve(req.ModelID)

	cfg := req.PipelineConfig
	if cfg == nil && req.PipelineID != "" {
		if preset, ok := h.presets[req.PipelineID]; ok {
			cfg = preset
		}
	}

	if req.Verbose && model.APIBase != "" {
		return h.verboseStream(ctx, model, req)
	}
	if cfg != nil {
		return h.pipelineStream(ctx, cfg, model, req)
	}
	return h.directChatStream(ctx, model, req)
}

func (h *Handler) systemPrompt(req Request) string {
	if req.SystemPrompt != "" {
		return req.SystemPrompt
	}
	return defaultSystemPrompt
}

// verboseStream uses the local-native Ollama backend directly (bypassing
// UnifiedClient, per llm.OllamaClient's doc comment) so the terminal
// metrics object carries the provider's own timing breakdown.
func (h *Handler) verboseStream(ctx context.Context, model core.ModelConfig, req Request) (*Response, error) {
	client := llm.NewOllamaClient(model.Model, model.APIBase)
	stream, collector, err := client.ChatStreamWithMetrics(ctx, h.systemPrompt(req), req.History, req.Message)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tee := &usageTeeStream{inner: stream}
	finalize := func() Metrics {
		m := Metrics{
			InputTokens:  uint64(tee.usage.InputTokens),
			OutputTokens: uint64(tee.usage.OutputTokens),
			ElapsedMS:    uint64(time.Since(start).Milliseconds()),
		}
		om := collector.Get()
		load, promptEval, eval, tps := om.LoadDurationMS(), om.PromptEvalMS(), om.EvalMS(), om.TokensPerSecond()
		m.LoadDurationMS, m.PromptEvalMS, m.EvalMS, m.TokensPerSec = &load, &promptEval, &eval, &tps
		return m
	}
	return &Response{Stream: tee, finalize: finalize}, nil
}

// pipelineStream runs the full DAG traversal via Engine.Execute and
// surfaces its single returned string as one content chunk. Per-node
// token usage is not tracked inside the traversal (each executor only
// returns content), so the terminal metrics object reports zero token
// counts here; this matches spec's observation that failure and
// non-instrumented success are both distinguished by token counts.
func (h *Handler) pipelineStream(ctx context.Context, cfg *config.PipelineConfig, model core.ModelConfig, req Request) (*Response, error) {
	eng := New(cfg, h.models, model, req.NodeModels)
	eng.unified = h.unified
	if h.events != nil {
		eng.OnEvent(h.events)
	}
	start := time.Now()
	content, err := eng.Execute(ctx, req.Message, req.History)
	if err != nil {
		return nil, err
	}
	return &Response{
		Stream: newOneShotStream(content),
		finalize: func() Metrics {
			return Metrics{ElapsedMS: uint64(time.Since(start).Milliseconds())}
		},
	}, nil
}

// directChatStream bypasses the pipeline entirely: one provider call
// against the resolved model, system_prompt, and full history.
func (h *Handler) directChatStream(ctx context.Context, model core.ModelConfig, req Request) (*Response, error) {
	client := h.unified.Resolve(model)
	stream, err := client.ChatStream(ctx, h.systemPrompt(req), req.History, req.Message)
	if err != nil {
		// The failure surfaces from the stream's first Next call, with
		// zeroed metrics, rather than from Handle itself.
		return &Response{Stream: errStream{err: err}, finalize: func() Metrics { return Metrics{} }}, nil
	}

	start := time.Now()
	tee := &usageTeeStream{inner: stream}
	return &Response{
		Stream: tee,
		finalize: func() Metrics {
			return Metrics{
				InputTokens:  uint64(tee.usage.InputTokens),
				OutputTokens: uint64(tee.usage.OutputTokens),
				ElapsedMS:    uint64(time.Since(start).Milliseconds()),
			}
		},
	}, nil
}

// usageTeeStream forwards every chunk from inner unchanged while
// recording the terminal Usage chunk, so a Handler can report token
// counts after the caller has drained the stream without buffering any
// content itself.
type usageTeeStream struct {
	inner llm.Stream
	usage core.TokenUsage
}

func (t *usageTeeStream) Next(ctx context.Context) (llm.StreamChunk, error) {
	chunk, err := t.inner.Next(ctx)
	if err == nil && chunk.Kind == llm.ChunkUsage {
		t.usage = chunk.Usage
	}
	return chunk, err
}

// errStream yields err from every Next call.
type errStream struct{ err error }

func (s errStream) Next(ctx context.Context) (llm.StreamChunk, error) {
	return llm.StreamChunk{}, s.err
}

// oneShotStream yields a single content chunk and then io.EOF; used to
// adapt Engine.Execute's non-streaming return value to the Stream
// interface so the pipeline path and the two streaming paths share one
// Response shape.
type oneShotStream struct {
	content string
	done    bool
}

func newOneShotStream(content string) *oneShotStream { return &oneShotStream{content: content} }

func (s *oneShotStream) Next(ctx context.Context) (llm.StreamChunk, error) {
	if s.done {
		return llm.StreamChunk{}, io.EOF
	}
	s.done = true
	return llm.StreamChunk{Kind: llm.ChunkContent, Content: s.content}, nil
}

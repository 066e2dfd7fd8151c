package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fissio-dev/fissio/core"
)

// OllamaClient speaks Ollama's native /api/chat protocol, not the
// OpenAI-compatible shim: it is the only backend that carries the
// detailed timing metrics in core.OllamaMetrics, and is never selected
// from a model name — only by explicit caller opt-in (verbose mode with
// an api_base set).
type OllamaClient struct {
	httpClient *http.Client
	apiBase    string
	model      string
}

// NewOllamaClient builds a client against apiBase, which may carry a
// trailing "/v1" (as produced by discovery) — stripped here since this
// backend always talks to the native /api/* routes.
func NewOllamaClient(model, apiBase string) *OllamaClient {
	base := strings.TrimSuffix(strings.TrimRight(apiBase, "/"), "/v1")
	return &OllamaClient{
		httpClient: &http.Client{},
		apiBase:    base,
		model:      model,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model     string           `json:"model"`
	Messages  []ollamaMessage  `json:"messages"`
	Stream    bool             `json:"stream"`
	KeepAlive *int             `json:"keep_alive,omitempty"`
}

type ollamaResponseMessage struct {
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message *ollamaResponseMessage `json:"message"`
	Done    bool                   `json:"done"`
	core.OllamaMetrics
}

func buildOllamaMessages(system string, history []core.Message, input string) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(history)+2)
	messages = append(messages, ollamaMessage{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: input})
	return messages
}

// ChatWithMetrics issues a non-streaming call and returns the content and
// the provider-native timing metrics from the terminal response object.
func (c *OllamaClient) ChatWithMetrics(ctx context.Context, system string, history []core.Message, input string) (string, core.OllamaMetrics, error) {
	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: buildOllamaMessages(system, history, input),
		Stream:   false,
	})
	if err != nil {
		return "", core.OllamaMetrics{}, core.LLMErrorf("ollama chat: %v", err)
	}

	resp, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", core.OllamaMetrics{}, err
	}
	defer resp.Body.Close()

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", core.OllamaMetrics{}, core.LLMErrorf("ollama chat: parsing response: %v", err)
	}

	content := ""
	if parsed.Message != nil {
		content = parsed.Message.Content
	}
	return content, parsed.OllamaMetrics, nil
}

// ChatStreamWithMetrics issues a streaming call over Ollama's
// newline-delimited JSON protocol. The returned Stream yields Content
// chunks as they arrive and a single terminal Usage chunk carrying
// prompt/eval counts once the provider reports done:true; the full
// metrics object is written to the provided collector at the same
// moment (one producer, the stream goroutine; one consumer, the caller,
// once the stream is drained).
func (c *OllamaClient) ChatStreamWithMetrics(ctx context.Context, system string, history []core.Message, input string) (Stream, *MetricsCollector, error) {
	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: buildOllamaMessages(system, history, input),
		Stream:   true,
	})
	if err != nil {
		return nil, nil, core.LLMErrorf("ollama chat stream: %v", err)
	}

	resp, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return nil, nil, err
	}

	collector := newMetricsCollector()
	cs := newChanStream()
	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var parsed ollamaChatResponse
			if err := json.Unmarshal(line, &parsed); err != nil {
				continue
			}
			if parsed.Done {
				collector.set(parsed.OllamaMetrics)
				cs.emit(StreamChunk{Kind: ChunkUsage, Usage: core.TokenUsage{
					InputTokens:  parsed.OllamaMetrics.PromptEvalCount,
					OutputTokens: parsed.OllamaMetrics.EvalCount,
				}})
				continue
			}
			if parsed.Message != nil && parsed.Message.Content != "" {
				cs.emit(StreamChunk{Kind: ChunkContent, Content: parsed.Message.Content})
			}
		}
		if err := scanner.Err(); err != nil {
			cs.fail(core.LLMErrorf("ollama chat stream: %v", err))
			return
		}
		cs.close()
	}()
	return cs, collector, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return nil, core.LLMErrorf("ollama request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.LLMErrorf("ollama request: %v", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, core.LLMErrorf("ollama request: status %d", resp.StatusCode)
	}
	return resp, nil
}

// MetricsCollector is a single-slot atomic cell shared between the
// stream-consuming goroutine (one producer) and the caller reading the
// final metrics once the stream drains (one consumer).
type MetricsCollector struct {
	mu      sync.Mutex
	metrics core.OllamaMetrics
}

func newMetricsCollector() *MetricsCollector { return &MetricsCollector{} }

func (c *MetricsCollector) set(m core.OllamaMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

func (c *MetricsCollector) Get() core.OllamaMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// --- discovery and unload ---

type ollamaTagsResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

type ollamaModelInfo struct {
	Name string `json:"name"`
}

// DiscoverOllamaModels polls host's native tag endpoint and returns one
// ModelConfig per installed model.
func DiscoverOllamaModels(ctx context.Context, host string) ([]core.ModelConfig, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	url := strings.TrimRight(host, "/") + "/api/tags"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.KindExternalAPI, "ollama discovery", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.KindExternalAPI, "ollama discovery", err)
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, core.WrapError(core.KindExternalAPI, "parsing ollama discovery response", err)
	}

	models := make([]core.ModelConfig, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, core.ModelConfig{
			ID:          "ollama-" + slugify(m.Name),
			DisplayName: formatDisplayName(m.Name),
			Model:       m.Name,
			APIBase:     strings.TrimRight(host, "/") + "/v1",
		})
	}
	slog.Debug("discovered ollama models", slog.Int("count", len(models)))
	return models, nil
}

// UnloadOllamaModel asks the host to drop modelName from memory
// immediately. Failures here are meant to be logged and swallowed by the
// caller, never propagated as a request failure.
func UnloadOllamaModel(ctx context.Context, host, modelName string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimRight(host, "/") + "/api/chat"

	zero := 0
	body, err := json.Marshal(ollamaChatRequest{Model: modelName, Messages: []ollamaMessage{}, KeepAlive: &zero})
	if err != nil {
		return core.WrapError(core.KindExternalAPI, "ollama unload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.WrapError(core.KindExternalAPI, "ollama unload", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return core.WrapError(core.KindExternalAPI, "ollama unload", err)
	}
	defer resp.Body.Close()
	return nil
}

var slugCollapse = regexp.MustCompile(`-+`)

func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.NewReplacer("/", "-", ":", "-", ".", "-").Replace(s)
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func formatDisplayName(modelName string) string {
	lastSegment := modelName
	if idx := strings.LastIndex(modelName, "/"); idx >= 0 {
		lastSegment = modelName[idx+1:]
	}
	base, tag := lastSegment, ""
	if idx := strings.Index(lastSegment, ":"); idx >= 0 {
		base, tag = lastSegment[:idx], lastSegment[idx+1:]
	}

	displayBase := base
	if len(base) > 0 {
		r := []rune(base)
		r[0] = unicode.ToUpper(r[0])
		displayBase = string(r)
	}

	tagSuffix := ""
	if tag != "" {
		tagSuffix = ":" + tag
	}
	return fmt.Sprintf("%s%s (Local)", displayBase, tagSuffix)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/fissio-dev/fissio/config"
	"github.com/fissio-dev/fissio/core"
	"github.com/fissio-dev/fissio/engine"
	"github.com/fissio-dev/fissio/llm"
	"github.com/fissio-dev/fissio/telemetry"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline-file>",
		Short: "Execute a pipeline config against a message",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().StringP("message", "m", "", "User message (required)")
	cmd.Flags().String("model", "", "Model name sent to the provider; a \"claude-\" prefix selects Anthropic, anything else OpenAI-compatible")
	cmd.Flags().StringArray("node-model", nil, "Per-node model override, repeatable (node_id=model_id)")
	cmd.Flags().Bool("local-metrics", false, "Use the local-native backend for richer timing metrics (requires the model to carry an api_base)")
	cmd.Flags().Bool("show-metrics", false, "Print the terminal metrics object to stderr after output")
	cmd.Flags().Bool("trace", false, "Emit OpenTelemetry spans and metrics for node execution")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	message, _ := cmd.Flags().GetString("message")
	if message == "" {
		return exitError(exitInputParse, "--message is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return exitError(exitRuntime, "reading pipeline file: %v", err)
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return exitError(exitValidation, "parsing pipeline config: %v", err)
	}

	nodeModels, err := parseNodeModelFlags(cmd)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	modelID, _ := cmd.Flags().GetString("model")
	verbose, _ := cmd.Flags().GetBool("local-metrics")

	h := engine.NewHandler(nil, core.ModelConfig{Model: modelID}, map[string]*config.PipelineConfig{cfg.ID: cfg})
	if doTrace, _ := cmd.Flags().GetBool("trace"); doTrace {
		if eh, err := buildTracingHandler(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		} else {
			h.OnEvent(eh)
		}
	}

	resp, err := h.Handle(cmd.Context(), engine.Request{
		Message:        message,
		ModelID:        modelID,
		PipelineID:     cfg.ID,
		PipelineConfig: cfg,
		NodeModels:     nodeModels,
		Verbose:        verbose,
	})
	if err != nil {
		return exitError(exitRuntime, "execution failed: %v", err)
	}

	if err := streamContent(cmd.Context(), cmd.OutOrStdout(), resp); err != nil {
		return exitError(exitRuntime, "reading output: %v", err)
	}

	if show, _ := cmd.Flags().GetBool("show-metrics"); show {
		printMetrics(cmd.ErrOrStderr(), resp.Metrics())
	}
	return nil
}

// buildTracingHandler wires a TracingHandler and a MetricsHandler against
// the process-global otel providers. This command installs no tracer or
// meter provider and no exporter, so unless the global providers are
// replaced in-process before it runs, spans and metrics go to otel's
// default no-op providers and nothing is exported.
func buildTracingHandler() (engine.EventHandler, error) {
	tracingHandler := telemetry.NewTracingHandler(otel.Tracer("fissio/cli"))
	metricsHandler, err := telemetry.NewMetricsHandler(otel.Meter("fissio/cli"))
	if err != nil {
		return nil, err
	}
	return telemetry.Combine(tracingHandler, metricsHandler), nil
}

func parseNodeModelFlags(cmd *cobra.Command) (map[string]string, error) {
	raw, _ := cmd.Flags().GetStringArray("node-model")
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --node-model %q, want node_id=model_id", kv)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func streamContent(ctx context.Context, w io.Writer, resp *engine.Response) error {
	for {
		chunk, err := resp.Stream.Next(ctx)
		if err == io.EOF {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			return err
		}
		if chunk.Kind == llm.ChunkContent {
			fmt.Fprint(w, chunk.Content)
		}
	}
}

func printMetrics(w io.Writer, m engine.Metrics) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(metricsJSON{
		InputTokens:    m.InputTokens,
		OutputTokens:   m.OutputTokens,
		ElapsedMS:      m.ElapsedMS,
		LoadDurationMS: m.LoadDurationMS,
		PromptEvalMS:   m.PromptEvalMS,
		EvalMS:         m.EvalMS,
		TokensPerSec:   m.TokensPerSec,
	})
}

type metricsJSON struct {
	InputTokens    uint64   `json:"input_tokens"`
	OutputTokens   uint64   `json:"output_tokens"`
	ElapsedMS      uint64   `json:"elapsed_ms"`
	LoadDurationMS *float64 `json:"load_duration_ms,omitempty"`
	PromptEvalMS   *float64 `json:"prompt_eval_ms,omitempty"`
	EvalMS         *float64 `json:"eval_ms,omitempty"`
	TokensPerSec   *float64 `json:"tokens_per_sec,omitempty"`
}

package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/fissio-dev/fissio/core"
	"github.com/fissio-dev/fissio/engine"
)

// NewChatCmd creates the "chat" subcommand: the direct-chat bypass, with
// no pipeline config involved at all.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send one message directly to a model, bypassing any pipeline",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}

	cmd.Flags().StringP("message", "m", "", "User message (required)")
	cmd.Flags().String("model", "", "Model name sent to the provider; a \"claude-\" prefix selects Anthropic, anything else OpenAI-compatible")
	cmd.Flags().String("system", "", "System prompt (default: \"You are a helpful assistant.\")")
	cmd.Flags().String("history-file", "", "JSON array of {role, content} turns to prepend")
	cmd.Flags().Bool("show-metrics", false, "Print the terminal metrics object to stderr after output")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	message, _ := cmd.Flags().GetString("message")
	if message == "" {
		return exitError(exitInputParse, "--message is required")
	}

	history, err := loadHistoryFlag(cmd)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	modelID, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")

	h := engine.NewHandler(nil, core.ModelConfig{Model: modelID}, nil)
	resp, err := h.Handle(cmd.Context(), engine.Request{
		Message:      message,
		History:      history,
		ModelID:      modelID,
		SystemPrompt: system,
	})
	if err != nil {
		return exitError(exitProvider, "chat failed: %v", err)
	}

	if err := streamContent(cmd.Context(), cmd.OutOrStdout(), resp); err != nil {
		return exitError(exitRuntime, "reading output: %v", err)
	}

	if show, _ := cmd.Flags().GetBool("show-metrics"); show {
		printMetrics(cmd.ErrOrStderr(), resp.Metrics())
	}
	return nil
}

func loadHistoryFlag(cmd *cobra.Command) ([]core.Message, error) {
	path, _ := cmd.Flags().GetString("history-file")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var history []core.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fissio-dev/fissio/llm"
)

// NewModelsCmd creates the "models" command group: list and unload, both
// against a local Ollama host's native API.
func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Discover or unload locally-hosted models",
	}
	cmd.AddCommand(newModelsListCmd())
	cmd.AddCommand(newModelsUnloadCmd())
	return cmd
}

func newModelsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models installed on a local Ollama host",
		Args:  cobra.NoArgs,
		RunE:  runModelsList,
	}
	cmd.Flags().String("host", "http://localhost:11434", "Ollama host base URL")
	return cmd
}

func runModelsList(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	models, err := llm.DiscoverOllamaModels(cmd.Context(), host)
	if err != nil {
		return exitError(exitProvider, "discovering models: %v", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(models)
}

func newModelsUnloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload <model-name>",
		Short: "Ask a local Ollama host to drop a model from memory",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelsUnload,
	}
	cmd.Flags().String("host", "http://localhost:11434", "Ollama host base URL")
	return cmd
}

func runModelsUnload(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	// Unload failures are logged and swallowed per spec §7's discovery/
	// unload degradation policy — never a hard command failure.
	if err := llm.UnloadOllamaModel(cmd.Context(), host, args[0]); err != nil {
		cmd.PrintErrf("unload: %v\n", err)
	}
	return nil
}

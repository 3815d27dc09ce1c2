package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/interpret"
)

var interpretCmd = &cobra.Command{
	Use:   "interpret [question]",
	Short: "Show how a question is interpreted",
	Long:  `Prints the corrected query, intent and reference terms the LLM extracts from a question, without retrieving.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return err
		}

		out := interpret.New(provider, interpret.WithTimeout(cfg.Retrieval.InterpretTimeout)).
			Interpret(context.Background(), args[0])

		result := map[string]any{
			"interpretation": out.Interpretation,
			"kind":           out.Kind,
		}
		if out.Err != nil {
			result["error"] = out.Err.Error()
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(interpretCmd)
}

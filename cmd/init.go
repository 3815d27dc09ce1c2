package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize regolith configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the LLM and embedding providers and writes a .regolith.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Wrote %s. Load a corpus with `regolith load <file.jsonl>`.\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

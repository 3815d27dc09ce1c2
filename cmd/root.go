package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "regolith",
	Short: "Hybrid retrieval over lunar geology research corpora",
	Long: `Regolith answers questions over a pre-chunked corpus of lunar geology and
crater-impact papers. Queries are interpreted by an LLM, matched
semantically and lexically, and returned with a reconciled confidence
score. It runs as a CLI, an HTTP server, or an MCP tool server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	exitOnError(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

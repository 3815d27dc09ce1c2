package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/corpus"
	"github.com/regolith-ai/regolith/internal/logger"
	"github.com/regolith-ai/regolith/internal/progress"
)

var loadCmd = &cobra.Command{
	Use:   "load [files or globs...]",
	Short: "Load pre-chunked JSONL documents into the indexes",
	Long: `Reads JSONL chunk files (one {"id", "content", "metadata"} object per line),
embeds them into the vector index, adds them to the keyword index and
saves a snapshot under the data directory. Globs support ** patterns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().Int("batch-size", corpus.DefaultBatchSize, "documents per index batch")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	batchSize, _ := cmd.Flags().GetInt("batch-size")

	files, err := corpus.Expand(args)
	if err != nil {
		return err
	}
	docs, err := corpus.ReadAll(files)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loader := corpus.NewLoader(a.store, a.cfg.VectorDir(),
		corpus.WithBatchSize(batchSize),
		corpus.WithKeywordIndex(a.lexical),
		corpus.WithReporter(progress.NewReporter(os.Stderr, "Loading corpus")),
		corpus.WithLogger(logger.Component(a.log, "corpus")),
	)
	stats, err := loader.Load(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d documents from %d file(s) in %s (%d in index)\n",
		stats.Documents, len(files), stats.Elapsed.Round(1e6), stats.Total)
	return nil
}

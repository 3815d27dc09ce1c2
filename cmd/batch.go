package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Answer many questions concurrently",
	Long: `Reads one question per line from file (or stdin when file is "-") and
writes one JSON answer per line to stdout, in input order. All answers
share one history session.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("workers", 0, "concurrent queries (default from config)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	queries, err := readQueries(in)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = a.cfg.Retrieval.BatchWorkers
	}

	items, err := pipeline.RunBatch(ctx, a.pipeline, queries, workers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	a.log.Info().Int("queries", len(items)).Int("failed", failed).Msg("batch complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(items))
	}
	return nil
}

func readQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" && !strings.HasPrefix(q, "#") {
			queries = append(queries, q)
		}
	}
	return queries, scanner.Err()
}

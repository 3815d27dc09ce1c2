package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [question]",
	Short: "Retrieve passages for a question",
	Long: `Interprets the question, runs hybrid retrieval over the loaded corpus and
prints up to five passages with a confidence score.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringSlice("refs", nil, "reference terms to match instead of interpreting the query")
	retrieveCmd.Flags().Bool("no-interpret", false, "skip LLM interpretation")
	retrieveCmd.Flags().Int("neighbors", 0, "print the raw top-k semantic neighbours instead of retrieving")
	retrieveCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(args[0])
	if query == "" {
		return fmt.Errorf("question is empty")
	}

	refs, _ := cmd.Flags().GetStringSlice("refs")
	noInterpret, _ := cmd.Flags().GetBool("no-interpret")
	neighbors, _ := cmd.Flags().GetInt("neighbors")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store.Count() == 0 {
		fmt.Println("Corpus is empty. Run `regolith load` first.")
		return nil
	}

	if neighbors > 0 {
		results, err := a.store.NearestNeighbors(ctx, query, neighbors)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(results)
		}
		fmt.Print(vectordb.FormatNeighbors(results))
		return nil
	}

	outcome := interpret.Outcome{Interpretation: interpret.Fallback(query), Kind: interpret.Default}
	switch {
	case len(refs) > 0:
		outcome.Interpretation.References = refs
		outcome.Kind = interpret.Caller
	case !noInterpret:
		outcome = a.interpreter.Interpret(ctx, query)
	}

	res, err := a.engine.Retrieve(ctx, query, outcome.Interpretation)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"interpretation":      outcome.Interpretation,
			"interpretation_kind": outcome.Kind,
			"result":              res,
		})
	}

	interp := outcome.Interpretation
	fmt.Printf("Query:      %s\n", interp.CorrectedQuery)
	fmt.Printf("Intent:     %s (%s)\n", interp.Intent, outcome.Kind)
	if len(interp.References) > 0 {
		fmt.Printf("References: %s\n", strings.Join(interp.References, "; "))
	}
	if res.Reconciliation != "" {
		fmt.Printf("Confidence: %.3f (%s)\n", res.Confidence, res.Reconciliation)
	} else {
		fmt.Printf("Confidence: %.3f\n", res.Confidence)
	}
	fmt.Printf("Strategy:   %s\n\n", res.Strategy)
	fmt.Print(vectordb.FormatDocuments(res.Documents))
	return nil
}

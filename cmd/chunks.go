package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "List every stored chunk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.store.ListDocuments(ctx)
		if err != nil {
			return err
		}
		if limit > 0 && len(docs) > limit {
			docs = docs[:limit]
		}

		if jsonOutput {
			return printJSON(docs)
		}
		fmt.Printf("%d chunk(s):\n\n", a.store.Count())
		for _, d := range docs {
			fmt.Printf("  %s  %s #%d  %s\n", d.ID, d.Metadata.Filename, d.Metadata.ChunkID, d.Metadata.SectionTitle)
			fmt.Printf("     %s\n\n", truncate(d.Content, 120))
		}
		return nil
	},
}

func init() {
	chunksCmd.Flags().Bool("json", false, "output chunks as JSON")
	chunksCmd.Flags().Int("limit", 0, "maximum number of chunks to print")
	rootCmd.AddCommand(chunksCmd)
}

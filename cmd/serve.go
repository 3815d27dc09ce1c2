package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/regolith-ai/regolith/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio exposing passage retrieval and query interpretation tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.store.Count() == 0 {
			fmt.Fprintln(os.Stderr, "Warning: corpus is empty. Run `regolith load` first.")
		}
		go a.watchSnapshot(ctx)

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "regolith MCP server started on stdio (documents=%d)\n", a.store.Count())

		return mcpserver.NewServer(a.engine, a.interpreter).Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

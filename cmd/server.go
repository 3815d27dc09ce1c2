package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/regolith-ai/regolith/internal/logger"
	"github.com/regolith-ai/regolith/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the retrieval HTTP server",
	Long: `Starts the regolith HTTP server with the retrieval and ask REST API, a
chat WebSocket, session history and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.Server.AllowAll,
		}, server.Deps{
			Pipeline:    a.pipeline,
			Retriever:   a.engine,
			Interpreter: a.interpreter,
			Chunks:      a.store,
			History:     a.history,
			Gatherer:    a.registry,
			Logger:      logger.Component(a.log, "server"),
		})

		go a.watchSnapshot(ctx)
		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "regolith server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Data: %s\n", a.cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Documents indexed: %d\n", a.store.Count())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}

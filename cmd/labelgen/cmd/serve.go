package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/abramin/golabel/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the label index over HTTP",
	Long: `Start a local HTTP server with a read-only JSON API over the label index
written by the last generate run.

Endpoints:
- GET /api/labels[?q=...]           labels with attachment counts
- GET /api/labels/:id/attachments   items attached to a label
- GET /api/stats                    index statistics
- GET /api/health                   health check`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := moduleRoot(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Port:       servePort,
			ProjectDir: dir,
			StoreDir:   cfg.StoreDir,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to run the server on")
}

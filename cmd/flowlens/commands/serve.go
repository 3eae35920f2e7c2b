package commands

import (
	"os/signal"
	"syscall"

	"flowlens/internal/mcp"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the loaded board to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ds, err := loadDataset(ctx)
		if err != nil {
			return err
		}
		return mcp.NewServer(ds.analyzer, ds.store, ds.opts, Version).Run(ctx)
	},
}

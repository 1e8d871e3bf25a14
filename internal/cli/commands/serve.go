package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only metadata API",
		Long: `Serve the metadata HTTP API: /health plus /api/runs, /api/runs/{id}/quality,
/api/lineage and /api/audit. Reads metadata only; never touches the
warehouse. Stops on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cc.Cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			auditor := audit.NewRecorder(cc.Store, "server", cc.Cfg.AuditUser, cc.Logger)
			srv := server.New(server.Config{
				Store:   cc.Store,
				Auditor: auditor,
				Addr:    addr,
				Logger:  cc.Logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}

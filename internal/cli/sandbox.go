package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vitebski/dbsight/internal/sandbox"
	"github.com/vitebski/dbsight/internal/utils"
)

func newSandboxCommand(a *app) *cobra.Command {
	var (
		port     int
		rows     int
		seed     int64
		register bool
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local in-memory MySQL server with a demo shop schema",
		Long: `Sandbox starts an in-memory MySQL-protocol server on localhost, fills the
shop schema with fake customers, products and orders, and serves it until
interrupted.`,
		Example: `  dbsight sandbox --rows 200 --register`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := sandbox.Start(ctx, sandbox.Options{Port: port, Logger: a.logger})
			if err != nil {
				return err
			}
			defer srv.Close()

			counts, err := sandbox.Seed(ctx, srv.DSN(), sandbox.SeedOptions{Rows: rows, Seed: seed, Logger: a.logger})
			if err != nil {
				return err
			}

			out := a.out(cmd)
			utils.RenderSummary(out, fmt.Sprintf("%s on %s", srv.Database, srv.Addr()), counts)

			if register {
				cfg, err := a.manager.SaveAndActivateConnection(ctx, srv.ConnectionConfig("sandbox"), nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved connection %s (%s)\n", cfg.Name, cfg.ID)
			}

			if once {
				return nil
			}
			fmt.Fprintf(out, "Serving %s, press Ctrl+C to stop\n", srv.DSN())
			<-ctx.Done()
			a.logger.Info("Stopping sandbox")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: a free port)")
	cmd.Flags().IntVarP(&rows, "rows", "r", sandbox.DefaultRows, "Base number of rows per table")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible data")
	cmd.Flags().BoolVar(&register, "register", false, "Save and activate a connection profile for the sandbox")
	cmd.Flags().BoolVar(&once, "once", false, "Seed and exit instead of serving")
	return cmd
}

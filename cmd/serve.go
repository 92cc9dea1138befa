package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/registry"
	"github.com/ashstep2/agent-eval-harness/internal/server"
)

var flagAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation API with SSE and websocket streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			r, err := e.runner()
			if err != nil {
				return err
			}
			srv := &server.Server{
				Runner:   r,
				Registry: registry.New(e.cfg.Server.RegistrySize, e.cfg.Server.RegistryTTL),
				Store:    e.store,
				Secrets:  e.secrets,
				EnvFile:  e.cfg.Secrets.EnvFile,
			}
			addr := flagAddr
			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (defaults to the config's server.addr)")
	return cmd
}

package cli

import (
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/spf13/cobra"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sirve la API HTTP y los conectores de chat configurados",
		Long: `Expone POST /v1/respond, GET /healthz y GET /metrics, y conecta los bots de
Telegram y Slack cuando sus tokens están configurados.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			srv, cfg, log, err := o.newServer(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()
			cfg.LogConfig(log)
			log.Info("Starting Ron",
				logger.StringField("version", cfg.Version),
				logger.IntField("port", cfg.Server.Port))
			return srv.Run(ctx)
		},
	}
}

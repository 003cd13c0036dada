// Package cli implements the ron command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	appconfig "github.com/lewisedginton/ron/internal/config"
	"github.com/lewisedginton/ron/internal/server"
	pkgconfig "github.com/lewisedginton/ron/pkg/config"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	version    string
	configPath string
	envFiles   []string

	// serverOptions are passed to server.New, used by tests to swap components.
	serverOptions []server.Option
}

// NewRootCmd builds the ron command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(&rootOptions{version: version})
}

func newRootCmd(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "ron",
		Short: "Ron, asistente personal con memoria por dispositivo",
		Long: `Ron responde a frases en español: diagnósticos del sistema, aplicaciones,
búsquedas, clima, recordatorios y conversación libre. Cada dispositivo
guarda su propia memoria en el almacén remoto.

Ejemplos:
  ron chat
  ron ask "clima en Madrid"
  ron serve
  ron memory show`,
		Version:       o.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return pkgconfig.LoadDotEnv(o.envFiles...)
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", os.Getenv("RON_CONFIG"), "path to a YAML configuration file")
	root.PersistentFlags().StringSliceVar(&o.envFiles, "env-file", []string{".env"}, ".env files loaded before the configuration")

	root.AddCommand(
		newChatCmd(o),
		newAskCmd(o),
		newServeCmd(o),
		newMemoryCmd(o),
		newConfigCmd(o),
	)
	return root
}

// load reads and validates the configuration and builds a logger writing to w.
func (o *rootOptions) load(w io.Writer) (*appconfig.AppConfig, logger.Logger, error) {
	cfg, err := appconfig.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.version != "" && cfg.Version == "dev" {
		cfg.Version = o.version
	}
	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  strings.ToLower(cfg.Logging.LogFormat),
		Service: cfg.ServiceName,
		Output:  w,
	})
	return cfg, log, nil
}

// newServer loads the configuration and wires the assistant. Logs go to the
// command's error stream so replies on stdout stay clean.
func (o *rootOptions) newServer(ctx context.Context, cmd *cobra.Command) (*server.Server, *appconfig.AppConfig, logger.Logger, error) {
	cfg, log, err := o.load(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	srv, err := server.New(ctx, cfg, log, o.serverOptions...)
	if err != nil {
		return nil, nil, nil, err
	}
	return srv, cfg, log, nil
}

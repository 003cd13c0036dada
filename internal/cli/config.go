package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Operaciones de configuración",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Muestra la configuración efectiva con las credenciales ocultas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := o.load(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(cfg.Redacted())
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Valida la configuración",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, _, err := o.load(cmd.ErrOrStderr()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "La configuración es válida")
				return err
			},
		},
	)
	return cmd
}

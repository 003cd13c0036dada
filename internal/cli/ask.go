package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lewisedginton/ron/internal/assistant"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/spf13/cobra"
)

func newAskCmd(o *rootOptions) *cobra.Command {
	var (
		device string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <frase>",
		Short: "Envía una sola frase y muestra la respuesta",
		Example: `  ron ask "qué recordatorios tengo"
  ron ask --device cocina "recuérdame comprar pan"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, _, _, err := o.newServer(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			req := assistant.Request{Text: strings.Join(args, " ")}
			if device != "" {
				req.Device = memory_store.SanitizeDeviceKey(device)
			}
			reply := srv.Dispatcher().Respond(ctx, req)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reply)
			}
			_, err = fmt.Fprintln(out, reply.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "answer as this device instead of the local one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reply with its intent as JSON")
	return cmd
}

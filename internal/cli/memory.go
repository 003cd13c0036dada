package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lewisedginton/ron/internal/memory_service"
	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/spf13/cobra"
)

func newMemoryCmd(o *rootOptions) *cobra.Command {
	var device string

	withMemory := func(cmd *cobra.Command, fn func(*memory_service.Service) error) error {
		srv, _, _, err := o.newServer(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		mem := srv.Memory()
		if device != "" {
			mem = mem.ForDevice(memory_store.SanitizeDeviceKey(device))
		}
		return fn(mem)
	}

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspecciona y mantiene la memoria del dispositivo",
	}
	cmd.PersistentFlags().StringVar(&device, "device", "", "operate on this device instead of the local one")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Muestra el documento de memoria",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMemory(cmd, func(mem *memory_service.Service) error {
					doc, err := mem.Document(cmd.Context())
					if err != nil {
						return fmt.Errorf("failed to load memory of %s: %w", mem.Device(), err)
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(doc)
				})
			},
		},
		&cobra.Command{
			Use:   "dedupe",
			Short: "Elimina conversaciones repetidas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMemory(cmd, func(mem *memory_service.Service) error {
					before, after, err := mem.Dedupe(cmd.Context())
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "Limpieza completada: %d -> %d conversaciones\n", before, after)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "device",
			Short: "Muestra la clave de dispositivo en uso",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMemory(cmd, func(mem *memory_service.Service) error {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), mem.Device())
					return err
				})
			},
		},
	)
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/export"
)

func newExportCmd(g *globalOpts) *cobra.Command {
	var (
		filters filterFlags
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export clients to CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			clients, err := svc.Store.ListClients(context.Background(), filters.filter(cmd))
			if err != nil {
				return err
			}

			if out == "-" {
				return export.Write(cmd.OutOrStdout(), f, clients)
			}
			if out == "" {
				out = export.Filename(f, time.Now())
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := export.Write(file, f, clients); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d clients to %s\n", len(clients), out)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default legal_clients_<timestamp>.<ext>)")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, created, err := config.InitConfig(path)
			if err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", written)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", written)
			fmt.Fprintln(cmd.OutOrStdout(), "To add your Anthropic key, run: legalsmart keys set")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "where to write the file (default ~/.legalsmart/legalsmart.toml)")
	return cmd
}

func newConfigExportCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "config-export [file]",
		Short: "Write the effective config (file, env and defaults) to a TOML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "legalsmart-export.toml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := config.Load(g.configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := config.ExportConfig(path); err != nil {
				return fmt.Errorf("exporting config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config exported to %s\n", path)
			return nil
		},
	}
}

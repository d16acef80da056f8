package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/config"
	"github.com/allaspectsdev/legalsmart/internal/daemon"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LegalSmart API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return daemon.Run(cfg, foreground)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "also log to the console")
	return cmd
}

func newStopCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(g.configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := daemon.Stop(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "legalsmart stopped")
			return nil
		},
	}
}

func newStatusCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and request stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(g.configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return daemon.Status()
		},
	}
}

func newServiceCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install or remove the user service (launchd or systemd)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install and start the user service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(g.configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				return daemon.InstallService(cfg.Server.DataDir)
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the user service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return daemon.UninstallService()
			},
		},
	)
	return cmd
}

// openServices loads the config and opens the store and assistant for a
// one-shot command. Logs go to stderr and only warnings are shown.
func openServices(cmd *cobra.Command, g *globalOpts) (*daemon.Services, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: "15:04:05"}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()
	return daemon.OpenServices(context.Background(), cfg, nil, logger)
}

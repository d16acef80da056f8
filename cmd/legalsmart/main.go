package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	root := &cobra.Command{
		Use:           "legalsmart",
		Short:         "LegalSmart: legal client records with an AI assistant",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to config file (default ~/.legalsmart/legalsmart.toml)")

	root.AddCommand(
		newServeCmd(g),
		newStopCmd(g),
		newStatusCmd(g),
		newServiceCmd(g),
		newClientsCmd(g),
		newExportCmd(g),
		newAskCmd(g),
		newAnalyzeCmd(g),
		newSummaryCmd(g),
		newKeysCmd(),
		newInitConfigCmd(),
		newConfigExportCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

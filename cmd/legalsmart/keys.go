package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/allaspectsdev/legalsmart/internal/vault"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys in the OS keychain",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show where each provider's key comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := vault.New().List()
			if err != nil {
				return fmt.Errorf("listing keys: %w", err)
			}
			for _, s := range sources {
				loc := s.Location
				if loc == "" {
					loc = "not configured"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", s.Provider, loc)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [provider]",
		Short: "Store an API key (read from the terminal or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := providerArg(args)
			key, err := readKey(cmd, provider)
			if err != nil {
				return fmt.Errorf("reading key: %w", err)
			}
			if err := vault.New().Set(provider, key); err != nil {
				return fmt.Errorf("storing key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key for %s stored successfully\n", provider)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [provider]",
		Short: "Remove a stored API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := providerArg(args)
			if err := vault.New().Delete(provider); err != nil {
				return fmt.Errorf("deleting key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key for %s deleted\n", provider)
			return nil
		},
	}

	cmd.AddCommand(listCmd, setCmd, deleteCmd)
	return cmd
}

func providerArg(args []string) string {
	if len(args) == 0 {
		return vault.ProviderAnthropic
	}
	return strings.ToLower(strings.TrimSpace(args[0]))
}

// readKey prompts without echo on a terminal and otherwise reads one line
// from the command's input.
func readKey(cmd *cobra.Command, provider string) (string, error) {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter API key for %s: ", provider)
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(key), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

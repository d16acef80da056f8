package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
	"github.com/allaspectsdev/legalsmart/internal/llm"
)

func printAnswer(cmd *cobra.Command, ans *assistant.Answer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	if ans.Notice != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", ans.Notice)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(ans.Text, "\n"))
	return nil
}

// parseModelFlag resolves the --model flag, defaulting to def.
func parseModelFlag(key string, def llm.Model) (llm.Model, error) {
	if key == "" {
		return def, nil
	}
	return llm.ParseModel(key)
}

func newAskCmd(g *globalOpts) *cobra.Command {
	var (
		model  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question about the client data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.Sessions.Get("")
			if err != nil {
				return err
			}
			m, err := parseModelFlag(model, sess.DefaultModel())
			if err != nil {
				return err
			}
			ans, err := sess.AskQuestion(context.Background(), strings.Join(args, " "), m)
			if err != nil {
				return err
			}
			return printAnswer(cmd, ans, asJSON)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "preferred model (opus, sonnet, haiku, legacy-haiku)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}

func newAnalyzeCmd(g *globalOpts) *cobra.Command {
	var (
		model  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the assistant's analysis of all client data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.Sessions.Get("")
			if err != nil {
				return err
			}
			m, err := parseModelFlag(model, sess.DefaultModel())
			if err != nil {
				return err
			}
			ans, err := sess.Analyze(context.Background(), m)
			if err != nil {
				return err
			}
			return printAnswer(cmd, ans, asJSON)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "preferred model (opus, sonnet, haiku, legacy-haiku)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	return cmd
}

func newSummaryCmd(g *globalOpts) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the local statistical summary (no API call)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.Sessions.Get("")
			if err != nil {
				return err
			}
			sum, err := sess.QuickSummary(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			fmt.Fprint(cmd.OutOrStdout(), sum.Text())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

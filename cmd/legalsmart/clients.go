package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/allaspectsdev/legalsmart/internal/store"
)

// filterFlags binds the client filter flags shared by list and export.
type filterFlags struct {
	name          string
	minAge        int
	maxAge        int
	issue         string
	issueContains string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "name contains (case-insensitive)")
	cmd.Flags().IntVar(&f.minAge, "min-age", 0, "minimum age, inclusive")
	cmd.Flags().IntVar(&f.maxAge, "max-age", 0, "maximum age, inclusive")
	cmd.Flags().StringVar(&f.issue, "issue", "", "legal area, exact match (case-insensitive)")
	cmd.Flags().StringVar(&f.issueContains, "issue-contains", "", "legal area contains")
}

func (f *filterFlags) filter(cmd *cobra.Command) store.ClientFilter {
	out := store.ClientFilter{
		NameContains:       f.name,
		LegalIssue:         f.issue,
		LegalIssueContains: f.issueContains,
	}
	if cmd.Flags().Changed("min-age") {
		v := f.minAge
		out.MinAge = &v
	}
	if cmd.Flags().Changed("max-age") {
		v := f.maxAge
		out.MaxAge = &v
	}
	return out
}

func newClientsCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage client records",
	}

	var (
		filters filterFlags
		asJSON  bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List clients matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			clients, err := svc.Store.ListClients(context.Background(), filters.filter(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(clients)
			}
			if len(clients) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clients found.")
				return nil
			}
			return printClients(cmd.OutOrStdout(), clients)
		},
	}
	filters.register(listCmd)
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	var in store.NewClient
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			id, err := svc.Store.AddClient(context.Background(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Client %d added.\n", id)
			return nil
		},
	}
	addCmd.Flags().StringVar(&in.Name, "name", "", "client name")
	addCmd.Flags().IntVar(&in.Age, "age", 0, "client age")
	addCmd.Flags().StringVar(&in.LegalIssue, "issue", "", "legal area")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid client id %q", args[0])
			}
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Store.DeleteClient(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Client %d deleted.\n", id)
			return nil
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample clients into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd, g)
			if err != nil {
				return err
			}
			defer svc.Close()

			n, err := svc.Store.SeedSampleClients(context.Background())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database already has clients; nothing seeded.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d sample clients.\n", n)
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, deleteCmd, seedCmd)
	return cmd
}

func printClients(out io.Writer, clients []store.Client) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGE\tLEGAL ISSUE")
	for _, c := range clients {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.Age, c.LegalIssue)
	}
	return w.Flush()
}

package cli

import (
	"fmt"

	"github.com/existflow/ironledger/internal/model"
	"github.com/spf13/cobra"
)

func newClientCmd(s *session) *cobra.Command {
	clientCmd := &cobra.Command{
		Use:     "client",
		Aliases: []string{"clients"},
		Short:   "Manage clients",
	}

	var c model.Client
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a client",
		Long: `Add a client.

Examples:
  ironledger client add --name "Jane Doe" --email jane@example.com
  ironledger client add -n "Acme" -e billing@acme.io --company "Acme Ltd"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			added, err := a.Repo.AddClient(cmd.Context(), c)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added client: %s [%s]\n", added.Name, shortID(added.ID))
			return nil
		},
	}
	addCmd.Flags().StringVarP(&c.Name, "name", "n", "", "Client name")
	addCmd.Flags().StringVarP(&c.Email, "email", "e", "", "Email address")
	addCmd.Flags().StringVar(&c.Phone, "phone", "", "Phone number")
	addCmd.Flags().StringVar(&c.Company, "company", "", "Company")

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List clients with their revenue",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			clients := a.Analytics.ClientsWithStats()
			if len(clients) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clients yet. Add one with: ironledger client add")
				return nil
			}
			rows := make([][]string, 0, len(clients))
			for _, cs := range clients {
				rows = append(rows, []string{
					shortID(cs.ID),
					cs.Name,
					cs.Email,
					cs.Company,
					fmt.Sprintf("%d/%d", cs.Stats.ActiveProjects, cs.Stats.TotalProjects),
					money(a.Config.Currency, cs.Stats.ReceivedRevenue),
					money(a.Config.Currency, cs.Stats.PendingRevenue),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "NAME", "EMAIL", "COMPANY", "ACTIVE", "RECEIVED", "PENDING"}, rows)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [client-id]",
		Short: "Show a client with projects and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			client, err := resolveID(a.Repo.Clients(), args[0])
			if err != nil {
				return err
			}
			stats := a.Analytics.ClientStats(client.ID)
			cur := a.Config.Currency

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s]\n", client.Name, client.ID)
			fmt.Fprintf(out, "  Email:    %s\n", client.Email)
			if client.Phone != "" {
				fmt.Fprintf(out, "  Phone:    %s\n", client.Phone)
			}
			if client.Company != "" {
				fmt.Fprintf(out, "  Company:  %s\n", client.Company)
			}
			fmt.Fprintf(out, "  Since:    %s\n", formatDate(client.CreatedAt))
			fmt.Fprintf(out, "  Projects: %d total, %d active, %d delivered\n",
				stats.TotalProjects, stats.ActiveProjects, stats.CompletedProjects)
			fmt.Fprintf(out, "  Revenue:  %s total, %s received, %s pending\n",
				money(cur, stats.TotalRevenue), money(cur, stats.ReceivedRevenue), money(cur, stats.PendingRevenue))
			if stats.OverduePayments > 0 {
				fmt.Fprintf(out, "  ⚠ %d overdue payment(s)\n", stats.OverduePayments)
			}

			projects := a.Repo.ProjectsByClient(client.ID)
			if len(projects) > 0 {
				fmt.Fprintln(out)
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{shortID(p.ID), p.Title, string(p.Status), formatOptDate(p.Deadline), money(cur, p.Amount)})
				}
				renderTable(out, []string{"ID", "PROJECT", "STATUS", "DEADLINE", "AMOUNT"}, rows)
			}
			return nil
		},
	}

	var patch struct {
		name, email, phone, company string
	}
	updateCmd := &cobra.Command{
		Use:   "update [client-id]",
		Short: "Change a client's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			client, err := resolveID(a.Repo.Clients(), args[0])
			if err != nil {
				return err
			}

			var p model.ClientPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &patch.name
			}
			if flags.Changed("email") {
				p.Email = &patch.email
			}
			if flags.Changed("phone") {
				p.Phone = &patch.phone
			}
			if flags.Changed("company") {
				p.Company = &patch.company
			}

			updated, err := a.Repo.UpdateClient(cmd.Context(), client.ID, p)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated client: %s\n", updated.Name)
			return nil
		},
	}
	updateCmd.Flags().StringVarP(&patch.name, "name", "n", "", "Client name")
	updateCmd.Flags().StringVarP(&patch.email, "email", "e", "", "Email address")
	updateCmd.Flags().StringVar(&patch.phone, "phone", "", "Phone number")
	updateCmd.Flags().StringVar(&patch.company, "company", "", "Company")

	var force bool
	deleteCmd := &cobra.Command{
		Use:     "delete [client-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a client with all its projects and payments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			client, err := resolveID(a.Repo.Clients(), args[0])
			if err != nil {
				return err
			}

			if a.Config.ConfirmDelete && !force {
				n := len(a.Repo.ProjectsByClient(client.ID))
				if !s.confirm(cmd, fmt.Sprintf("Delete %s and %d project(s)?", client.Name, n)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			err = a.Repo.DeleteClient(cmd.Context(), client.ID)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted client: %s\n", client.Name)
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	clientCmd.AddCommand(addCmd, listCmd, showCmd, updateCmd, deleteCmd)
	return clientCmd
}

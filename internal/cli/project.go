package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/spf13/cobra"
)

type projectFlags struct {
	client, title, description, deadline, status, amount string
}

func (f *projectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.client, "client", "c", "", "Client ID or prefix")
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Project title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Description")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "Deadline (YYYY-MM-DD, today, tomorrow, +Nd)")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "Status (pending, in-progress, delivered)")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "Agreed amount")
}

func parseProjectStatus(s string) (model.ProjectStatus, error) {
	st := model.ProjectStatus(strings.ToLower(strings.TrimSpace(s)))
	if st == "in_progress" || st == "inprogress" {
		st = model.ProjectInProgress
	}
	if !st.Valid() {
		return "", fmt.Errorf("invalid project status %q (pending, in-progress, delivered)", s)
	}
	return st, nil
}

// patch collects the flags the user actually set
func (f *projectFlags) patch(cmd *cobra.Command, s *session, now time.Time) (model.ProjectPatch, error) {
	var p model.ProjectPatch
	flags := cmd.Flags()

	if flags.Changed("client") {
		c, err := resolveID(s.app.Repo.Clients(), f.client)
		if err != nil {
			return p, err
		}
		p.ClientID = &c.ID
	}
	if flags.Changed("title") {
		p.Title = &f.title
	}
	if flags.Changed("description") {
		p.Description = &f.description
	}
	if flags.Changed("deadline") {
		d, err := parseDate(f.deadline, now)
		if err != nil {
			return p, err
		}
		p.Deadline = &d
	}
	if flags.Changed("status") {
		st, err := parseProjectStatus(f.status)
		if err != nil {
			return p, err
		}
		p.Status = &st
	}
	if flags.Changed("amount") {
		v, err := parseAmount(f.amount)
		if err != nil {
			return p, err
		}
		p.Amount = &v
	}
	return p, nil
}

func newProjectCmd(s *session) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
		Long:    `Create, list and track the projects you do for clients.`,
	}

	var addFlags projectFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		Long: `Add a project for a client. A project with an amount also gets a
pending payment due one week after the deadline.

Examples:
  ironledger project add -c 1a2b -t "Logo design" --amount 15000 --deadline +14d
  ironledger project add -c 1a2b -t "Retainer" --status in-progress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("client") {
				return fmt.Errorf("--client is required")
			}
			patch, err := addFlags.patch(cmd, s, time.Now())
			if err != nil {
				return err
			}
			p := patch.Apply(model.Project{})

			added, err := a.Repo.AddProject(cmd.Context(), p)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added project: %s [%s]\n", added.Title, shortID(added.ID))
			if added.Amount > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Payment of %s due %s\n",
					money(a.Config.Currency, added.Amount), formatDate(model.DueDateFor(added.Deadline, added.CreatedAt)))
			}
			return nil
		},
	}
	addFlags.bind(addCmd)

	var listClient, listStatus string
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			var clientID string
			if listClient != "" {
				c, err := resolveID(a.Repo.Clients(), listClient)
				if err != nil {
					return err
				}
				clientID = c.ID
			}
			var status model.ProjectStatus
			if listStatus != "" {
				if status, err = parseProjectStatus(listStatus); err != nil {
					return err
				}
			}

			var rows [][]string
			for _, p := range a.Repo.ProjectsWithClient() {
				if clientID != "" && p.ClientID != clientID {
					continue
				}
				if status != "" && p.Status != status {
					continue
				}
				client := "?"
				if p.Client != nil {
					client = p.Client.Name
				}
				rows = append(rows, []string{
					shortID(p.ID), p.Title, client, string(p.Status),
					formatOptDate(p.Deadline), money(a.Config.Currency, p.Amount),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "CLIENT", "STATUS", "DEADLINE", "AMOUNT"}, rows)
			return nil
		},
	}
	listCmd.Flags().StringVarP(&listClient, "client", "c", "", "Only projects of this client")
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Only projects with this status")

	var updateFlags projectFlags
	updateCmd := &cobra.Command{
		Use:   "update [project-id]",
		Short: "Change a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Projects(), args[0])
			if err != nil {
				return err
			}
			patch, err := updateFlags.patch(cmd, s, time.Now())
			if err != nil {
				return err
			}
			updated, err := a.Repo.UpdateProject(cmd.Context(), p.ID, patch)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated project: %s (%s)\n", updated.Title, updated.Status)
			return nil
		},
	}
	updateFlags.bind(updateCmd)

	deliverCmd := &cobra.Command{
		Use:     "deliver [project-id]",
		Aliases: []string{"done"},
		Short:   "Mark a project as delivered",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Projects(), args[0])
			if err != nil {
				return err
			}
			if p.IsDelivered() {
				fmt.Fprintf(cmd.OutOrStdout(), "Project already delivered: %s\n", p.Title)
				return nil
			}
			_, err = a.Repo.MarkDelivered(cmd.Context(), p.ID)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Delivered: %s\n", p.Title)
			return nil
		},
	}

	var force bool
	deleteCmd := &cobra.Command{
		Use:     "delete [project-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a project and its payments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Projects(), args[0])
			if err != nil {
				return err
			}
			if a.Config.ConfirmDelete && !force {
				n := len(a.Repo.PaymentsByProject(p.ID))
				if !s.confirm(cmd, fmt.Sprintf("Delete %s and %d payment(s)?", p.Title, n)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			err = a.Repo.DeleteProject(cmd.Context(), p.ID)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted project: %s\n", p.Title)
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	projectCmd.AddCommand(addCmd, listCmd, updateCmd, deliverCmd, deleteCmd)
	return projectCmd
}

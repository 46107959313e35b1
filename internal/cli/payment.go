package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/spf13/cobra"
)

func parsePaymentStatus(s string) (model.PaymentStatus, error) {
	st := model.PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid payment status %q (pending, received)", s)
	}
	return st, nil
}

func newPaymentCmd(s *session) *cobra.Command {
	paymentCmd := &cobra.Command{
		Use:     "payment",
		Aliases: []string{"payments", "pay"},
		Short:   "Manage payments",
	}

	var add struct {
		project, amount, due, status string
	}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record a payment owed for a project",
		Long: `Record a payment owed for a project. Without --amount the project's
amount is used; without --due the payment is due one week after the
project deadline.

Examples:
  ironledger payment add -p 9f8e --amount 5000 --due 2026-07-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			if add.project == "" {
				return fmt.Errorf("--project is required")
			}
			project, err := resolveID(a.Repo.Projects(), add.project)
			if err != nil {
				return err
			}

			now := time.Now()
			p := model.Payment{
				ProjectID: project.ID,
				Amount:    project.Amount,
				DueDate:   model.DueDateFor(project.Deadline, now),
			}
			if add.amount != "" {
				if p.Amount, err = parseAmount(add.amount); err != nil {
					return err
				}
			}
			if add.due != "" {
				if p.DueDate, err = parseDate(add.due, now); err != nil {
					return err
				}
			}
			if add.status != "" {
				if p.Status, err = parsePaymentStatus(add.status); err != nil {
					return err
				}
			}

			added, err := a.Repo.AddPayment(cmd.Context(), p)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added payment: %s for %s, due %s [%s]\n",
				money(a.Config.Currency, added.Amount), project.Title, formatDate(added.DueDate), shortID(added.ID))
			return nil
		},
	}
	addCmd.Flags().StringVarP(&add.project, "project", "p", "", "Project ID or prefix")
	addCmd.Flags().StringVarP(&add.amount, "amount", "a", "", "Amount (defaults to the project amount)")
	addCmd.Flags().StringVar(&add.due, "due", "", "Due date (YYYY-MM-DD, today, tomorrow, +Nd)")
	addCmd.Flags().StringVarP(&add.status, "status", "s", "", "Status (pending, received)")

	var list struct {
		project, client, status string
	}
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List payments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			var projectID, clientID string
			if list.project != "" {
				p, err := resolveID(a.Repo.Projects(), list.project)
				if err != nil {
					return err
				}
				projectID = p.ID
			}
			if list.client != "" {
				c, err := resolveID(a.Repo.Clients(), list.client)
				if err != nil {
					return err
				}
				clientID = c.ID
			}
			var status model.PaymentStatus
			if list.status != "" {
				if status, err = parsePaymentStatus(list.status); err != nil {
					return err
				}
			}

			var rows [][]string
			var total float64
			for _, p := range a.Repo.PaymentsWithProjectAndClient() {
				if projectID != "" && p.ProjectID != projectID {
					continue
				}
				if clientID != "" && (p.Client == nil || p.Client.ID != clientID) {
					continue
				}
				if status != "" && p.Status != status {
					continue
				}
				project, client := "?", "?"
				if p.Project != nil {
					project = p.Project.Title
				}
				if p.Client != nil {
					client = p.Client.Name
				}
				total += p.Amount
				rows = append(rows, []string{
					shortID(p.ID), project, client, string(p.Status),
					formatDate(p.DueDate), formatOptDate(p.ReceivedAt), money(a.Config.Currency, p.Amount),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No payments found.")
				return nil
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "PROJECT", "CLIENT", "STATUS", "DUE", "RECEIVED", "AMOUNT"}, rows)
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %s\n", money(a.Config.Currency, total))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&list.project, "project", "p", "", "Only payments of this project")
	listCmd.Flags().StringVarP(&list.client, "client", "c", "", "Only payments of this client")
	listCmd.Flags().StringVarP(&list.status, "status", "s", "", "Only payments with this status")

	receiveCmd := &cobra.Command{
		Use:     "receive [payment-id]",
		Aliases: []string{"paid"},
		Short:   "Mark a payment as received",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Payments(), args[0])
			if err != nil {
				return err
			}
			if !p.IsPending() {
				fmt.Fprintf(cmd.OutOrStdout(), "Payment already received on %s\n", formatOptDate(p.ReceivedAt))
				return nil
			}
			_, err = a.Repo.MarkReceived(cmd.Context(), p.ID)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Received: %s\n", money(a.Config.Currency, p.Amount))
			return nil
		},
	}

	var upd struct {
		amount, due, status string
	}
	updateCmd := &cobra.Command{
		Use:   "update [payment-id]",
		Short: "Change a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Payments(), args[0])
			if err != nil {
				return err
			}

			var patch model.PaymentPatch
			flags := cmd.Flags()
			if flags.Changed("amount") {
				v, err := parseAmount(upd.amount)
				if err != nil {
					return err
				}
				patch.Amount = &v
			}
			if flags.Changed("due") {
				d, err := parseDate(upd.due, time.Now())
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if flags.Changed("status") {
				st, err := parsePaymentStatus(upd.status)
				if err != nil {
					return err
				}
				patch.Status = &st
			}

			updated, err := a.Repo.UpdatePayment(cmd.Context(), p.ID, patch)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated payment: %s (%s), due %s\n",
				money(a.Config.Currency, updated.Amount), updated.Status, formatDate(updated.DueDate))
			return nil
		},
	}
	updateCmd.Flags().StringVarP(&upd.amount, "amount", "a", "", "Amount")
	updateCmd.Flags().StringVar(&upd.due, "due", "", "Due date")
	updateCmd.Flags().StringVarP(&upd.status, "status", "s", "", "Status (pending, received)")

	var force bool
	deleteCmd := &cobra.Command{
		Use:     "delete [payment-id]",
		Aliases: []string{"rm"},
		Short:   "Delete a payment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			p, err := resolveID(a.Repo.Payments(), args[0])
			if err != nil {
				return err
			}
			if a.Config.ConfirmDelete && !force {
				if !s.confirm(cmd, fmt.Sprintf("Delete payment of %s?", money(a.Config.Currency, p.Amount))) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			err = a.Repo.DeletePayment(cmd.Context(), p.ID)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Deleted payment")
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	paymentCmd.AddCommand(addCmd, listCmd, receiveCmd, updateCmd, deleteCmd)
	return paymentCmd
}

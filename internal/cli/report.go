package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/existflow/ironledger/internal/analytics"
	"github.com/existflow/ironledger/internal/model"
	"github.com/spf13/cobra"
)

type dashboardReport struct {
	Stats    analytics.DashboardStats    `json:"stats"`
	Trend    []analytics.MonthRevenue    `json:"trend"`
	Projects map[model.ProjectStatus]int `json:"projects"`
	Payments map[model.PaymentStatus]int `json:"payments"`
	Top      []analytics.ClientWithStats `json:"topClients"`
}

func newDashboardCmd(s *session) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash", "stats"},
		Short:   "Show the headline figures",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			eng := a.Analytics
			r := dashboardReport{
				Stats:    eng.DashboardStats(),
				Trend:    eng.MonthlyRevenueTrend(),
				Projects: eng.ProjectStatusDistribution(),
				Payments: eng.PaymentStatusDistribution(),
				Top:      eng.TopClientsByRevenue(analytics.DefaultTopClients),
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			cur := a.Config.Currency
			fmt.Fprintln(out, "📊 Dashboard")
			fmt.Fprintf(out, "  Pending work:        %d project(s)\n", r.Stats.PendingWork)
			fmt.Fprintf(out, "  Pending payments:    %d\n", r.Stats.PendingPayments)
			fmt.Fprintf(out, "  Reminders needed:    %d\n", r.Stats.RemindersNeeded)
			fmt.Fprintf(out, "  Received this month: %s\n", money(cur, r.Stats.MonthlyTotal))
			fmt.Fprintf(out, "  Due next 7 days:     %s\n", money(cur, r.Stats.PendingNextWeek))
			fmt.Fprintf(out, "  Total outstanding:   %s\n", money(cur, r.Stats.TotalPending))

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Revenue")
			for _, m := range r.Trend {
				fmt.Fprintf(out, "  %-9s %s (%d)\n", m.Month, money(cur, m.Total), m.Count)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Projects")
			for _, st := range model.ProjectStatuses {
				fmt.Fprintf(out, "  %-12s %d\n", st, r.Projects[st])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newRemindersCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "List pending payments that need a follow-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			reminders := a.Analytics.PaymentsNeedingReminders()
			if len(reminders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Nobody to chase.")
				return nil
			}
			rows := make([][]string, 0, len(reminders))
			for _, r := range reminders {
				rows = append(rows, []string{
					shortID(r.ID), clientName(r.Client), projectTitle(r.Project),
					money(a.Config.Currency, r.Amount),
					fmt.Sprintf("%d", r.DaysPending), fmt.Sprintf("%d", r.DaysOverdue),
					clientEmail(r.Client),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "CLIENT", "PROJECT", "AMOUNT", "DAYS", "OVERDUE", "EMAIL"}, rows)
			return nil
		},
	}
}

func newOverdueCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List undelivered projects past their deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			overdue := a.Analytics.OverdueProjects()
			if len(overdue) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Nothing overdue.")
				return nil
			}
			rows := make([][]string, 0, len(overdue))
			for _, p := range overdue {
				rows = append(rows, []string{
					shortID(p.ID), p.Title, clientName(p.Client),
					formatOptDate(p.Deadline), fmt.Sprintf("%d", p.DaysOverdue),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "PROJECT", "CLIENT", "DEADLINE", "DAYS LATE"}, rows)
			return nil
		},
	}
}

func newUpcomingCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "upcoming",
		Short: "List deadlines in the next seven days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			upcoming := a.Analytics.UpcomingDeadlines()
			if len(upcoming) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deadlines this week.")
				return nil
			}
			rows := make([][]string, 0, len(upcoming))
			for _, p := range upcoming {
				rows = append(rows, []string{
					shortID(p.ID), p.Title, clientName(p.Client),
					formatOptDate(p.Deadline), fmt.Sprintf("%d", p.DaysUntil),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "PROJECT", "CLIENT", "DEADLINE", "DAYS LEFT"}, rows)
			return nil
		},
	}
}

func newTopCmd(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank clients by total revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			top := a.Analytics.TopClientsByRevenue(limit)
			if len(top) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clients yet.")
				return nil
			}
			rows := make([][]string, 0, len(top))
			for i, c := range top {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1), c.Name,
					money(a.Config.Currency, c.Stats.TotalRevenue),
					money(a.Config.Currency, c.Stats.ReceivedRevenue),
					money(a.Config.Currency, c.Stats.PendingRevenue),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"#", "CLIENT", "TOTAL", "RECEIVED", "PENDING"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", analytics.DefaultTopClients, "Number of clients")
	return cmd
}

func newSearchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Find clients and projects by name, email, company or title",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			res := a.Analytics.Search(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if res.Total == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, c := range res.Clients {
				fmt.Fprintf(out, "client   %s  %s <%s>\n", shortID(c.ID), c.Name, c.Email)
			}
			for _, p := range res.Projects {
				fmt.Fprintf(out, "project  %s  %s (%s)\n", shortID(p.ID), p.Title, p.Status)
			}
			fmt.Fprintf(out, "%d match(es)\n", res.Total)
			return nil
		},
	}
}

func clientName(c *model.Client) string {
	if c == nil {
		return "?"
	}
	return c.Name
}

func clientEmail(c *model.Client) string {
	if c == nil {
		return ""
	}
	return c.Email
}

func projectTitle(p *model.Project) string {
	if p == nil {
		return "?"
	}
	return p.Title
}

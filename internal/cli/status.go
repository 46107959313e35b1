package cli

import (
	"fmt"

	"github.com/existflow/ironledger/internal/app"
	"github.com/spf13/cobra"
)

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			st := a.Repo.Status()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Backend:  %s (%s)\n", st.Backend, st.Policy)
			if err := a.Repo.Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Health:   🔴 %s\n", app.Describe(err))
			} else {
				fmt.Fprintln(out, "Health:   🟢 ok")
			}
			fmt.Fprintf(out, "Clients:  %d\n", st.Clients)
			fmt.Fprintf(out, "Projects: %d\n", st.Projects)
			fmt.Fprintf(out, "Payments: %d\n", st.Payments)
			fmt.Fprintf(out, "Loaded:   %s\n", st.LoadedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newReloadCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload all data from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			if err := a.Repo.ReloadAll(cmd.Context()); err != nil {
				return err
			}
			st := a.Repo.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %d client(s), %d project(s), %d payment(s) from %s\n",
				st.Clients, st.Projects, st.Payments, st.Backend)
			return nil
		},
	}
}

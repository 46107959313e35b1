package cli

import (
	"errors"
	"fmt"

	"github.com/existflow/ironledger/internal/app"
	"github.com/spf13/cobra"
)

func newClearCmd(s *session) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all clients, projects and payments",
		Long: `Delete every client, project and payment from the configured backend.
A server started without reset permission refuses and nothing changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			if !force {
				if !s.confirm(cmd, fmt.Sprintf("Are you sure you want to delete all data in %s?", a.Backend.Name())) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "🧹 Clearing data...")
			if err := a.Repo.Clear(cmd.Context()); err != nil {
				return errors.New(app.Describe(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All data cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}

package cli

import (
	"errors"
	"fmt"

	"github.com/existflow/ironledger/internal/app"
	"github.com/existflow/ironledger/internal/model"
	"github.com/spf13/cobra"
)

func newSyncCmd(s *session) *cobra.Command {
	var push, pull bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local cache with the server",
		Long: `Reconcile the hybrid backend's local cache with the server.

Commands:
  ironledger sync            # Show sync state
  ironledger sync --push     # Replace server data with the local cache
  ironledger sync --pull     # Replace the local cache with server data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if push && pull {
				return errors.New("use either --push or --pull")
			}
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			h, ok := a.Hybrid()
			if !ok {
				return fmt.Errorf("sync needs the hybrid backend (current: %s)", a.Backend.Name())
			}
			out := cmd.OutOrStdout()

			var snap *model.Snapshot
			switch {
			case push:
				fmt.Fprintln(out, "⬆️  Pushing local changes...")
				snap, err = h.Push(cmd.Context())
			case pull:
				fmt.Fprintln(out, "⬇️  Pulling server data...")
				snap, err = h.Pull(cmd.Context())
			default:
				online := h.HealthCheck(cmd.Context()) == nil
				fmt.Fprintf(out, "Server:   %s\n", a.Config.ServerURL)
				if online {
					fmt.Fprintln(out, "Status:   🟢 online")
				} else {
					fmt.Fprintln(out, "Status:   🔴 offline")
				}
				if h.Unsynced() {
					fmt.Fprintln(out, "Cache:    has changes the server has not seen (run: ironledger sync --push)")
				} else {
					fmt.Fprintln(out, "Cache:    in sync")
				}
				return nil
			}
			if err != nil {
				return errors.New(app.Describe(err))
			}

			if err := a.Repo.ReloadAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Synced %d client(s), %d project(s), %d payment(s)\n",
				len(snap.Clients), len(snap.Projects), len(snap.Payments))
			return nil
		},
	}
	cmd.Flags().BoolVar(&push, "push", false, "Replace server data with the local cache")
	cmd.Flags().BoolVar(&pull, "pull", false, "Replace the local cache with server data")
	return cmd
}

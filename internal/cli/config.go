package cli

import (
	"fmt"

	"github.com/existflow/ironledger/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(s *session) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(s.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			if path, err := config.Path(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Change one setting",
		Long: `Change one setting and save it to config.yaml.

Keys: backend, data_dir, db_path, database_url, database_driver, server_url,
currency, confirm_delete, log_level, log_file, log_console,
backup.s3_bucket, backup.s3_region, backup.s3_endpoint, backup.s3_path_style

Examples:
  ironledger config set backend sqlite
  ironledger config set server_url https://ledger.example.com`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Start from the saved file so per-run flags are not persisted
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
			return nil
		},
	}

	configCmd.AddCommand(showCmd, setCmd)
	return configCmd
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/existflow/ironledger/internal/backup"
	"github.com/existflow/ironledger/internal/config"
	"github.com/existflow/ironledger/internal/logger"
	"github.com/spf13/cobra"
)

// destination resolves a path, s3://bucket/key or the configured bucket
func destination(ctx context.Context, cfg *config.Config, target string, useS3 bool) (backup.Destination, error) {
	if useS3 && !strings.HasPrefix(target, "s3://") {
		if cfg.Backup.S3Bucket == "" {
			return nil, fmt.Errorf("--s3 needs backup.s3_bucket (ironledger config set backup.s3_bucket NAME)")
		}
		key := target
		if key == "" {
			key = backup.DefaultExportName(time.Now().Format(dateLayout))
		}
		target = "s3://" + cfg.Backup.S3Bucket + "/" + key
	}

	if strings.HasPrefix(target, "s3://") {
		bucket, key, err := backup.ParseS3URL(target)
		if err != nil {
			return nil, err
		}
		return backup.NewS3Object(ctx, backup.S3Config{
			Region:    cfg.Backup.S3Region,
			Endpoint:  cfg.Backup.S3Endpoint,
			PathStyle: cfg.Backup.S3PathStyle,
		}, bucket, key)
	}
	return backup.File{Path: target}, nil
}

func newExportCmd(s *session) *cobra.Command {
	var encrypt, useS3 bool
	cmd := &cobra.Command{
		Use:   "export [file | s3://bucket/key | -]",
		Short: "Export all data as JSON",
		Long: `Export every client, project and payment as one JSON document.

Without a target the export goes to stdout. With --encrypt the document is
sealed with a passphrase (IRONLEDGER_PASSPHRASE or prompted).

Examples:
  ironledger export backup.json
  ironledger export --encrypt backup.sealed
  ironledger export --s3                   # configured bucket, dated key
  ironledger export s3://my-bucket/ledger.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			data, err := a.Repo.ExportJSON()
			if err != nil {
				return err
			}
			if encrypt {
				pass, err := s.readPassphrase(cmd, "Passphrase: ")
				if err != nil {
					return err
				}
				if data, err = backup.Seal(data, pass); err != nil {
					return err
				}
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if (target == "" || target == "-") && !useS3 {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}

			dst, err := destination(cmd.Context(), a.Config, target, useS3)
			if err != nil {
				return err
			}
			if err := dst.Write(cmd.Context(), data); err != nil {
				return err
			}
			st := a.Repo.Status()
			logger.Info("Data exported",
				logger.F("destination", dst.String()),
				logger.F("encrypted", encrypt))
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d client(s), %d project(s), %d payment(s) to %s\n",
				st.Clients, st.Projects, st.Payments, dst)
			return nil
		},
	}
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Seal the export with a passphrase")
	cmd.Flags().BoolVar(&useS3, "s3", false, "Write to the configured S3 bucket")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	var useS3, force bool
	cmd := &cobra.Command{
		Use:   "import [file | s3://bucket/key | -]",
		Short: "Replace all data with an export",
		Long: `Replace every client, project and payment with the contents of an export.
Sealed exports are detected and prompt for the passphrase. A malformed
export is rejected before anything changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			var data []byte
			source := args[0]
			if source == "-" {
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			} else {
				src, err := destination(cmd.Context(), a.Config, source, useS3)
				if err != nil {
					return err
				}
				if data, err = src.Read(cmd.Context()); err != nil {
					return err
				}
			}

			if backup.IsSealed(data) {
				pass, err := s.readPassphrase(cmd, "Passphrase: ")
				if err != nil {
					return err
				}
				if data, err = backup.Unseal(data, pass); err != nil {
					return err
				}
			}

			if !force && source != "-" {
				st := a.Repo.Status()
				if st.Clients+st.Projects+st.Payments > 0 &&
					!s.confirm(cmd, fmt.Sprintf("Replace %d client(s), %d project(s) and %d payment(s)?", st.Clients, st.Projects, st.Payments)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			err = a.Repo.Import(cmd.Context(), data)
			if err := settle(cmd, a, err); err != nil {
				return err
			}
			st := a.Repo.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d client(s), %d project(s), %d payment(s)\n",
				st.Clients, st.Projects, st.Payments)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useS3, "s3", false, "Read the key from the configured S3 bucket")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")
	return cmd
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hengadev/credx"
	s3bucket "github.com/hengadev/credx/providers/s3"
	"github.com/hengadev/credx/providers/sqlite"
)

type backupOptions struct {
	Bucket   string
	Prefix   string
	KMSKeyID string
	Output   string
}

func newBackupCmd(cli *CLI) *cobra.Command {
	var opts backupOptions

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the record database to S3 or a local file",
		Long: `Snapshot the record database to S3 or a local file.

The snapshot is a consistent copy of the SQLite database. Access keys stay
sealed under the master key, so a snapshot is useless without it. S3 objects
are written with SSE-KMS when --kms-key-id is set, SSE-S3 otherwise.`,
		Example: `  # Upload to s3://ops-backups/credx/credx-<timestamp>.db
  credx backup --bucket ops-backups --prefix credx

  # Write a local copy
  credx backup --output /var/backups/credx.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.Bucket == "") == (opts.Output == "") {
				return fmt.Errorf("%w: exactly one of --bucket or --output is required", credx.ErrInvalidConfiguration)
			}

			store, err := sqlite.Open(cmd.Context(), cli.cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if opts.Output != "" {
				if err := store.Snapshot(cmd.Context(), opts.Output); err != nil {
					return err
				}
				fmt.Fprintln(cli.Stdout, opts.Output)
				return nil
			}

			backup, err := cli.newBackup(cmd.Context(), s3bucket.Config{
				Region:   cli.cfg.Region,
				Bucket:   opts.Bucket,
				Prefix:   opts.Prefix,
				KMSKeyID: opts.KMSKeyID,
			})
			if err != nil {
				return err
			}

			dir, err := os.MkdirTemp("", "credx-backup-")
			if err != nil {
				return fmt.Errorf("create snapshot directory: %w", err)
			}
			defer os.RemoveAll(dir)

			snapshot := filepath.Join(dir, "snapshot.db")
			if err := store.Snapshot(cmd.Context(), snapshot); err != nil {
				return err
			}
			f, err := os.Open(snapshot)
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			defer f.Close()

			location, err := backup.Upload(cmd.Context(), backup.ObjectKey(), f)
			if err != nil {
				return err
			}

			cli.logger.Info("backup uploaded", zap.String("location", location))
			cli.metrics.IncrementCounter("credx.backup.uploaded", nil)
			fmt.Fprintln(cli.Stdout, location)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "S3 bucket to upload the snapshot to")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Key prefix inside the bucket")
	cmd.Flags().StringVar(&opts.KMSKeyID, "kms-key-id", "", "KMS key for SSE-KMS (default SSE-S3)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the snapshot to this local path instead")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rereminder/internal/database"
	"rereminder/internal/history"
)

const dateLayout = "2006-01-02"

// defaultExportFile does not name a period; the range comes from the flags.
const defaultExportFile = "rereminder_history.xlsx"

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Reminder history",
	}

	var out, since, until string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export fired reminders to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				return fmt.Errorf("history is disabled in config")
			}
			from, err := parseDate(since)
			if err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			to, err := parseDate(until)
			if err != nil {
				return fmt.Errorf("--until: %w", err)
			}
			if !to.IsZero() {
				// Inclusive end date.
				to = to.AddDate(0, 0, 1)
			}
			if out == "" {
				out = defaultExportFile
			}

			db, err := database.NewDB(a.cfg.Database.Path, &a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := history.Export(cmd.Context(), history.NewRepository(db), f, from, to, time.Local)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reminders written to %s\n", n, out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default "+defaultExportFile+")")
	export.Flags().StringVar(&since, "since", "", "first day to include (YYYY-MM-DD)")
	export.Flags().StringVar(&until, "until", "", "last day to include (YYYY-MM-DD)")
	cmd.AddCommand(export)

	var keepDays int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete history older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDB(a.cfg.Database.Path, &a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			retention := a.cfg.HistoryRetention()
			if keepDays > 0 {
				retention = time.Duration(keepDays) * 24 * time.Hour
			}
			n, err := history.NewRepository(db).Prune(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records deleted\n", n)
			return nil
		},
	}
	prune.Flags().IntVar(&keepDays, "keep-days", 0, "override history.retention_days")
	cmd.AddCommand(prune)

	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.Local)
}

func newBackupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a database snapshot now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDB(a.cfg.Database.Path, &a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := database.NewBackupService(db, a.backupConfig(), &a.logger)
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			svc.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", path)
			return nil
		},
	}
}

func (a *app) backupConfig() database.BackupConfig {
	return database.BackupConfig{
		Enabled:       a.cfg.Backup.Enabled,
		Dir:           a.cfg.Backup.Path,
		Interval:      a.cfg.BackupInterval(),
		RetentionDays: a.cfg.Backup.RetentionDays,
	}
}

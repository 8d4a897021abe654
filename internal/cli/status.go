package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a migration status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.migrator.Initialize(ctx); err != nil {
				return err
			}

			status, err := a.migrator.GetMigrationStatus(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Migration status at %s\n", status.CapturedAt.Format(time.RFC3339))
			fmt.Printf("Records:\n")
			fmt.Printf("  Total:   %d\n", status.Records.Total)
			fmt.Printf("  Moved:   %d\n", status.Records.Moved)
			fmt.Printf("  Unmoved: %d\n", status.Records.Unmoved)
			if status.Records.EarliestCreated != nil {
				fmt.Printf("  Earliest created: %s\n", status.Records.EarliestCreated.Format("2006-01-02"))
			}
			if status.Records.LatestCreated != nil {
				fmt.Printf("  Latest created:   %s\n", status.Records.LatestCreated.Format("2006-01-02"))
			}
			fmt.Printf("Storage:\n")
			fmt.Printf("  Unmoved files: %d (%d bytes)\n", status.Storage.UnmovedCount, status.Storage.UnmovedBytes)
			fmt.Printf("  Moved files:   %d (%d bytes)\n", status.Storage.MovedCount, status.Storage.MovedBytes)
			fmt.Printf("  Date dirs:     %d\n", status.Storage.DateDirCount)
			return nil
		},
	}
}

func newVerifyCommand() *cobra.Command {
	var sampleSize int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a sample of moved files for self-consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.migrator.Initialize(ctx); err != nil {
				return err
			}

			report, err := a.migrator.VerifyMigration(ctx, sampleSize)
			if err != nil {
				return err
			}

			fmt.Printf("Verification: checked=%d of %d moved, verified=%d failed=%d\n",
				report.TotalChecked, report.TotalMoved, report.Verified, report.Failed)
			for _, d := range report.Details {
				fmt.Printf("  %s\n", d)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d file(s) failed verification", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sampleSize, "sample-size", 100, "Number of moved files to check")
	return cmd
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove empty date directories from the new layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.migrator.Initialize(ctx); err != nil {
				return err
			}

			removed, err := a.migrator.Cleanup(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d empty date director(ies)\n", removed)
			return nil
		},
	}
}

func newTestConnectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check Record Store and Content Store reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.repo.TestConnection(ctx); err != nil {
				return fmt.Errorf("record store: %w", err)
			}
			fmt.Println("Record store: OK")
			if err := a.store.EnsureLayout(ctx); err != nil {
				return fmt.Errorf("content store: %w", err)
			}
			fmt.Println("Content store: OK")
			return nil
		},
	}
}

func newListFilesCommand() *cobra.Command {
	var state string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list-files",
		Short: "List tracked files by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "moved" && state != "unmoved" {
				return fmt.Errorf("--state must be moved or unmoved, got %q", state)
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}

			records, err := a.repo.ListByState(ctx, state == "moved", limit, offset)
			if err != nil {
				return err
			}

			fmt.Printf("%d %s file(s):\n", len(records), state)
			for i := range records {
				rec := &records[i]
				movedAt := "-"
				if rec.MovedAt != nil {
					movedAt = rec.MovedAt.Format(time.RFC3339)
				}
				fmt.Printf("  %s  created=%s  moved_at=%s  %s\n",
					rec.ID, rec.CreatedDate.Format("2006-01-02"), movedAt, rec.DisplayName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "unmoved", "File state to list (moved|unmoved)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	return cmd
}

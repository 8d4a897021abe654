package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnlt/filemigrator/internal/domain"
	"github.com/spf13/cobra"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM so a long
// migration can be interrupted between batches without corruption.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newMigrateCommand() *cobra.Command {
	var maxFiles int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate all unmoved files in batches",
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

			stats, err := a.migrator.MigrateAll(ctx, maxFiles)
			if stats != nil {
				printStats(stats)
			}
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d file(s) failed to migrate", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Maximum number of files to migrate (0 = unlimited)")
	return cmd
}

func newMigrateBatchCommand() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "migrate-batch",
		Short: "Migrate a single batch of unmoved files",
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

			size := batchSize
			if size == 0 {
				size = a.cfg.Migrator.BatchSize
			}

			processed, succeeded, failed, err := a.migrator.MigrateBatch(ctx, size)
			if err != nil {
				return err
			}
			fmt.Printf("Batch result: processed=%d succeeded=%d failed=%d\n", processed, succeeded, failed)
			if failed > 0 {
				return fmt.Errorf("%d file(s) failed to migrate", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Batch size (default from config)")
	return cmd
}

func newMigrateRangeCommand() *cobra.Command {
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:   "migrate-range",
		Short: "Migrate unmoved files created within a date range (inclusive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --start date: %w", err)
			}
			end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --end date: %w", err)
			}
			// Make the end bound inclusive for the whole day.
			end = end.Add(24*time.Hour - time.Nanosecond)

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.migrator.Initialize(ctx); err != nil {
				return err
			}

			stats, err := a.migrator.MigrateByDateRange(ctx, start, end)
			if stats != nil {
				printStats(stats)
			}
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d file(s) failed to migrate", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "End date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func printStats(stats *domain.MigrationStats) {
	fmt.Printf("Run %s\n", stats.RunID)
	fmt.Printf("  Processed: %d\n", stats.Processed)
	fmt.Printf("  Succeeded: %d\n", stats.Succeeded)
	fmt.Printf("  Failed:    %d\n", stats.Failed)
	fmt.Printf("  Batches:   %d\n", stats.BatchCount)
	fmt.Printf("  Duration:  %s\n", stats.Duration().Round(time.Millisecond))
	fmt.Printf("  Success:   %.1f%%\n", stats.SuccessRate())
	for _, fe := range stats.Errors {
		fmt.Printf("  error: %s [%s] %s\n", fe.FileID, fe.Kind, fe.Message)
	}
}

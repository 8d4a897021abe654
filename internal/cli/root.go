package cli

import (
	"fmt"

	"github.com/mnlt/filemigrator/internal/config"
	"github.com/mnlt/filemigrator/internal/contentstore"
	"github.com/mnlt/filemigrator/internal/events"
	"github.com/mnlt/filemigrator/internal/logger"
	"github.com/mnlt/filemigrator/internal/repository"
	"github.com/mnlt/filemigrator/internal/service"
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand builds the filemigrator command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "filemigrator",
		Short:        "Migrate files from a flat directory into a date-partitioned layout",
		Long:         "filemigrator relocates files tracked in a database table from a flat directory into a YYYYMMDD/<id> layout, keeping the table's moved flag consistent with storage.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(
		newMigrateCommand(),
		newMigrateBatchCommand(),
		newMigrateRangeCommand(),
		newStatusCommand(),
		newVerifyCommand(),
		newCleanupCommand(),
		newTestConnectionCommand(),
		newListFilesCommand(),
	)

	return rootCmd
}

// app bundles the wired dependencies every subcommand needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *repository.FileRepository
	store    contentstore.ContentStore
	migrator *service.Migrator
}

// newApp loads configuration and wires the stores, event sinks and the
// orchestrator.
func newApp() (*app, error) {
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.NewFileRepository(db)

	store, err := contentstore.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	sinks := events.MultiSink{events.NewLogSink(log)}
	if cfg.Events.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookSink(cfg.Events.WebhookURL, cfg.Events.WebhookTimeout, log))
	}

	migrator := service.NewMigrator(repo, store, sinks, log, service.Config{
		BatchSize:     cfg.Migrator.BatchSize,
		MaxRetries:    cfg.Migrator.MaxRetries,
		RetryDelay:    cfg.Migrator.RetryDelay,
		HashAlgorithm: cfg.Migrator.HashAlgorithm,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		store:    store,
		migrator: migrator,
	}, nil
}

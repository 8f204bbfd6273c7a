// Package cli wires the pipeline stages into one subcommand each. Every
// stage command prints its per-outcome counts and exits non-zero when the
// run failed, so cron and systemd timers can alert on it.
package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/pipeline"
	"github.com/PollyDrive/estate/internal/repository"
)

var (
	configPath   string
	profilesPath string
)

var rootCmd = &cobra.Command{
	Use:           "estate",
	Short:         "Rental listing pipeline: ingest, filter, classify, dedup, match, notify",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&profilesPath, "profiles", "config/profiles.yaml", "path to the chat profiles file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app holds everything a stage command needs. Built once per invocation.
type app struct {
	cfg      *config.Config
	profiles []models.ChatProfile
	db       *sqlx.DB
	store    *repository.Store
	logger   *zap.Logger
}

func newApp() (*app, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, profiles, err := config.Load(configPath, profilesPath)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &app{
		cfg:      cfg,
		profiles: profiles,
		db:       db,
		store:    repository.NewStore(db, logger),
		logger:   logger,
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

func printCounts(cmd *cobra.Command, c pipeline.Counts) {
	cmd.Printf("processed=%d passed=%d rejected=%d duplicates=%d deferred=%d archived=%d errors=%d\n",
		c.Processed, c.Passed, c.Rejected, c.Duplicates, c.Deferred, c.Archived, c.Errors)
}

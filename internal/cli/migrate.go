package cli

import (
	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return repository.MigrateDB(a.db, a.cfg.Database.MigrationsPath, a.logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := config.LoadDatabaseDSN()
			if err != nil {
				return err
			}
			log, err := newLogger(rootOpts, "")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Open(context.Background(), dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if len(args) == 1 && args[0] == "status" {
				return database.MigrationStatus(db.DB)
			}
			if err := database.Migrate(db.DB); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
	return cmd
}

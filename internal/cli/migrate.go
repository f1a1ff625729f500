package cli

import (
	"github.com/spf13/cobra"

	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/migrations"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	opts := migrations.Options{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply River and application database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return migrations.Run(cmd.Context(), cfg.DatabaseURL, opts, logger.NewLogger("migration"))
		},
	}

	cmd.Flags().StringVar(&opts.Direction, "direction", migrations.Up, "migration direction: up, down")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "number of migration steps (0 for all)")
	cmd.Flags().UintVar(&opts.Version, "version", 0, "target migration version")

	return cmd
}

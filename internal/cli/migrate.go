package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/issuedesk/issue-service/internal/app"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			logger, err := root.logger(cfg)
			if err != nil {
				return err
			}
			cfg.Postgres.RunMigrations = true

			store, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied (%s)\n", success("✓"), cfg.Store.Driver)
			return nil
		},
	}
}

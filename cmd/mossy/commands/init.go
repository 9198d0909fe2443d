package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the concept database",
		Long: `Create the concept database, or bring the schema of an existing one up
to date. The database path comes from --database or the settings file.`,
		Example: `  # Create ./mossy.db
  mossy init

  # Create a database elsewhere
  mossy init --database /var/lib/mossy/go.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, flags, version, nil)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			env.logger.WithField("database", env.settings.Database.Path).Info("Initializing database")

			store, err := env.openStore(false)
			if err != nil {
				return err
			}
			if err := store.HealthCheck(env.ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Initialized SQLite database: %s\n", store.Path())
			return nil
		},
	}

	return cmd
}

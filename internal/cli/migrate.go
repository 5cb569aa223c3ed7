package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/db"
	"github.com/example/forge/internal/wire"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the forge database schema up to date",
		Long: `Open the database, apply pending migrations and report the schema version.

Examples:
  forge migrate
  forge migrate --print-schema > schema.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				fmt.Print(db.GetSchemaSQL())
				return nil
			}

			ctx := NewContext()
			app, err := wire.Get(ctx, configPath)
			if err != nil {
				return fmt.Errorf("failed to open forge: %w", err)
			}
			defer app.Close(ctx) //nolint:errcheck

			current, err := db.CurrentVersion(ctx, app.DB)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Database %s at schema version %d (latest %d)\n",
				app.Config.DatabasePath, current, db.LatestVersion())
			return nil
		},
	}

	cmd.Flags().BoolVar(&printSchema, "print-schema", false, "Print the schema SQL instead of migrating")
	return cmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/config"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Point the current directory at a forge project",
		Long: `Write .forge/config.json in the current directory so later commands
default to the given project and actor.

Examples:
  forge init --project 3f2c... --actor alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectFlag == "" {
				return fmt.Errorf("--project is required")
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			local := &config.Local{
				Version:   "1",
				ProjectID: projectFlag,
				Actor:     globalActorID,
				ServerURL: serverURL,
			}
			if err := config.SaveLocal(cwd, local); err != nil {
				return err
			}

			fmt.Printf("✓ Wrote .forge/config.json (project %s)\n", local.ProjectID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "forge API URL used by integrations")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/cli"
	"github.com/example/forge/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "forge",
		Short:   "forge - planning and build orchestration",
		Version: version.String(),
		Long: `forge keeps a project's story map (workflows, activities, steps, cards),
applies planning action batches to it, and orchestrates agent build runs
gated by required checks and approvals.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.DetectAndStoreActor()
		},
	}
	cli.BindGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	// Planning
	rootCmd.AddCommand(cli.ProjectCmd())
	rootCmd.AddCommand(cli.SnapshotCmd())
	rootCmd.AddCommand(cli.ActionsCmd())

	// Orchestration
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.AssignmentCmd())
	rootCmd.AddCommand(cli.CheckCmd())
	rootCmd.AddCommand(cli.GatesCmd())
	rootCmd.AddCommand(cli.ApprovalCmd())
	rootCmd.AddCommand(cli.PRCmd())
	rootCmd.AddCommand(cli.RepoCmd())
	rootCmd.AddCommand(cli.AuditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

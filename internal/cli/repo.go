package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Work with a project's managed clone",
}

var repoCloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone the project's repository unless a clone exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		projectID, err := resolveProject()
		if err != nil {
			return err
		}
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		project, err := svc.Projects.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		result := svc.Repositories.EnsureClone(ctx, project.ID, project.RepoURL)
		if !result.Success {
			return fmt.Errorf("clone failed: %s", result.Error)
		}
		if result.Reused {
			fmt.Printf("✓ Clone already present at %s\n", result.ClonePath)
			return nil
		}
		fmt.Printf("✓ Cloned into %s\n", result.ClonePath)
		return nil
	},
}

var repoChangedCmd = &cobra.Command{
	Use:   "changed [run-id]",
	Short: "List files changed on a run's feature branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		projectID, err := resolveProject()
		if err != nil {
			return err
		}
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		branch, _ := cmd.Flags().GetString("branch")
		result, err := svc.Repositories.RunChangedFiles(ctx, projectID, args[0], branch)
		if err != nil {
			return fmt.Errorf("failed to diff run: %w", err)
		}
		if !result.Success {
			return fmt.Errorf("diff failed: %s", result.Error)
		}
		if jsonOutput {
			return printJSON(os.Stdout, result.Files)
		}
		if len(result.Files) == 0 {
			fmt.Println("No changes.")
			return nil
		}
		for _, f := range result.Files {
			fmt.Printf("%-10s %s\n", f.Change, f.Path)
		}
		return nil
	},
}

var repoPushCmd = &cobra.Command{
	Use:   "push [run-id]",
	Short: "Push a run's feature branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		projectID, err := resolveProject()
		if err != nil {
			return err
		}
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		branch, _ := cmd.Flags().GetString("branch")
		result, err := svc.Repositories.PushRunBranch(ctx, projectID, args[0], branch)
		if err != nil {
			return fmt.Errorf("failed to push: %w", err)
		}
		if !result.Success {
			if result.FailureKind != "" {
				return fmt.Errorf("push failed (%s): %s", result.FailureKind, result.Error)
			}
			return fmt.Errorf("push refused: %s", result.Error)
		}
		fmt.Println("✓ Pushed")
		return nil
	},
}

func init() {
	repoChangedCmd.Flags().String("branch", "", "Feature branch (defaults to the run's first assignment)")
	repoPushCmd.Flags().String("branch", "", "Branch (defaults to the run's first assignment)")

	repoCmd.AddCommand(repoCloneCmd)
	repoCmd.AddCommand(repoChangedCmd)
	repoCmd.AddCommand(repoPushCmd)
}

// RepoCmd returns the repo command
func RepoCmd() *cobra.Command {
	return repoCmd
}

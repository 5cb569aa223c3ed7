package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage orchestration runs",
	Long:  "Create, inspect and transition build runs of the selected project",
}

var runCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a queued run for a workflow or a card",
	Long: `Examples:
  forge run create --card 9b1e...
  forge run create --workflow 41aa... --base develop`,
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
		workflowID, _ := cmd.Flags().GetString("workflow")
		cardID, _ := cmd.Flags().GetString("card")
		base, _ := cmd.Flags().GetString("base")
		trigger, _ := cmd.Flags().GetString("trigger")

		scope := "workflow"
		if cardID != "" {
			scope = "card"
		}
		run, err := svc.Runs.CreateRun(ctx, primary.CreateRunRequest{
			ProjectID:   projectID,
			Scope:       scope,
			WorkflowID:  workflowID,
			CardID:      cardID,
			TriggerType: trigger,
			BaseBranch:  base,
		})
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}

		fmt.Printf("✓ Created run %s [%s] on %s\n", colorID(run.ID), colorStatus(run.Status), run.BaseBranch)
		fmt.Printf("  Required checks: %s\n", strings.Join(run.SystemPolicySnapshot.RequiredChecks, ", "))
		return nil
	},
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
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
		scope, _ := cmd.Flags().GetString("scope")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := svc.Runs.ListRuns(ctx, primary.RunFilters{
			ProjectID: projectID,
			Scope:     scope,
			Status:    status,
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, runs)
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := newTable("ID", "SCOPE", "TARGET", "STATUS", "BASE", "CREATED")
		for _, r := range runs {
			target := r.WorkflowID
			if r.Scope == "card" {
				target = r.CardID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Scope, shortID(target), colorStatus(r.Status), r.BaseBranch, r.CreatedAt)
		}
		return w.Flush()
	},
}

var runShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show run details",
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
		run, err := svc.Runs.GetRun(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("run not found: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, run)
		}

		fmt.Printf("Run: %s\n", colorID(run.ID))
		fmt.Printf("Status: %s\n", colorStatus(run.Status))
		fmt.Printf("Scope: %s\n", run.Scope)
		if run.WorkflowID != "" {
			fmt.Printf("Workflow: %s\n", run.WorkflowID)
		}
		if run.CardID != "" {
			fmt.Printf("Card: %s\n", run.CardID)
		}
		fmt.Printf("Trigger: %s by %s\n", run.TriggerType, run.InitiatedBy)
		fmt.Printf("Base branch: %s\n", run.BaseBranch)
		fmt.Printf("Required checks: %s\n", strings.Join(run.SystemPolicySnapshot.RequiredChecks, ", "))
		fmt.Printf("Forbidden paths: %s\n", strings.Join(run.SystemPolicySnapshot.ForbiddenPaths, ", "))
		if run.StartedAt != "" {
			fmt.Printf("Started: %s\n", run.StartedAt)
		}
		if run.EndedAt != "" {
			fmt.Printf("Ended: %s\n", run.EndedAt)
		}
		fmt.Printf("Created: %s\n", run.CreatedAt)
		return nil
	},
}

var runStatusCmd = &cobra.Command{
	Use:   "status [run-id] [status]",
	Short: "Transition a run (running, blocked, failed, completed, cancelled, queued)",
	Args:  cobra.ExactArgs(2),
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
		run, err := svc.Runs.TransitionRun(ctx, primary.TransitionRunRequest{
			ProjectID: projectID,
			RunID:     args[0],
			Status:    args[1],
			Actor:     globalActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to transition run: %w", err)
		}
		fmt.Printf("✓ Run %s is now %s\n", colorID(run.ID), colorStatus(run.Status))
		return nil
	},
}

func init() {
	runCreateCmd.Flags().String("workflow", "", "Workflow ID (workflow scope)")
	runCreateCmd.Flags().String("card", "", "Card ID (card scope)")
	runCreateCmd.Flags().String("base", "", "Base branch (defaults to the project's default branch)")
	runCreateCmd.Flags().String("trigger", "manual", "Trigger type (manual|card|workflow)")

	runListCmd.Flags().String("scope", "", "Filter by scope (workflow|card)")
	runListCmd.Flags().String("status", "", "Filter by status")
	runListCmd.Flags().Int("limit", 0, "Maximum number of runs")

	runCmd.AddCommand(runCreateCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runShowCmd)
	runCmd.AddCommand(runStatusCmd)
}

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	return runCmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Record and list run checks",
}

var checkRecordCmd = &cobra.Command{
	Use:   "record [run-id] [check-type] [status]",
	Short: "Record a check result (passed, failed, skipped)",
	Args:  cobra.ExactArgs(3),
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
		output, _ := cmd.Flags().GetString("output")
		check, err := svc.Checks.RecordCheck(ctx, primary.RecordCheckRequest{
			ProjectID: projectID,
			RunID:     args[0],
			CheckType: args[1],
			Status:    args[2],
			Output:    output,
		})
		if err != nil {
			return fmt.Errorf("failed to record check: %w", err)
		}
		fmt.Printf("✓ Recorded %s %s\n", check.CheckType, colorStatus(check.Status))
		return nil
	},
}

var checkListCmd = &cobra.Command{
	Use:   "list [run-id]",
	Short: "List a run's checks in recording order",
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
		checks, err := svc.Checks.ListChecks(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("failed to list checks: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, checks)
		}
		if len(checks) == 0 {
			fmt.Println("No checks recorded.")
			return nil
		}
		w := newTable("TYPE", "STATUS", "RECORDED")
		for _, c := range checks {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.CheckType, colorStatus(c.Status), c.CreatedAt)
		}
		return w.Flush()
	},
}

var gatesCmd = &cobra.Command{
	Use:   "gates [run-id]",
	Short: "Evaluate a run's approval gate",
	Long: `Compare the run's frozen required checks with the latest recorded result
of each check type. Exits non-zero when the gate does not pass.`,
	Args: cobra.ExactArgs(1),
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
		result, err := svc.Checks.EvaluateGates(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("failed to evaluate gates: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, result)
		}

		if result.CanApprove {
			color.New(color.FgHiGreen).Println("✓ Gate passes")
			return nil
		}
		color.New(color.FgRed).Println("✗ Gate blocked")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("%s", result.Summary())
	},
}

func init() {
	checkRecordCmd.Flags().String("output", "", "Check output")

	checkCmd.AddCommand(checkRecordCmd)
	checkCmd.AddCommand(checkListCmd)
}

// CheckCmd returns the check command
func CheckCmd() *cobra.Command {
	return checkCmd
}

// GatesCmd returns the gates command
func GatesCmd() *cobra.Command {
	return gatesCmd
}

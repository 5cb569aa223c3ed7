package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Manage card assignments",
	Long:  "Create, dispatch and resume the agent assignments of a run",
}

var assignmentCreateCmd = &cobra.Command{
	Use:   "create [run-id]",
	Short: "Create a queued assignment",
	Long: `Examples:
  forge assignment create 5d1c... --card 9b1e... --role coder \
    --branch feature/product-list --allow internal/catalog/`,
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
		cardID, _ := cmd.Flags().GetString("card")
		role, _ := cmd.Flags().GetString("role")
		profile, _ := cmd.Flags().GetString("profile")
		branch, _ := cmd.Flags().GetString("branch")
		worktree, _ := cmd.Flags().GetString("worktree")
		allowed, _ := cmd.Flags().GetStringSlice("allow")
		forbidden, _ := cmd.Flags().GetStringSlice("forbid")
		memory, _ := cmd.Flags().GetStringSlice("memory")

		resp, err := svc.Assignments.CreateAssignment(ctx, primary.CreateAssignmentRequest{
			ProjectID:      projectID,
			RunID:          args[0],
			CardID:         cardID,
			AgentRole:      role,
			AgentProfile:   profile,
			FeatureBranch:  branch,
			WorktreePath:   worktree,
			AllowedPaths:   allowed,
			ForbiddenPaths: forbidden,
			MemoryRefs:     memory,
		})
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		if !resp.Success {
			fmt.Println("✗ Assignment rejected:")
			for _, msg := range resp.ValidationErrors {
				fmt.Printf("  - %s\n", msg)
			}
			return fmt.Errorf("assignment validation failed")
		}
		fmt.Printf("✓ Created assignment %s\n", colorID(resp.AssignmentID))
		return nil
	},
}

var assignmentListCmd = &cobra.Command{
	Use:   "list [run-id]",
	Short: "List a run's assignments",
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
		assignments, err := svc.Assignments.ListAssignments(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, assignments)
		}
		if len(assignments) == 0 {
			fmt.Println("No assignments found.")
			return nil
		}

		w := newTable("ID", "CARD", "ROLE", "BRANCH", "STATUS", "ERROR")
		for _, a := range assignments {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, shortID(a.CardID), a.AgentRole, a.FeatureBranch, colorStatus(a.Status), a.LastError)
		}
		return w.Flush()
	},
}

var assignmentShowCmd = &cobra.Command{
	Use:   "show [assignment-id]",
	Short: "Show assignment details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		a, err := svc.Assignments.GetAssignment(ctx, args[0])
		if err != nil {
			return fmt.Errorf("assignment not found: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, a)
		}

		fmt.Printf("Assignment: %s\n", colorID(a.ID))
		fmt.Printf("Run: %s\n", a.RunID)
		fmt.Printf("Card: %s\n", a.CardID)
		fmt.Printf("Status: %s\n", colorStatus(a.Status))
		fmt.Printf("Role: %s\n", a.AgentRole)
		if a.AgentProfile != "" {
			fmt.Printf("Profile: %s\n", a.AgentProfile)
		}
		fmt.Printf("Branch: %s\n", a.FeatureBranch)
		fmt.Printf("Allowed: %s\n", strings.Join(a.AllowedPaths, ", "))
		fmt.Printf("Forbidden: %s\n", strings.Join(a.ForbiddenPaths, ", "))
		if a.ExecutionID != "" {
			fmt.Printf("Execution: %s\n", a.ExecutionID)
		}
		if a.LastError != "" {
			fmt.Printf("Last error: %s\n", a.LastError)
		}
		return nil
	},
}

var assignmentDispatchCmd = &cobra.Command{
	Use:   "dispatch [assignment-id]",
	Short: "Send a queued or blocked assignment to the execution client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		resp, err := svc.Assignments.DispatchAssignment(ctx, primary.DispatchAssignmentRequest{
			AssignmentID: args[0],
			Actor:        globalActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to dispatch assignment: %w", err)
		}
		if !resp.Success {
			return fmt.Errorf("dispatch failed: %s", resp.Error)
		}
		fmt.Printf("✓ Dispatched %s (execution %s)\n", colorID(args[0]), resp.ExecutionID)
		return nil
	},
}

var assignmentResumeCmd = &cobra.Command{
	Use:   "resume [card-id]",
	Short: "Resume a card's blocked assignment",
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
		resp, err := svc.Assignments.ResumeBlockedAssignment(ctx, primary.ResumeBlockedRequest{
			ProjectID: projectID,
			CardID:    args[0],
			Actor:     globalActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to resume assignment: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, resp)
		}
		if !resp.Success {
			msg := resp.Message
			if msg == "" {
				msg = resp.Error
			}
			return fmt.Errorf("%s: %s", resp.OutcomeType, msg)
		}
		fmt.Printf("✓ Resumed assignment %s of run %s (execution %s)\n",
			colorID(resp.AssignmentID), resp.RunID, resp.ExecutionID)
		return nil
	},
}

var assignmentReportCmd = &cobra.Command{
	Use:   "report [assignment-id] [status]",
	Short: "Record an execution status (running, completed, failed, blocked)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		detail, _ := cmd.Flags().GetString("detail")
		a, err := svc.Assignments.ReportExecutionStatus(ctx, primary.ReportExecutionStatusRequest{
			AssignmentID: args[0],
			Status:       args[1],
			Detail:       detail,
		})
		if err != nil {
			return fmt.Errorf("failed to report status: %w", err)
		}
		fmt.Printf("✓ Assignment %s is now %s\n", colorID(a.ID), colorStatus(a.Status))
		return nil
	},
}

func init() {
	assignmentCreateCmd.Flags().String("card", "", "Card ID")
	assignmentCreateCmd.Flags().String("role", "", "Agent role")
	assignmentCreateCmd.Flags().String("profile", "", "Agent profile")
	assignmentCreateCmd.Flags().String("branch", "", "Feature branch")
	assignmentCreateCmd.Flags().String("worktree", "", "Worktree path")
	assignmentCreateCmd.Flags().StringSlice("allow", nil, "Allowed path prefixes")
	assignmentCreateCmd.Flags().StringSlice("forbid", nil, "Additional forbidden path prefixes")
	assignmentCreateCmd.Flags().StringSlice("memory", nil, "Memory references")
	_ = assignmentCreateCmd.MarkFlagRequired("card")
	_ = assignmentCreateCmd.MarkFlagRequired("branch")

	assignmentReportCmd.Flags().String("detail", "", "Failure or block detail")

	assignmentCmd.AddCommand(assignmentCreateCmd)
	assignmentCmd.AddCommand(assignmentListCmd)
	assignmentCmd.AddCommand(assignmentShowCmd)
	assignmentCmd.AddCommand(assignmentDispatchCmd)
	assignmentCmd.AddCommand(assignmentResumeCmd)
	assignmentCmd.AddCommand(assignmentReportCmd)
}

// AssignmentCmd returns the assignment command
func AssignmentCmd() *cobra.Command {
	return assignmentCmd
}

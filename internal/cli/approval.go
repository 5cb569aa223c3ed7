package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

var approvalCmd = &cobra.Command{
	Use:   "approval",
	Short: "Manage approvals",
	Long:  "Request, resolve and list the approval requests of a run",
}

var approvalRequestCmd = &cobra.Command{
	Use:   "request [run-id] [approval-type]",
	Short: "Open a pending approval request",
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
		approval, err := svc.Approvals.RequestApproval(ctx, primary.RequestApprovalRequest{
			ProjectID:    projectID,
			RunID:        args[0],
			ApprovalType: args[1],
			RequestedBy:  globalActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to request approval: %w", err)
		}
		fmt.Printf("✓ Requested %s approval %s\n", approval.ApprovalType, colorID(approval.ID))
		return nil
	},
}

func resolveCmd(use, status, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [run-id] [approval-id]",
		Short: short,
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
			notes, _ := cmd.Flags().GetString("notes")
			approval, err := svc.Approvals.ResolveApproval(ctx, primary.ResolveApprovalRequest{
				ProjectID:  projectID,
				RunID:      args[0],
				ApprovalID: args[1],
				Status:     status,
				ResolvedBy: globalActorID,
				Notes:      notes,
			})
			if err != nil {
				return fmt.Errorf("failed to %s approval: %w", use, err)
			}
			fmt.Printf("✓ Approval %s %s\n", colorID(approval.ID), colorStatus(approval.Status))
			return nil
		},
	}
	cmd.Flags().String("notes", "", "Resolution notes")
	return cmd
}

var approvalListCmd = &cobra.Command{
	Use:   "list [run-id]",
	Short: "List a run's approvals",
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
		approvals, err := svc.Approvals.ListApprovals(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, approvals)
		}
		if len(approvals) == 0 {
			fmt.Println("No approvals found.")
			return nil
		}

		w := newTable("ID", "TYPE", "REQUESTED BY", "STATUS", "RESOLVED BY", "CREATED")
		for _, item := range approvals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.ID,
				item.ApprovalType,
				item.RequestedBy,
				colorStatus(item.Status),
				item.ResolvedBy,
				item.CreatedAt,
			)
		}
		return w.Flush()
	},
}

func init() {
	approvalCmd.AddCommand(approvalRequestCmd)
	approvalCmd.AddCommand(resolveCmd("approve", "approved", "Approve a pending request (requires the gate to pass)"))
	approvalCmd.AddCommand(resolveCmd("reject", "rejected", "Reject a pending request"))
	approvalCmd.AddCommand(approvalListCmd)
}

// ApprovalCmd returns the approval command
func ApprovalCmd() *cobra.Command {
	return approvalCmd
}

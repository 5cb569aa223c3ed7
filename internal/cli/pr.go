package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Manage pull request candidates",
	Long:  "Draft, open, merge and close the PR candidates of a run",
}

var prCreateCmd = &cobra.Command{
	Use:   "create [run-id]",
	Short: "Create a draft PR candidate",
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
		head, _ := cmd.Flags().GetString("head")
		base, _ := cmd.Flags().GetString("base")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")

		pr, err := svc.PRCandidates.CreatePRCandidate(ctx, primary.CreatePRCandidateRequest{
			ProjectID:   projectID,
			RunID:       args[0],
			BaseBranch:  base,
			HeadBranch:  head,
			Title:       title,
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("failed to create PR candidate: %w", err)
		}
		fmt.Printf("✓ Created PR candidate %s: %s → %s\n", colorID(pr.ID), pr.HeadBranch, pr.BaseBranch)
		return nil
	},
}

type prTransition func(context.Context, primary.PRCandidateRef) (*primary.PRCandidate, error)

func prTransitionCmd(use, short string, pick func(primary.PRCandidateService) prTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [run-id] [pr-id]",
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
			pr, err := pick(svc.PRCandidates)(ctx, primary.PRCandidateRef{
				ProjectID: projectID,
				RunID:     args[0],
				PRID:      args[1],
			})
			if err != nil {
				return fmt.Errorf("failed to %s PR candidate: %w", use, err)
			}
			fmt.Printf("✓ PR candidate %s is %s\n", colorID(pr.ID), colorStatus(pr.Status))
			return nil
		},
	}
}

var prURLCmd = &cobra.Command{
	Use:   "url [run-id] [pr-id] [url]",
	Short: "Record the URL of the opened pull request",
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
		pr, err := svc.PRCandidates.UpdatePRURL(ctx, primary.PRCandidateRef{
			ProjectID: projectID,
			RunID:     args[0],
			PRID:      args[1],
		}, args[2])
		if err != nil {
			return fmt.Errorf("failed to update PR URL: %w", err)
		}
		fmt.Printf("✓ PR candidate %s → %s\n", colorID(pr.ID), pr.PRURL)
		return nil
	},
}

var prListCmd = &cobra.Command{
	Use:   "list [run-id]",
	Short: "List a run's PR candidates",
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
		prs, err := svc.PRCandidates.ListPRCandidates(ctx, projectID, args[0])
		if err != nil {
			return fmt.Errorf("failed to list PR candidates: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, prs)
		}
		if len(prs) == 0 {
			fmt.Println("No PR candidates found.")
			return nil
		}

		w := newTable("ID", "HEAD", "BASE", "STATUS", "TITLE", "URL")
		for _, pr := range prs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				pr.ID, pr.HeadBranch, pr.BaseBranch, colorStatus(pr.Status), pr.Title, pr.PRURL)
		}
		return w.Flush()
	},
}

func init() {
	prCreateCmd.Flags().String("head", "", "Head (feature) branch")
	prCreateCmd.Flags().String("base", "", "Base branch (defaults to the run's base branch)")
	prCreateCmd.Flags().String("title", "", "Title")
	prCreateCmd.Flags().String("description", "", "Description")
	_ = prCreateCmd.MarkFlagRequired("head")
	_ = prCreateCmd.MarkFlagRequired("title")

	prCmd.AddCommand(prCreateCmd)
	prCmd.AddCommand(prTransitionCmd("open", "Open a draft candidate (requires the gate to pass)",
		func(s primary.PRCandidateService) prTransition { return s.OpenPRCandidate }))
	prCmd.AddCommand(prTransitionCmd("merge", "Mark an open candidate merged",
		func(s primary.PRCandidateService) prTransition { return s.MergePRCandidate }))
	prCmd.AddCommand(prTransitionCmd("close", "Close a draft or open candidate",
		func(s primary.PRCandidateService) prTransition { return s.ClosePRCandidate }))
	prCmd.AddCommand(prURLCmd)
	prCmd.AddCommand(prListCmd)
}

// PRCmd returns the pr command
func PRCmd() *cobra.Command {
	return prCmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/primary"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list and inspect forge projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		repoURL, _ := cmd.Flags().GetString("repo")
		branch, _ := cmd.Flags().GetString("default-branch")
		id, _ := cmd.Flags().GetString("id")

		project, err := svc.Projects.CreateProject(ctx, primary.CreateProjectRequest{
			ID:            id,
			Name:          args[0],
			RepoURL:       repoURL,
			DefaultBranch: branch,
		})
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		fmt.Printf("✓ Created project %s: %s\n", colorID(project.ID), project.Name)
		if project.RepoURL != "" {
			fmt.Printf("  Repo: %s (%s)\n", project.RepoURL, project.DefaultBranch)
		}
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		projects, err := svc.Projects.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		w := newTable("ID", "NAME", "REPO", "BRANCH", "CREATED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.RepoURL, p.DefaultBranch, p.CreatedAt)
		}
		return w.Flush()
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show a project's planning tree",
	Long: `Print the workflow > activity > step > card hierarchy of the selected project.
Use --json for the full snapshot including knowledge items and planned files.`,
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
		state, err := svc.Snapshots.FetchSnapshot(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to fetch snapshot: %w", err)
		}
		if state == nil {
			return fmt.Errorf("project %s not found", projectID)
		}
		if jsonOutput {
			return printJSON(os.Stdout, state)
		}
		printTree(state)
		return nil
	},
}

func printTree(state *planning.ProjectState) {
	fmt.Printf("%s %s\n", colorID(state.Project.ID), state.Project.Name)
	if len(state.Workflows) == 0 {
		fmt.Println("  (no workflows)")
	}
	for _, wf := range state.Workflows {
		fmt.Printf("├── %s %s\n", colorID(shortID(wf.ID)), wf.Title)
		for _, a := range wf.Activities {
			fmt.Printf("│   ├── %s %s\n", colorID(shortID(a.ID)), a.Title)
			printCards("│   │   ", a.Cards)
			for _, st := range a.Steps {
				fmt.Printf("│   │   ├── %s %s\n", colorID(shortID(st.ID)), st.Title)
				printCards("│   │   │   ", st.Cards)
			}
		}
	}
}

func printCards(indent string, cards []*planning.Card) {
	for _, c := range cards {
		fmt.Printf("%s└── %s %s [%s]\n", indent, colorID(shortID(c.ID)), c.Title, colorStatus(c.Status))
	}
}

func init() {
	projectCreateCmd.Flags().String("repo", "", "Repository URL")
	projectCreateCmd.Flags().String("default-branch", "", "Default branch (main when empty)")
	projectCreateCmd.Flags().String("id", "", "Explicit project ID (generated when empty)")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
}

// ProjectCmd returns the project command
func ProjectCmd() *cobra.Command {
	return projectCmd
}

// SnapshotCmd returns the snapshot command
func SnapshotCmd() *cobra.Command {
	return snapshotCmd
}

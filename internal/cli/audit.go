package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/ports/primary"
)

// AuditCmd returns the audit command
func AuditCmd() *cobra.Command {
	var (
		entityType string
		entityID   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Long: `Examples:
  forge audit --limit 20
  forge audit --entity-type run --entity-id 5d1c...`,
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
			entries, err := svc.Audit.ListAuditEntries(ctx, primary.AuditFilters{
				ProjectID:  projectID,
				EntityType: entityType,
				EntityID:   entityID,
				Limit:      limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list audit entries: %w", err)
			}
			if jsonOutput {
				return printJSON(os.Stdout, entries)
			}
			if len(entries) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}

			w := newTable("WHEN", "ACTOR", "ENTITY", "ID", "ACTION", "DETAIL")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt, e.Actor, e.EntityType, shortID(e.EntityID), e.Action, e.Detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Filter by entity ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	return cmd
}

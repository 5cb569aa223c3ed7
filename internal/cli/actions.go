package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/primary"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Apply or preview planning action batches",
	Long: `Planning actions are read as JSON from --file (or stdin with "-"), either a
bare array of actions or an object with an "actions" array.

Examples:
  forge actions preview -f batch.json
  cat batch.json | forge actions apply -f -`,
}

var actionsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Validate and apply a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		req, err := actionRequest(cmd)
		if err != nil {
			return err
		}
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		resp, err := svc.Actions.ApplyActionBatch(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to apply actions: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, resp)
		}

		printResults(resp.Results)
		fmt.Printf("\n%d of %d actions applied\n", resp.Applied, len(resp.Results))
		return nil
	},
}

var actionsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Predict the outcome of a batch without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		req, err := actionRequest(cmd)
		if err != nil {
			return err
		}
		svc, err := services(ctx)
		if err != nil {
			return err
		}
		resp, err := svc.Actions.PreviewActionBatch(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to preview actions: %w", err)
		}
		if jsonOutput {
			return printJSON(os.Stdout, resp)
		}

		for _, p := range resp.Previews {
			fmt.Printf("%s %-22s %s\n", colorStatus(string(p.ValidationStatus)), p.ActionType, p.Summary)
		}
		fmt.Printf("\n%s\n", resp.Summary)
		return nil
	},
}

func actionRequest(cmd *cobra.Command) (primary.ApplyActionsRequest, error) {
	projectID, err := resolveProject()
	if err != nil {
		return primary.ApplyActionsRequest{}, err
	}
	path, _ := cmd.Flags().GetString("file")

	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return primary.ApplyActionsRequest{}, fmt.Errorf("failed to open actions file: %w", err)
		}
		defer f.Close()
		in = f
	}

	actions, err := decodeActions(in)
	if err != nil {
		return primary.ApplyActionsRequest{}, err
	}
	return primary.ApplyActionsRequest{ProjectID: projectID, Actions: actions, Actor: globalActorID}, nil
}

// decodeActions accepts a bare array or an {"actions": [...]} envelope.
func decodeActions(in io.Reader) ([]planning.Action, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}

	var actions []planning.Action
	if err := json.Unmarshal(raw, &actions); err == nil {
		return actions, nil
	}
	var envelope struct {
		Actions []planning.Action `json:"actions"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}
	if envelope.Actions == nil {
		return nil, fmt.Errorf("failed to parse actions: expected an array or an object with an actions array")
	}
	return envelope.Actions, nil
}

func printResults(results []planning.Result) {
	w := newTable("ACTION", "TYPE", "STATUS", "CREATED", "REASON")
	for _, r := range results {
		created := ""
		if len(r.CreatedIDs) > 0 {
			created = r.CreatedIDs[0]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ActionID), r.ActionType, colorStatus(string(r.ValidationStatus)), created, r.Reason)
	}
	w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{actionsApplyCmd, actionsPreviewCmd} {
		c.Flags().StringP("file", "f", "-", "JSON file with the action batch (- for stdin)")
		actionsCmd.AddCommand(c)
	}
}

// ActionsCmd returns the actions command
func ActionsCmd() *cobra.Command {
	return actionsCmd
}

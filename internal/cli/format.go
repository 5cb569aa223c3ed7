package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var jsonOutput bool

func newTable(header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(dashes, "\t"))
	return w
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// colorStatus renders a run, assignment, check, approval or PR status.
func colorStatus(status string) string {
	switch status {
	case "completed", "passed", "approved", "merged", "accepted", "production":
		return color.New(color.FgHiGreen).Sprint(status)
	case "running", "dispatched", "open", "active":
		return color.New(color.FgHiBlue).Sprint(status)
	case "blocked", "pending", "skipped", "questions", "review":
		return color.New(color.FgYellow).Sprint(status)
	case "failed", "rejected", "cancelled":
		return color.New(color.FgRed).Sprint(status)
	case "queued", "draft", "closed", "todo":
		return color.New(color.FgHiBlack).Sprint(status)
	default:
		return status
	}
}

func colorID(id string) string {
	return color.New(color.FgCyan).Sprint(id)
}

// shortID trims uuids for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

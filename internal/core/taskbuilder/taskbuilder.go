// Package taskbuilder turns a dispatch payload into the natural-language task
// and structured context handed to a coding agent.
// This is part of the Functional Core - no I/O, only pure functions.
package taskbuilder

import (
	"fmt"
	"strings"
)

// PlannedFile is the part of a planned file an agent needs.
type PlannedFile struct {
	LogicalFileName string `json:"logical_file_name"`
	Action          string `json:"action"`
	ArtifactKind    string `json:"artifact_kind"`
	ModuleHint      string `json:"module_hint,omitempty"`
	IntentSummary   string `json:"intent_summary,omitempty"`
	ContractNotes   string `json:"contract_notes,omitempty"`
}

// Payload is everything known about an assignment at dispatch time.
type Payload struct {
	RunID              string        `json:"run_id"`
	AssignmentID       string        `json:"assignment_id"`
	CardID             string        `json:"card_id"`
	CardTitle          string        `json:"card_title"`
	CardDescription    string        `json:"card_description,omitempty"`
	AgentRole          string        `json:"agent_role"`
	FeatureBranch      string        `json:"feature_branch"`
	BaseBranch         string        `json:"base_branch"`
	WorktreePath       string        `json:"worktree_path,omitempty"`
	AllowedPaths       []string      `json:"allowed_paths"`
	ForbiddenPaths     []string      `json:"forbidden_paths"`
	AcceptanceCriteria []string      `json:"acceptance_criteria"`
	MemoryRefs         []string      `json:"memory_refs"`
	PlannedFiles       []PlannedFile `json:"planned_files"`
}

// Context is the structured bundle echoed to the execution client.
type Context struct {
	PlannedFiles       []PlannedFile `json:"plannedFiles"`
	AllowedPaths       []string      `json:"allowedPaths"`
	ForbiddenPaths     []string      `json:"forbiddenPaths"`
	AcceptanceCriteria []string      `json:"acceptanceCriteria"`
	MemoryRefs         []string      `json:"memoryRefs"`
}

// Task is the builder's output.
type Task struct {
	TaskDescription string  `json:"taskDescription"`
	Context         Context `json:"context"`
}

// BuildTaskFromPayload renders the task description and context. Every literal
// value in the payload's branch, path, criteria and memory fields appears
// verbatim in the description.
func BuildTaskFromPayload(p Payload) Task {
	var b strings.Builder

	title := p.CardTitle
	if title == "" {
		title = p.CardID
	}
	fmt.Fprintf(&b, "Implement card %q", title)
	if p.AgentRole != "" {
		fmt.Fprintf(&b, " as %s", p.AgentRole)
	}
	b.WriteString(".\n")
	if p.CardDescription != "" {
		fmt.Fprintf(&b, "\n%s\n", p.CardDescription)
	}

	fmt.Fprintf(&b, "\nWork on branch %s", p.FeatureBranch)
	if p.BaseBranch != "" {
		fmt.Fprintf(&b, " (based on %s)", p.BaseBranch)
	}
	b.WriteString(". Commit only to this branch.\n")

	writeList(&b, "You may modify only these paths:", p.AllowedPaths)
	writeList(&b, "You must not touch these paths:", p.ForbiddenPaths)

	if len(p.PlannedFiles) > 0 {
		b.WriteString("\nPlanned files:\n")
		for _, f := range p.PlannedFiles {
			fmt.Fprintf(&b, "- %s %s (%s)", f.Action, f.LogicalFileName, f.ArtifactKind)
			if f.ModuleHint != "" {
				fmt.Fprintf(&b, " in %s", f.ModuleHint)
			}
			if f.IntentSummary != "" {
				fmt.Fprintf(&b, ": %s", f.IntentSummary)
			}
			b.WriteString("\n")
			if f.ContractNotes != "" {
				fmt.Fprintf(&b, "  Contract: %s\n", f.ContractNotes)
			}
		}
	}

	writeList(&b, "Acceptance criteria:", p.AcceptanceCriteria)
	writeList(&b, "Relevant memory references:", p.MemoryRefs)

	return Task{
		TaskDescription: b.String(),
		Context: Context{
			PlannedFiles:       nonNil(p.PlannedFiles),
			AllowedPaths:       nonNilStrings(p.AllowedPaths),
			ForbiddenPaths:     nonNilStrings(p.ForbiddenPaths),
			AcceptanceCriteria: nonNilStrings(p.AcceptanceCriteria),
			MemoryRefs:         nonNilStrings(p.MemoryRefs),
		},
	}
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

func nonNil(files []PlannedFile) []PlannedFile {
	if files == nil {
		return []PlannedFile{}
	}
	return append([]PlannedFile{}, files...)
}

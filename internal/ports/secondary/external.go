package secondary

import (
	"context"
	"strings"

	"github.com/example/forge/internal/core/taskbuilder"
)

// GitRunner executes git commands. dir is the working directory; an empty
// dir runs in the process's current directory.
type GitRunner interface {
	// Run executes git with args and returns combined stdout. stderr is
	// carried by the returned *GitError on failure.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitError describes a failed git invocation.
type GitError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return "git " + strings.Join(e.Args, " ") + ": " + e.Stderr
	}
	return "git " + strings.Join(e.Args, " ") + " failed"
}

// ExecutionClient dispatches assignment tasks to a coding agent.
type ExecutionClient interface {
	// Dispatch sends a task. A returned error means the call could not be
	// completed; a completed call that the agent refused reports
	// Success=false with Error set.
	Dispatch(ctx context.Context, payload DispatchPayload) (*DispatchResult, error)
}

// DispatchPayload is what the execution client receives.
type DispatchPayload struct {
	RunID           string              `json:"run_id"`
	AssignmentID    string              `json:"assignment_id"`
	CardID          string              `json:"card_id"`
	AgentRole       string              `json:"agent_role"`
	AgentProfile    string              `json:"agent_profile,omitempty"`
	RepoURL         string              `json:"repo_url,omitempty"`
	FeatureBranch   string              `json:"feature_branch"`
	BaseBranch      string              `json:"base_branch"`
	WorktreePath    string              `json:"worktree_path,omitempty"`
	TaskDescription string              `json:"task_description"`
	Context         taskbuilder.Context `json:"context"`
	Actor           string              `json:"actor"`
}

// DispatchResult is the execution client's acknowledgement.
type DispatchResult struct {
	Success          bool   `json:"success"`
	ExecutionID      string `json:"execution_id,omitempty"`
	AgentExecutionID string `json:"agent_execution_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

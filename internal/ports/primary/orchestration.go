package primary

import (
	"context"
	"encoding/json"

	"github.com/example/forge/internal/core/gate"
	"github.com/example/forge/internal/core/run"
)

// RunService defines the primary port for orchestration run operations.
type RunService interface {
	// CreateRun validates the target, freezes the input and policy snapshots
	// and creates a queued run.
	CreateRun(ctx context.Context, req CreateRunRequest) (*Run, error)

	// GetRun retrieves a run within a project.
	GetRun(ctx context.Context, projectID, runID string) (*Run, error)

	// ListRuns lists runs with optional filters, newest first.
	ListRuns(ctx context.Context, filters RunFilters) ([]*Run, error)

	// TransitionRun moves a run to a new status.
	TransitionRun(ctx context.Context, req TransitionRunRequest) (*Run, error)
}

// CreateRunRequest contains parameters for creating a run.
type CreateRunRequest struct {
	ProjectID    string `json:"-"`
	Scope        string `json:"scope"`
	WorkflowID   string `json:"workflow_id,omitempty"`
	CardID       string `json:"card_id,omitempty"`
	TriggerType  string `json:"trigger_type,omitempty"` // defaults to manual
	InitiatedBy  string `json:"initiated_by,omitempty"` // defaults to the actor
	BaseBranch   string `json:"base_branch,omitempty"`  // defaults to the project's default_branch
	WorktreeRoot string `json:"worktree_root,omitempty"`
}

// TransitionRunRequest asks for a run status change.
type TransitionRunRequest struct {
	ProjectID string
	RunID     string
	Status    string
	Actor     string
}

// RunFilters contains filter options for listing runs.
type RunFilters struct {
	ProjectID string
	Scope     string
	Status    string
	Limit     int
}

// Run represents an orchestration run at the port boundary.
type Run struct {
	ID                   string             `json:"id"`
	ProjectID            string             `json:"project_id"`
	Scope                string             `json:"scope"`
	WorkflowID           string             `json:"workflow_id,omitempty"`
	CardID               string             `json:"card_id,omitempty"`
	TriggerType          string             `json:"trigger_type"`
	InitiatedBy          string             `json:"initiated_by"`
	RepoURL              string             `json:"repo_url,omitempty"`
	BaseBranch           string             `json:"base_branch"`
	RunInputSnapshot     json.RawMessage    `json:"run_input_snapshot"`
	WorktreeRoot         string             `json:"worktree_root,omitempty"`
	Status               string             `json:"status"`
	SystemPolicySnapshot run.PolicySnapshot `json:"system_policy_snapshot"`
	StartedAt            string             `json:"started_at,omitempty"`
	EndedAt              string             `json:"ended_at,omitempty"`
	CreatedAt            string             `json:"created_at"`
	UpdatedAt            string             `json:"updated_at"`
}

// AssignmentService defines the primary port for card assignment dispatch.
type AssignmentService interface {
	// CreateAssignment validates and creates a queued assignment.
	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*CreateAssignmentResponse, error)

	// DispatchAssignment sends a queued or blocked assignment to the execution client.
	DispatchAssignment(ctx context.Context, req DispatchAssignmentRequest) (*DispatchAssignmentResponse, error)

	// ResumeBlockedAssignment re-queues and re-dispatches a card's blocked
	// assignment, reverting to blocked if the dispatch fails.
	ResumeBlockedAssignment(ctx context.Context, req ResumeBlockedRequest) (*ResumeBlockedResponse, error)

	// ReportExecutionStatus applies a status update from the execution client.
	ReportExecutionStatus(ctx context.Context, req ReportExecutionStatusRequest) (*Assignment, error)

	// ListAssignments lists a run's assignments.
	ListAssignments(ctx context.Context, projectID, runID string) ([]*Assignment, error)

	// GetAssignment retrieves an assignment.
	GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error)
}

// CreateAssignmentRequest contains parameters for creating an assignment.
type CreateAssignmentRequest struct {
	ProjectID      string   `json:"-"`
	RunID          string   `json:"-"`
	CardID         string   `json:"card_id"`
	AgentRole      string   `json:"agent_role"`
	AgentProfile   string   `json:"agent_profile,omitempty"`
	FeatureBranch  string   `json:"feature_branch"`
	WorktreePath   string   `json:"worktree_path,omitempty"`
	AllowedPaths   []string `json:"allowed_paths"`
	ForbiddenPaths []string `json:"forbidden_paths,omitempty"`
	MemoryRefs     []string `json:"memory_refs,omitempty"`
}

// CreateAssignmentResponse is the discriminated result of CreateAssignment.
type CreateAssignmentResponse struct {
	Success          bool     `json:"success"`
	AssignmentID     string   `json:"assignmentId,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
}

// DispatchAssignmentRequest names the assignment to dispatch.
type DispatchAssignmentRequest struct {
	AssignmentID string
	Actor        string
}

// DispatchAssignmentResponse is the discriminated result of DispatchAssignment.
type DispatchAssignmentResponse struct {
	Success          bool   `json:"success"`
	ExecutionID      string `json:"executionId,omitempty"`
	AgentExecutionID string `json:"agentExecutionId,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ResumeBlockedRequest names the card whose blocked assignment should resume.
type ResumeBlockedRequest struct {
	ProjectID string
	CardID    string `json:"card_id"`
	Actor     string `json:"actor,omitempty"`
}

// Resume outcome types.
const (
	ResumeDispatched     = "dispatched"
	ResumeNotFound       = "no_blocked_assignment"
	ResumeConflict       = "conflict"
	ResumeDispatchFailed = "dispatch_failed"
)

// ResumeBlockedResponse is the discriminated result of ResumeBlockedAssignment.
type ResumeBlockedResponse struct {
	Success          bool   `json:"success"`
	OutcomeType      string `json:"outcome_type"`
	AssignmentID     string `json:"assignmentId,omitempty"`
	RunID            string `json:"runId,omitempty"`
	ExecutionID      string `json:"executionId,omitempty"`
	AgentExecutionID string `json:"agentExecutionId,omitempty"`
	Error            string `json:"error,omitempty"`
	Message          string `json:"message,omitempty"`
}

// ReportExecutionStatusRequest is an execution status update.
type ReportExecutionStatusRequest struct {
	AssignmentID string
	Status       string `json:"status"`
	Detail       string `json:"detail,omitempty"`
}

// Assignment represents a card assignment at the port boundary.
type Assignment struct {
	ID                      string          `json:"id"`
	RunID                   string          `json:"run_id"`
	CardID                  string          `json:"card_id"`
	AgentRole               string          `json:"agent_role"`
	AgentProfile            string          `json:"agent_profile,omitempty"`
	FeatureBranch           string          `json:"feature_branch"`
	WorktreePath            string          `json:"worktree_path,omitempty"`
	AllowedPaths            []string        `json:"allowed_paths"`
	ForbiddenPaths          []string        `json:"forbidden_paths"`
	AssignmentInputSnapshot json.RawMessage `json:"assignment_input_snapshot"`
	Status                  string          `json:"status"`
	ExecutionID             string          `json:"execution_id,omitempty"`
	AgentExecutionID        string          `json:"agent_execution_id,omitempty"`
	LastError               string          `json:"last_error,omitempty"`
	CreatedAt               string          `json:"created_at"`
	UpdatedAt               string          `json:"updated_at"`
}

// CheckService defines the primary port for run checks and gate evaluation.
type CheckService interface {
	// RecordCheck records a check result against a run.
	RecordCheck(ctx context.Context, req RecordCheckRequest) (*Check, error)

	// ListChecks lists a run's checks in recording order.
	ListChecks(ctx context.Context, projectID, runID string) ([]*Check, error)

	// EvaluateGates evaluates the run's frozen required checks against its recorded checks.
	EvaluateGates(ctx context.Context, projectID, runID string) (*gate.Result, error)
}

// RecordCheckRequest contains a check result.
type RecordCheckRequest struct {
	ProjectID string `json:"-"`
	RunID     string `json:"-"`
	CheckType string `json:"check_type"`
	Status    string `json:"status"`
	Output    string `json:"output,omitempty"`
}

// Check represents a run check at the port boundary.
type Check struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	CheckType string `json:"check_type"`
	Status    string `json:"status"`
	Output    string `json:"output,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ApprovalService defines the primary port for approval requests.
type ApprovalService interface {
	// RequestApproval opens a pending approval request on a run.
	RequestApproval(ctx context.Context, req RequestApprovalRequest) (*Approval, error)

	// ResolveApproval approves or rejects a pending request.
	ResolveApproval(ctx context.Context, req ResolveApprovalRequest) (*Approval, error)

	// ListApprovals lists a run's approval requests.
	ListApprovals(ctx context.Context, projectID, runID string) ([]*Approval, error)
}

// RequestApprovalRequest contains parameters for an approval request.
type RequestApprovalRequest struct {
	ProjectID    string `json:"-"`
	RunID        string `json:"-"`
	ApprovalType string `json:"approval_type"`
	RequestedBy  string `json:"requested_by"`
}

// ResolveApprovalRequest contains the outcome of an approval request.
type ResolveApprovalRequest struct {
	ProjectID  string `json:"-"`
	RunID      string `json:"-"`
	ApprovalID string `json:"-"`
	Status     string `json:"status"`
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes,omitempty"`
}

// Approval represents an approval request at the port boundary.
type Approval struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	ApprovalType string `json:"approval_type"`
	RequestedBy  string `json:"requested_by"`
	Status       string `json:"status"`
	ResolvedBy   string `json:"resolved_by,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at"`
	ResolvedAt   string `json:"resolved_at,omitempty"`
}

// PRCandidateService defines the primary port for pull request candidates.
type PRCandidateService interface {
	// CreatePRCandidate creates a draft candidate for a run.
	CreatePRCandidate(ctx context.Context, req CreatePRCandidateRequest) (*PRCandidate, error)

	// OpenPRCandidate moves a draft candidate to open once the run's gate passes.
	OpenPRCandidate(ctx context.Context, ref PRCandidateRef) (*PRCandidate, error)

	// MergePRCandidate marks an open candidate merged.
	MergePRCandidate(ctx context.Context, ref PRCandidateRef) (*PRCandidate, error)

	// ClosePRCandidate closes a draft or open candidate.
	ClosePRCandidate(ctx context.Context, ref PRCandidateRef) (*PRCandidate, error)

	// UpdatePRURL records the URL of the pull request opened for a candidate.
	UpdatePRURL(ctx context.Context, ref PRCandidateRef, url string) (*PRCandidate, error)

	// ListPRCandidates lists a run's candidates.
	ListPRCandidates(ctx context.Context, projectID, runID string) ([]*PRCandidate, error)
}

// CreatePRCandidateRequest contains parameters for creating a candidate.
type CreatePRCandidateRequest struct {
	ProjectID   string `json:"-"`
	RunID       string `json:"-"`
	BaseBranch  string `json:"base_branch,omitempty"` // defaults to the run's base branch
	HeadBranch  string `json:"head_branch"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// PRCandidateRef addresses one candidate of a run.
type PRCandidateRef struct {
	ProjectID string
	RunID     string
	PRID      string
}

// PRCandidate represents a pull request candidate at the port boundary.
type PRCandidate struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id"`
	BaseBranch  string `json:"base_branch"`
	HeadBranch  string `json:"head_branch"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	PRURL       string `json:"pr_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

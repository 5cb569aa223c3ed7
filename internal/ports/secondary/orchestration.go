package secondary

import (
	"context"
	"time"
)

// RunRepository defines the secondary port for orchestration run persistence.
type RunRepository interface {
	// Create persists a new run. A workflow-scoped run sets its workflow's
	// build_state to the run status.
	Create(ctx context.Context, run *RunRecord) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*RunRecord, error)

	// List retrieves runs matching the given filters, newest first.
	List(ctx context.Context, filters RunFilters) ([]*RunRecord, error)

	// Transition moves a run from one status to another if it is still in
	// from, mirroring the new status onto a workflow-scoped run's workflow
	// build_state. Returns false when the stored status no longer matches.
	Transition(ctx context.Context, change RunTransition) (bool, error)
}

// RunRecord represents an orchestration run as stored in persistence.
type RunRecord struct {
	ID                   string
	ProjectID            string
	Scope                string
	WorkflowID           string // Empty string means null
	CardID               string // Empty string means null
	TriggerType          string
	InitiatedBy          string
	RepoURL              string // Empty string means null
	BaseBranch           string
	RunInputSnapshot     string
	WorktreeRoot         string // Empty string means null
	Status               string
	SystemPolicySnapshot string
	StartedAt            string // Empty string means null
	EndedAt              string // Empty string means null
	CreatedAt            string
	UpdatedAt            string
}

// RunFilters contains filter options for querying runs.
type RunFilters struct {
	ProjectID string
	Scope     string
	Statuses  []string
	Limit     int
}

// RunTransition is a compare-and-set status change.
type RunTransition struct {
	RunID      string
	From       string
	To         string
	StartedAt  *time.Time // Set when non-nil
	EndedAt    *time.Time // Set when non-nil
	ClearEnded bool
	// ResetAssignments re-queues every assignment in the run and their cards'
	// build_state in the same transaction.
	ResetAssignments bool
}

// AssignmentRepository defines the secondary port for card assignment persistence.
type AssignmentRepository interface {
	// Create persists a new assignment and marks its card's build_state queued.
	Create(ctx context.Context, assignment *AssignmentRecord) error

	// GetByID retrieves an assignment by its ID.
	GetByID(ctx context.Context, id string) (*AssignmentRecord, error)

	// ListByRun retrieves a run's assignments in creation order.
	ListByRun(ctx context.Context, runID string) ([]*AssignmentRecord, error)

	// FindForCard returns the newest assignment for a card in a run with the
	// given status, or nil when there is none.
	FindForCard(ctx context.Context, runID, cardID, status string) (*AssignmentRecord, error)

	// MarkDispatched records a successful dispatch: status dispatched, the
	// execution ids, and card build_state running with last_build_ref = run id.
	MarkDispatched(ctx context.Context, id, executionID, agentExecutionID string) error

	// Transition moves an assignment from one status to another and mirrors
	// the card's build_state, all in one transaction. Returns false when the
	// stored status no longer matches from.
	Transition(ctx context.Context, change AssignmentTransition) (bool, error)
}

// AssignmentRecord represents a card assignment as stored in persistence.
type AssignmentRecord struct {
	ID                      string
	RunID                   string
	CardID                  string
	AgentRole               string
	AgentProfile            string // Empty string means null
	FeatureBranch           string
	WorktreePath            string // Empty string means null
	AllowedPaths            []string
	ForbiddenPaths          []string
	AssignmentInputSnapshot string
	Status                  string
	ExecutionID             string // Empty string means null
	AgentExecutionID        string // Empty string means null
	LastError               string // Empty string means null
	CreatedAt               string
	UpdatedAt               string
}

// AssignmentTransition is a compare-and-set status change on an assignment.
type AssignmentTransition struct {
	AssignmentID   string
	From           string
	To             string
	CardBuildState string
	LastError      string // Recorded as-is; empty clears it
	FinalizeCard   bool
}

// CheckRepository defines the secondary port for run check persistence.
type CheckRepository interface {
	// Create persists a new check result.
	Create(ctx context.Context, check *CheckRecord) error

	// ListByRun retrieves a run's checks in recording order.
	ListByRun(ctx context.Context, runID string) ([]*CheckRecord, error)
}

// CheckRecord represents a run check as stored in persistence.
type CheckRecord struct {
	ID        string
	RunID     string
	CheckType string
	Status    string
	Output    string // Empty string means null
	CreatedAt string
}

// ApprovalRepository defines the secondary port for approval request persistence.
type ApprovalRepository interface {
	// Create persists a new approval request.
	Create(ctx context.Context, approval *ApprovalRecord) error

	// GetByID retrieves an approval request by its ID.
	GetByID(ctx context.Context, id string) (*ApprovalRecord, error)

	// ListByRun retrieves a run's approval requests, oldest first.
	ListByRun(ctx context.Context, runID string) ([]*ApprovalRecord, error)

	// Resolve sets the outcome of a pending request. Returns false when the
	// request is no longer pending.
	Resolve(ctx context.Context, id, status, resolvedBy, notes string) (bool, error)
}

// ApprovalRecord represents an approval request as stored in persistence.
type ApprovalRecord struct {
	ID           string
	RunID        string
	ApprovalType string
	RequestedBy  string
	Status       string
	ResolvedBy   string // Empty string means null
	Notes        string // Empty string means null
	CreatedAt    string
	ResolvedAt   string // Empty string means null
}

// PRCandidateRepository defines the secondary port for pull request candidates.
type PRCandidateRepository interface {
	// Create persists a new candidate.
	Create(ctx context.Context, pr *PRCandidateRecord) error

	// GetByID retrieves a candidate by its ID.
	GetByID(ctx context.Context, id string) (*PRCandidateRecord, error)

	// ListByRun retrieves a run's candidates, oldest first.
	ListByRun(ctx context.Context, runID string) ([]*PRCandidateRecord, error)

	// UpdateStatus moves a candidate from one status to another. Returns false
	// when the stored status no longer matches from.
	UpdateStatus(ctx context.Context, id, from, to string) (bool, error)

	// UpdateURL records the remote pull request URL.
	UpdateURL(ctx context.Context, id, url string) error
}

// PRCandidateRecord represents a pull request candidate as stored in persistence.
type PRCandidateRecord struct {
	ID          string
	RunID       string
	BaseBranch  string
	HeadBranch  string
	Title       string
	Description string // Empty string means null
	Status      string
	PRURL       string // Empty string means null
	CreatedAt   string
	UpdatedAt   string
}

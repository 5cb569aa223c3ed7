// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"

	"github.com/example/forge/internal/core/planning"
)

// ProjectRepository defines the secondary port for project persistence.
type ProjectRepository interface {
	// Create persists a new project.
	Create(ctx context.Context, project *ProjectRecord) error

	// GetByID retrieves a project by its ID.
	GetByID(ctx context.Context, id string) (*ProjectRecord, error)

	// List retrieves all projects ordered by name.
	List(ctx context.Context) ([]*ProjectRecord, error)

	// Exists checks whether a project exists.
	Exists(ctx context.Context, id string) (bool, error)
}

// ProjectRecord represents a project as stored in persistence.
type ProjectRecord struct {
	ID            string
	Name          string
	RepoURL       string // Empty string means null
	DefaultBranch string
	CreatedAt     string
	UpdatedAt     string
}

// PlanningRepository defines the secondary port for the planning hierarchy.
type PlanningRepository interface {
	// LoadProjectState reads a project's whole hierarchy inside one read-only
	// transaction. Returns nil, nil when the project does not exist.
	LoadProjectState(ctx context.Context, projectID string) (*planning.ProjectState, error)

	// ApplyMutation persists one accepted action's mutation, together with its
	// audit entry, in a single transaction.
	ApplyMutation(ctx context.Context, projectID, actor string, m planning.Mutation) error

	// GetCard retrieves a card with its project id.
	GetCard(ctx context.Context, cardID string) (*CardRecord, error)

	// CardInProject checks whether a card belongs to a project.
	CardInProject(ctx context.Context, projectID, cardID string) (bool, error)

	// WorkflowInProject checks whether a workflow belongs to a project.
	WorkflowInProject(ctx context.Context, projectID, workflowID string) (bool, error)

	// UpdateCardBuild sets a card's build_state and optionally its build pointer.
	UpdateCardBuild(ctx context.Context, cardID string, update CardBuildUpdate) error
}

// CardRecord is the flat storage view of a card.
type CardRecord struct {
	ID           string
	ProjectID    string
	WorkflowID   string
	ActivityID   string
	StepID       string // Empty string means null
	Title        string
	Description  string // Empty string means null
	Status       string
	BuildState   string
	LastBuildRef string // Empty string means null
	FinalizedAt  string // Empty string means null
}

// CardBuildUpdate describes a build progress change on a card.
type CardBuildUpdate struct {
	BuildState   string
	LastBuildRef string // Empty keeps the current value
	Finalize     bool   // Sets finalized_at when not already set
}

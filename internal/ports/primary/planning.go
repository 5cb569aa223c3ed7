// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which external actors (HTTP, CLI) drive the application.
package primary

import (
	"context"

	"github.com/example/forge/internal/core/planning"
)

// ProjectService defines the primary port for project operations.
type ProjectService interface {
	// CreateProject creates a new project.
	CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error)

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, projectID string) (*Project, error)

	// ListProjects lists all projects.
	ListProjects(ctx context.Context) ([]*Project, error)
}

// CreateProjectRequest contains parameters for creating a project.
type CreateProjectRequest struct {
	ID            string `json:"id,omitempty"` // generated when empty
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// Project represents a project at the port boundary.
type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url,omitempty"`
	DefaultBranch string `json:"default_branch"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// SnapshotService defines the primary port for reading a project's hierarchy.
type SnapshotService interface {
	// FetchSnapshot returns the project's full planning tree, or nil when the
	// project does not exist.
	FetchSnapshot(ctx context.Context, projectID string) (*planning.ProjectState, error)
}

// ActionService defines the primary port for the planning action pipeline.
type ActionService interface {
	// ApplyActionBatch validates and applies a batch of planning actions.
	ApplyActionBatch(ctx context.Context, req ApplyActionsRequest) (*ApplyActionsResponse, error)

	// PreviewActionBatch predicts the outcome of a batch without writing.
	PreviewActionBatch(ctx context.Context, req ApplyActionsRequest) (*PreviewActionsResponse, error)
}

// ApplyActionsRequest contains a batch of actions for one project.
type ApplyActionsRequest struct {
	ProjectID string
	Actions   []planning.Action
	Actor     string
}

// ApplyActionsResponse reports the per-action outcome of an applied batch.
type ApplyActionsResponse struct {
	Applied int               `json:"applied"`
	Results []planning.Result `json:"results"`
}

// PreviewActionsResponse reports the predicted outcome of a batch.
type PreviewActionsResponse struct {
	Previews []planning.Preview `json:"previews"`
	Summary  string             `json:"summary"`
}

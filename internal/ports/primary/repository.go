package primary

import (
	"context"

	"github.com/example/forge/internal/core/repo"
)

// RepositoryService defines the primary port for the per-project git clone.
// Expected failures are reported in the result, never as an error.
type RepositoryService interface {
	// GetClonePath returns the deterministic clone directory for a project.
	GetClonePath(projectID string) string

	// EnsureClone clones the project's repository unless a clone already exists.
	EnsureClone(ctx context.Context, projectID, repoURL string) *CloneResult

	// CreateFeatureBranch creates or resets branch from origin/baseBranch.
	CreateFeatureBranch(ctx context.Context, clonePath, branch, baseBranch string) *BranchResult

	// PushBranch pushes branch to the project's remote.
	PushBranch(ctx context.Context, req PushBranchRequest) *PushResult

	// GetChangedFiles diffs featureBranch against baseBranch.
	GetChangedFiles(ctx context.Context, worktreeRoot, baseBranch, featureBranch string) *ChangedFilesResult

	// PushRunBranch pushes a branch of a run's project.
	PushRunBranch(ctx context.Context, projectID, runID, branch string) (*PushResult, error)

	// RunChangedFiles diffs a run's feature branch against its base.
	// An empty featureBranch uses the run's first assignment's branch.
	RunChangedFiles(ctx context.Context, projectID, runID, featureBranch string) (*ChangedFilesResult, error)
}

// PushBranchRequest contains parameters for a push.
type PushBranchRequest struct {
	ProjectID     string
	Branch        string
	RepoURL       string
	DefaultBranch string
}

// CloneResult is the discriminated result of EnsureClone.
type CloneResult struct {
	Success   bool   `json:"success"`
	ClonePath string `json:"clonePath,omitempty"`
	Reused    bool   `json:"reused,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BranchResult is the discriminated result of CreateFeatureBranch.
type BranchResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PushResult is the discriminated result of a push. FailureKind is set on
// failure: auth for credential problems, remote for anything else.
type PushResult struct {
	Success     bool                 `json:"success"`
	FailureKind repo.PushFailureKind `json:"failure_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// ChangedFilesResult is the discriminated result of GetChangedFiles.
type ChangedFilesResult struct {
	Success bool               `json:"success"`
	Files   []repo.ChangedFile `json:"files,omitempty"`
	Error   string             `json:"error,omitempty"`
}

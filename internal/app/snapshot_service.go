package app

import (
	"context"
	"fmt"

	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// SnapshotServiceImpl implements the SnapshotService interface.
type SnapshotServiceImpl struct {
	planningRepo secondary.PlanningRepository
}

// NewSnapshotService creates a new SnapshotService with injected dependencies.
func NewSnapshotService(planningRepo secondary.PlanningRepository) *SnapshotServiceImpl {
	return &SnapshotServiceImpl{planningRepo: planningRepo}
}

// FetchSnapshot returns the project's planning tree, or nil when the project
// does not exist.
func (s *SnapshotServiceImpl) FetchSnapshot(ctx context.Context, projectID string) (*planning.ProjectState, error) {
	state, err := s.planningRepo.LoadProjectState(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	return state, nil
}

// Ensure SnapshotServiceImpl implements the interface
var _ primary.SnapshotService = (*SnapshotServiceImpl)(nil)

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/repo"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// ProjectServiceImpl implements the ProjectService interface.
type ProjectServiceImpl struct {
	projectRepo secondary.ProjectRepository
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService with injected dependencies.
func NewProjectService(projectRepo secondary.ProjectRepository, logger *zap.Logger) *ProjectServiceImpl {
	return &ProjectServiceImpl{
		projectRepo: projectRepo,
		logger:      logging.Component(logger, "projects"),
	}
}

// CreateProject creates a new project. The id doubles as the clone directory
// name, so it must be a single path segment.
func (s *ProjectServiceImpl) CreateProject(ctx context.Context, req primary.CreateProjectRequest) (*primary.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("name is required").WithDetail("name", "required")
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if guard := repo.CanClone(repo.CloneContext{ProjectID: id, RepoURL: "-"}); !guard.Allowed {
		return nil, apperr.Validation("%s", guard.Reason).WithDetail("id", "invalid")
	}

	exists, err := s.projectRepo.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check project: %w", err)
	}
	if exists {
		return nil, apperr.Conflict("project %s already exists", id)
	}

	record := &secondary.ProjectRecord{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		RepoURL:       strings.TrimSpace(req.RepoURL),
		DefaultBranch: req.DefaultBranch,
	}
	if err := s.projectRepo.Create(ctxutil.WithProjectID(ctx, id), record); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	s.logger.Info("project created", zap.String("project_id", id))

	return s.GetProject(ctx, id)
}

// GetProject retrieves a project by ID.
func (s *ProjectServiceImpl) GetProject(ctx context.Context, projectID string) (*primary.Project, error) {
	record, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return recordToProject(record), nil
}

// ListProjects lists all projects.
func (s *ProjectServiceImpl) ListProjects(ctx context.Context) ([]*primary.Project, error) {
	records, err := s.projectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	projects := make([]*primary.Project, len(records))
	for i, r := range records {
		projects[i] = recordToProject(r)
	}
	return projects, nil
}

func recordToProject(r *secondary.ProjectRecord) *primary.Project {
	return &primary.Project{
		ID:            r.ID,
		Name:          r.Name,
		RepoURL:       r.RepoURL,
		DefaultBranch: r.DefaultBranch,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// Ensure ProjectServiceImpl implements the interface
var _ primary.ProjectService = (*ProjectServiceImpl)(nil)

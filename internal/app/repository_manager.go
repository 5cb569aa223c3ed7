package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/repo"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// RepositoryManager implements the RepositoryService interface on top of the
// git CLI. It owns one clone per project under reposDir. Operations that move
// a clone's checkout are serialized per clone path.
type RepositoryManager struct {
	git            secondary.GitRunner
	reposDir       string
	token          string
	projectRepo    secondary.ProjectRepository
	runRepo        secondary.RunRepository
	assignmentRepo secondary.AssignmentRepository
	locks          *keyedMutex
	logger         *zap.Logger
}

// NewRepositoryManager creates a RepositoryManager. token authenticates
// HTTP(S) remotes; it is injected per command and never stored in a clone.
func NewRepositoryManager(
	git secondary.GitRunner,
	reposDir, token string,
	projectRepo secondary.ProjectRepository,
	runRepo secondary.RunRepository,
	assignmentRepo secondary.AssignmentRepository,
	logger *zap.Logger,
) *RepositoryManager {
	return &RepositoryManager{
		git:            git,
		reposDir:       reposDir,
		token:          token,
		projectRepo:    projectRepo,
		runRepo:        runRepo,
		assignmentRepo: assignmentRepo,
		locks:          newKeyedMutex(),
		logger:         logging.Component(logger, "repository"),
	}
}

// GetClonePath returns the deterministic clone directory for a project.
func (m *RepositoryManager) GetClonePath(projectID string) string {
	return repo.ClonePath(m.reposDir, projectID)
}

// EnsureClone clones the project's repository unless a clone already exists.
func (m *RepositoryManager) EnsureClone(ctx context.Context, projectID, repoURL string) *primary.CloneResult {
	if guard := repo.CanClone(repo.CloneContext{ProjectID: projectID, RepoURL: repoURL}); !guard.Allowed {
		return &primary.CloneResult{Success: false, Error: guard.Reason}
	}

	clonePath := m.GetClonePath(projectID)
	unlock := m.locks.Lock(clonePath)
	defer unlock()

	if isClone(clonePath) {
		return &primary.CloneResult{Success: true, ClonePath: clonePath, Reused: true}
	}
	if err := os.MkdirAll(m.reposDir, 0o755); err != nil {
		return &primary.CloneResult{Success: false, Error: fmt.Sprintf("failed to create repos directory: %v", err)}
	}

	if _, err := m.git.Run(ctx, "", "clone", repo.RepoURLToCloneURL(repoURL, m.token), clonePath); err != nil {
		m.logger.Warn("clone failed", zap.String("project_id", projectID), zap.String("repo_url", repo.RedactURL(repoURL)))
		_ = os.RemoveAll(clonePath)
		return &primary.CloneResult{Success: false, Error: m.redact(err)}
	}
	// The credential lives only in the clone command; origin keeps the plain URL.
	if m.token != "" && repo.IsHTTPRemote(repoURL) {
		if _, err := m.git.Run(ctx, clonePath, "remote", "set-url", "origin", repo.RepoURLToCloneURL(repoURL, "")); err != nil {
			_ = os.RemoveAll(clonePath)
			return &primary.CloneResult{Success: false, Error: m.redact(err)}
		}
	}

	m.logger.Info("repository cloned", zap.String("project_id", projectID), zap.String("clone_path", clonePath))
	return &primary.CloneResult{Success: true, ClonePath: clonePath}
}

// CreateFeatureBranch fetches baseBranch from origin and creates (or resets)
// branch to origin/baseBranch.
func (m *RepositoryManager) CreateFeatureBranch(ctx context.Context, clonePath, branch, baseBranch string) *primary.BranchResult {
	if guard := repo.CanCreateFeatureBranch(repo.FeatureBranchContext{BranchName: branch, BaseBranch: baseBranch}); !guard.Allowed {
		return &primary.BranchResult{Success: false, Error: guard.Reason}
	}
	if !isClone(clonePath) {
		return &primary.BranchResult{Success: false, Error: fmt.Sprintf("no clone at %s", clonePath)}
	}

	unlock := m.locks.Lock(clonePath)
	defer unlock()

	origin, err := m.git.Run(ctx, clonePath, "remote", "get-url", "origin")
	if err != nil {
		return &primary.BranchResult{Success: false, Error: m.redact(err)}
	}
	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", baseBranch, baseBranch)
	if _, err := m.git.Run(ctx, clonePath, "fetch", m.authenticated(origin), refspec); err != nil {
		return &primary.BranchResult{Success: false, Error: m.redact(err)}
	}
	if _, err := m.git.Run(ctx, clonePath, "checkout", "-B", branch, "origin/"+baseBranch); err != nil {
		return &primary.BranchResult{Success: false, Error: m.redact(err)}
	}

	m.logger.Info("feature branch created",
		zap.String("clone_path", clonePath),
		zap.String("branch", branch),
		zap.String("base_branch", baseBranch))
	return &primary.BranchResult{Success: true}
}

// PushBranch pushes branch from the project's clone. Credential problems are
// reported with FailureKind auth, other remote failures with remote.
func (m *RepositoryManager) PushBranch(ctx context.Context, req primary.PushBranchRequest) *primary.PushResult {
	clonePath := m.GetClonePath(req.ProjectID)
	pushCtx := repo.PushContext{
		Branch:        req.Branch,
		DefaultBranch: req.DefaultBranch,
		RepoURL:       req.RepoURL,
		HasToken:      m.token != "",
		CloneExists:   isClone(clonePath),
	}
	if guard := repo.CanPush(pushCtx); !guard.Allowed {
		result := &primary.PushResult{Success: false, Error: guard.Reason}
		withToken := pushCtx
		withToken.HasToken = true
		if repo.CanPush(withToken).Allowed {
			result.FailureKind = repo.PushFailureAuth
		}
		return result
	}

	unlock := m.locks.Lock(clonePath)
	defer unlock()

	remote := "origin"
	if req.RepoURL != "" {
		remote = m.authenticated(req.RepoURL)
	}
	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", req.Branch, req.Branch)
	if _, err := m.git.Run(ctx, clonePath, "push", remote, refspec); err != nil {
		var gitErr *secondary.GitError
		kind := repo.PushFailureRemote
		if errors.As(err, &gitErr) {
			kind = repo.ClassifyPushError(gitErr.Stderr)
		}
		m.logger.Warn("push failed",
			zap.String("project_id", req.ProjectID),
			zap.String("branch", req.Branch),
			zap.String("failure_kind", string(kind)))
		return &primary.PushResult{Success: false, FailureKind: kind, Error: m.redact(err)}
	}

	m.logger.Info("branch pushed", zap.String("project_id", req.ProjectID), zap.String("branch", req.Branch))
	return &primary.PushResult{Success: true}
}

// GetChangedFiles lists the files featureBranch changes relative to its merge
// base with baseBranch.
func (m *RepositoryManager) GetChangedFiles(ctx context.Context, worktreeRoot, baseBranch, featureBranch string) *primary.ChangedFilesResult {
	if baseBranch == "" || featureBranch == "" {
		return &primary.ChangedFilesResult{Success: false, Error: "base and feature branches are required"}
	}
	if !isClone(worktreeRoot) {
		return &primary.ChangedFilesResult{Success: false, Error: fmt.Sprintf("no clone at %s", worktreeRoot)}
	}

	out, err := m.git.Run(ctx, worktreeRoot, "diff", "--name-status", baseBranch+"..."+featureBranch)
	if err != nil {
		return &primary.ChangedFilesResult{Success: false, Error: m.redact(err)}
	}
	return &primary.ChangedFilesResult{Success: true, Files: repo.ParseNameStatus(out)}
}

// PushRunBranch pushes a branch of a run's project to the project's remote.
func (m *RepositoryManager) PushRunBranch(ctx context.Context, projectID, runID, branch string) (*primary.PushResult, error) {
	run, err := loadRun(ctx, m.runRepo, projectID, runID)
	if err != nil {
		return nil, err
	}
	project, err := m.projectRepo.GetByID(ctx, run.ProjectID)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		if branch, err = m.firstFeatureBranch(ctx, run.ID); err != nil {
			return nil, err
		}
	}

	repoURL := run.RepoURL
	if repoURL == "" {
		repoURL = project.RepoURL
	}
	return m.PushBranch(ctx, primary.PushBranchRequest{
		ProjectID:     project.ID,
		Branch:        branch,
		RepoURL:       repoURL,
		DefaultBranch: project.DefaultBranch,
	}), nil
}

// RunChangedFiles diffs a run's feature branch against origin's copy of the
// run's base branch, in the run's worktree root or else the project clone.
func (m *RepositoryManager) RunChangedFiles(ctx context.Context, projectID, runID, featureBranch string) (*primary.ChangedFilesResult, error) {
	run, err := loadRun(ctx, m.runRepo, projectID, runID)
	if err != nil {
		return nil, err
	}
	if featureBranch == "" {
		if featureBranch, err = m.firstFeatureBranch(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	root := run.WorktreeRoot
	if root == "" {
		root = m.GetClonePath(run.ProjectID)
	}
	return m.GetChangedFiles(ctx, root, "origin/"+run.BaseBranch, featureBranch), nil
}

func (m *RepositoryManager) firstFeatureBranch(ctx context.Context, runID string) (string, error) {
	assignments, err := m.assignmentRepo.ListByRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("failed to list assignments: %w", err)
	}
	if len(assignments) == 0 {
		return "", apperr.Validation("run %s has no assignments; name a branch", runID).WithDetail("branch", "required")
	}
	return assignments[0].FeatureBranch, nil
}

// authenticated returns remoteURL with the credential injected.
func (m *RepositoryManager) authenticated(remoteURL string) string {
	if !repo.IsHTTPRemote(remoteURL) {
		return remoteURL
	}
	return repo.RepoURLToCloneURL(remoteURL, m.token)
}

// redact renders err without the credential token.
func (m *RepositoryManager) redact(err error) string {
	return strings.TrimSpace(repo.RedactToken(err.Error(), m.token))
}

func isClone(dir string) bool {
	if dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Ensure RepositoryManager implements the interface
var _ primary.RepositoryService = (*RepositoryManager)(nil)

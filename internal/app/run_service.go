package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// RunServiceImpl implements the RunService interface.
type RunServiceImpl struct {
	runRepo      secondary.RunRepository
	projectRepo  secondary.ProjectRepository
	planningRepo secondary.PlanningRepository
	checkRepo    secondary.CheckRepository
	policy       corerun.PolicySnapshot
	logger       *zap.Logger
	now          func() time.Time
}

// NewRunService creates a new RunService. policy is frozen into every run
// created by this service.
func NewRunService(
	runRepo secondary.RunRepository,
	projectRepo secondary.ProjectRepository,
	planningRepo secondary.PlanningRepository,
	checkRepo secondary.CheckRepository,
	policy corerun.PolicySnapshot,
	logger *zap.Logger,
) *RunServiceImpl {
	return &RunServiceImpl{
		runRepo:      runRepo,
		projectRepo:  projectRepo,
		planningRepo: planningRepo,
		checkRepo:    checkRepo,
		policy:       policy,
		logger:       logging.Component(logger, "runs"),
		now:          time.Now,
	}
}

// runInput is the frozen view of a run's target taken at creation.
type runInput struct {
	Project  planning.Project   `json:"project"`
	Workflow *planning.Workflow `json:"workflow,omitempty"`
	Card     *planning.Card     `json:"card,omitempty"`
	FrozenAt string             `json:"frozen_at"`
}

// CreateRun validates the target and creates a queued run with frozen input
// and policy snapshots.
func (s *RunServiceImpl) CreateRun(ctx context.Context, req primary.CreateRunRequest) (*primary.Run, error) {
	project, err := s.projectRepo.GetByID(ctx, req.ProjectID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	var state *planning.ProjectState
	if project != nil {
		state, err = s.planningRepo.LoadProjectState(ctx, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project %s: %w", req.ProjectID, err)
		}
	}

	input := runInput{FrozenAt: s.now().UTC().Format(time.RFC3339)}
	targetExists := false
	if state != nil {
		input.Project = state.Project
		switch req.Scope {
		case corerun.ScopeWorkflow:
			input.Workflow = state.Workflow(req.WorkflowID)
			targetExists = input.Workflow != nil
		case corerun.ScopeCard:
			input.Card = state.Card(req.CardID)
			targetExists = input.Card != nil
			if targetExists && req.WorkflowID != "" {
				targetExists = state.WorkflowOfCard(req.CardID) == req.WorkflowID
			}
		}
	}

	triggerType := req.TriggerType
	if triggerType == "" {
		triggerType = corerun.TriggerManual
	}
	baseBranch := req.BaseBranch
	if baseBranch == "" && project != nil {
		baseBranch = project.DefaultBranch
	}
	initiatedBy := ctxutil.ActorOrSystem(ctx, req.InitiatedBy)

	guard := corerun.CanCreateRun(corerun.CreateRunContext{
		ProjectID:      req.ProjectID,
		ProjectExists:  project != nil,
		Scope:          req.Scope,
		WorkflowID:     req.WorkflowID,
		CardID:         req.CardID,
		TargetExists:   targetExists,
		TriggerType:    triggerType,
		InitiatedBy:    initiatedBy,
		BaseBranch:     baseBranch,
		RequiredChecks: s.policy.RequiredChecks,
	})
	if !guard.Allowed {
		if project == nil {
			return nil, apperr.NotFound("%s", guard.Reason)
		}
		return nil, apperr.Validation("%s", guard.Reason)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze run input: %w", err)
	}
	policyJSON, err := s.policy.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to freeze run policy: %w", err)
	}

	record := &secondary.RunRecord{
		ID:                   uuid.NewString(),
		ProjectID:            req.ProjectID,
		Scope:                req.Scope,
		WorkflowID:           req.WorkflowID,
		CardID:               req.CardID,
		TriggerType:          triggerType,
		InitiatedBy:          initiatedBy,
		RepoURL:              project.RepoURL,
		BaseBranch:           baseBranch,
		RunInputSnapshot:     string(inputJSON),
		WorktreeRoot:         req.WorktreeRoot,
		Status:               string(corerun.InitialStatus()),
		SystemPolicySnapshot: policyJSON,
	}
	if err := s.runRepo.Create(ctxutil.WithProjectID(ctx, req.ProjectID), record); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Info("run created",
		zap.String("project_id", req.ProjectID),
		zap.String("run_id", record.ID),
		zap.String("scope", req.Scope),
		zap.String("initiated_by", initiatedBy))

	return s.GetRun(ctx, req.ProjectID, record.ID)
}

// GetRun retrieves a run within a project.
func (s *RunServiceImpl) GetRun(ctx context.Context, projectID, runID string) (*primary.Run, error) {
	record, err := loadRun(ctx, s.runRepo, projectID, runID)
	if err != nil {
		return nil, err
	}
	return recordToRun(record)
}

// ListRuns lists runs with optional filters, newest first.
func (s *RunServiceImpl) ListRuns(ctx context.Context, filters primary.RunFilters) ([]*primary.Run, error) {
	var statuses []string
	if filters.Status != "" {
		statuses = []string{filters.Status}
	}
	records, err := s.runRepo.List(ctx, secondary.RunFilters{
		ProjectID: filters.ProjectID,
		Scope:     filters.Scope,
		Statuses:  statuses,
		Limit:     filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*primary.Run, 0, len(records))
	for _, r := range records {
		run, err := recordToRun(r)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// TransitionRun moves a run to a new status. Moves outside the transition
// table are rejected and leave the run unchanged; completing a run requires
// its approval gate to pass.
func (s *RunServiceImpl) TransitionRun(ctx context.Context, req primary.TransitionRunRequest) (*primary.Run, error) {
	record, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID)
	if err != nil {
		return nil, err
	}

	from := corerun.Status(record.Status)
	to := corerun.Status(req.Status)
	if guard := corerun.CanTransition(from, to); !guard.Allowed {
		return nil, apperr.Validation("%s", guard.Reason).
			WithDetail("from", string(from)).
			WithDetail("to", string(to))
	}

	if to == corerun.StatusCompleted {
		result, err := evaluateRunGate(ctx, s.checkRepo, record)
		if err != nil {
			return nil, err
		}
		if !result.CanApprove {
			return nil, gateConflict(result)
		}
	}

	effect := corerun.ApplyTransition(from, to, record.StartedAt != "", s.now())
	ctx = ctxutil.WithProjectID(ctxutil.WithActorID(ctx, ctxutil.ActorOrSystem(ctx, req.Actor)), record.ProjectID)
	changed, err := s.runRepo.Transition(ctx, secondary.RunTransition{
		RunID:            record.ID,
		From:             string(from),
		To:               string(effect.NewStatus),
		StartedAt:        effect.StartedAt,
		EndedAt:          effect.EndedAt,
		ClearEnded:       from == corerun.StatusFailed && to == corerun.StatusQueued,
		ResetAssignments: effect.ResetAssignment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition run: %w", err)
	}
	if !changed {
		return nil, apperr.Conflict("run %s is no longer %s", record.ID, from)
	}

	s.logger.Info("run transitioned",
		zap.String("run_id", record.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("reset_assignments", effect.ResetAssignment))

	return s.GetRun(ctx, req.ProjectID, record.ID)
}

func recordToRun(r *secondary.RunRecord) (*primary.Run, error) {
	policy, err := corerun.DecodePolicy(r.SystemPolicySnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy of run %s: %w", r.ID, err)
	}
	input := json.RawMessage(r.RunInputSnapshot)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return &primary.Run{
		ID:                   r.ID,
		ProjectID:            r.ProjectID,
		Scope:                r.Scope,
		WorkflowID:           r.WorkflowID,
		CardID:               r.CardID,
		TriggerType:          r.TriggerType,
		InitiatedBy:          r.InitiatedBy,
		RepoURL:              r.RepoURL,
		BaseBranch:           r.BaseBranch,
		RunInputSnapshot:     input,
		WorktreeRoot:         r.WorktreeRoot,
		Status:               r.Status,
		SystemPolicySnapshot: policy,
		StartedAt:            r.StartedAt,
		EndedAt:              r.EndedAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

// Ensure RunServiceImpl implements the interface
var _ primary.RunService = (*RunServiceImpl)(nil)

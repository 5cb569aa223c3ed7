package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	coreassignment "github.com/example/forge/internal/core/assignment"
	"github.com/example/forge/internal/core/planning"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/core/taskbuilder"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
	"github.com/example/forge/internal/telemetry"
)

// AssignmentServiceImpl implements the AssignmentService interface.
type AssignmentServiceImpl struct {
	assignmentRepo  secondary.AssignmentRepository
	runRepo         secondary.RunRepository
	projectRepo     secondary.ProjectRepository
	planningRepo    secondary.PlanningRepository
	repositories    primary.RepositoryService
	executionClient secondary.ExecutionClient
	logger          *zap.Logger
	tracer          trace.Tracer
}

// NewAssignmentService creates a new AssignmentService with injected dependencies.
func NewAssignmentService(
	assignmentRepo secondary.AssignmentRepository,
	runRepo secondary.RunRepository,
	projectRepo secondary.ProjectRepository,
	planningRepo secondary.PlanningRepository,
	repositories primary.RepositoryService,
	executionClient secondary.ExecutionClient,
	logger *zap.Logger,
) *AssignmentServiceImpl {
	return &AssignmentServiceImpl{
		assignmentRepo:  assignmentRepo,
		runRepo:         runRepo,
		projectRepo:     projectRepo,
		planningRepo:    planningRepo,
		repositories:    repositories,
		executionClient: executionClient,
		logger:          logging.Component(logger, "assignments"),
		tracer:          telemetry.Tracer(),
	}
}

// assignmentInput is the card context frozen into an assignment at creation.
type assignmentInput struct {
	CardID             string                    `json:"card_id"`
	CardTitle          string                    `json:"card_title"`
	CardDescription    string                    `json:"card_description,omitempty"`
	RepoURL            string                    `json:"repo_url,omitempty"`
	BaseBranch         string                    `json:"base_branch"`
	AcceptanceCriteria []string                  `json:"acceptance_criteria"`
	MemoryRefs         []string                  `json:"memory_refs"`
	PlannedFiles       []taskbuilder.PlannedFile `json:"planned_files"`
}

// CreateAssignment validates and creates a queued assignment. Validation
// failures are reported in the response, not as an error.
func (s *AssignmentServiceImpl) CreateAssignment(ctx context.Context, req primary.CreateAssignmentRequest) (*primary.CreateAssignmentResponse, error) {
	run, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	check := coreassignment.CreateAssignmentContext{
		RunID:          req.RunID,
		RunExists:      run != nil,
		CardID:         req.CardID,
		AgentRole:      req.AgentRole,
		FeatureBranch:  req.FeatureBranch,
		AllowedPaths:   req.AllowedPaths,
		ForbiddenPaths: req.ForbiddenPaths,
	}

	var state *planning.ProjectState
	if run != nil {
		check.RunStatus = run.Status

		project, err := s.projectRepo.GetByID(ctx, run.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to get project: %w", err)
		}
		check.DefaultBranch = project.DefaultBranch

		policy, err := corerun.DecodePolicy(run.SystemPolicySnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy of run %s: %w", run.ID, err)
		}
		check.ForbiddenPaths = mergePaths(policy.ForbiddenPaths, req.ForbiddenPaths)

		state, err = s.planningRepo.LoadProjectState(ctx, run.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project %s: %w", run.ProjectID, err)
		}
		check.CardExists = state != nil && state.Card(req.CardID) != nil
	}

	if errs := coreassignment.ValidateCreate(check); len(errs) > 0 {
		s.logger.Info("assignment rejected",
			zap.String("run_id", req.RunID),
			zap.String("card_id", req.CardID),
			zap.Strings("validation_errors", errs))
		return &primary.CreateAssignmentResponse{Success: false, ValidationErrors: errs}, nil
	}

	input := freezeAssignmentInput(state.Card(req.CardID), run, req.MemoryRefs)
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze assignment input: %w", err)
	}

	record := &secondary.AssignmentRecord{
		ID:                      uuid.NewString(),
		RunID:                   run.ID,
		CardID:                  req.CardID,
		AgentRole:               req.AgentRole,
		AgentProfile:            req.AgentProfile,
		FeatureBranch:           req.FeatureBranch,
		WorktreePath:            req.WorktreePath,
		AllowedPaths:            req.AllowedPaths,
		ForbiddenPaths:          check.ForbiddenPaths,
		AssignmentInputSnapshot: string(inputJSON),
		Status:                  coreassignment.StatusQueued,
	}
	if err := s.assignmentRepo.Create(ctxutil.WithProjectID(ctx, run.ProjectID), record); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	s.logger.Info("assignment created",
		zap.String("run_id", run.ID),
		zap.String("assignment_id", record.ID),
		zap.String("card_id", req.CardID),
		zap.String("to", coreassignment.StatusQueued))

	return &primary.CreateAssignmentResponse{Success: true, AssignmentID: record.ID}, nil
}

// freezeAssignmentInput captures the card's approved requirements as
// acceptance criteria, its linked artifacts plus any extra refs as memory
// refs, and its planned files that were not rejected.
func freezeAssignmentInput(card *planning.Card, run *secondary.RunRecord, extraRefs []string) assignmentInput {
	input := assignmentInput{
		CardID:             card.ID,
		CardTitle:          card.Title,
		CardDescription:    card.Description,
		RepoURL:            run.RepoURL,
		BaseBranch:         run.BaseBranch,
		AcceptanceCriteria: []string{},
		MemoryRefs:         mergePaths(card.ContextArtifactIDs, extraRefs),
		PlannedFiles:       []taskbuilder.PlannedFile{},
	}
	for _, k := range card.Knowledge {
		if k.ItemType == planning.KnowledgeRequirement && k.Status == planning.KnowledgeApproved {
			input.AcceptanceCriteria = append(input.AcceptanceCriteria, k.Text)
		}
	}
	for _, f := range card.PlannedFiles {
		if f.Status == planning.PlannedFileRejected {
			continue
		}
		input.PlannedFiles = append(input.PlannedFiles, taskbuilder.PlannedFile{
			LogicalFileName: f.LogicalFileName,
			Action:          f.Action,
			ArtifactKind:    f.ArtifactKind,
			ModuleHint:      f.ModuleHint,
			IntentSummary:   f.IntentSummary,
			ContractNotes:   f.ContractNotes,
		})
	}
	return input
}

// DispatchAssignment prepares the feature branch in the project's clone and
// sends a queued assignment to the execution client. A failed dispatch leaves
// the assignment's status untouched.
func (s *AssignmentServiceImpl) DispatchAssignment(ctx context.Context, req primary.DispatchAssignmentRequest) (*primary.DispatchAssignmentResponse, error) {
	resp, _, err := s.dispatch(ctx, req)
	return resp, err
}

// dispatch reports in accepted whether the execution client acknowledged the
// task, so an error after that point is known to leave a live execution.
func (s *AssignmentServiceImpl) dispatch(ctx context.Context, req primary.DispatchAssignmentRequest) (resp *primary.DispatchAssignmentResponse, accepted bool, err error) {
	ctx, span := s.tracer.Start(ctx, "assignment.dispatch", trace.WithAttributes(
		attribute.String("assignment_id", req.AssignmentID),
	))
	defer span.End()

	record, err := s.assignmentRepo.GetByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, false, err
	}
	run, err := s.runRepo.GetByID(ctx, record.RunID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get run %s: %w", record.RunID, err)
	}

	guard := coreassignment.CanDispatch(coreassignment.DispatchContext{
		AssignmentID:     record.ID,
		AssignmentExists: true,
		Status:           record.Status,
		RunID:            run.ID,
		RunStatus:        run.Status,
	})
	if !guard.Allowed {
		return &primary.DispatchAssignmentResponse{Success: false, Error: guard.Reason}, false, nil
	}

	var input assignmentInput
	if err := json.Unmarshal([]byte(record.AssignmentInputSnapshot), &input); err != nil {
		return nil, false, fmt.Errorf("failed to read input of assignment %s: %w", record.ID, err)
	}

	logger := s.logger.With(
		zap.String("run_id", run.ID),
		zap.String("assignment_id", record.ID),
		zap.String("card_id", record.CardID))

	worktree, prepErr := s.prepareWorkspace(ctx, run, record)
	if prepErr != "" {
		span.SetStatus(codes.Error, "workspace preparation failed")
		logger.Warn("workspace preparation failed", zap.String("reason", prepErr))
		return &primary.DispatchAssignmentResponse{Success: false, Error: prepErr}, false, nil
	}

	task := taskbuilder.BuildTaskFromPayload(taskbuilder.Payload{
		RunID:              run.ID,
		AssignmentID:       record.ID,
		CardID:             record.CardID,
		CardTitle:          input.CardTitle,
		CardDescription:    input.CardDescription,
		AgentRole:          record.AgentRole,
		FeatureBranch:      record.FeatureBranch,
		BaseBranch:         run.BaseBranch,
		WorktreePath:       worktree,
		AllowedPaths:       record.AllowedPaths,
		ForbiddenPaths:     record.ForbiddenPaths,
		AcceptanceCriteria: input.AcceptanceCriteria,
		MemoryRefs:         input.MemoryRefs,
		PlannedFiles:       input.PlannedFiles,
	})

	actor := ctxutil.ActorOrSystem(ctx, req.Actor)
	result, err := s.executionClient.Dispatch(ctx, secondary.DispatchPayload{
		RunID:           run.ID,
		AssignmentID:    record.ID,
		CardID:          record.CardID,
		AgentRole:       record.AgentRole,
		AgentProfile:    record.AgentProfile,
		RepoURL:         run.RepoURL,
		FeatureBranch:   record.FeatureBranch,
		BaseBranch:      run.BaseBranch,
		WorktreePath:    worktree,
		TaskDescription: task.TaskDescription,
		Context:         task.Context,
		Actor:           actor,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Warn("dispatch failed", zap.Error(err))
		return &primary.DispatchAssignmentResponse{Success: false, Error: err.Error()}, false, nil
	}
	if !result.Success {
		span.SetStatus(codes.Error, "dispatch refused")
		logger.Warn("dispatch refused", zap.String("reason", result.Error))
		return &primary.DispatchAssignmentResponse{Success: false, Error: result.Error}, false, nil
	}

	ctx = ctxutil.WithProjectID(ctxutil.WithActorID(ctx, actor), run.ProjectID)
	if err := s.assignmentRepo.MarkDispatched(ctx, record.ID, result.ExecutionID, result.AgentExecutionID); err != nil {
		span.RecordError(err)
		logger.Error("dispatch accepted but not recorded",
			zap.String("execution_id", result.ExecutionID),
			zap.Error(err))
		return nil, true, fmt.Errorf("failed to record dispatch of assignment %s (execution %s): %w", record.ID, result.ExecutionID, err)
	}
	logger.Info("assignment dispatched",
		zap.String("from", record.Status),
		zap.String("to", coreassignment.StatusDispatched),
		zap.String("execution_id", result.ExecutionID))

	return &primary.DispatchAssignmentResponse{
		Success:          true,
		ExecutionID:      result.ExecutionID,
		AgentExecutionID: result.AgentExecutionID,
	}, true, nil
}

// prepareWorkspace returns the checkout the agent works in. An assignment
// with its own worktree path uses it as is; otherwise the project's clone is
// ensured and the feature branch is created from origin's base branch. A run
// without a repository gets no checkout. The second return value is a
// failure reason.
func (s *AssignmentServiceImpl) prepareWorkspace(ctx context.Context, run *secondary.RunRecord, record *secondary.AssignmentRecord) (string, string) {
	if record.WorktreePath != "" || run.RepoURL == "" {
		return record.WorktreePath, ""
	}

	clone := s.repositories.EnsureClone(ctx, run.ProjectID, run.RepoURL)
	if !clone.Success {
		return "", fmt.Sprintf("failed to prepare clone: %s", clone.Error)
	}
	branch := s.repositories.CreateFeatureBranch(ctx, clone.ClonePath, record.FeatureBranch, run.BaseBranch)
	if !branch.Success {
		return "", fmt.Sprintf("failed to create feature branch %s: %s", record.FeatureBranch, branch.Error)
	}
	return clone.ClonePath, ""
}

// ResumeBlockedAssignment re-drives a card's blocked assignment in the
// project's most recent active run. The assignment and card are moved to
// queued before dispatching; if the execution client does not accept the
// task both are put back to blocked.
func (s *AssignmentServiceImpl) ResumeBlockedAssignment(ctx context.Context, req primary.ResumeBlockedRequest) (*primary.ResumeBlockedResponse, error) {
	runs, err := s.runRepo.List(ctx, secondary.RunFilters{
		ProjectID: req.ProjectID,
		Statuses:  activeRunStatuses(),
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find active run: %w", err)
	}

	var blocked *secondary.AssignmentRecord
	if len(runs) > 0 {
		blocked, err = s.assignmentRepo.FindForCard(ctx, runs[0].ID, req.CardID, coreassignment.StatusBlocked)
		if err != nil {
			return nil, fmt.Errorf("failed to find blocked assignment: %w", err)
		}
	}
	if blocked == nil {
		msg := fmt.Sprintf("No blocked assignment found for card %s", req.CardID)
		if len(runs) == 0 {
			msg = fmt.Sprintf("No blocked assignment found for card %s: project %s has no active run", req.CardID, req.ProjectID)
		}
		return &primary.ResumeBlockedResponse{
			Success:     false,
			OutcomeType: primary.ResumeNotFound,
			Error:       "no blocked assignment",
			Message:     msg,
		}, nil
	}

	logger := s.logger.With(
		zap.String("run_id", blocked.RunID),
		zap.String("assignment_id", blocked.ID),
		zap.String("card_id", blocked.CardID))

	actor := ctxutil.ActorOrSystem(ctx, req.Actor)
	writeCtx := ctxutil.WithProjectID(ctxutil.WithActorID(ctx, actor), req.ProjectID)
	changed, err := s.assignmentRepo.Transition(writeCtx, secondary.AssignmentTransition{
		AssignmentID:   blocked.ID,
		From:           coreassignment.StatusBlocked,
		To:             coreassignment.StatusQueued,
		CardBuildState: coreassignment.BuildStateQueued,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue assignment %s: %w", blocked.ID, err)
	}
	if !changed {
		return &primary.ResumeBlockedResponse{
			Success:      false,
			OutcomeType:  primary.ResumeConflict,
			AssignmentID: blocked.ID,
			RunID:        blocked.RunID,
			Error:        "assignment is no longer blocked",
			Message:      fmt.Sprintf("Assignment %s changed status while resuming", blocked.ID),
		}, nil
	}
	logger.Info("assignment requeued",
		zap.String("from", coreassignment.StatusBlocked),
		zap.String("to", coreassignment.StatusQueued))

	dispatch, accepted, dispatchErr := s.dispatch(ctx, primary.DispatchAssignmentRequest{
		AssignmentID: blocked.ID,
		Actor:        actor,
	})
	if accepted && dispatchErr != nil {
		// The execution is live; putting the assignment back to blocked would hide it.
		logger.Error("resumed assignment dispatched but not recorded", zap.Error(dispatchErr))
		return nil, dispatchErr
	}
	if dispatchErr == nil && dispatch.Success {
		return &primary.ResumeBlockedResponse{
			Success:          true,
			OutcomeType:      primary.ResumeDispatched,
			AssignmentID:     blocked.ID,
			RunID:            blocked.RunID,
			ExecutionID:      dispatch.ExecutionID,
			AgentExecutionID: dispatch.AgentExecutionID,
			Message:          fmt.Sprintf("Assignment %s resumed", blocked.ID),
		}, nil
	}

	reason := "dispatch failed"
	if dispatchErr != nil {
		reason = dispatchErr.Error()
	} else if dispatch.Error != "" {
		reason = dispatch.Error
	}
	if err := s.revertResume(writeCtx, blocked, reason); err != nil {
		logger.Error("failed to revert resumed assignment", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}

	return &primary.ResumeBlockedResponse{
		Success:      false,
		OutcomeType:  primary.ResumeDispatchFailed,
		AssignmentID: blocked.ID,
		RunID:        blocked.RunID,
		Error:        reason,
		Message:      fmt.Sprintf("Dispatch failed; assignment %s is blocked again", blocked.ID),
	}, nil
}

// revertResume is the compensating write for a failed resume: the assignment
// and its card go back to blocked with the dispatch failure recorded.
func (s *AssignmentServiceImpl) revertResume(ctx context.Context, a *secondary.AssignmentRecord, reason string) error {
	changed, err := s.assignmentRepo.Transition(ctx, secondary.AssignmentTransition{
		AssignmentID:   a.ID,
		From:           coreassignment.StatusQueued,
		To:             coreassignment.StatusBlocked,
		CardBuildState: coreassignment.BuildStateBlocked,
		LastError:      reason,
	})
	if err != nil {
		return fmt.Errorf("failed to revert assignment %s to blocked: %w", a.ID, err)
	}
	if !changed {
		current, err := s.assignmentRepo.GetByID(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to revert assignment %s to blocked: %w", a.ID, err)
		}
		return fmt.Errorf("failed to revert assignment %s to blocked: status is %s", a.ID, current.Status)
	}
	s.logger.Warn("resume reverted",
		zap.String("run_id", a.RunID),
		zap.String("assignment_id", a.ID),
		zap.String("card_id", a.CardID),
		zap.String("from", coreassignment.StatusQueued),
		zap.String("to", coreassignment.StatusBlocked),
		zap.String("reason", reason))
	return nil
}

// ReportExecutionStatus applies a status update from the execution client and
// mirrors it onto the card's build state.
func (s *AssignmentServiceImpl) ReportExecutionStatus(ctx context.Context, req primary.ReportExecutionStatusRequest) (*primary.Assignment, error) {
	record, err := s.assignmentRepo.GetByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if guard := coreassignment.CanReportStatus(record.Status, req.Status); !guard.Allowed {
		return nil, apperr.Conflict("%s", guard.Reason)
	}

	lastError := ""
	if req.Status == coreassignment.StatusFailed || req.Status == coreassignment.StatusBlocked {
		lastError = req.Detail
	}

	if run, err := s.runRepo.GetByID(ctx, record.RunID); err == nil {
		ctx = ctxutil.WithProjectID(ctx, run.ProjectID)
	}
	changed, err := s.assignmentRepo.Transition(ctx, secondary.AssignmentTransition{
		AssignmentID:   record.ID,
		From:           record.Status,
		To:             req.Status,
		CardBuildState: coreassignment.BuildStateFor(req.Status),
		LastError:      lastError,
		FinalizeCard:   req.Status == coreassignment.StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update assignment %s: %w", record.ID, err)
	}
	if !changed {
		return nil, apperr.Conflict("assignment %s is no longer %s", record.ID, record.Status)
	}
	s.logger.Info("execution status reported",
		zap.String("run_id", record.RunID),
		zap.String("assignment_id", record.ID),
		zap.String("card_id", record.CardID),
		zap.String("from", record.Status),
		zap.String("to", req.Status))

	return s.GetAssignment(ctx, record.ID)
}

// ListAssignments lists a run's assignments.
func (s *AssignmentServiceImpl) ListAssignments(ctx context.Context, projectID, runID string) ([]*primary.Assignment, error) {
	if _, err := loadRun(ctx, s.runRepo, projectID, runID); err != nil {
		return nil, err
	}
	records, err := s.assignmentRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	assignments := make([]*primary.Assignment, len(records))
	for i, r := range records {
		assignments[i] = recordToAssignment(r)
	}
	return assignments, nil
}

// GetAssignment retrieves an assignment.
func (s *AssignmentServiceImpl) GetAssignment(ctx context.Context, assignmentID string) (*primary.Assignment, error) {
	record, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return recordToAssignment(record), nil
}

func activeRunStatuses() []string {
	statuses := make([]string, len(corerun.ActiveStatuses))
	for i, st := range corerun.ActiveStatuses {
		statuses[i] = string(st)
	}
	return statuses
}

// mergePaths concatenates lists, dropping empty entries and duplicates.
func mergePaths(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, p := range list {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func recordToAssignment(r *secondary.AssignmentRecord) *primary.Assignment {
	input := json.RawMessage(r.AssignmentInputSnapshot)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return &primary.Assignment{
		ID:                      r.ID,
		RunID:                   r.RunID,
		CardID:                  r.CardID,
		AgentRole:               r.AgentRole,
		AgentProfile:            r.AgentProfile,
		FeatureBranch:           r.FeatureBranch,
		WorktreePath:            r.WorktreePath,
		AllowedPaths:            nonNilStrings(r.AllowedPaths),
		ForbiddenPaths:          nonNilStrings(r.ForbiddenPaths),
		AssignmentInputSnapshot: input,
		Status:                  r.Status,
		ExecutionID:             r.ExecutionID,
		AgentExecutionID:        r.AgentExecutionID,
		LastError:               r.LastError,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure AssignmentServiceImpl implements the interface
var _ primary.AssignmentService = (*AssignmentServiceImpl)(nil)

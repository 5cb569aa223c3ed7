package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/gate"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// CheckServiceImpl implements the CheckService interface.
type CheckServiceImpl struct {
	runRepo   secondary.RunRepository
	checkRepo secondary.CheckRepository
	logger    *zap.Logger
}

// NewCheckService creates a new CheckService with injected dependencies.
func NewCheckService(runRepo secondary.RunRepository, checkRepo secondary.CheckRepository, logger *zap.Logger) *CheckServiceImpl {
	return &CheckServiceImpl{
		runRepo:   runRepo,
		checkRepo: checkRepo,
		logger:    logging.Component(logger, "checks"),
	}
}

// RecordCheck records a check result against a run.
func (s *CheckServiceImpl) RecordCheck(ctx context.Context, req primary.RecordCheckRequest) (*primary.Check, error) {
	if _, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.CheckType) == "" {
		return nil, apperr.Validation("check_type is required").WithDetail("check_type", "required")
	}
	if !contains(gate.CheckStatuses, req.Status) {
		return nil, apperr.Validation("status must be one of %s (got %q)", strings.Join(gate.CheckStatuses, ", "), req.Status).
			WithDetail("status", "invalid")
	}

	record := &secondary.CheckRecord{
		ID:        uuid.NewString(),
		RunID:     req.RunID,
		CheckType: req.CheckType,
		Status:    req.Status,
		Output:    req.Output,
	}
	if err := s.checkRepo.Create(ctxutil.WithProjectID(ctx, req.ProjectID), record); err != nil {
		return nil, fmt.Errorf("failed to record check: %w", err)
	}
	s.logger.Info("check recorded",
		zap.String("run_id", req.RunID),
		zap.String("check_type", req.CheckType),
		zap.String("status", req.Status))

	checks, err := s.checkRepo.ListByRun(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	for _, c := range checks {
		if c.ID == record.ID {
			return recordToCheck(c), nil
		}
	}
	return recordToCheck(record), nil
}

// ListChecks lists a run's checks in recording order.
func (s *CheckServiceImpl) ListChecks(ctx context.Context, projectID, runID string) ([]*primary.Check, error) {
	if _, err := loadRun(ctx, s.runRepo, projectID, runID); err != nil {
		return nil, err
	}
	records, err := s.checkRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	checks := make([]*primary.Check, len(records))
	for i, r := range records {
		checks[i] = recordToCheck(r)
	}
	return checks, nil
}

// EvaluateGates evaluates the run's frozen required checks.
func (s *CheckServiceImpl) EvaluateGates(ctx context.Context, projectID, runID string) (*gate.Result, error) {
	run, err := loadRun(ctx, s.runRepo, projectID, runID)
	if err != nil {
		return nil, err
	}
	result, err := evaluateRunGate(ctx, s.checkRepo, run)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// evaluateRunGate checks a run's recorded checks against the required checks
// frozen into its policy snapshot.
func evaluateRunGate(ctx context.Context, checkRepo secondary.CheckRepository, run *secondary.RunRecord) (gate.Result, error) {
	policy, err := corerun.DecodePolicy(run.SystemPolicySnapshot)
	if err != nil {
		return gate.Result{}, fmt.Errorf("failed to read policy of run %s: %w", run.ID, err)
	}
	records, err := checkRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return gate.Result{}, fmt.Errorf("failed to list checks: %w", err)
	}
	recorded := make([]gate.RecordedCheck, len(records))
	for i, r := range records {
		recorded[i] = gate.RecordedCheck{CheckType: r.CheckType, Status: r.Status}
	}
	return gate.ValidateApprovalGates(policy.RequiredChecks, recorded), nil
}

// gateConflict reports a failed gate as a conflict carrying the missing and
// failed check types.
func gateConflict(result gate.Result) error {
	err := apperr.Conflict("%s", result.Summary())
	if len(result.MissingChecks) > 0 {
		err = err.WithDetail("missing_checks", strings.Join(result.MissingChecks, ","))
	}
	if len(result.FailedChecks) > 0 {
		err = err.WithDetail("failed_checks", strings.Join(result.FailedChecks, ","))
	}
	return err
}

// loadRun fetches a run and confirms it belongs to projectID. An empty
// projectID skips the ownership check.
func loadRun(ctx context.Context, runRepo secondary.RunRepository, projectID, runID string) (*secondary.RunRecord, error) {
	run, err := runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if projectID != "" && run.ProjectID != projectID {
		return nil, apperr.NotFound("run %s not found", runID)
	}
	return run, nil
}

func recordToCheck(r *secondary.CheckRecord) *primary.Check {
	return &primary.Check{
		ID:        r.ID,
		RunID:     r.RunID,
		CheckType: r.CheckType,
		Status:    r.Status,
		Output:    r.Output,
		CreatedAt: r.CreatedAt,
	}
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// Ensure CheckServiceImpl implements the interface
var _ primary.CheckService = (*CheckServiceImpl)(nil)

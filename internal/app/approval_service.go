package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/approval"
	"github.com/example/forge/internal/core/gate"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// ApprovalServiceImpl implements the ApprovalService interface.
type ApprovalServiceImpl struct {
	runRepo      secondary.RunRepository
	approvalRepo secondary.ApprovalRepository
	checkRepo    secondary.CheckRepository
	logger       *zap.Logger
}

// NewApprovalService creates a new ApprovalService with injected dependencies.
func NewApprovalService(
	runRepo secondary.RunRepository,
	approvalRepo secondary.ApprovalRepository,
	checkRepo secondary.CheckRepository,
	logger *zap.Logger,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		runRepo:      runRepo,
		approvalRepo: approvalRepo,
		checkRepo:    checkRepo,
		logger:       logging.Component(logger, "approvals"),
	}
}

// RequestApproval opens a pending approval request on a run.
func (s *ApprovalServiceImpl) RequestApproval(ctx context.Context, req primary.RequestApprovalRequest) (*primary.Approval, error) {
	run, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	guard := approval.CanRequest(approval.RequestContext{
		RunID:        req.RunID,
		RunExists:    run != nil,
		RunTerminal:  run != nil && corerun.IsTerminal(corerun.Status(run.Status)),
		ApprovalType: req.ApprovalType,
		RequestedBy:  req.RequestedBy,
	})
	if !guard.Allowed {
		if run == nil {
			return nil, apperr.NotFound("%s", guard.Reason)
		}
		return nil, apperr.Validation("%s", guard.Reason)
	}

	record := &secondary.ApprovalRecord{
		ID:           uuid.NewString(),
		RunID:        run.ID,
		ApprovalType: req.ApprovalType,
		RequestedBy:  req.RequestedBy,
		Status:       approval.StatusPending,
	}
	if err := s.approvalRepo.Create(ctxutil.WithProjectID(ctx, run.ProjectID), record); err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}
	s.logger.Info("approval requested",
		zap.String("run_id", run.ID),
		zap.String("approval_id", record.ID),
		zap.String("approval_type", req.ApprovalType))

	return s.getApproval(ctx, run.ID, record.ID)
}

// ResolveApproval approves or rejects a pending request. Approving requires
// the run's approval gate to pass.
func (s *ApprovalServiceImpl) ResolveApproval(ctx context.Context, req primary.ResolveApprovalRequest) (*primary.Approval, error) {
	run, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID)
	if err != nil {
		return nil, err
	}
	record, err := s.approvalRepo.GetByID(ctx, req.ApprovalID)
	if err != nil {
		return nil, err
	}
	if record.RunID != run.ID {
		return nil, apperr.NotFound("approval %s not found", req.ApprovalID)
	}

	resolve := approval.ResolveContext{
		ApprovalID:    record.ID,
		CurrentStatus: record.Status,
		NewStatus:     req.Status,
		ResolvedBy:    req.ResolvedBy,
		GatePassed:    true,
	}
	var gateResult *gate.Result
	if req.Status == approval.StatusApproved && record.Status == approval.StatusPending {
		result, err := evaluateRunGate(ctx, s.checkRepo, run)
		if err != nil {
			return nil, err
		}
		resolve.GatePassed = result.CanApprove
		resolve.GateSummary = result.Summary()
		gateResult = &result
	}
	if guard := approval.CanResolve(resolve); !guard.Allowed {
		switch {
		case record.Status != approval.StatusPending:
			return nil, apperr.Conflict("%s", guard.Reason)
		case gateResult != nil && !gateResult.CanApprove && strings.TrimSpace(req.ResolvedBy) != "":
			return nil, gateConflict(*gateResult)
		default:
			return nil, apperr.Validation("%s", guard.Reason)
		}
	}

	ctx = ctxutil.WithProjectID(ctxutil.WithActorID(ctx, req.ResolvedBy), run.ProjectID)
	changed, err := s.approvalRepo.Resolve(ctx, record.ID, req.Status, req.ResolvedBy, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approval: %w", err)
	}
	if !changed {
		return nil, apperr.Conflict("approval %s is no longer pending", record.ID)
	}
	s.logger.Info("approval resolved",
		zap.String("run_id", run.ID),
		zap.String("approval_id", record.ID),
		zap.String("from", record.Status),
		zap.String("to", req.Status),
		zap.String("resolved_by", req.ResolvedBy))

	return s.getApproval(ctx, run.ID, record.ID)
}

// ListApprovals lists a run's approval requests.
func (s *ApprovalServiceImpl) ListApprovals(ctx context.Context, projectID, runID string) ([]*primary.Approval, error) {
	if _, err := loadRun(ctx, s.runRepo, projectID, runID); err != nil {
		return nil, err
	}
	records, err := s.approvalRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	approvals := make([]*primary.Approval, len(records))
	for i, r := range records {
		approvals[i] = recordToApproval(r)
	}
	return approvals, nil
}

func (s *ApprovalServiceImpl) getApproval(ctx context.Context, runID, approvalID string) (*primary.Approval, error) {
	record, err := s.approvalRepo.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if record.RunID != runID {
		return nil, apperr.NotFound("approval %s not found", approvalID)
	}
	return recordToApproval(record), nil
}

func recordToApproval(r *secondary.ApprovalRecord) *primary.Approval {
	return &primary.Approval{
		ID:           r.ID,
		RunID:        r.RunID,
		ApprovalType: r.ApprovalType,
		RequestedBy:  r.RequestedBy,
		Status:       r.Status,
		ResolvedBy:   r.ResolvedBy,
		Notes:        r.Notes,
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
	}
}

// Ensure ApprovalServiceImpl implements the interface
var _ primary.ApprovalService = (*ApprovalServiceImpl)(nil)

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	corepr "github.com/example/forge/internal/core/pr"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

// PRCandidateServiceImpl implements the PRCandidateService interface.
type PRCandidateServiceImpl struct {
	runRepo   secondary.RunRepository
	prRepo    secondary.PRCandidateRepository
	checkRepo secondary.CheckRepository
	logger    *zap.Logger
}

// NewPRCandidateService creates a new PRCandidateService with injected dependencies.
func NewPRCandidateService(
	runRepo secondary.RunRepository,
	prRepo secondary.PRCandidateRepository,
	checkRepo secondary.CheckRepository,
	logger *zap.Logger,
) *PRCandidateServiceImpl {
	return &PRCandidateServiceImpl{
		runRepo:   runRepo,
		prRepo:    prRepo,
		checkRepo: checkRepo,
		logger:    logging.Component(logger, "pr_candidates"),
	}
}

// CreatePRCandidate creates a draft candidate. The base branch defaults to
// the run's base branch.
func (s *PRCandidateServiceImpl) CreatePRCandidate(ctx context.Context, req primary.CreatePRCandidateRequest) (*primary.PRCandidate, error) {
	run, err := loadRun(ctx, s.runRepo, req.ProjectID, req.RunID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	base := req.BaseBranch
	if base == "" && run != nil {
		base = run.BaseBranch
	}
	guard := corepr.CanCreatePR(corepr.CreatePRContext{
		RunID:      req.RunID,
		RunExists:  run != nil,
		BaseBranch: base,
		HeadBranch: req.HeadBranch,
		Title:      req.Title,
	})
	if !guard.Allowed {
		if run == nil {
			return nil, apperr.NotFound("%s", guard.Reason)
		}
		return nil, apperr.Validation("%s", guard.Reason)
	}

	record := &secondary.PRCandidateRecord{
		ID:          uuid.NewString(),
		RunID:       run.ID,
		BaseBranch:  base,
		HeadBranch:  req.HeadBranch,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      corepr.StatusDraft,
	}
	if err := s.prRepo.Create(ctxutil.WithProjectID(ctx, run.ProjectID), record); err != nil {
		return nil, fmt.Errorf("failed to create PR candidate: %w", err)
	}
	s.logger.Info("PR candidate created",
		zap.String("run_id", run.ID),
		zap.String("pr_id", record.ID),
		zap.String("head_branch", req.HeadBranch))

	return s.get(ctx, primary.PRCandidateRef{ProjectID: req.ProjectID, RunID: run.ID, PRID: record.ID})
}

// OpenPRCandidate moves a draft to open once the run's gate passes.
func (s *PRCandidateServiceImpl) OpenPRCandidate(ctx context.Context, ref primary.PRCandidateRef) (*primary.PRCandidate, error) {
	run, record, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	result, err := evaluateRunGate(ctx, s.checkRepo, run)
	if err != nil {
		return nil, err
	}
	guard := corepr.CanOpenPR(corepr.OpenPRContext{
		PRID:        record.ID,
		Status:      record.Status,
		GatePassed:  result.CanApprove,
		GateSummary: result.Summary(),
	})
	if !guard.Allowed {
		if record.Status == corepr.StatusDraft {
			return nil, gateConflict(result)
		}
		return nil, apperr.Conflict("%s", guard.Reason)
	}
	return s.move(ctx, ref, run, record, corepr.StatusOpen)
}

// MergePRCandidate marks an open candidate merged.
func (s *PRCandidateServiceImpl) MergePRCandidate(ctx context.Context, ref primary.PRCandidateRef) (*primary.PRCandidate, error) {
	run, record, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if guard := corepr.CanMergePR(corepr.MergePRContext{PRID: record.ID, Status: record.Status}); !guard.Allowed {
		return nil, apperr.Conflict("%s", guard.Reason)
	}
	return s.move(ctx, ref, run, record, corepr.StatusMerged)
}

// ClosePRCandidate closes a draft or open candidate.
func (s *PRCandidateServiceImpl) ClosePRCandidate(ctx context.Context, ref primary.PRCandidateRef) (*primary.PRCandidate, error) {
	run, record, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if guard := corepr.CanClosePR(corepr.ClosePRContext{PRID: record.ID, Status: record.Status}); !guard.Allowed {
		return nil, apperr.Conflict("%s", guard.Reason)
	}
	return s.move(ctx, ref, run, record, corepr.StatusClosed)
}

// UpdatePRURL records the URL of the pull request opened for a candidate.
func (s *PRCandidateServiceImpl) UpdatePRURL(ctx context.Context, ref primary.PRCandidateRef, url string) (*primary.PRCandidate, error) {
	run, record, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apperr.Validation("pr_url is required").WithDetail("pr_url", "required")
	}
	if err := s.prRepo.UpdateURL(ctxutil.WithProjectID(ctx, run.ProjectID), record.ID, url); err != nil {
		return nil, fmt.Errorf("failed to update PR URL: %w", err)
	}
	return s.get(ctx, ref)
}

// ListPRCandidates lists a run's candidates.
func (s *PRCandidateServiceImpl) ListPRCandidates(ctx context.Context, projectID, runID string) ([]*primary.PRCandidate, error) {
	if _, err := loadRun(ctx, s.runRepo, projectID, runID); err != nil {
		return nil, err
	}
	records, err := s.prRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list PR candidates: %w", err)
	}
	prs := make([]*primary.PRCandidate, len(records))
	for i, r := range records {
		prs[i] = recordToPRCandidate(r)
	}
	return prs, nil
}

func (s *PRCandidateServiceImpl) load(ctx context.Context, ref primary.PRCandidateRef) (*secondary.RunRecord, *secondary.PRCandidateRecord, error) {
	run, err := loadRun(ctx, s.runRepo, ref.ProjectID, ref.RunID)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.prRepo.GetByID(ctx, ref.PRID)
	if err != nil {
		return nil, nil, err
	}
	if record.RunID != run.ID {
		return nil, nil, apperr.NotFound("PR candidate %s not found", ref.PRID)
	}
	return run, record, nil
}

func (s *PRCandidateServiceImpl) move(ctx context.Context, ref primary.PRCandidateRef, run *secondary.RunRecord, record *secondary.PRCandidateRecord, to string) (*primary.PRCandidate, error) {
	changed, err := s.prRepo.UpdateStatus(ctxutil.WithProjectID(ctx, run.ProjectID), record.ID, record.Status, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update PR candidate: %w", err)
	}
	if !changed {
		return nil, apperr.Conflict("PR candidate %s is no longer %s", record.ID, record.Status)
	}
	s.logger.Info("PR candidate transitioned",
		zap.String("run_id", run.ID),
		zap.String("pr_id", record.ID),
		zap.String("from", record.Status),
		zap.String("to", to))
	return s.get(ctx, ref)
}

func (s *PRCandidateServiceImpl) get(ctx context.Context, ref primary.PRCandidateRef) (*primary.PRCandidate, error) {
	_, record, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return recordToPRCandidate(record), nil
}

func recordToPRCandidate(r *secondary.PRCandidateRecord) *primary.PRCandidate {
	return &primary.PRCandidate{
		ID:          r.ID,
		RunID:       r.RunID,
		BaseBranch:  r.BaseBranch,
		HeadBranch:  r.HeadBranch,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		PRURL:       r.PRURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Ensure PRCandidateServiceImpl implements the interface
var _ primary.PRCandidateService = (*PRCandidateServiceImpl)(nil)

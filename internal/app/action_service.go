package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
	"github.com/example/forge/internal/telemetry"
)

// ActionServiceImpl implements the ActionService interface.
// Batches for one project are applied one at a time.
type ActionServiceImpl struct {
	planningRepo secondary.PlanningRepository
	locks        *keyedMutex
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewActionService creates a new ActionService with injected dependencies.
func NewActionService(planningRepo secondary.PlanningRepository, logger *zap.Logger) *ActionServiceImpl {
	return &ActionServiceImpl{
		planningRepo: planningRepo,
		locks:        newKeyedMutex(),
		logger:       logging.Component(logger, "actions"),
		tracer:       telemetry.Tracer(),
	}
}

// ApplyActionBatch validates the batch shape, then evaluates each action in
// order against the state left by the accepted actions before it. Accepted
// actions are persisted one transaction each; rejected ones are reported and
// the batch continues.
func (s *ActionServiceImpl) ApplyActionBatch(ctx context.Context, req primary.ApplyActionsRequest) (*primary.ApplyActionsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "actions.apply", trace.WithAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.Int("batch_size", len(req.Actions)),
	))
	defer span.End()

	parsed, err := planning.ValidateShape(req.ProjectID, req.Actions)
	if err != nil {
		span.SetStatus(codes.Error, "invalid batch")
		return nil, shapeError(err)
	}

	unlock := s.locks.Lock(req.ProjectID)
	defer unlock()

	state, err := s.planningRepo.LoadProjectState(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", req.ProjectID, err)
	}
	if state == nil {
		return nil, apperr.NotFound("project %s not found", req.ProjectID)
	}

	for i, a := range planning.AssignActionIDs(req.Actions, state) {
		parsed[i].ID = a.ID
	}

	actor := ctxutil.ActorOrSystem(ctx, req.Actor)
	batch := planning.NewBatch(state)
	resp := &primary.ApplyActionsResponse{Results: make([]planning.Result, 0, len(parsed))}

	for _, a := range parsed {
		out := batch.Evaluate(a)
		if out.Mutation != nil {
			if err := s.planningRepo.ApplyMutation(ctx, req.ProjectID, actor, out.Mutation); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "mutation failed")
				s.logger.Error("failed to persist action",
					zap.String("project_id", req.ProjectID),
					zap.String("action_id", out.Result.ActionID),
					zap.Int("applied_before_failure", resp.Applied),
					zap.Error(err))
				return nil, fmt.Errorf("failed to apply action %s: %w", out.Result.ActionID, err)
			}
			resp.Applied++
		} else {
			s.logger.Debug("action rejected",
				zap.String("project_id", req.ProjectID),
				zap.String("action_id", out.Result.ActionID),
				zap.String("reason", out.Result.Reason))
		}
		resp.Results = append(resp.Results, out.Result)
	}

	tally := planning.TallyResults(resp.Results)
	span.SetAttributes(attribute.Int("applied", tally.Accepted), attribute.Int("rejected", tally.Rejected))
	s.logger.Info("action batch applied",
		zap.String("project_id", req.ProjectID),
		zap.String("actor", actor),
		zap.Int("accepted", tally.Accepted),
		zap.Int("rejected", tally.Rejected))

	return resp, nil
}

// PreviewActionBatch predicts the batch's outcome against the current
// snapshot without writing anything.
func (s *ActionServiceImpl) PreviewActionBatch(ctx context.Context, req primary.ApplyActionsRequest) (*primary.PreviewActionsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "actions.preview", trace.WithAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.Int("batch_size", len(req.Actions)),
	))
	defer span.End()

	if _, err := planning.ValidateShape(req.ProjectID, req.Actions); err != nil {
		span.SetStatus(codes.Error, "invalid batch")
		return nil, shapeError(err)
	}

	state, err := s.planningRepo.LoadProjectState(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", req.ProjectID, err)
	}
	if state == nil {
		return nil, apperr.NotFound("project %s not found", req.ProjectID)
	}

	previews := planning.PreviewActionBatch(req.Actions, state)
	tally := planning.TallyResults(planning.PreviewResults(previews))
	span.SetAttributes(attribute.Int("accepted", tally.Accepted), attribute.Int("rejected", tally.Rejected))

	return &primary.PreviewActionsResponse{
		Previews: previews,
		Summary:  tally.String(),
	}, nil
}

// shapeError converts a batch shape failure into a validation error keyed by field.
func shapeError(err error) error {
	var shapeErr *planning.ShapeError
	if !errors.As(err, &shapeErr) {
		return apperr.Validation("%s", err.Error())
	}
	appErr := apperr.Validation("%s", shapeErr.Error())
	for field, msg := range shapeErr.Details() {
		appErr = appErr.WithDetail(field, msg)
	}
	return appErr
}

// Ensure ActionServiceImpl implements the interface
var _ primary.ActionService = (*ActionServiceImpl)(nil)

package app

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/primary"
)

func newTestActionService() (*ActionServiceImpl, *mockPlanningRepository) {
	repo := newMockPlanningRepository()
	return NewActionService(repo, zap.NewNop()), repo
}

func TestApplyActionBatch_PerActionIsolation(t *testing.T) {
	service, repo := newTestActionService()

	resp, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: testProject,
		Actor:     "alice",
		Actions: []planning.Action{
			action("a1", planning.ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-404"}`, `{"title":"orphan"}`),
			action("a2", planning.ActionUpdateCard, `{"card_id":"card-1"}`, `{"title":"Product grid"}`),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Applied != 1 {
		t.Errorf("expected 1 applied, got %d", resp.Applied)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Accepted() || resp.Results[0].Reason == "" {
		t.Errorf("expected first action rejected with a reason, got %+v", resp.Results[0])
	}
	if !resp.Results[1].Accepted() {
		t.Errorf("expected second action accepted, got %s", resp.Results[1].Reason)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("expected 1 persisted mutation, got %d", len(repo.applied))
	}
	if repo.actors[0] != "alice" {
		t.Errorf("expected actor alice, got %q", repo.actors[0])
	}
	if got := repo.states[testProject].Card("card-1").Title; got != "Product grid" {
		t.Errorf("expected stored title updated, got %q", got)
	}
}

func TestApplyActionBatch_ShapeErrorAppliesNothing(t *testing.T) {
	service, repo := newTestActionService()

	_, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: testProject,
		Actions: []planning.Action{
			action("a1", planning.ActionUpdateCard, `{"card_id":"card-1"}`, `{"title":"fine"}`),
			action("a2", planning.ActionCreateWorkflow, "", `{}`),
		},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(apperr.DetailsOf(err)) == 0 {
		t.Error("expected field details on the validation error")
	}
	if repo.applyCalls != 0 {
		t.Errorf("expected no writes, got %d", repo.applyCalls)
	}
}

func TestApplyActionBatch_EmptyBatch(t *testing.T) {
	service, _ := newTestActionService()

	_, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty batch, got %v", err)
	}
}

func TestApplyActionBatch_UnknownProject(t *testing.T) {
	service, _ := newTestActionService()

	_, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: "proj-404",
		Actions:   []planning.Action{action("a1", planning.ActionCreateWorkflow, "", `{"title":"x"}`)},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestApplyActionBatch_AssignsMissingActionIDs(t *testing.T) {
	service, _ := newTestActionService()

	resp, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: testProject,
		Actions: []planning.Action{
			action("", planning.ActionCreateWorkflow, "", `{"title":"One"}`),
			action("", planning.ActionCreateWorkflow, "", `{"title":"Two"}`),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, second := resp.Results[0], resp.Results[1]
	if first.ActionID == "" || second.ActionID == "" || first.ActionID == second.ActionID {
		t.Errorf("expected distinct generated action ids, got %q and %q", first.ActionID, second.ActionID)
	}
	if first.CreatedIDs[0] == second.CreatedIDs[0] {
		t.Error("expected distinct created ids")
	}
}

func TestApplyActionBatch_StorageFailureStopsBatch(t *testing.T) {
	service, repo := newTestActionService()
	repo.applyErr = errors.New("disk I/O error")
	repo.failOnApply = 2

	_, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: testProject,
		Actions: []planning.Action{
			action("a1", planning.ActionUpdateCard, `{"card_id":"card-1"}`, `{"title":"first"}`),
			action("a2", planning.ActionUpdateCard, `{"card_id":"card-2"}`, `{"title":"second"}`),
			action("a3", planning.ActionUpdateCard, `{"card_id":"card-1"}`, `{"priority":2}`),
		},
	})
	if err == nil {
		t.Fatal("expected storage error")
	}
	if apperr.Code(err) != apperr.CodeInternal {
		t.Errorf("expected internal error code, got %s", apperr.Code(err))
	}
	if len(repo.applied) != 1 || repo.applyCalls != 2 {
		t.Errorf("expected one persisted action and no attempt after the failure, got %d applied in %d calls", len(repo.applied), repo.applyCalls)
	}
}

func TestPreviewActionBatch_PredictsApply(t *testing.T) {
	actions := []planning.Action{
		action("a1", planning.ActionCreateWorkflow, "", `{"title":"Onboarding","temp_id":"wf-new"}`),
		action("a2", planning.ActionCreateActivity, `{"workflow_id":"wf-new"}`, `{"title":"Sign up"}`),
		action("a3", planning.ActionCreateCard, `{"workflow_id":"wf-new","activity_id":"a2"}`, `{"title":"Email form"}`),
		action("a4", planning.ActionUpdateCard, `{"card_id":"card-1"}`, `{"status":"active"}`),
		action("a5", planning.ActionReorderCard, `{"card_id":"card-2"}`, `{"new_position":0}`),
		action("a6", planning.ActionUpdateCard, `{"card_id":"card-404"}`, `{"title":"missing"}`),
	}

	previewService, previewRepo := newTestActionService()
	preview, err := previewService.PreviewActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject, Actions: actions})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if previewRepo.applyCalls != 0 {
		t.Errorf("preview wrote %d mutations", previewRepo.applyCalls)
	}

	applyService, _ := newTestActionService()
	applied, err := applyService.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject, Actions: actions})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(preview.Previews) != len(applied.Results) {
		t.Fatalf("expected %d previews, got %d", len(applied.Results), len(preview.Previews))
	}
	for i, p := range preview.Previews {
		got := applied.Results[i]
		if p.ValidationStatus != got.ValidationStatus {
			t.Errorf("action %d: preview %s, apply %s", i, p.ValidationStatus, got.ValidationStatus)
		}
		if !reflect.DeepEqual(p.CreatedIDs, got.CreatedIDs) ||
			!reflect.DeepEqual(p.UpdatedIDs, got.UpdatedIDs) ||
			!reflect.DeepEqual(p.ReorderedIDs, got.ReorderedIDs) {
			t.Errorf("action %d: preview %+v does not match apply %+v", i, p.Result, got)
		}
	}
	if preview.Summary == "" {
		t.Error("expected a summary")
	}
}

func TestPreviewActionBatch_PredictsApplyWithoutActionIDs(t *testing.T) {
	actions := []planning.Action{
		action("", planning.ActionCreateWorkflow, "", `{"title":"W"}`),
		action("", planning.ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-1"}`, `{"title":"C"}`),
	}
	service, _ := newTestActionService()

	preview, err := service.PreviewActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject, Actions: actions})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	applied, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject, Actions: actions})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	for i, p := range preview.Previews {
		got := applied.Results[i]
		if p.ActionID != got.ActionID {
			t.Errorf("action %d: preview id %q, apply id %q", i, p.ActionID, got.ActionID)
		}
		if !reflect.DeepEqual(p.CreatedIDs, got.CreatedIDs) {
			t.Errorf("action %d: preview created %v, apply created %v", i, p.CreatedIDs, got.CreatedIDs)
		}
	}

	again, err := service.ApplyActionBatch(context.Background(), primary.ApplyActionsRequest{ProjectID: testProject, Actions: actions})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if again.Applied != 2 {
		t.Errorf("expected resubmitted batch to apply against the new snapshot, got %d applied", again.Applied)
	}
	if again.Results[0].CreatedIDs[0] == applied.Results[0].CreatedIDs[0] {
		t.Error("expected new ids once the snapshot changed")
	}
}

func TestPreviewActionBatch_InvalidShape(t *testing.T) {
	service, _ := newTestActionService()

	_, err := service.PreviewActionBatch(context.Background(), primary.ApplyActionsRequest{
		ProjectID: testProject,
		Actions:   []planning.Action{{ID: "a1", ActionType: "deleteEverything"}},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

package planning

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateShape_EmptyBatch(t *testing.T) {
	_, err := ValidateShape(testProject, nil)
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "non-empty") {
		t.Errorf("expected non-empty message, got %q", err.Error())
	}
}

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr string
	}{
		{
			name:    "unknown action type is named",
			action:  act("a1", "deleteEverything", `{}`, `{}`),
			wantErr: `unknown action_type "deleteEverything"`,
		},
		{
			name:    "createWorkflow requires title",
			action:  act("a1", ActionCreateWorkflow, `{}`, `{"description":"x"}`),
			wantErr: "payload.title is required",
		},
		{
			name:    "createActivity requires workflow_id",
			action:  act("a1", ActionCreateActivity, `{}`, `{"title":"x"}`),
			wantErr: "target_ref.workflow_id is required",
		},
		{
			name:    "createCard rejects unknown status",
			action:  act("a1", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-1"}`, `{"title":"x","status":"done"}`),
			wantErr: "payload.status must be one of",
		},
		{
			name:    "createStep rejects negative position",
			action:  act("a1", ActionCreateStep, `{"activity_id":"act-1"}`, `{"title":"x","position":-1}`),
			wantErr: "payload.position must be >= 0",
		},
		{
			name:    "updateCard needs at least one field",
			action:  act("a1", ActionUpdateCard, `{"card_id":"card-1"}`, `{}`),
			wantErr: "payload must set at least one of",
		},
		{
			name:    "reorderCard requires new_position",
			action:  act("a1", ActionReorderCard, `{"card_id":"card-1"}`, `{}`),
			wantErr: "payload.new_position is required",
		},
		{
			name:    "planned file action enum",
			action:  act("a1", ActionUpsertCardPlannedFile, `{"card_id":"card-1"}`, `{"logical_file_name":"a.go","artifact_kind":"code","action":"rename"}`),
			wantErr: "payload.action must be one of",
		},
		{
			name:    "knowledge item type enum",
			action:  act("a1", ActionUpsertCardKnowledgeItem, `{"card_id":"card-1"}`, `{"item_type":"rumor","text":"x"}`),
			wantErr: "payload.item_type must be one of",
		},
		{
			name:    "knowledge confidence range",
			action:  act("a1", ActionUpsertCardKnowledgeItem, `{"card_id":"card-1"}`, `{"item_type":"fact","text":"x","confidence":1.5}`),
			wantErr: "payload.confidence must be between 0 and 1",
		},
		{
			name:    "set knowledge status requires item id",
			action:  act("a1", ActionSetCardKnowledgeStatus, `{"card_id":"card-1"}`, `{"item_type":"fact","status":"approved"}`),
			wantErr: "target_ref.knowledge_item_id is required",
		},
		{
			name:    "context artifact needs content or uri",
			action:  act("a1", ActionCreateContextArtifact, `{}`, `{"name":"PRD","type":"doc"}`),
			wantErr: "payload.content or payload.uri is required",
		},
		{
			name:    "malformed payload",
			action:  act("a1", ActionCreateWorkflow, `{}`, `{"title": 5}`),
			wantErr: "payload is malformed",
		},
		{
			name: "project mismatch",
			action: Action{
				ID: "a1", ProjectID: "proj-other", ActionType: ActionCreateWorkflow,
				Payload: []byte(`{"title":"x"}`),
			},
			wantErr: "does not match project proj-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateShape(testProject, []Action{tt.action})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateShape_OneBadActionRejectsBatch(t *testing.T) {
	_, err := ValidateShape(testProject, []Action{
		act("a1", ActionCreateWorkflow, "", `{"title":"ok"}`),
		act("a2", ActionCreateWorkflow, "", `{}`),
	})
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	details := shapeErr.Details()
	if _, ok := details["actions[1].payload.title"]; !ok {
		t.Errorf("expected detail for actions[1].payload.title, got %v", details)
	}
}

func TestValidateShape_DecodesTypedShapes(t *testing.T) {
	parsed, err := ValidateShape(testProject, []Action{
		act("a1", ActionUpdateCard, `{"card_id":"card-1"}`, `{"status":"review"}`),
		act("a2", ActionCreateWorkflow, "", `{"title":"New","temp_id":"tmp-wf"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	update, ok := parsed[0].Body.(CardUpdate)
	if !ok {
		t.Fatalf("expected CardUpdate, got %T", parsed[0].Body)
	}
	if update.Title != nil || update.Status == nil || *update.Status != "review" {
		t.Errorf("unexpected update fields: %+v", update)
	}
	if parsed[1].TempID() != "tmp-wf" {
		t.Errorf("expected temp id tmp-wf, got %q", parsed[1].TempID())
	}
	if parsed[1].Ordinal != 1 {
		t.Errorf("expected ordinal 1, got %d", parsed[1].Ordinal)
	}
}

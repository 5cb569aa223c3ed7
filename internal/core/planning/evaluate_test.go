package planning

import (
	"reflect"
	"strings"
	"testing"
)

func TestEvaluate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		action     Action
		wantReason string
	}{
		{
			name:       "createCard with unknown workflow",
			action:     act("a1", ActionCreateCard, `{"workflow_id":"wf-404","activity_id":"act-1"}`, `{"title":"x"}`),
			wantReason: "workflow wf-404 not found in project proj-1",
		},
		{
			name:       "createCard with activity from another workflow",
			action:     act("a1", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-3"}`, `{"title":"x"}`),
			wantReason: "activity act-3 does not belong to workflow wf-1",
		},
		{
			name:       "createCard with step from another activity",
			action:     act("a1", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-2","step_id":"step-1"}`, `{"title":"x"}`),
			wantReason: "step step-1 does not belong to activity act-2",
		},
		{
			name:       "createStep under unknown activity",
			action:     act("a1", ActionCreateStep, `{"activity_id":"act-404"}`, `{"title":"x"}`),
			wantReason: "activity act-404 not found",
		},
		{
			name:       "updateCard unknown card",
			action:     act("a1", ActionUpdateCard, `{"card_id":"card-404"}`, `{"title":"x"}`),
			wantReason: "card card-404 not found in project proj-1",
		},
		{
			name:       "knowledge upsert with another card's item",
			action:     act("a1", ActionUpsertCardKnowledgeItem, `{"card_id":"card-2"}`, `{"item_type":"requirement","id":"req-1","text":"steal"}`),
			wantReason: "knowledge item req-1 does not belong to card card-2",
		},
		{
			name:       "knowledge upsert changing item type",
			action:     act("a1", ActionUpsertCardKnowledgeItem, `{"card_id":"card-1"}`, `{"item_type":"fact","id":"req-1","text":"x"}`),
			wantReason: "knowledge item req-1 is a requirement, not a fact",
		},
		{
			name:       "set knowledge status on another card's item",
			action:     act("a1", ActionSetCardKnowledgeStatus, `{"card_id":"card-3","knowledge_item_id":"q-1"}`, `{"item_type":"question","status":"approved"}`),
			wantReason: "knowledge item q-1 does not belong to card card-3",
		},
		{
			name:       "planned file upsert with another card's file",
			action:     act("a1", ActionUpsertCardPlannedFile, `{"card_id":"card-2"}`, `{"id":"pf-1","logical_file_name":"a.go","artifact_kind":"code","action":"modify"}`),
			wantReason: "planned file pf-1 does not belong to card card-2",
		},
		{
			name:       "approve unknown planned file",
			action:     act("a1", ActionApproveCardPlannedFile, `{"card_id":"card-1","planned_file_id":"pf-404"}`, `{}`),
			wantReason: "planned file pf-404 not found",
		},
		{
			name:       "duplicate artifact link",
			action:     act("a1", ActionLinkContextArtifact, `{"card_id":"card-2"}`, `{"context_artifact_id":"ca-1"}`),
			wantReason: "context artifact ca-1 is already linked to card card-2",
		},
		{
			name:       "link unknown artifact",
			action:     act("a1", ActionLinkContextArtifact, `{"card_id":"card-2"}`, `{"context_artifact_id":"ca-404"}`),
			wantReason: "context artifact ca-404 not found",
		},
		{
			name:       "reorder into step of another activity",
			action:     act("a1", ActionReorderCard, `{"card_id":"card-1"}`, `{"new_position":0,"activity_id":"act-2","step_id":"step-1"}`),
			wantReason: "step step-1 does not belong to activity act-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := fixtureState()
			outcomes, err := evaluateAll(state, tt.action)
			if err != nil {
				t.Fatalf("unexpected shape error: %v", err)
			}
			got := outcomes[0]
			if got.Result.ValidationStatus != StatusRejected {
				t.Fatalf("expected rejected, got %s", got.Result.ValidationStatus)
			}
			if !strings.Contains(got.Result.Reason, tt.wantReason) {
				t.Errorf("expected reason containing %q, got %q", tt.wantReason, got.Result.Reason)
			}
			if got.Mutation != nil {
				t.Errorf("expected no mutation for rejected action, got %T", got.Mutation)
			}
		})
	}
}

func TestEvaluate_TempIDChain(t *testing.T) {
	state := fixtureState()
	outcomes, err := evaluateAll(state,
		act("a1", ActionCreateWorkflow, "", `{"title":"Onboarding","temp_id":"wf-new"}`),
		act("a2", ActionCreateActivity, `{"workflow_id":"wf-new"}`, `{"title":"Sign up"}`),
		// references the activity through its creating action id
		act("a3", ActionCreateCard, `{"workflow_id":"wf-new","activity_id":"a2"}`, `{"title":"Email form","temp_id":"card-new"}`),
		act("a4", ActionUpsertCardKnowledgeItem, `{"card_id":"card-new"}`, `{"item_type":"requirement","text":"validate email"}`),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, o := range outcomes {
		if !o.Result.Accepted() {
			t.Fatalf("action %d rejected: %s", i, o.Result.Reason)
		}
		if len(o.Result.CreatedIDs) != 1 {
			t.Fatalf("action %d: expected one created id, got %v", i, o.Result.CreatedIDs)
		}
	}

	workflowID := outcomes[0].Result.CreatedIDs[0]
	activityID := outcomes[1].Result.CreatedIDs[0]
	cardID := outcomes[2].Result.CreatedIDs[0]

	if workflowID != DeriveID(testProject, "a1", 0) {
		t.Errorf("workflow id %s is not derived from action a1", workflowID)
	}
	if a := state.Activity(activityID); a == nil || a.WorkflowID != workflowID {
		t.Errorf("activity not attached to new workflow: %+v", a)
	}
	c := state.Card(cardID)
	if c == nil || c.ActivityID != activityID {
		t.Fatalf("card not attached to new activity: %+v", c)
	}
	if len(c.Knowledge) != 1 || c.Knowledge[0].Text != "validate email" {
		t.Errorf("expected knowledge item on new card, got %+v", c.Knowledge)
	}
	if w := state.Workflow(workflowID); w.Position != 2 {
		t.Errorf("expected appended workflow at position 2, got %d", w.Position)
	}
}

func TestEvaluate_PerActionIsolation(t *testing.T) {
	state := fixtureState()
	outcomes, err := evaluateAll(state,
		act("a1", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-404"}`, `{"title":"orphan"}`),
		act("a2", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-2"}`, `{"title":"Pay button"}`),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcomes[0].Result.Accepted() {
		t.Error("expected first action rejected")
	}
	if !outcomes[1].Result.Accepted() {
		t.Fatalf("expected second action accepted, got %s", outcomes[1].Result.Reason)
	}
	if got := cardIDs(state.Activity("act-2").Cards); len(got) != 1 {
		t.Errorf("expected one card in act-2, got %v", got)
	}
}

func TestEvaluate_ReplayRejected(t *testing.T) {
	state := fixtureState()
	create := act("a1", ActionCreateWorkflow, "", `{"title":"Once"}`)

	first, err := evaluateAll(state, create)
	if err != nil || !first[0].Result.Accepted() {
		t.Fatalf("first apply failed: %v %+v", err, first)
	}

	second, err := evaluateAll(state, create)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second[0].Result.Accepted() {
		t.Fatal("expected replay to be rejected")
	}
	if !strings.Contains(second[0].Result.Reason, "already applied") {
		t.Errorf("unexpected reason %q", second[0].Result.Reason)
	}
}

func TestEvaluate_CreateCardAppendsAtCount(t *testing.T) {
	state := fixtureState()
	outcomes, _ := evaluateAll(state,
		act("a1", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-1"}`, `{"title":"Reviews"}`),
		act("a2", ActionCreateCard, `{"workflow_id":"wf-1","activity_id":"act-1","step_id":"step-1"}`, `{"title":"Filters","priority":2}`),
	)
	direct := state.Card(outcomes[0].Result.CreatedIDs[0])
	if direct.Position != 2 || direct.Status != CardStatusTodo {
		t.Errorf("expected direct card at position 2 with status todo, got %d %s", direct.Position, direct.Status)
	}
	inStep := state.Card(outcomes[1].Result.CreatedIDs[0])
	if inStep.Position != 1 || inStep.StepID != "step-1" || inStep.Priority != 2 {
		t.Errorf("unexpected step card: %+v", inStep)
	}
}

func TestEvaluate_UpdateCardTouchesOnlySetFields(t *testing.T) {
	state := fixtureState()
	outcomes, _ := evaluateAll(state,
		act("a1", ActionUpdateCard, `{"card_id":"card-1"}`, `{"status":"review","priority":3}`),
	)
	if !reflect.DeepEqual(outcomes[0].Result.UpdatedIDs, []string{"card-1"}) {
		t.Errorf("unexpected updated ids %v", outcomes[0].Result.UpdatedIDs)
	}
	c := state.Card("card-1")
	if c.Title != "Product list" || c.Status != CardStatusReview || c.Priority != 3 {
		t.Errorf("unexpected card after update: %+v", c)
	}
}

func TestEvaluate_KnowledgeAndPlannedFiles(t *testing.T) {
	state := fixtureState()
	outcomes, _ := evaluateAll(state,
		act("a1", ActionUpsertCardKnowledgeItem, `{"card_id":"card-1"}`, `{"item_type":"requirement","id":"req-1","text":"paginate by 20","status":"approved"}`),
		act("a2", ActionSetCardKnowledgeStatus, `{"card_id":"card-1","knowledge_item_id":"q-1"}`, `{"item_type":"question","status":"rejected"}`),
		act("a3", ActionUpsertCardPlannedFile, `{"card_id":"card-1"}`, `{"logical_file_name":"list_test.go","artifact_kind":"test","action":"create","temp_id":"pf-new"}`),
		act("a4", ActionApproveCardPlannedFile, `{"card_id":"card-1","planned_file_id":"pf-new"}`, `{}`),
		act("a5", ActionCreateContextArtifact, "", `{"name":"API","type":"spec","uri":"https://example.com/api"}`),
		act("a6", ActionLinkContextArtifact, `{"card_id":"card-1"}`, `{"context_artifact_id":"a5"}`),
	)
	for i, o := range outcomes {
		if !o.Result.Accepted() {
			t.Fatalf("action %d rejected: %s", i, o.Result.Reason)
		}
	}

	req := state.KnowledgeItem("req-1")
	if req.Text != "paginate by 20" || req.Status != KnowledgeApproved {
		t.Errorf("unexpected requirement: %+v", req)
	}
	if q := state.KnowledgeItem("q-1"); q.Status != KnowledgeRejected || q.Confidence == nil {
		t.Errorf("unexpected question: %+v", q)
	}
	newFile := state.PlannedFile(outcomes[2].Result.CreatedIDs[0])
	if newFile.Status != PlannedFileApproved || newFile.Position != 1 {
		t.Errorf("unexpected planned file: %+v", newFile)
	}
	artifactID := outcomes[4].Result.CreatedIDs[0]
	if !reflect.DeepEqual(state.Card("card-1").ContextArtifactIDs, []string{artifactID}) {
		t.Errorf("expected artifact link, got %v", state.Card("card-1").ContextArtifactIDs)
	}
}

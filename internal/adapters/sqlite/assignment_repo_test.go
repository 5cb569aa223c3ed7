package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/forge/internal/adapters/sqlite"
	"github.com/example/forge/internal/ports/secondary"
)

func newAssignment(id string) *secondary.AssignmentRecord {
	return &secondary.AssignmentRecord{
		ID:                      id,
		RunID:                   "run-1",
		CardID:                  "card-1",
		AgentRole:               "coder",
		FeatureBranch:           "feat/login",
		AllowedPaths:            []string{"src/auth/"},
		ForbiddenPaths:          []string{".env"},
		AssignmentInputSnapshot: `{"card_id":"card-1"}`,
	}
}

func cardBuildState(t *testing.T, repo *sqlite.PlanningRepository, cardID string) string {
	t.Helper()
	card, err := repo.GetCard(context.Background(), cardID)
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	return card.BuildState
}

func TestAssignmentRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAssignmentRepository(db)
	cards := sqlite.NewPlanningRepository(db)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "running")

	if err := repo.Create(ctx, newAssignment("asg-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("create queues the assignment and its card", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "asg-1")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != "queued" {
			t.Errorf("status = %s, want queued", got.Status)
		}
		if len(got.AllowedPaths) != 1 || got.AllowedPaths[0] != "src/auth/" {
			t.Errorf("AllowedPaths = %v", got.AllowedPaths)
		}
		if state := cardBuildState(t, cards, "card-1"); state != "queued" {
			t.Errorf("card build_state = %s, want queued", state)
		}
	})

	t.Run("dispatch records execution and marks card running", func(t *testing.T) {
		if err := repo.MarkDispatched(ctx, "asg-1", "exec-1", "agent-1"); err != nil {
			t.Fatalf("MarkDispatched failed: %v", err)
		}
		got, _ := repo.GetByID(ctx, "asg-1")
		if got.Status != "dispatched" || got.ExecutionID != "exec-1" || got.AgentExecutionID != "agent-1" {
			t.Errorf("assignment = %+v", got)
		}
		card, _ := cards.GetCard(ctx, "card-1")
		if card.BuildState != "running" || card.LastBuildRef != "run-1" {
			t.Errorf("card = %+v", card)
		}
	})

	t.Run("dispatching twice is refused", func(t *testing.T) {
		if err := repo.MarkDispatched(ctx, "asg-1", "exec-2", ""); err == nil {
			t.Error("expected error dispatching a dispatched assignment")
		}
	})

	t.Run("transition mirrors build state and finalizes", func(t *testing.T) {
		ok, err := repo.Transition(ctx, secondary.AssignmentTransition{
			AssignmentID: "asg-1", From: "dispatched", To: "completed", CardBuildState: "completed", FinalizeCard: true,
		})
		if err != nil || !ok {
			t.Fatalf("Transition = %v, %v", ok, err)
		}
		card, _ := cards.GetCard(ctx, "card-1")
		if card.BuildState != "completed" || card.FinalizedAt == "" {
			t.Errorf("card = %+v", card)
		}
	})

	t.Run("stale transition is a no-op", func(t *testing.T) {
		ok, err := repo.Transition(ctx, secondary.AssignmentTransition{
			AssignmentID: "asg-1", From: "blocked", To: "queued", CardBuildState: "queued",
		})
		if err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if ok {
			t.Error("expected compare-and-set to fail")
		}
		if state := cardBuildState(t, cards, "card-1"); state != "completed" {
			t.Errorf("card build_state = %s, want completed", state)
		}
	})
}

func TestAssignmentRepository_FindForCard(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAssignmentRepository(db)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "blocked")

	if err := repo.Create(ctx, newAssignment("asg-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.FindForCard(ctx, "run-1", "card-1", "blocked")
	if err != nil {
		t.Fatalf("FindForCard failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}

	ok, err := repo.Transition(ctx, secondary.AssignmentTransition{
		AssignmentID: "asg-1", From: "queued", To: "blocked", CardBuildState: "blocked", LastError: "needs input",
	})
	if err != nil || !ok {
		t.Fatalf("Transition = %v, %v", ok, err)
	}

	got, err = repo.FindForCard(ctx, "run-1", "card-1", "blocked")
	if err != nil {
		t.Fatalf("FindForCard failed: %v", err)
	}
	if got == nil || got.ID != "asg-1" || got.LastError != "needs input" {
		t.Errorf("FindForCard = %+v", got)
	}

	list, err := repo.ListByRun(ctx, "run-1")
	if err != nil || len(list) != 1 {
		t.Errorf("ListByRun = %d, %v", len(list), err)
	}
}

func TestAssignmentRepository_MarkDispatchedRequiresQueued(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAssignmentRepository(db)
	cards := sqlite.NewPlanningRepository(db)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "running")

	if err := repo.Create(ctx, newAssignment("asg-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ok, err := repo.Transition(ctx, secondary.AssignmentTransition{
		AssignmentID: "asg-1", From: "queued", To: "blocked", CardBuildState: "blocked",
	})
	if err != nil || !ok {
		t.Fatalf("Transition = %v, %v", ok, err)
	}

	if err := repo.MarkDispatched(ctx, "asg-1", "exec-1", ""); err == nil {
		t.Fatal("expected a blocked assignment to be refused")
	}
	got, _ := repo.GetByID(ctx, "asg-1")
	if got.Status != "blocked" || got.ExecutionID != "" {
		t.Errorf("assignment = %+v", got)
	}
	if state := cardBuildState(t, cards, "card-1"); state != "blocked" {
		t.Errorf("card build_state = %s, want blocked", state)
	}
}

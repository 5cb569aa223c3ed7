package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/ports/primary"
)

type runFixture struct {
	service  *RunServiceImpl
	runs     *mockRunRepository
	checks   *mockCheckRepository
	projects *mockProjectRepository
}

func newRunFixture() *runFixture {
	f := &runFixture{
		runs:     newMockRunRepository(),
		checks:   newMockCheckRepository(),
		projects: newMockProjectRepository(),
	}
	f.service = NewRunService(f.runs, f.projects, newMockPlanningRepository(), f.checks, testPolicy(), zap.NewNop())
	f.service.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestCreateRun(t *testing.T) {
	f := newRunFixture()

	run, err := f.service.CreateRun(context.Background(), primary.CreateRunRequest{
		ProjectID:   testProject,
		Scope:       corerun.ScopeCard,
		CardID:      "card-1",
		InitiatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Status != string(corerun.StatusQueued) {
		t.Errorf("expected queued, got %s", run.Status)
	}
	if run.BaseBranch != "main" {
		t.Errorf("expected base branch from project default, got %q", run.BaseBranch)
	}
	if run.TriggerType != corerun.TriggerManual {
		t.Errorf("expected manual trigger, got %q", run.TriggerType)
	}
	if run.RepoURL != "https://github.com/acme/shop" {
		t.Errorf("expected repo url copied from project, got %q", run.RepoURL)
	}
	if strings.Join(run.SystemPolicySnapshot.RequiredChecks, ",") != "dependency,security,lint" {
		t.Errorf("expected frozen required checks, got %v", run.SystemPolicySnapshot.RequiredChecks)
	}

	var input struct {
		Card struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"card"`
	}
	if err := json.Unmarshal(run.RunInputSnapshot, &input); err != nil {
		t.Fatalf("decode input snapshot: %v", err)
	}
	if input.Card.ID != "card-1" || input.Card.Title != "Product list" {
		t.Errorf("expected card-1 frozen into the input snapshot, got %+v", input.Card)
	}
}

func TestCreateRun_FreezesPolicy(t *testing.T) {
	f := newRunFixture()
	run, err := f.service.CreateRun(context.Background(), primary.CreateRunRequest{
		ProjectID: testProject, Scope: corerun.ScopeWorkflow, WorkflowID: "wf-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.service.policy = corerun.FreezePolicy([]string{"lint"}, nil)

	got, err := f.service.GetRun(context.Background(), testProject, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.SystemPolicySnapshot.RequiredChecks) != 3 {
		t.Errorf("expected the original policy on the stored run, got %v", got.SystemPolicySnapshot.RequiredChecks)
	}
}

func TestCreateRun_Validation(t *testing.T) {
	tests := []struct {
		name     string
		req      primary.CreateRunRequest
		wantKind error
	}{
		{"unknown project", primary.CreateRunRequest{ProjectID: "proj-404", Scope: "card", CardID: "card-1"}, apperr.ErrNotFound},
		{"bad scope", primary.CreateRunRequest{ProjectID: testProject, Scope: "project"}, apperr.ErrValidation},
		{"missing card", primary.CreateRunRequest{ProjectID: testProject, Scope: "card", CardID: "card-404"}, apperr.ErrValidation},
		{"missing workflow", primary.CreateRunRequest{ProjectID: testProject, Scope: "workflow", WorkflowID: "wf-404"}, apperr.ErrValidation},
		{"card outside named workflow", primary.CreateRunRequest{ProjectID: testProject, Scope: "card", CardID: "card-1", WorkflowID: "wf-2"}, apperr.ErrValidation},
		{"bad trigger", primary.CreateRunRequest{ProjectID: testProject, Scope: "card", CardID: "card-1", TriggerType: "cron"}, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunFixture()
			_, err := f.service.CreateRun(context.Background(), tt.req)
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("expected %v, got %v", tt.wantKind, err)
			}
			if len(f.runs.runs) != 0 {
				t.Error("expected no run created")
			}
		})
	}
}

func TestTransitionRun_Closure(t *testing.T) {
	statuses := corerun.Statuses
	for _, from := range statuses {
		for _, to := range statuses {
			if corerun.CanTransition(from, to).Allowed {
				continue
			}
			f := newRunFixture()
			seedRun(t, f.runs, "run-1", string(from))

			_, err := f.service.TransitionRun(context.Background(), primary.TransitionRunRequest{
				ProjectID: testProject, RunID: "run-1", Status: string(to),
			})
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%s -> %s: expected validation error, got %v", from, to, err)
			}
			if got := f.runs.runs["run-1"].Status; got != string(from) {
				t.Errorf("%s -> %s: status changed to %s", from, to, got)
			}
		}
	}
}

func TestTransitionRun_CompletedToRunningRejected(t *testing.T) {
	f := newRunFixture()
	seedRun(t, f.runs, "run-1", "completed")

	_, err := f.service.TransitionRun(context.Background(), primary.TransitionRunRequest{
		ProjectID: testProject, RunID: "run-1", Status: "running",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "completed") || !strings.Contains(err.Error(), "running") {
		t.Errorf("expected error naming both statuses, got %q", err.Error())
	}
	if f.runs.runs["run-1"].Status != "completed" {
		t.Errorf("expected run to stay completed, got %s", f.runs.runs["run-1"].Status)
	}
}

func TestTransitionRun_StartsOnce(t *testing.T) {
	f := newRunFixture()
	seedRun(t, f.runs, "run-1", "queued")
	ctx := context.Background()

	run, err := f.service.TransitionRun(ctx, primary.TransitionRunRequest{ProjectID: testProject, RunID: "run-1", Status: "running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.StartedAt == "" {
		t.Fatal("expected started_at set")
	}
	startedAt := run.StartedAt

	f.service.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	if _, err := f.service.TransitionRun(ctx, primary.TransitionRunRequest{ProjectID: testProject, RunID: "run-1", Status: "blocked"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run, err = f.service.TransitionRun(ctx, primary.TransitionRunRequest{ProjectID: testProject, RunID: "run-1", Status: "running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.StartedAt != startedAt {
		t.Errorf("expected started_at unchanged, got %s want %s", run.StartedAt, startedAt)
	}
}

func TestTransitionRun_CompletionGate(t *testing.T) {
	f := newRunFixture()
	seedRun(t, f.runs, "run-1", "running")
	f.checks.record("run-1", "dependency", "passed", "security", "passed")

	_, err := f.service.TransitionRun(context.Background(), primary.TransitionRunRequest{
		ProjectID: testProject, RunID: "run-1", Status: "completed",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := apperr.DetailsOf(err)["missing_checks"]; got != "lint" {
		t.Errorf("expected lint missing, got %q", got)
	}
	if f.runs.runs["run-1"].Status != "running" {
		t.Error("expected run to stay running")
	}

	f.checks.record("run-1", "lint", "passed")
	run, err := f.service.TransitionRun(context.Background(), primary.TransitionRunRequest{
		ProjectID: testProject, RunID: "run-1", Status: "completed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != "completed" || run.EndedAt == "" {
		t.Errorf("expected completed with ended_at, got %s / %q", run.Status, run.EndedAt)
	}
}

func TestTransitionRun_FailedToQueuedResets(t *testing.T) {
	f := newRunFixture()
	r := seedRun(t, f.runs, "run-1", "failed")
	r.EndedAt = "2026-02-01T00:00:00Z"

	run, err := f.service.TransitionRun(context.Background(), primary.TransitionRunRequest{
		ProjectID: testProject, RunID: "run-1", Status: "queued",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != "queued" {
		t.Errorf("expected queued, got %s", run.Status)
	}
	if run.EndedAt != "" {
		t.Errorf("expected ended_at cleared, got %q", run.EndedAt)
	}
	if f.runs.resets["run-1"] != 1 {
		t.Errorf("expected assignments reset once, got %d", f.runs.resets["run-1"])
	}
}

func TestGetRun_OtherProject(t *testing.T) {
	f := newRunFixture()
	seedRun(t, f.runs, "run-1", "queued")

	_, err := f.service.GetRun(context.Background(), "proj-2", "run-1")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListRuns_Filters(t *testing.T) {
	f := newRunFixture()
	seedRun(t, f.runs, "run-1", "completed")
	seedRun(t, f.runs, "run-2", "running")
	seedRun(t, f.runs, "run-3", "running")

	runs, err := f.service.ListRuns(context.Background(), primary.RunFilters{ProjectID: testProject, Status: "running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" {
		t.Errorf("expected running runs newest first, got %v", runIDs(runs))
	}

	runs, err = f.service.ListRuns(context.Background(), primary.RunFilters{ProjectID: testProject, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected limit applied, got %d", len(runs))
	}
}

func runIDs(runs []*primary.Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

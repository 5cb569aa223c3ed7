package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/forge/internal/adapters/sqlite"
	"github.com/example/forge/internal/ports/secondary"
)

func TestCheckRepository_ListByRunKeepsRecordingOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewCheckRepository(db, nil)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "running")

	checks := []*secondary.CheckRecord{
		{ID: "chk-1", RunID: "run-1", CheckType: "lint", Status: "failed", Output: "2 issues"},
		{ID: "chk-2", RunID: "run-1", CheckType: "security", Status: "passed"},
		{ID: "chk-3", RunID: "run-1", CheckType: "lint", Status: "passed"},
	}
	for _, c := range checks {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, c := range checks {
		if got[i].ID != c.ID {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, c.ID)
		}
	}
	if got[0].Output != "2 issues" || got[1].Output != "" {
		t.Errorf("outputs = %q, %q", got[0].Output, got[1].Output)
	}

	if err := repo.Create(ctx, &secondary.CheckRecord{ID: "chk-4", RunID: "run-1", CheckType: "lint", Status: "bogus"}); err == nil {
		t.Error("expected CHECK constraint failure for unknown status")
	}
}

func TestApprovalRepository_Resolve(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewApprovalRepository(db, nil)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "running")

	err := repo.Create(ctx, &secondary.ApprovalRecord{ID: "apr-1", RunID: "run-1", ApprovalType: "merge", RequestedBy: "alice"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "apr-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != "pending" || got.ResolvedAt != "" {
		t.Errorf("approval = %+v", got)
	}

	ok, err := repo.Resolve(ctx, "apr-1", "approved", "bob", "looks good")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}

	got, _ = repo.GetByID(ctx, "apr-1")
	if got.Status != "approved" || got.ResolvedBy != "bob" || got.Notes != "looks good" || got.ResolvedAt == "" {
		t.Errorf("approval = %+v", got)
	}

	ok, err = repo.Resolve(ctx, "apr-1", "rejected", "carol", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ok {
		t.Error("expected second resolve to be refused")
	}

	list, err := repo.ListByRun(ctx, "run-1")
	if err != nil || len(list) != 1 {
		t.Errorf("ListByRun = %d, %v", len(list), err)
	}
}

func TestPRCandidateRepository_StatusAndURL(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewPRCandidateRepository(db, nil)
	ctx := context.Background()
	seedPlanningTree(t, db)
	seedRun(t, db, "run-1", "proj-1", "card-1", "completed")

	err := repo.Create(ctx, &secondary.PRCandidateRecord{
		ID: "pr-1", RunID: "run-1", BaseBranch: "main", HeadBranch: "feat/login", Title: "Login",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ok, err := repo.UpdateStatus(ctx, "pr-1", "draft", "open")
	if err != nil || !ok {
		t.Fatalf("UpdateStatus = %v, %v", ok, err)
	}
	ok, _ = repo.UpdateStatus(ctx, "pr-1", "draft", "closed")
	if ok {
		t.Error("expected stale status update to be refused")
	}

	if err := repo.UpdateURL(ctx, "pr-1", "https://github.com/acme/proj-1/pull/7"); err != nil {
		t.Fatalf("UpdateURL failed: %v", err)
	}
	if err := repo.UpdateURL(ctx, "missing", "x"); err == nil {
		t.Error("expected not found for missing candidate")
	}

	got, err := repo.GetByID(ctx, "pr-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != "open" || got.PRURL != "https://github.com/acme/proj-1/pull/7" {
		t.Errorf("candidate = %+v", got)
	}
}

func TestProjectRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProjectRepository(db, nil)
	ctx := context.Background()

	if err := repo.Create(ctx, &secondary.ProjectRecord{ID: "proj-b", Name: "Beta"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, &secondary.ProjectRecord{ID: "proj-a", Name: "Alpha", RepoURL: "https://github.com/acme/a", DefaultBranch: "trunk"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "proj-b")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.DefaultBranch != "main" || got.RepoURL != "" {
		t.Errorf("project = %+v", got)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alpha" {
		t.Errorf("List = %+v", list)
	}

	exists, err := repo.Exists(ctx, "proj-z")
	if err != nil || exists {
		t.Errorf("Exists(proj-z) = %v, %v", exists, err)
	}
}

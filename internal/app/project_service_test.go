package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ports/primary"
	"github.com/example/forge/internal/ports/secondary"
)

func TestCreateProject(t *testing.T) {
	repo := newMockProjectRepository()
	service := NewProjectService(repo, zap.NewNop())

	p, err := service.CreateProject(context.Background(), primary.CreateProjectRequest{
		ID: "proj-2", Name: "  Blog ", RepoURL: "https://github.com/acme/blog",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "proj-2" || p.Name != "Blog" || p.DefaultBranch != "main" {
		t.Errorf("unexpected project: %+v", p)
	}
}

func TestCreateProject_GeneratesID(t *testing.T) {
	service := NewProjectService(newMockProjectRepository(), zap.NewNop())

	p, err := service.CreateProject(context.Background(), primary.CreateProjectRequest{Name: "Blog"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.ID) != 36 {
		t.Errorf("expected a generated uuid, got %q", p.ID)
	}
}

func TestCreateProject_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     primary.CreateProjectRequest
		wantErr error
	}{
		{"missing name", primary.CreateProjectRequest{ID: "proj-2"}, apperr.ErrValidation},
		{"id with separator", primary.CreateProjectRequest{ID: "acme/shop", Name: "Shop"}, apperr.ErrValidation},
		{"duplicate id", primary.CreateProjectRequest{ID: testProject, Name: "Shop"}, apperr.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewProjectService(newMockProjectRepository(), zap.NewNop())
			_, err := service.CreateProject(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetProject_NotFound(t *testing.T) {
	service := NewProjectService(newMockProjectRepository(), zap.NewNop())

	if _, err := service.GetProject(context.Background(), "proj-404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFetchSnapshot(t *testing.T) {
	service := NewSnapshotService(newMockPlanningRepository())
	ctx := context.Background()

	state, err := service.FetchSnapshot(ctx, testProject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state == nil || state.Card("card-2") == nil {
		t.Fatal("expected the full hierarchy")
	}

	missing, err := service.FetchSnapshot(ctx, "proj-404")
	if err != nil || missing != nil {
		t.Errorf("expected nil snapshot for unknown project, got %v / %v", missing, err)
	}
}

func TestListAuditEntries(t *testing.T) {
	repo := &mockAuditRepository{}
	_ = repo.Create(context.Background(), &secondary.AuditRecord{
		ProjectID: testProject, Actor: "alice", EntityType: "card", EntityID: "card-1", Action: "create",
	})
	service := NewAuditService(repo)

	entries, err := service.ListAuditEntries(context.Background(), primary.AuditFilters{ProjectID: testProject, EntityType: "card", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Actor != "alice" || entries[0].ID != 1 {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if repo.filters.EntityType != "card" || repo.filters.Limit != 5 {
		t.Errorf("expected filters passed through, got %+v", repo.filters)
	}
}

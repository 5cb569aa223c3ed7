package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ports/primary"
)

func newCheckFixture(t *testing.T) (*CheckServiceImpl, *mockCheckRepository) {
	t.Helper()
	runs := newMockRunRepository()
	seedRun(t, runs, "run-1", "running")
	checks := newMockCheckRepository()
	return NewCheckService(runs, checks, zap.NewNop()), checks
}

func TestRecordCheck(t *testing.T) {
	service, _ := newCheckFixture(t)

	check, err := service.RecordCheck(context.Background(), primary.RecordCheckRequest{
		ProjectID: testProject, RunID: "run-1", CheckType: "lint", Status: "passed", Output: "ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.ID == "" || check.CheckType != "lint" || check.Status != "passed" || check.CreatedAt == "" {
		t.Errorf("unexpected check: %+v", check)
	}
}

func TestRecordCheck_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     primary.RecordCheckRequest
		wantErr error
	}{
		{"missing check type", primary.RecordCheckRequest{ProjectID: testProject, RunID: "run-1", Status: "passed"}, apperr.ErrValidation},
		{"unknown status", primary.RecordCheckRequest{ProjectID: testProject, RunID: "run-1", CheckType: "lint", Status: "green"}, apperr.ErrValidation},
		{"unknown run", primary.RecordCheckRequest{ProjectID: testProject, RunID: "run-404", CheckType: "lint", Status: "passed"}, apperr.ErrNotFound},
		{"other project", primary.RecordCheckRequest{ProjectID: "proj-2", RunID: "run-1", CheckType: "lint", Status: "passed"}, apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, checks := newCheckFixture(t)

			_, err := service.RecordCheck(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(checks.checks) != 0 {
				t.Error("expected nothing recorded")
			}
		})
	}
}

func TestEvaluateGates(t *testing.T) {
	service, checks := newCheckFixture(t)
	ctx := context.Background()
	checks.record("run-1", "dependency", "passed", "security", "passed")

	result, err := service.EvaluateGates(ctx, testProject, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CanApprove {
		t.Error("expected gate to fail without lint")
	}
	if strings.Join(result.MissingChecks, ",") != "lint" {
		t.Errorf("expected lint missing, got %v", result.MissingChecks)
	}

	checks.record("run-1", "lint", "failed")
	result, _ = service.EvaluateGates(ctx, testProject, "run-1")
	if result.CanApprove || strings.Join(result.FailedChecks, ",") != "lint" {
		t.Errorf("expected lint failed, got %+v", result)
	}

	checks.record("run-1", "lint", "passed")
	result, _ = service.EvaluateGates(ctx, testProject, "run-1")
	if !result.CanApprove {
		t.Errorf("expected latest lint result to satisfy the gate, got %+v", result)
	}
}

func TestListChecks(t *testing.T) {
	service, checks := newCheckFixture(t)
	checks.record("run-1", "lint", "failed", "lint", "passed")

	list, err := service.ListChecks(context.Background(), testProject, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Status != "failed" || list[1].Status != "passed" {
		t.Errorf("expected checks in recording order, got %+v", list)
	}
}

package run

import (
	"testing"
	"time"
)

func TestCanTransition_Table(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusQueued:  {StatusRunning: true, StatusCancelled: true},
		StatusRunning: {StatusBlocked: true, StatusFailed: true, StatusCompleted: true, StatusCancelled: true},
		StatusBlocked: {StatusRunning: true, StatusFailed: true, StatusCancelled: true},
		StatusFailed:  {StatusQueued: true},
	}

	// Closure: every pair outside the table is rejected.
	for _, from := range Statuses {
		for _, to := range Statuses {
			got := CanTransition(from, to)
			want := legal[from][to]
			if got.Allowed != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got.Allowed, want)
			}
			if !want && got.Reason != "illegal run transition from "+string(from)+" to "+string(to) {
				t.Errorf("unexpected reason %q", got.Reason)
			}
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	got := CanTransition(StatusQueued, "paused")
	if got.Allowed {
		t.Fatal("expected unknown status to be rejected")
	}
	if got.Reason != `unknown run status "paused"` {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusCompleted || s == StatusCancelled
		if IsTerminal(s) != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, !want, want)
		}
	}
}

func TestApplyTransition(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name           string
		from, to       Status
		alreadyStarted bool
		wantStarted    bool
		wantEnded      bool
		wantReset      bool
	}{
		{name: "first start", from: StatusQueued, to: StatusRunning, wantStarted: true},
		{name: "resume keeps original start", from: StatusBlocked, to: StatusRunning, alreadyStarted: true},
		{name: "complete ends", from: StatusRunning, to: StatusCompleted, alreadyStarted: true, wantEnded: true},
		{name: "fail ends", from: StatusRunning, to: StatusFailed, alreadyStarted: true, wantEnded: true},
		{name: "cancel from queued ends", from: StatusQueued, to: StatusCancelled, wantEnded: true},
		{name: "re-drive resets assignments", from: StatusFailed, to: StatusQueued, alreadyStarted: true, wantReset: true},
		{name: "block has no timestamps", from: StatusRunning, to: StatusBlocked, alreadyStarted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyTransition(tt.from, tt.to, tt.alreadyStarted, now)
			if got.NewStatus != tt.to {
				t.Errorf("NewStatus = %s, want %s", got.NewStatus, tt.to)
			}
			if (got.StartedAt != nil) != tt.wantStarted {
				t.Errorf("StartedAt set = %v, want %v", got.StartedAt != nil, tt.wantStarted)
			}
			if (got.EndedAt != nil) != tt.wantEnded {
				t.Errorf("EndedAt set = %v, want %v", got.EndedAt != nil, tt.wantEnded)
			}
			if got.ResetAssignment != tt.wantReset {
				t.Errorf("ResetAssignment = %v, want %v", got.ResetAssignment, tt.wantReset)
			}
		})
	}
}

func TestCanCreateRun(t *testing.T) {
	base := CreateRunContext{
		ProjectID:     "proj-1",
		ProjectExists: true,
		Scope:         ScopeCard,
		CardID:        "card-1",
		TargetExists:  true,
		TriggerType:   TriggerManual,
		InitiatedBy:   "alice",
		BaseBranch:    "main",
	}

	tests := []struct {
		name        string
		mutate      func(*CreateRunContext)
		wantAllowed bool
		wantReason  string
	}{
		{name: "card run", mutate: func(*CreateRunContext) {}, wantAllowed: true},
		{
			name: "workflow run",
			mutate: func(c *CreateRunContext) {
				c.Scope, c.CardID, c.WorkflowID = ScopeWorkflow, "", "wf-1"
			},
			wantAllowed: true,
		},
		{
			name:       "missing project",
			mutate:     func(c *CreateRunContext) { c.ProjectExists = false },
			wantReason: "project proj-1 not found",
		},
		{
			name:       "card scope without card",
			mutate:     func(c *CreateRunContext) { c.CardID = "" },
			wantReason: "card scope requires card_id",
		},
		{
			name:       "card not in project",
			mutate:     func(c *CreateRunContext) { c.TargetExists = false },
			wantReason: "card card-1 not found in project proj-1",
		},
		{
			name: "workflow scope naming a card",
			mutate: func(c *CreateRunContext) {
				c.Scope, c.WorkflowID = ScopeWorkflow, "wf-1"
			},
			wantReason: "workflow scope must not name a card_id",
		},
		{
			name:       "unknown scope",
			mutate:     func(c *CreateRunContext) { c.Scope = "project" },
			wantReason: `scope must be workflow or card (got "project")`,
		},
		{
			name:       "unknown trigger",
			mutate:     func(c *CreateRunContext) { c.TriggerType = "cron" },
			wantReason: `trigger_type must be manual, card or workflow (got "cron")`,
		},
		{
			name:       "no initiator",
			mutate:     func(c *CreateRunContext) { c.InitiatedBy = "" },
			wantReason: "initiated_by is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := base
			tt.mutate(&ctx)
			result := CanCreateRun(ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", result.Allowed, tt.wantAllowed, result.Reason)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestFreezePolicy(t *testing.T) {
	checks := []string{"lint"}
	p := FreezePolicy(checks, nil)
	checks[0] = "changed"

	if p.RequiredChecks[0] != "lint" {
		t.Error("snapshot shares backing array with input")
	}

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if encoded != `{"required_checks":["lint"],"forbidden_paths":[]}` {
		t.Errorf("unexpected encoding %s", encoded)
	}
	decoded, err := DecodePolicy(encoded)
	if err != nil || len(decoded.RequiredChecks) != 1 {
		t.Errorf("DecodePolicy = %+v, %v", decoded, err)
	}
}

// Package run contains the pure business logic for orchestration runs: the
// status state machine and run creation guards.
// This is part of the Functional Core - no I/O, only pure functions.
package run

import (
	"fmt"
	"time"
)

// Status is an orchestration run status.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every run status.
var Statuses = []Status{StatusQueued, StatusRunning, StatusBlocked, StatusFailed, StatusCompleted, StatusCancelled}

// transitions is the complete table of legal moves. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusBlocked, StatusFailed, StatusCompleted, StatusCancelled},
	StatusBlocked:   {StatusRunning, StatusFailed, StatusCancelled},
	StatusFailed:    {StatusQueued},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ActiveStatuses are the statuses in which a run still has work in flight.
var ActiveStatuses = []Status{StatusQueued, StatusRunning, StatusBlocked}

// IsValid reports whether s is a known status.
func IsValid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanTransition evaluates whether a run may move from one status to another.
// Rules:
// - Both statuses must be known
// - The pair must appear in the transition table
func CanTransition(from, to Status) GuardResult {
	if !IsValid(to) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown run status %q", to),
		}
	}
	for _, next := range transitions[from] {
		if next == to {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("illegal run transition from %s to %s", from, to),
	}
}

// TransitionResult captures the new status and the timestamps it sets.
type TransitionResult struct {
	NewStatus       Status
	StartedAt       *time.Time
	EndedAt         *time.Time
	ResetAssignment bool // failed -> queued re-drives every assignment in the run
}

// ApplyTransition computes the side effects of an allowed transition.
// - Entering running sets StartedAt when the run has not started yet
// - Entering failed, completed or cancelled sets EndedAt
// - failed -> queued clears EndedAt and resets assignments
// The caller passes the current time to enable testing.
func ApplyTransition(from, to Status, alreadyStarted bool, now time.Time) TransitionResult {
	result := TransitionResult{NewStatus: to}

	if to == StatusRunning && !alreadyStarted {
		result.StartedAt = &now
	}
	switch to {
	case StatusFailed, StatusCompleted, StatusCancelled:
		result.EndedAt = &now
	}
	if from == StatusFailed && to == StatusQueued {
		result.ResetAssignment = true
	}

	return result
}

// InitialStatus returns the status a new run starts in.
func InitialStatus() Status {
	return StatusQueued
}

// Scope of a run.
const (
	ScopeWorkflow = "workflow"
	ScopeCard     = "card"
)

// Trigger types.
const (
	TriggerManual   = "manual"
	TriggerCard     = "card"
	TriggerWorkflow = "workflow"
)

// CreateRunContext provides context for run creation guards.
type CreateRunContext struct {
	ProjectID      string
	ProjectExists  bool
	Scope          string
	WorkflowID     string
	CardID         string
	TargetExists   bool // the workflow or card named by scope exists in the project
	TriggerType    string
	InitiatedBy    string
	BaseBranch     string
	RequiredChecks []string
}

// CanCreateRun evaluates whether a run can be created.
// Rules:
// - Project must exist
// - Scope must be workflow or card, naming exactly the matching target
// - The target must exist under the project
// - Trigger type must be known
// - initiated_by and base branch must be set
func CanCreateRun(ctx CreateRunContext) GuardResult {
	if !ctx.ProjectExists {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("project %s not found", ctx.ProjectID)}
	}

	switch ctx.Scope {
	case ScopeWorkflow:
		if ctx.WorkflowID == "" {
			return GuardResult{Allowed: false, Reason: "workflow scope requires workflow_id"}
		}
		if ctx.CardID != "" {
			return GuardResult{Allowed: false, Reason: "workflow scope must not name a card_id"}
		}
		if !ctx.TargetExists {
			return GuardResult{Allowed: false, Reason: fmt.Sprintf("workflow %s not found in project %s", ctx.WorkflowID, ctx.ProjectID)}
		}
	case ScopeCard:
		if ctx.CardID == "" {
			return GuardResult{Allowed: false, Reason: "card scope requires card_id"}
		}
		if !ctx.TargetExists {
			return GuardResult{Allowed: false, Reason: fmt.Sprintf("card %s not found in project %s", ctx.CardID, ctx.ProjectID)}
		}
	default:
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("scope must be workflow or card (got %q)", ctx.Scope)}
	}

	switch ctx.TriggerType {
	case TriggerManual, TriggerCard, TriggerWorkflow:
	default:
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("trigger_type must be manual, card or workflow (got %q)", ctx.TriggerType)}
	}

	if ctx.InitiatedBy == "" {
		return GuardResult{Allowed: false, Reason: "initiated_by is required"}
	}
	if ctx.BaseBranch == "" {
		return GuardResult{Allowed: false, Reason: "base_branch is required (set one on the run or the project default_branch)"}
	}

	return GuardResult{Allowed: true}
}

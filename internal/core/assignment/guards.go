// Package assignment contains the pure business logic for card assignments:
// creation validation, dispatchability and execution status updates.
// This is part of the Functional Core - no I/O, only pure functions.
package assignment

import (
	"fmt"
	"path"
	"strings"
)

// Assignment statuses.
const (
	StatusQueued     = "queued"
	StatusDispatched = "dispatched"
	StatusRunning    = "running"
	StatusBlocked    = "blocked"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Card build states mirrored from assignment progress.
const (
	BuildStateQueued    = "queued"
	BuildStateRunning   = "running"
	BuildStateBlocked   = "blocked"
	BuildStateCompleted = "completed"
	BuildStateFailed    = "failed"
)

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

// CreateAssignmentContext provides context for assignment creation.
type CreateAssignmentContext struct {
	RunID          string
	RunExists      bool
	RunStatus      string
	CardID         string
	CardExists     bool // card exists in the run's project
	AgentRole      string
	FeatureBranch  string
	DefaultBranch  string
	AllowedPaths   []string
	ForbiddenPaths []string // run's frozen forbidden paths plus any the request adds
}

// ValidateCreate evaluates whether an assignment can be created and returns
// every violation found. An empty slice means the assignment is valid.
// Rules, in order:
// - Run must exist and not be terminal
// - Card must exist in the run's project
// - agent_role and feature_branch must be set
// - feature_branch must differ from the project's default_branch
// - allowed_paths must be non-empty
// - No allowed path may fall under a forbidden path
func ValidateCreate(ctx CreateAssignmentContext) []string {
	if !ctx.RunExists {
		return []string{fmt.Sprintf("run %s not found", ctx.RunID)}
	}
	if ctx.RunStatus == "completed" || ctx.RunStatus == "cancelled" {
		return []string{fmt.Sprintf("cannot add assignments to a %s run", ctx.RunStatus)}
	}

	var errs []string
	if !ctx.CardExists {
		errs = append(errs, fmt.Sprintf("card %s not found in the run's project", ctx.CardID))
	}
	if strings.TrimSpace(ctx.AgentRole) == "" {
		errs = append(errs, "agent_role is required")
	}
	if strings.TrimSpace(ctx.FeatureBranch) == "" {
		errs = append(errs, "feature_branch is required")
	} else if ctx.FeatureBranch == ctx.DefaultBranch {
		errs = append(errs, "feature_branch must differ from default_branch")
	}
	if len(nonEmpty(ctx.AllowedPaths)) == 0 {
		errs = append(errs, "allowed_paths must be non-empty")
	}
	for _, allowed := range nonEmpty(ctx.AllowedPaths) {
		for _, forbidden := range nonEmpty(ctx.ForbiddenPaths) {
			if PathWithin(allowed, forbidden) {
				errs = append(errs, fmt.Sprintf("allowed path %s overlaps forbidden path %s", allowed, forbidden))
			}
		}
	}
	return errs
}

// PathWithin reports whether p equals prefix or lies underneath it.
// Both are treated as slash-separated repository paths.
func PathWithin(p, prefix string) bool {
	p = path.Clean(p)
	prefix = path.Clean(prefix)
	if prefix == "." || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

func nonEmpty(paths []string) []string {
	var out []string
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// DispatchContext provides context for dispatch guards.
type DispatchContext struct {
	AssignmentID     string
	AssignmentExists bool
	Status           string
	RunID            string
	RunStatus        string
}

// runStatusesAcceptingDispatch are the run statuses with work still in flight.
var runStatusesAcceptingDispatch = []string{"queued", "running", "blocked"}

// CanDispatch evaluates whether an assignment can be dispatched.
// Rules:
// - Assignment must exist
// - Status must be queued (a blocked assignment is re-queued by resume first)
// - The parent run must be queued, running or blocked
func CanDispatch(ctx DispatchContext) GuardResult {
	if !ctx.AssignmentExists {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("assignment %s not found", ctx.AssignmentID)}
	}
	if ctx.Status != StatusQueued {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only dispatch queued assignments (current status: %s)", ctx.Status),
		}
	}
	for _, s := range runStatusesAcceptingDispatch {
		if ctx.RunStatus == s {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot dispatch into run %s (run status: %s)", ctx.RunID, ctx.RunStatus),
	}
}

// executionTransitions lists the status updates an execution client may report.
var executionTransitions = map[string][]string{
	StatusDispatched: {StatusRunning, StatusCompleted, StatusFailed, StatusBlocked},
	StatusRunning:    {StatusRunning, StatusCompleted, StatusFailed, StatusBlocked},
}

// CanReportStatus evaluates whether an execution status update applies.
// Rules:
// - Assignment must be dispatched or running
// - Reported status must be running, completed, failed or blocked
func CanReportStatus(current, reported string) GuardResult {
	next, ok := executionTransitions[current]
	if !ok {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("assignment is not executing (current status: %s)", current),
		}
	}
	for _, s := range next {
		if s == reported {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot report status %q for a %s assignment", reported, current),
	}
}

// BuildStateFor maps an assignment status onto the card build_state it implies.
func BuildStateFor(status string) string {
	switch status {
	case StatusQueued:
		return BuildStateQueued
	case StatusDispatched, StatusRunning:
		return BuildStateRunning
	case StatusBlocked:
		return BuildStateBlocked
	case StatusCompleted:
		return BuildStateCompleted
	case StatusFailed:
		return BuildStateFailed
	}
	return ""
}

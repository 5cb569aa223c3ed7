// Package approval contains the pure business logic for run approval requests.
// Guards are pure functions that evaluate preconditions without side effects.
package approval

import (
	"fmt"
	"strings"
)

// Approval statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
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

// RequestContext provides context for requesting an approval.
type RequestContext struct {
	RunID        string
	RunExists    bool
	RunTerminal  bool
	ApprovalType string
	RequestedBy  string
}

// ResolveContext provides context for resolving an approval.
type ResolveContext struct {
	ApprovalID    string
	CurrentStatus string
	NewStatus     string
	ResolvedBy    string
	GatePassed    bool   // only consulted when approving
	GateSummary   string // reason reported when the gate fails
}

// CanRequest evaluates whether an approval can be requested.
// Rules:
// - Run must exist and not be terminal
// - approval_type and requested_by must be set
func CanRequest(ctx RequestContext) GuardResult {
	if !ctx.RunExists {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("run %s not found", ctx.RunID)}
	}
	if ctx.RunTerminal {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("run %s has already finished", ctx.RunID)}
	}
	if strings.TrimSpace(ctx.ApprovalType) == "" {
		return GuardResult{Allowed: false, Reason: "approval_type is required"}
	}
	if strings.TrimSpace(ctx.RequestedBy) == "" {
		return GuardResult{Allowed: false, Reason: "requested_by is required"}
	}
	return GuardResult{Allowed: true}
}

// CanResolve evaluates whether an approval can be resolved.
// Rules:
// - Only pending approvals can be resolved
// - New status must be approved or rejected
// - resolved_by must be set
// - Approving requires the run's approval gate to pass
func CanResolve(ctx ResolveContext) GuardResult {
	if ctx.CurrentStatus != StatusPending {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only resolve pending approvals (current status: %s)", ctx.CurrentStatus),
		}
	}
	if ctx.NewStatus != StatusApproved && ctx.NewStatus != StatusRejected {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("status must be approved or rejected (got %q)", ctx.NewStatus),
		}
	}
	if strings.TrimSpace(ctx.ResolvedBy) == "" {
		return GuardResult{Allowed: false, Reason: "resolved_by is required"}
	}
	if ctx.NewStatus == StatusApproved && !ctx.GatePassed {
		return GuardResult{Allowed: false, Reason: ctx.GateSummary}
	}
	return GuardResult{Allowed: true}
}

// Package pr contains the pure business logic for pull request candidates
// produced by orchestration runs.
// Guards are pure functions that evaluate preconditions without side effects.
package pr

import (
	"fmt"
	"strings"
)

// Candidate statuses.
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusMerged = "merged"
	StatusClosed = "closed"
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

// CreatePRContext provides context for PR candidate creation guards.
type CreatePRContext struct {
	RunID      string
	RunExists  bool
	BaseBranch string
	HeadBranch string
	Title      string
}

// OpenPRContext provides context for opening a draft candidate.
type OpenPRContext struct {
	PRID        string
	Status      string
	GatePassed  bool
	GateSummary string
}

// MergePRContext provides context for merging a candidate.
type MergePRContext struct {
	PRID   string
	Status string
}

// ClosePRContext provides context for closing a candidate.
type ClosePRContext struct {
	PRID   string
	Status string
}

// CanCreatePR evaluates whether a PR candidate can be created.
// Rules:
// - Run must exist
// - Base and head branches must be set and differ
// - Title must not be empty
func CanCreatePR(ctx CreatePRContext) GuardResult {
	// Rule 1: Run must exist
	if !ctx.RunExists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("run %s not found", ctx.RunID),
		}
	}

	// Rule 2: Branches must be set and differ
	if ctx.BaseBranch == "" || ctx.HeadBranch == "" {
		return GuardResult{
			Allowed: false,
			Reason:  "base_branch and head_branch are required",
		}
	}
	if ctx.BaseBranch == ctx.HeadBranch {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("head_branch must differ from base_branch (both %s)", ctx.BaseBranch),
		}
	}

	// Rule 3: Title must not be empty
	if strings.TrimSpace(ctx.Title) == "" {
		return GuardResult{
			Allowed: false,
			Reason:  "title is required",
		}
	}

	return GuardResult{Allowed: true}
}

// CanOpenPR evaluates whether a candidate can be opened.
// Rules:
// - Status must be "draft"
// - The run's approval gate must pass
func CanOpenPR(ctx OpenPRContext) GuardResult {
	if ctx.Status != StatusDraft {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only open draft PRs (current status: %s)", ctx.Status),
		}
	}
	if !ctx.GatePassed {
		return GuardResult{
			Allowed: false,
			Reason:  ctx.GateSummary,
		}
	}

	return GuardResult{Allowed: true}
}

// CanMergePR evaluates whether a candidate can be merged.
// Rules:
// - Status must be "open"
func CanMergePR(ctx MergePRContext) GuardResult {
	if ctx.Status != StatusOpen {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only merge open PRs (current status: %s)", ctx.Status),
		}
	}

	return GuardResult{Allowed: true}
}

// CanClosePR evaluates whether a candidate can be closed.
// Rules:
// - Status must be "draft" or "open" (not merged, not already closed)
func CanClosePR(ctx ClosePRContext) GuardResult {
	if ctx.Status != StatusDraft && ctx.Status != StatusOpen {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only close draft or open PRs (current status: %s)", ctx.Status),
		}
	}

	return GuardResult{Allowed: true}
}

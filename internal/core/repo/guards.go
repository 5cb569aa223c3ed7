// Package repo contains the pure business logic for the per-project git clone:
// clone locations, credentialed remote URLs, branch rules, push failure
// classification and diff parsing.
// Guards are pure functions that evaluate preconditions without side effects.
package repo

import (
	"fmt"
	"strings"
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

// CloneContext provides context for clone guards.
type CloneContext struct {
	ProjectID string
	RepoURL   string
}

// FeatureBranchContext provides context for feature branch creation guards.
type FeatureBranchContext struct {
	BranchName string
	BaseBranch string
}

// PushContext provides context for push guards.
type PushContext struct {
	Branch        string
	DefaultBranch string
	RepoURL       string
	HasToken      bool
	CloneExists   bool
}

// CanClone evaluates whether a project can be cloned.
// Rules:
// - Project id must be a single path segment
// - Repository URL must be set
func CanClone(ctx CloneContext) GuardResult {
	// Rule 1: Project id must be usable as a directory name
	if ctx.ProjectID == "" || ctx.ProjectID == "." || ctx.ProjectID == ".." ||
		strings.ContainsAny(ctx.ProjectID, `/\`) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("invalid project id %q for a clone path", ctx.ProjectID),
		}
	}

	// Rule 2: Repository URL must be set
	if strings.TrimSpace(ctx.RepoURL) == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("project %s has no repository URL", ctx.ProjectID),
		}
	}

	return GuardResult{Allowed: true}
}

// CanCreateFeatureBranch evaluates whether a feature branch can be created.
// Rules:
// - Branch and base must be valid ref names
// - Branch must differ from base
func CanCreateFeatureBranch(ctx FeatureBranchContext) GuardResult {
	if reason := checkRefName(ctx.BranchName); reason != "" {
		return GuardResult{Allowed: false, Reason: "feature branch " + reason}
	}
	if reason := checkRefName(ctx.BaseBranch); reason != "" {
		return GuardResult{Allowed: false, Reason: "base branch " + reason}
	}
	if ctx.BranchName == ctx.BaseBranch {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("feature branch must differ from base branch %s", ctx.BaseBranch),
		}
	}
	return GuardResult{Allowed: true}
}

// CanPush evaluates whether a branch can be pushed.
// Rules:
// - Clone must exist
// - Branch must be a valid ref and must not be the default branch
// - HTTP(S) remotes require a credential token
func CanPush(ctx PushContext) GuardResult {
	if !ctx.CloneExists {
		return GuardResult{Allowed: false, Reason: "repository has not been cloned"}
	}
	if reason := checkRefName(ctx.Branch); reason != "" {
		return GuardResult{Allowed: false, Reason: "branch " + reason}
	}
	if ctx.Branch == ctx.DefaultBranch {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("refusing to push default branch %s", ctx.DefaultBranch),
		}
	}
	if IsHTTPRemote(ctx.RepoURL) && !ctx.HasToken {
		return GuardResult{Allowed: false, Reason: "missing git credential token for push"}
	}
	return GuardResult{Allowed: true}
}

// checkRefName returns why name is not a usable branch name, or "".
func checkRefName(name string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "name is required"
	case strings.HasPrefix(name, "-"):
		return fmt.Sprintf("%q must not start with '-'", name)
	case strings.Contains(name, ".."):
		return fmt.Sprintf("%q must not contain '..'", name)
	case strings.ContainsAny(name, " ~^:?*[\\"):
		return fmt.Sprintf("%q contains characters git does not allow", name)
	case strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".lock"):
		return fmt.Sprintf("%q is not a valid ref name", name)
	}
	return ""
}

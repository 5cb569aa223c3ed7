// Package gate evaluates whether recorded checks satisfy the checks a run
// requires before it can be approved, completed or opened as a pull request.
// This is part of the Functional Core - no I/O, only pure functions.
package gate

import "fmt"

// Check statuses.
const (
	CheckPassed  = "passed"
	CheckFailed  = "failed"
	CheckSkipped = "skipped"
)

// CheckStatuses lists every valid check status.
var CheckStatuses = []string{CheckPassed, CheckFailed, CheckSkipped}

// RecordedCheck is one check result recorded against a run.
type RecordedCheck struct {
	CheckType string `json:"check_type"`
	Status    string `json:"status"`
}

// Result is the verdict of ValidateApprovalGates.
type Result struct {
	CanApprove    bool     `json:"can_approve"`
	Errors        []string `json:"errors"`
	MissingChecks []string `json:"missing_checks"`
	FailedChecks  []string `json:"failed_checks"`
}

// ValidateApprovalGates decides whether recorded satisfies required.
// For each required check type:
// - absent from recorded: added to MissingChecks
// - latest entry failed: added to FailedChecks
// - latest entry skipped: blocking, reported in Errors only
// Check types outside required never block. When a type is recorded more than
// once the last entry in recorded wins.
func ValidateApprovalGates(required []string, recorded []RecordedCheck) Result {
	latest := make(map[string]string, len(recorded))
	for _, c := range recorded {
		latest[c.CheckType] = c.Status
	}

	result := Result{
		Errors:        []string{},
		MissingChecks: []string{},
		FailedChecks:  []string{},
	}
	seen := make(map[string]bool, len(required))
	skipped := false

	for _, checkType := range required {
		if seen[checkType] {
			continue
		}
		seen[checkType] = true

		status, ok := latest[checkType]
		switch {
		case !ok:
			result.MissingChecks = append(result.MissingChecks, checkType)
			result.Errors = append(result.Errors, fmt.Sprintf("required check %s has not been recorded", checkType))
		case status == CheckFailed:
			result.FailedChecks = append(result.FailedChecks, checkType)
			result.Errors = append(result.Errors, fmt.Sprintf("required check %s failed", checkType))
		case status == CheckSkipped:
			skipped = true
			result.Errors = append(result.Errors, fmt.Sprintf("required check %s was skipped; skipped checks do not satisfy the gate", checkType))
		case status != CheckPassed:
			skipped = true
			result.Errors = append(result.Errors, fmt.Sprintf("required check %s has unknown status %q", checkType, status))
		}
	}

	result.CanApprove = len(result.MissingChecks) == 0 && len(result.FailedChecks) == 0 && !skipped
	return result
}

// Summary renders a one-line reason for a failed gate.
func (r Result) Summary() string {
	if r.CanApprove {
		return "all required checks passed"
	}
	return fmt.Sprintf("approval gate not satisfied (missing: %v, failed: %v, errors: %d)",
		r.MissingChecks, r.FailedChecks, len(r.Errors))
}

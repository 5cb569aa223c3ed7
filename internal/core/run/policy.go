package run

import "encoding/json"

// PolicySnapshot is the policy frozen onto a run at creation. Later policy
// changes never reach an in-flight run.
type PolicySnapshot struct {
	RequiredChecks []string `json:"required_checks"`
	ForbiddenPaths []string `json:"forbidden_paths"`
}

// FreezePolicy copies the given policy so the snapshot shares no backing
// arrays with configuration.
func FreezePolicy(requiredChecks, forbiddenPaths []string) PolicySnapshot {
	return PolicySnapshot{
		RequiredChecks: append([]string{}, requiredChecks...),
		ForbiddenPaths: append([]string{}, forbiddenPaths...),
	}
}

// Encode serializes the snapshot for storage.
func (p PolicySnapshot) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePolicy parses a stored snapshot. An empty string yields an empty policy.
func DecodePolicy(s string) (PolicySnapshot, error) {
	var p PolicySnapshot
	if s == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(s), &p)
	return p, err
}

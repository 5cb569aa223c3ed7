package repo

import "strings"

// Change kinds reported for a changed file.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

// ChangedFile is one path that differs between base and feature branch.
type ChangedFile struct {
	Path   string `json:"path"`
	Change string `json:"change"`
}

// ParseNameStatus parses `git diff --name-status` output. Renames are
// reported as a deletion of the old path plus an addition of the new one;
// copies as an addition of the new path.
func ParseNameStatus(output string) []ChangedFile {
	files := []ChangedFile{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		code := fields[0]
		switch {
		case strings.HasPrefix(code, "A"):
			files = append(files, ChangedFile{Path: fields[1], Change: ChangeAdded})
		case strings.HasPrefix(code, "D"):
			files = append(files, ChangedFile{Path: fields[1], Change: ChangeDeleted})
		case strings.HasPrefix(code, "R") && len(fields) >= 3:
			files = append(files,
				ChangedFile{Path: fields[1], Change: ChangeDeleted},
				ChangedFile{Path: fields[2], Change: ChangeAdded},
			)
		case strings.HasPrefix(code, "C") && len(fields) >= 3:
			files = append(files, ChangedFile{Path: fields[2], Change: ChangeAdded})
		default: // M, T, U
			files = append(files, ChangedFile{Path: fields[1], Change: ChangeModified})
		}
	}
	return files
}

// PushFailureKind classifies why a push failed.
type PushFailureKind string

const (
	PushFailureAuth   PushFailureKind = "auth"
	PushFailureRemote PushFailureKind = "remote"
)

var authMarkers = []string{
	"authentication failed",
	"could not read username",
	"could not read password",
	"permission denied",
	"invalid username or password",
	"terminal prompts disabled",
	"the requested url returned error: 401",
	"the requested url returned error: 403",
	"access denied",
}

// ClassifyPushError decides whether git's stderr describes a credential
// problem or any other remote failure.
func ClassifyPushError(stderr string) PushFailureKind {
	lower := strings.ToLower(stderr)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return PushFailureAuth
		}
	}
	return PushFailureRemote
}

// Package version reports build metadata injected with -ldflags, e.g.
//
//	-X github.com/example/forge/internal/version.Commit=$(git rev-parse HEAD)
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String renders the version for `forge --version`.
func String() string {
	return fmt.Sprintf("forge %s (commit: %s, built: %s)", Version, shortCommit(), BuildTime)
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

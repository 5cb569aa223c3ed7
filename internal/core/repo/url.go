package repo

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ClonePath returns the directory holding a project's clone under reposDir.
// One clone per project, reused across runs.
func ClonePath(reposDir, projectID string) string {
	return filepath.Join(reposDir, projectID)
}

// IsHTTPRemote reports whether a remote URL uses http or https.
func IsHTTPRemote(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// RepoURLToCloneURL normalizes a repository URL to end in ".git" and, for
// HTTP(S) remotes, injects token as the URL's userinfo. Other remote forms
// (scp-style, file paths) are only normalized.
func RepoURLToCloneURL(raw, token string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if !IsHTTPRemote(raw) {
		return withGitSuffix(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return withGitSuffix(raw)
	}
	u.Path = withGitSuffix(u.Path)
	u.RawPath = ""
	if token != "" {
		u.User = url.User(token)
	}
	return u.String()
}

// RedactURL strips any userinfo from a remote URL for logs and error messages.
func RedactURL(raw string) string {
	if !IsHTTPRemote(raw) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}

// RedactToken removes every occurrence of token from s.
func RedactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

func withGitSuffix(p string) string {
	if p == "" || strings.HasSuffix(p, ".git") {
		return p
	}
	return p + ".git"
}

package git

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/example/forge/internal/ports/secondary"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not on PATH")
	}
}

func TestRunner_Run(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	r := NewRunner("")

	if _, err := r.Run(ctx, dir, "init", "-q", "-b", "main"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	out, err := r.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		t.Fatalf("rev-parse failed: %v", err)
	}
	if out != "true" {
		t.Errorf("output = %q, want true", out)
	}
}

func TestRunner_RunFailureCarriesStderr(t *testing.T) {
	requireGit(t)
	r := NewRunner("git")

	_, err := r.Run(context.Background(), t.TempDir(), "checkout", "does-not-exist")
	if err == nil {
		t.Fatal("expected error outside a repository")
	}

	var gitErr *secondary.GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("expected *secondary.GitError, got %T", err)
	}
	if gitErr.ExitCode == 0 || gitErr.Stderr == "" {
		t.Errorf("GitError = %+v", gitErr)
	}
}

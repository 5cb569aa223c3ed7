// Package git runs the git CLI for the repository manager.
package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/example/forge/internal/ports/secondary"
)

// Runner implements secondary.GitRunner by shelling out to git.
type Runner struct {
	binary string
}

// NewRunner creates a Runner. An empty binary means "git" from PATH.
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = "git"
	}
	return &Runner{binary: binary}
}

// Run executes git with args in dir and returns trimmed stdout.
// Interactive credential prompts are disabled so a missing token fails
// fast instead of hanging the request.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		gitErr := &secondary.GitError{
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			gitErr.ExitCode = exitErr.ExitCode()
		} else if gitErr.Stderr == "" {
			gitErr.Stderr = err.Error()
		}
		return "", gitErr
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

// Ensure Runner implements the interface
var _ secondary.GitRunner = (*Runner)(nil)

// Package cli provides CLI commands for the forge application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/forge/internal/adapters/httpapi"
	"github.com/example/forge/internal/config"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/wire"
)

// Global flag values, bound on the root command.
var (
	configPath    string
	globalActorID string
	projectFlag   string
)

// BindGlobalFlags registers the persistent flags every command understands.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to forge.yaml (defaults and FORGE_* env apply otherwise)")
	root.PersistentFlags().StringVar(&globalActorID, "actor", "", "Actor recorded in the audit trail")
	root.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project ID (defaults to .forge/config.json)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// DetectAndStoreActor fills in the actor from .forge/config.json or $USER
// when --actor was not given. Called once in PersistentPreRun.
func DetectAndStoreActor() {
	if globalActorID != "" {
		return
	}
	if local := loadLocal(); local != nil && local.Actor != "" {
		globalActorID = local.Actor
		return
	}
	globalActorID = os.Getenv("USER")
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// services opens the process-wide app and returns its services.
func services(ctx gocontext.Context) (httpapi.Services, error) {
	app, err := wire.Get(ctx, configPath)
	if err != nil {
		return httpapi.Services{}, fmt.Errorf("failed to open forge: %w", err)
	}
	return app.Services, nil
}

// resolveProject returns the --project flag or the project recorded in
// .forge/config.json.
func resolveProject() (string, error) {
	if projectFlag != "" {
		return projectFlag, nil
	}
	if local := loadLocal(); local != nil && local.ProjectID != "" {
		return local.ProjectID, nil
	}
	return "", fmt.Errorf("no project selected: pass --project or run `forge init --project <id>`")
}

func loadLocal() *config.Local {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	local, err := config.LoadLocal(cwd)
	if err != nil {
		return nil
	}
	return local
}

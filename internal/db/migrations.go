package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

const schemaVersionSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_planning_and_orchestration_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_dispatch_error_to_card_assignments",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_project_to_audit_log",
		Up:      migrationV3,
	},
}

// LatestVersion returns the version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations applies every migration newer than the recorded version, each
// in its own transaction.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if _, err := database.ExecContext(ctx, schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := database.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(ctx, tx); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion reports the highest applied migration.
func CurrentVersion(ctx context.Context, database *sql.DB) (int, error) {
	var version int
	err := database.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// migrationV1 creates the original tables. Later columns are added by their
// own migrations, so this body stays frozen.
func migrationV1(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	repo_url TEXT,
	default_branch TEXT NOT NULL DEFAULT 'main',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, title TEXT NOT NULL, description TEXT,
	position INTEGER NOT NULL DEFAULT 0, build_state TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, workflow_id TEXT NOT NULL, title TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '', position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS steps (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, activity_id TEXT NOT NULL, title TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS cards (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, activity_id TEXT NOT NULL, step_id TEXT,
	title TEXT NOT NULL, description TEXT, status TEXT NOT NULL DEFAULT 'todo',
	priority INTEGER NOT NULL DEFAULT 0, position INTEGER NOT NULL DEFAULT 0,
	build_state TEXT NOT NULL DEFAULT '', last_build_ref TEXT, finalized_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS card_knowledge_items (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, card_id TEXT NOT NULL, item_type TEXT NOT NULL,
	text TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'draft', confidence REAL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS card_planned_files (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, card_id TEXT NOT NULL,
	logical_file_name TEXT NOT NULL, module_hint TEXT, artifact_kind TEXT NOT NULL,
	action TEXT NOT NULL, intent_summary TEXT, contract_notes TEXT,
	status TEXT NOT NULL DEFAULT 'proposed', position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS context_artifacts (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, name TEXT NOT NULL, type TEXT NOT NULL,
	content TEXT, uri TEXT, integration_ref TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS card_context_artifacts (
	card_id TEXT NOT NULL, context_artifact_id TEXT NOT NULL, project_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, PRIMARY KEY (card_id, context_artifact_id)
);
CREATE TABLE IF NOT EXISTS orchestration_runs (
	id TEXT PRIMARY KEY, project_id TEXT NOT NULL, scope TEXT NOT NULL, workflow_id TEXT, card_id TEXT,
	trigger_type TEXT NOT NULL, initiated_by TEXT NOT NULL, repo_url TEXT, base_branch TEXT NOT NULL,
	run_input_snapshot TEXT NOT NULL, worktree_root TEXT, status TEXT NOT NULL DEFAULT 'queued',
	system_policy_snapshot TEXT NOT NULL, started_at DATETIME, ended_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS card_assignments (
	id TEXT PRIMARY KEY, run_id TEXT NOT NULL, card_id TEXT NOT NULL, agent_role TEXT NOT NULL,
	agent_profile TEXT, feature_branch TEXT NOT NULL, worktree_path TEXT,
	allowed_paths TEXT NOT NULL, forbidden_paths TEXT NOT NULL, assignment_input_snapshot TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued', execution_id TEXT, agent_execution_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS run_checks (
	id TEXT PRIMARY KEY, run_id TEXT NOT NULL, check_type TEXT NOT NULL, status TEXT NOT NULL,
	output TEXT, created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS approval_requests (
	id TEXT PRIMARY KEY, run_id TEXT NOT NULL, approval_type TEXT NOT NULL, requested_by TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending', resolved_by TEXT, notes TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, resolved_at DATETIME
);
CREATE TABLE IF NOT EXISTS pr_candidates (
	id TEXT PRIMARY KEY, run_id TEXT NOT NULL, base_branch TEXT NOT NULL, head_branch TEXT NOT NULL,
	title TEXT NOT NULL, description TEXT, status TEXT NOT NULL DEFAULT 'draft', pr_url TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT, actor TEXT NOT NULL, entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL, action TEXT NOT NULL, detail TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`)
	return err
}

func migrationV2(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "ALTER TABLE card_assignments ADD COLUMN last_error TEXT")
	return err
}

func migrationV3(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "ALTER TABLE audit_log ADD COLUMN project_id TEXT")
	return err
}

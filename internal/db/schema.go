package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository tests
// load it via GetSchemaSQL() rather than declaring their own tables, so a column
// referenced by repository code but missing here fails immediately with
// "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Projects (root of the planning hierarchy)
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	repo_url TEXT,
	default_branch TEXT NOT NULL DEFAULT 'main',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	position INTEGER NOT NULL DEFAULT 0,
	build_state TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	workflow_id TEXT NOT NULL,
	title TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS steps (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	title TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cards (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	activity_id TEXT NOT NULL,
	step_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL CHECK(status IN ('todo', 'active', 'questions', 'review', 'production')) DEFAULT 'todo',
	priority INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL DEFAULT 0,
	build_state TEXT NOT NULL DEFAULT '',
	last_build_ref TEXT,
	finalized_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE,
	FOREIGN KEY (step_id) REFERENCES steps(id) ON DELETE SET NULL
);

-- Card knowledge (requirements, facts, assumptions, questions share one contract)
CREATE TABLE IF NOT EXISTS card_knowledge_items (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	card_id TEXT NOT NULL,
	item_type TEXT NOT NULL CHECK(item_type IN ('requirement', 'fact', 'assumption', 'question')),
	text TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('draft', 'approved', 'rejected')) DEFAULT 'draft',
	confidence REAL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS card_planned_files (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	card_id TEXT NOT NULL,
	logical_file_name TEXT NOT NULL,
	module_hint TEXT,
	artifact_kind TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'modify', 'delete')),
	intent_summary TEXT,
	contract_notes TEXT,
	status TEXT NOT NULL CHECK(status IN ('proposed', 'approved', 'rejected')) DEFAULT 'proposed',
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS context_artifacts (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('doc', 'spec', 'design', 'code', 'link', 'other')),
	content TEXT,
	uri TEXT,
	integration_ref TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS card_context_artifacts (
	card_id TEXT NOT NULL,
	context_artifact_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (card_id, context_artifact_id),
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE,
	FOREIGN KEY (context_artifact_id) REFERENCES context_artifacts(id) ON DELETE CASCADE
);

-- Orchestration
CREATE TABLE IF NOT EXISTS orchestration_runs (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	scope TEXT NOT NULL CHECK(scope IN ('workflow', 'card')),
	workflow_id TEXT,
	card_id TEXT,
	trigger_type TEXT NOT NULL CHECK(trigger_type IN ('manual', 'card', 'workflow')),
	initiated_by TEXT NOT NULL,
	repo_url TEXT,
	base_branch TEXT NOT NULL,
	run_input_snapshot TEXT NOT NULL,
	worktree_root TEXT,
	status TEXT NOT NULL CHECK(status IN ('queued', 'running', 'blocked', 'failed', 'completed', 'cancelled')) DEFAULT 'queued',
	system_policy_snapshot TEXT NOT NULL,
	started_at DATETIME,
	ended_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS card_assignments (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	card_id TEXT NOT NULL,
	agent_role TEXT NOT NULL,
	agent_profile TEXT,
	feature_branch TEXT NOT NULL,
	worktree_path TEXT,
	allowed_paths TEXT NOT NULL,
	forbidden_paths TEXT NOT NULL,
	assignment_input_snapshot TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('queued', 'dispatched', 'running', 'blocked', 'completed', 'failed')) DEFAULT 'queued',
	execution_id TEXT,
	agent_execution_id TEXT,
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES orchestration_runs(id) ON DELETE CASCADE,
	FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_checks (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	check_type TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('passed', 'failed', 'skipped')),
	output TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES orchestration_runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS approval_requests (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	approval_type TEXT NOT NULL,
	requested_by TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'approved', 'rejected')) DEFAULT 'pending',
	resolved_by TEXT,
	notes TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME,
	FOREIGN KEY (run_id) REFERENCES orchestration_runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pr_candidates (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	base_branch TEXT NOT NULL,
	head_branch TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL CHECK(status IN ('draft', 'open', 'merged', 'closed')) DEFAULT 'draft',
	pr_url TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES orchestration_runs(id) ON DELETE CASCADE
);

-- Audit trail (write-only from the core)
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT,
	actor TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_workflows_project ON workflows(project_id, position);
CREATE INDEX IF NOT EXISTS idx_activities_workflow ON activities(workflow_id, position);
CREATE INDEX IF NOT EXISTS idx_steps_activity ON steps(activity_id, position);
CREATE INDEX IF NOT EXISTS idx_cards_activity ON cards(activity_id, step_id, position);
CREATE INDEX IF NOT EXISTS idx_runs_project ON orchestration_runs(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_assignments_run ON card_assignments(run_id, card_id);
CREATE INDEX IF NOT EXISTS idx_checks_run ON run_checks(run_id);
`

// InitSchema brings database up to date. Fresh installs get SchemaSQL directly
// and are stamped with every migration version; existing installs run pending
// migrations.
func InitSchema(ctx context.Context, database *sql.DB) error {
	var tableCount int
	err := database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(ctx, database)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to stamp migration %d: %w", m.Version, err)
		}
	}
	return tx.Commit()
}

// GetSchemaSQL returns the authoritative schema for test setup.
func GetSchemaSQL() string {
	return SchemaSQL
}

// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not declare tables in test files; use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/forge/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection: every connection to :memory: is a
// separate database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("seed failed: %v\nquery: %s", err, query)
	}
}

// seedProject inserts a project with default branch main.
func seedProject(t *testing.T, db *sql.DB, id string) string {
	t.Helper()
	mustExec(t, db, "INSERT INTO projects (id, name, repo_url, default_branch) VALUES (?, ?, ?, 'main')",
		id, "Project "+id, "https://github.com/acme/"+id)
	return id
}

// seedWorkflow inserts a workflow under a project.
func seedWorkflow(t *testing.T, db *sql.DB, id, projectID string, position int) string {
	t.Helper()
	mustExec(t, db, "INSERT INTO workflows (id, project_id, title, position) VALUES (?, ?, ?, ?)",
		id, projectID, "Workflow "+id, position)
	return id
}

// seedActivity inserts an activity under a workflow.
func seedActivity(t *testing.T, db *sql.DB, id, projectID, workflowID string, position int) string {
	t.Helper()
	mustExec(t, db, "INSERT INTO activities (id, project_id, workflow_id, title, position) VALUES (?, ?, ?, ?, ?)",
		id, projectID, workflowID, "Activity "+id, position)
	return id
}

// seedStep inserts a step under an activity.
func seedStep(t *testing.T, db *sql.DB, id, projectID, activityID string, position int) string {
	t.Helper()
	mustExec(t, db, "INSERT INTO steps (id, project_id, activity_id, title, position) VALUES (?, ?, ?, ?, ?)",
		id, projectID, activityID, "Step "+id, position)
	return id
}

// seedCard inserts a card; stepID may be empty for a card attached directly to the activity.
func seedCard(t *testing.T, db *sql.DB, id, projectID, activityID, stepID string, position int) string {
	t.Helper()
	var step any
	if stepID != "" {
		step = stepID
	}
	mustExec(t, db, "INSERT INTO cards (id, project_id, activity_id, step_id, title, position) VALUES (?, ?, ?, ?, ?, ?)",
		id, projectID, activityID, step, "Card "+id, position)
	return id
}

// seedRun inserts a card-scoped run with the given status.
func seedRun(t *testing.T, db *sql.DB, id, projectID, cardID, status string) string {
	t.Helper()
	mustExec(t, db, `INSERT INTO orchestration_runs (id, project_id, scope, card_id, trigger_type, initiated_by, base_branch,
		run_input_snapshot, status, system_policy_snapshot) VALUES (?, ?, 'card', ?, 'manual', 'alice', 'main', '{}', ?, '{}')`,
		id, projectID, cardID, status)
	return id
}

// seedPlanningTree builds proj-1 with one workflow, one activity, one step
// and cards card-1 (direct) and card-2 (in the step).
func seedPlanningTree(t *testing.T, db *sql.DB) {
	t.Helper()
	seedProject(t, db, "proj-1")
	seedWorkflow(t, db, "wf-1", "proj-1", 0)
	seedActivity(t, db, "act-1", "proj-1", "wf-1", 0)
	seedStep(t, db, "step-1", "proj-1", "act-1", 0)
	seedCard(t, db, "card-1", "proj-1", "act-1", "", 0)
	seedCard(t, db, "card-2", "proj-1", "act-1", "step-1", 0)
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/ports/secondary"
)

// RunRepository implements secondary.RunRepository with SQLite.
type RunRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewRunRepository creates a new SQLite orchestration run repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewRunRepository(db *sql.DB, logWriter secondary.LogWriter) *RunRepository {
	return &RunRepository{db: db, logWriter: logWriter}
}

const runColumns = `id, project_id, scope, workflow_id, card_id, trigger_type, initiated_by, repo_url, base_branch,
	run_input_snapshot, worktree_root, status, system_policy_snapshot, started_at, ended_at, created_at, updated_at`

// Create persists a new run. A workflow-scoped run also sets its workflow's
// build_state to the run's status.
func (r *RunRepository) Create(ctx context.Context, run *secondary.RunRecord) error {
	status := run.Status
	if status == "" {
		status = "queued"
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orchestration_runs (id, project_id, scope, workflow_id, card_id, trigger_type, initiated_by, repo_url,
				base_branch, run_input_snapshot, worktree_root, status, system_policy_snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.ProjectID,
			run.Scope,
			nullString(run.WorkflowID),
			nullString(run.CardID),
			run.TriggerType,
			run.InitiatedBy,
			nullString(run.RepoURL),
			run.BaseBranch,
			run.RunInputSnapshot,
			nullString(run.WorktreeRoot),
			status,
			run.SystemPolicySnapshot,
		)
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		if run.Scope == "workflow" && run.WorkflowID != "" {
			return setWorkflowBuildState(ctx, tx, run.WorkflowID, status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctxutil.WithProjectID(ctx, run.ProjectID), "run", run.ID)
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM orchestration_runs WHERE id = ?`, id)
	record, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// List retrieves runs matching the given filters, newest first.
func (r *RunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM orchestration_runs WHERE 1=1`
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}

	if filters.Scope != "" {
		query += " AND scope = ?"
		args = append(args, filters.Scope)
	}

	if len(filters.Statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(filters.Statuses)-1) + ")"
		for _, s := range filters.Statuses {
			args = append(args, s)
		}
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*secondary.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, record)
	}

	return runs, rows.Err()
}

// Transition applies a compare-and-set status change.
func (r *RunRepository) Transition(ctx context.Context, change secondary.RunTransition) (bool, error) {
	endedClause := "ended_at = COALESCE(?, ended_at)"
	if change.ClearEnded {
		endedClause = "ended_at = ?"
	}

	applied := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		applied = false
		res, err := tx.ExecContext(ctx,
			`UPDATE orchestration_runs SET
				status = ?,
				started_at = COALESCE(?, started_at),
				`+endedClause+`,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?`,
			change.To, nullTime(change.StartedAt), nullTime(change.EndedAt), change.RunID, change.From)
		if err != nil {
			return fmt.Errorf("failed to transition run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}

		if change.ResetAssignments {
			if _, err := tx.ExecContext(ctx,
				`UPDATE cards SET build_state = 'queued', updated_at = CURRENT_TIMESTAMP
				WHERE id IN (SELECT card_id FROM card_assignments WHERE run_id = ?)`, change.RunID); err != nil {
				return fmt.Errorf("failed to reset card build states: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE card_assignments SET status = 'queued', execution_id = NULL, agent_execution_id = NULL,
					last_error = NULL, updated_at = CURRENT_TIMESTAMP
				WHERE run_id = ?`, change.RunID); err != nil {
				return fmt.Errorf("failed to reset assignments: %w", err)
			}
		}

		var (
			projectID  string
			scope      string
			workflowID sql.NullString
		)
		if err := tx.QueryRowContext(ctx,
			"SELECT project_id, scope, workflow_id FROM orchestration_runs WHERE id = ?", change.RunID).
			Scan(&projectID, &scope, &workflowID); err != nil {
			return fmt.Errorf("failed to get run project: %w", err)
		}
		if scope == "workflow" && workflowID.Valid {
			if err := setWorkflowBuildState(ctx, tx, workflowID.String, change.To); err != nil {
				return err
			}
		}
		if err := insertAudit(ctx, tx, projectID, ctxutil.ActorOrSystem(ctx, ""), "run", change.RunID, "transition",
			change.From+" -> "+change.To); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*secondary.RunRecord, error) {
	var (
		workflowID   sql.NullString
		cardID       sql.NullString
		repoURL      sql.NullString
		worktreeRoot sql.NullString
		startedAt    sql.NullTime
		endedAt      sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	record := &secondary.RunRecord{}
	err := row.Scan(&record.ID, &record.ProjectID, &record.Scope, &workflowID, &cardID, &record.TriggerType,
		&record.InitiatedBy, &repoURL, &record.BaseBranch, &record.RunInputSnapshot, &worktreeRoot, &record.Status,
		&record.SystemPolicySnapshot, &startedAt, &endedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.WorkflowID = workflowID.String
	record.CardID = cardID.String
	record.RepoURL = repoURL.String
	record.WorktreeRoot = worktreeRoot.String
	record.StartedAt = formatNullTime(startedAt)
	record.EndedAt = formatNullTime(endedAt)
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

// Ensure RunRepository implements the interface
var _ secondary.RunRepository = (*RunRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/ports/secondary"
)

// AssignmentRepository implements secondary.AssignmentRepository with SQLite.
// Every status change mirrors the card's build_state in the same transaction.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new SQLite card assignment repository.
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, run_id, card_id, agent_role, agent_profile, feature_branch, worktree_path, allowed_paths,
	forbidden_paths, assignment_input_snapshot, status, execution_id, agent_execution_id, last_error, created_at, updated_at`

// Create persists a new assignment and marks its card queued.
func (r *AssignmentRepository) Create(ctx context.Context, a *secondary.AssignmentRecord) error {
	allowed, err := encodePaths(a.AllowedPaths)
	if err != nil {
		return err
	}
	forbidden, err := encodePaths(a.ForbiddenPaths)
	if err != nil {
		return err
	}
	status := a.Status
	if status == "" {
		status = "queued"
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO card_assignments (id, run_id, card_id, agent_role, agent_profile, feature_branch, worktree_path,
				allowed_paths, forbidden_paths, assignment_input_snapshot, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID,
			a.RunID,
			a.CardID,
			a.AgentRole,
			nullString(a.AgentProfile),
			a.FeatureBranch,
			nullString(a.WorktreePath),
			allowed,
			forbidden,
			a.AssignmentInputSnapshot,
			status,
		)
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		if err := updateCardBuild(ctx, tx, a.CardID, secondary.CardBuildUpdate{BuildState: status}); err != nil {
			return err
		}
		return r.audit(ctx, tx, a.ID, "create", "")
	})
}

// GetByID retrieves an assignment by its ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*secondary.AssignmentRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM card_assignments WHERE id = ?`, id)
	record, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("assignment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return record, nil
}

// ListByRun retrieves a run's assignments in creation order.
func (r *AssignmentRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.AssignmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM card_assignments WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*secondary.AssignmentRecord
	for rows.Next() {
		record, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, record)
	}
	return assignments, rows.Err()
}

// FindForCard returns the newest assignment for a card in a run with the given status.
func (r *AssignmentRepository) FindForCard(ctx context.Context, runID, cardID, status string) (*secondary.AssignmentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM card_assignments
		WHERE run_id = ? AND card_id = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		runID, cardID, status)
	record, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	return record, nil
}

// MarkDispatched records a successful dispatch of a queued assignment.
func (r *AssignmentRepository) MarkDispatched(ctx context.Context, id, executionID, agentExecutionID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var cardID, runID, from string
		err := tx.QueryRowContext(ctx,
			"SELECT card_id, run_id, status FROM card_assignments WHERE id = ?", id).Scan(&cardID, &runID, &from)
		if err == sql.ErrNoRows {
			return apperr.NotFound("assignment %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get assignment: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE card_assignments SET status = 'dispatched', execution_id = ?, agent_execution_id = ?, last_error = NULL,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'queued'`,
			nullString(executionID), nullString(agentExecutionID), id)
		if err != nil {
			return fmt.Errorf("failed to mark assignment dispatched: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return apperr.Conflict("assignment %s is %s, not dispatchable", id, from)
		}

		if err := updateCardBuild(ctx, tx, cardID, secondary.CardBuildUpdate{BuildState: "running", LastBuildRef: runID}); err != nil {
			return err
		}
		return r.audit(ctx, tx, id, "transition", from+" -> dispatched")
	})
}

// Transition applies a compare-and-set status change and mirrors the card's build_state.
func (r *AssignmentRepository) Transition(ctx context.Context, change secondary.AssignmentTransition) (bool, error) {
	var applied bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		applied = false
		res, err := tx.ExecContext(ctx,
			`UPDATE card_assignments SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?`,
			change.To, nullString(change.LastError), change.AssignmentID, change.From)
		if err != nil {
			return fmt.Errorf("failed to transition assignment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}

		if change.CardBuildState != "" {
			var cardID string
			if err := tx.QueryRowContext(ctx,
				"SELECT card_id FROM card_assignments WHERE id = ?", change.AssignmentID).Scan(&cardID); err != nil {
				return fmt.Errorf("failed to get assignment card: %w", err)
			}
			update := secondary.CardBuildUpdate{BuildState: change.CardBuildState, Finalize: change.FinalizeCard}
			if err := updateCardBuild(ctx, tx, cardID, update); err != nil {
				return err
			}
		}
		if err := r.audit(ctx, tx, change.AssignmentID, "transition", change.From+" -> "+change.To); err != nil {
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

// audit writes an entry scoped to the assignment's project.
func (r *AssignmentRepository) audit(ctx context.Context, tx *sql.Tx, id, action, detail string) error {
	var projectID string
	err := tx.QueryRowContext(ctx,
		`SELECT o.project_id FROM card_assignments a JOIN orchestration_runs o ON o.id = a.run_id WHERE a.id = ?`,
		id).Scan(&projectID)
	if err != nil {
		return fmt.Errorf("failed to get assignment project: %w", err)
	}
	return insertAudit(ctx, tx, projectID, ctxutil.ActorOrSystem(ctx, ""), "assignment", id, action, detail)
}

func scanAssignment(row rowScanner) (*secondary.AssignmentRecord, error) {
	var (
		agentProfile     sql.NullString
		worktreePath     sql.NullString
		allowed          string
		forbidden        string
		executionID      sql.NullString
		agentExecutionID sql.NullString
		lastError        sql.NullString
		createdAt        time.Time
		updatedAt        time.Time
	)

	record := &secondary.AssignmentRecord{}
	err := row.Scan(&record.ID, &record.RunID, &record.CardID, &record.AgentRole, &agentProfile, &record.FeatureBranch,
		&worktreePath, &allowed, &forbidden, &record.AssignmentInputSnapshot, &record.Status, &executionID,
		&agentExecutionID, &lastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(allowed), &record.AllowedPaths); err != nil {
		return nil, fmt.Errorf("failed to decode allowed_paths: %w", err)
	}
	if err := json.Unmarshal([]byte(forbidden), &record.ForbiddenPaths); err != nil {
		return nil, fmt.Errorf("failed to decode forbidden_paths: %w", err)
	}
	record.AgentProfile = agentProfile.String
	record.WorktreePath = worktreePath.String
	record.ExecutionID = executionID.String
	record.AgentExecutionID = agentExecutionID.String
	record.LastError = lastError.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

func encodePaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("failed to encode paths: %w", err)
	}
	return string(b), nil
}

// Ensure AssignmentRepository implements the interface
var _ secondary.AssignmentRepository = (*AssignmentRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ports/secondary"
)

// ApprovalRepository implements secondary.ApprovalRepository with SQLite.
type ApprovalRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewApprovalRepository creates a new SQLite approval repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewApprovalRepository(db *sql.DB, logWriter secondary.LogWriter) *ApprovalRepository {
	return &ApprovalRepository{db: db, logWriter: logWriter}
}

const approvalColumns = `id, run_id, approval_type, requested_by, status, resolved_by, notes, created_at, resolved_at`

// Create persists a new approval request.
func (r *ApprovalRepository) Create(ctx context.Context, approval *secondary.ApprovalRecord) error {
	status := approval.Status
	if status == "" {
		status = "pending"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO approval_requests (id, run_id, approval_type, requested_by, status, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		approval.ID,
		approval.RunID,
		approval.ApprovalType,
		approval.RequestedBy,
		status,
		nullString(approval.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to create approval: %w", err)
	}

	// Log create operation
	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "approval", approval.ID)
	}

	return nil
}

// GetByID retrieves an approval request by its ID.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*secondary.ApprovalRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = ?`, id)
	record, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("approval %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return record, nil
}

// ListByRun retrieves a run's approval requests, oldest first.
func (r *ApprovalRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.ApprovalRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*secondary.ApprovalRecord
	for rows.Next() {
		record, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, record)
	}
	return approvals, rows.Err()
}

// Resolve sets the outcome of a pending request.
func (r *ApprovalRepository) Resolve(ctx context.Context, id, status, resolvedBy, notes string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE approval_requests SET status = ?, resolved_by = ?, notes = COALESCE(?, notes), resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`,
		status, resolvedBy, nullString(notes), id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "approval", id, "status", "pending", status)
	}
	return true, nil
}

func scanApproval(row rowScanner) (*secondary.ApprovalRecord, error) {
	var (
		resolvedBy sql.NullString
		notes      sql.NullString
		createdAt  time.Time
		resolvedAt sql.NullTime
	)

	record := &secondary.ApprovalRecord{}
	err := row.Scan(&record.ID, &record.RunID, &record.ApprovalType, &record.RequestedBy, &record.Status,
		&resolvedBy, &notes, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	record.ResolvedBy = resolvedBy.String
	record.Notes = notes.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.ResolvedAt = formatNullTime(resolvedAt)
	return record, nil
}

// Ensure ApprovalRepository implements the interface
var _ secondary.ApprovalRepository = (*ApprovalRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/forge/internal/ports/secondary"
)

// CheckRepository implements secondary.CheckRepository with SQLite.
type CheckRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewCheckRepository creates a new SQLite run check repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewCheckRepository(db *sql.DB, logWriter secondary.LogWriter) *CheckRepository {
	return &CheckRepository{db: db, logWriter: logWriter}
}

// Create persists a new check result.
func (r *CheckRepository) Create(ctx context.Context, check *secondary.CheckRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_checks (id, run_id, check_type, status, output) VALUES (?, ?, ?, ?, ?)`,
		check.ID,
		check.RunID,
		check.CheckType,
		check.Status,
		nullString(check.Output),
	)
	if err != nil {
		return fmt.Errorf("failed to create check: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "check", check.ID)
	}

	return nil
}

// ListByRun retrieves a run's checks in recording order.
func (r *CheckRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.CheckRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, check_type, status, output, created_at FROM run_checks WHERE run_id = ? ORDER BY created_at, rowid`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	var checks []*secondary.CheckRecord
	for rows.Next() {
		var (
			output    sql.NullString
			createdAt time.Time
		)
		record := &secondary.CheckRecord{}
		if err := rows.Scan(&record.ID, &record.RunID, &record.CheckType, &record.Status, &output, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		record.Output = output.String
		record.CreatedAt = createdAt.Format(time.RFC3339)
		checks = append(checks, record)
	}

	return checks, rows.Err()
}

// Ensure CheckRepository implements the interface
var _ secondary.CheckRepository = (*CheckRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ports/secondary"
)

// PRCandidateRepository implements secondary.PRCandidateRepository with SQLite.
type PRCandidateRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewPRCandidateRepository creates a new SQLite pull request candidate repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewPRCandidateRepository(db *sql.DB, logWriter secondary.LogWriter) *PRCandidateRepository {
	return &PRCandidateRepository{db: db, logWriter: logWriter}
}

const prCandidateColumns = `id, run_id, base_branch, head_branch, title, description, status, pr_url, created_at, updated_at`

// Create persists a new pull request candidate.
func (r *PRCandidateRepository) Create(ctx context.Context, pr *secondary.PRCandidateRecord) error {
	status := pr.Status
	if status == "" {
		status = "draft"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pr_candidates (id, run_id, base_branch, head_branch, title, description, status, pr_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pr.ID, pr.RunID, pr.BaseBranch, pr.HeadBranch, pr.Title, nullString(pr.Description), status, nullString(pr.PRURL),
	)
	if err != nil {
		return fmt.Errorf("failed to create PR candidate: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "pr_candidate", pr.ID)
	}

	return nil
}

// GetByID retrieves a pull request candidate by its ID.
func (r *PRCandidateRepository) GetByID(ctx context.Context, id string) (*secondary.PRCandidateRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+prCandidateColumns+` FROM pr_candidates WHERE id = ?`, id)
	record, err := scanPRCandidate(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("PR candidate %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get PR candidate: %w", err)
	}
	return record, nil
}

// ListByRun retrieves a run's candidates, oldest first.
func (r *PRCandidateRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.PRCandidateRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prCandidateColumns+` FROM pr_candidates WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list PR candidates: %w", err)
	}
	defer rows.Close()

	var prs []*secondary.PRCandidateRecord
	for rows.Next() {
		record, err := scanPRCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan PR candidate: %w", err)
		}
		prs = append(prs, record)
	}
	return prs, rows.Err()
}

// UpdateStatus moves a candidate between statuses if it is still in from.
func (r *PRCandidateRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pr_candidates SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update PR candidate status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, "pr_candidate", id, "status", from, to)
	}
	return true, nil
}

// UpdateURL records the remote pull request URL.
func (r *PRCandidateRepository) UpdateURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pr_candidates SET pr_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, nullString(url), id)
	if err != nil {
		return fmt.Errorf("failed to update PR candidate url: %w", err)
	}
	return requireOneRow(res, "PR candidate", id)
}

func scanPRCandidate(row rowScanner) (*secondary.PRCandidateRecord, error) {
	var (
		description sql.NullString
		prURL       sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	record := &secondary.PRCandidateRecord{}
	err := row.Scan(&record.ID, &record.RunID, &record.BaseBranch, &record.HeadBranch, &record.Title, &description,
		&record.Status, &prURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Description = description.String
	record.PRURL = prURL.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

// Ensure PRCandidateRepository implements the interface
var _ secondary.PRCandidateRepository = (*PRCandidateRepository)(nil)

// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/ports/secondary"
)

// ProjectRepository implements secondary.ProjectRepository with SQLite.
type ProjectRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewProjectRepository creates a new SQLite project repository.
// logWriter is optional - if nil, no audit logging is performed.
func NewProjectRepository(db *sql.DB, logWriter secondary.LogWriter) *ProjectRepository {
	return &ProjectRepository{db: db, logWriter: logWriter}
}

// Create persists a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *secondary.ProjectRecord) error {
	defaultBranch := project.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, repo_url, default_branch) VALUES (?, ?, ?, ?)`,
		project.ID,
		project.Name,
		nullString(project.RepoURL),
		defaultBranch,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, "project", project.ID)
	}

	return nil
}

// GetByID retrieves a project by its ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*secondary.ProjectRecord, error) {
	var (
		repoURL   sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	record := &secondary.ProjectRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, repo_url, default_branch, created_at, updated_at FROM projects WHERE id = ?`,
		id,
	).Scan(&record.ID, &record.Name, &repoURL, &record.DefaultBranch, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	record.RepoURL = repoURL.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

// List retrieves all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]*secondary.ProjectRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, repo_url, default_branch, created_at, updated_at FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*secondary.ProjectRecord
	for rows.Next() {
		var (
			repoURL   sql.NullString
			createdAt time.Time
			updatedAt time.Time
		)
		record := &secondary.ProjectRecord{}
		if err := rows.Scan(&record.ID, &record.Name, &repoURL, &record.DefaultBranch, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		record.RepoURL = repoURL.String
		record.CreatedAt = createdAt.Format(time.RFC3339)
		record.UpdatedAt = updatedAt.Format(time.RFC3339)
		projects = append(projects, record)
	}

	return projects, rows.Err()
}

// Exists checks whether a project exists.
func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}
	return count > 0, nil
}

// nullString maps the empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime maps a nil time to NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// formatNullTime renders a nullable timestamp, empty when NULL.
func formatNullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}

// Ensure ProjectRepository implements the interface
var _ secondary.ProjectRepository = (*ProjectRepository)(nil)

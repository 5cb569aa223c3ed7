package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/forge/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *secondary.AuditRecord) error {
	return insertAudit(ctx, r.db, entry.ProjectID, entry.Actor, entry.EntityType, entry.EntityID, entry.Action, entry.Detail)
}

func insertAudit(ctx context.Context, ex execer, projectID, actor, entityType, entityID, action, detail string) error {
	if actor == "" {
		actor = "system"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO audit_log (project_id, actor, entity_type, entity_id, action, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(projectID),
		actor,
		entityType,
		entityID,
		action,
		nullString(detail),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// List retrieves audit entries matching the given filters, newest first.
func (r *AuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	query := `SELECT id, project_id, actor, entity_type, entity_id, action, detail, created_at FROM audit_log WHERE 1=1`
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}

	if filters.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filters.EntityType)
	}

	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		var (
			projectID sql.NullString
			detail    sql.NullString
			createdAt time.Time
		)

		record := &secondary.AuditRecord{}
		err := rows.Scan(&record.ID,
			&projectID,
			&record.Actor,
			&record.EntityType,
			&record.EntityID,
			&record.Action,
			&detail,
			&createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		record.ProjectID = projectID.String
		record.Detail = detail.String
		record.CreatedAt = createdAt.Format(time.RFC3339)

		entries = append(entries, record)
	}

	return entries, rows.Err()
}

// Ensure AuditRepository implements the interface
var _ secondary.AuditRepository = (*AuditRepository)(nil)

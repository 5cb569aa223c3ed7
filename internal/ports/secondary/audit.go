package secondary

import "context"

// LogWriter defines the interface for writing audit log entries.
// Implementations extract actor and project from context.
type LogWriter interface {
	// LogCreate logs a create operation for an entity.
	LogCreate(ctx context.Context, entityType, entityID string) error

	// LogUpdate logs an update operation for an entity field.
	// fieldName, oldValue, newValue describe what changed.
	LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error
}

// AuditRepository defines the secondary port for the audit trail.
type AuditRepository interface {
	// Create appends an entry.
	Create(ctx context.Context, entry *AuditRecord) error

	// List retrieves entries matching the given filters, newest first.
	List(ctx context.Context, filters AuditFilters) ([]*AuditRecord, error)
}

// AuditRecord is one audit trail entry.
type AuditRecord struct {
	ID         int64
	ProjectID  string // Empty string means null
	Actor      string
	EntityType string
	EntityID   string
	Action     string
	Detail     string // Empty string means null
	CreatedAt  string
}

// AuditFilters contains filter options for querying the audit trail.
type AuditFilters struct {
	ProjectID  string
	EntityType string
	EntityID   string
	Limit      int
}

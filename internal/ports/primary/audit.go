package primary

import "context"

// AuditService defines the primary port for reading the audit trail.
type AuditService interface {
	// ListAuditEntries retrieves entries matching the given filters, newest first.
	ListAuditEntries(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// AuditFilters contains filter options for querying the audit trail.
type AuditFilters struct {
	ProjectID  string
	EntityType string
	EntityID   string
	Limit      int
}

// AuditEntry represents an audit trail entry at the port boundary.
type AuditEntry struct {
	ID         int64  `json:"id"`
	ProjectID  string `json:"project_id,omitempty"`
	Actor      string `json:"actor"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"` // create, update, transition, ...
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

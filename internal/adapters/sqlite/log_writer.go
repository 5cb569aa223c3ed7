package sqlite

import (
	"context"
	"fmt"

	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.LogWriter on top of the audit trail.
type LogWriterAdapter struct {
	auditRepo secondary.AuditRepository
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(auditRepo secondary.AuditRepository) *LogWriterAdapter {
	return &LogWriterAdapter{auditRepo: auditRepo}
}

// LogCreate logs a create operation for an entity.
func (w *LogWriterAdapter) LogCreate(ctx context.Context, entityType, entityID string) error {
	return w.writeLog(ctx, entityType, entityID, "create", "")
}

// LogUpdate logs an update operation for an entity field.
func (w *LogWriterAdapter) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return w.writeLog(ctx, entityType, entityID, "update", fmt.Sprintf("%s: %s -> %s", fieldName, oldValue, newValue))
}

// writeLog writes a log entry with common logic.
func (w *LogWriterAdapter) writeLog(ctx context.Context, entityType, entityID, action, detail string) error {
	record := &secondary.AuditRecord{
		ProjectID:  ctxutil.ProjectFromContext(ctx),
		Actor:      ctxutil.ActorOrSystem(ctx, ""),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Detail:     detail,
	}
	return w.auditRepo.Create(ctx, record)
}

// Ensure LogWriterAdapter implements the interface
var _ secondary.LogWriter = (*LogWriterAdapter)(nil)

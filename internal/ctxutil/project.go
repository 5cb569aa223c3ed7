package ctxutil

import "context"

// ProjectKey is the context key for the project an operation acts on.
type ProjectKey struct{}

// WithProjectID returns a context scoped to a project.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, ProjectKey{}, projectID)
}

// ProjectFromContext returns the project ID from context, or empty string if not set.
func ProjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ProjectKey{}).(string); ok {
		return v
	}
	return ""
}

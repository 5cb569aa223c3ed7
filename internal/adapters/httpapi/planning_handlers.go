package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/primary"
)

type actionsBody struct {
	Actions []planning.Action `json:"actions"`
	Actor   string            `json:"actor,omitempty"`
}

type previewResponse struct {
	Success  bool               `json:"success"`
	Error    string             `json:"error,omitempty"`
	Message  string             `json:"message,omitempty"`
	Previews []planning.Preview `json:"previews"`
	Summary  string             `json:"summary,omitempty"`
}

// listProjects handles GET /projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects.ListProjects(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*primary.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// createProject handles POST /projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.CreateProjectRequest](w, r)
	if !ok {
		return
	}
	p, err := s.svc.Projects.CreateProject(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// getProject handles GET /projects/{projectId}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Projects.GetProject(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getSnapshot handles GET /projects/{projectId}/snapshot
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	state, err := s.svc.Snapshots.FetchSnapshot(r.Context(), projectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if state == nil {
		s.writeDomainError(w, r, apperr.NotFound("project %s not found", projectID))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// applyActions handles POST /projects/{projectId}/actions
func (s *Server) applyActions(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[actionsBody](w, r)
	if !ok {
		return
	}
	resp, err := s.svc.Actions.ApplyActionBatch(r.Context(), primary.ApplyActionsRequest{
		ProjectID: chi.URLParam(r, "projectId"),
		Actions:   body.Actions,
		Actor:     body.Actor,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// previewActions handles POST /projects/{projectId}/actions/preview
func (s *Server) previewActions(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[actionsBody](w, r)
	if !ok {
		return
	}
	resp, err := s.svc.Actions.PreviewActionBatch(r.Context(), primary.ApplyActionsRequest{
		ProjectID: chi.URLParam(r, "projectId"),
		Actions:   body.Actions,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, status, previewResponse{
			Success:  false,
			Error:    apperr.Code(err),
			Message:  err.Error(),
			Previews: []planning.Preview{},
		})
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Success:  true,
		Previews: resp.Previews,
		Summary:  resp.Summary,
	})
}

// listAudit handles GET /projects/{projectId}/audit
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	entries, err := s.svc.Audit.ListAuditEntries(r.Context(), primary.AuditFilters{
		ProjectID:  chi.URLParam(r, "projectId"),
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   r.URL.Query().Get("entity_id"),
		Limit:      limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// queryLimit parses the optional limit query parameter.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, apperr.ErrValidation.Error(), "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/repo"
	"github.com/example/forge/internal/ports/primary"
)

type transitionRunBody struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

type dispatchBody struct {
	Actor string `json:"actor,omitempty"`
}

type updatePRBody struct {
	Status string `json:"status,omitempty"`
	PRURL  string `json:"pr_url,omitempty"`
}

type pushBody struct {
	Branch string `json:"branch,omitempty"`
}

// createRun handles POST /projects/{projectId}/orchestration/runs
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.CreateRunRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	run, err := s.svc.Runs.CreateRun(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"runId": run.ID})
}

// listRuns handles GET /projects/{projectId}/orchestration/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	runs, err := s.svc.Runs.ListRuns(r.Context(), primary.RunFilters{
		ProjectID: chi.URLParam(r, "projectId"),
		Scope:     r.URL.Query().Get("scope"),
		Status:    r.URL.Query().Get("status"),
		Limit:     limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*primary.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// getRun handles GET /projects/{projectId}/orchestration/runs/{runId}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Runs.GetRun(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// transitionRun handles PATCH /projects/{projectId}/orchestration/runs/{runId}
func (s *Server) transitionRun(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[transitionRunBody](w, r)
	if !ok {
		return
	}
	run, err := s.svc.Runs.TransitionRun(r.Context(), primary.TransitionRunRequest{
		ProjectID: chi.URLParam(r, "projectId"),
		RunID:     chi.URLParam(r, "runId"),
		Status:    body.Status,
		Actor:     body.Actor,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// createAssignment handles POST .../runs/{runId}/assignments
func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.CreateAssignmentRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	req.RunID = chi.URLParam(r, "runId")
	resp, err := s.svc.Assignments.CreateAssignment(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:            apperr.ErrValidation.Error(),
			Message:          strings.Join(resp.ValidationErrors, "; "),
			ValidationErrors: resp.ValidationErrors,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"assignmentId": resp.AssignmentID})
}

// listAssignments handles GET .../runs/{runId}/assignments
func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.svc.Assignments.ListAssignments(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// getAssignment handles GET .../runs/{runId}/assignments/{assignmentId}
func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.runAssignment(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// dispatchAssignment handles POST .../assignments/{assignmentId}/dispatch
func (s *Server) dispatchAssignment(w http.ResponseWriter, r *http.Request) {
	var body dispatchBody
	if r.ContentLength != 0 {
		var ok bool
		if body, ok = readJSON[dispatchBody](w, r); !ok {
			return
		}
	}
	a, err := s.runAssignment(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp, err := s.svc.Assignments.DispatchAssignment(r.Context(), primary.DispatchAssignmentRequest{
		AssignmentID: a.ID,
		Actor:        body.Actor,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !resp.Success {
		writeError(w, http.StatusBadRequest, "dispatch_failed", resp.Error)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// reportExecutionStatus handles POST .../assignments/{assignmentId}/status,
// the execution client's status webhook.
func (s *Server) reportExecutionStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.ReportExecutionStatusRequest](w, r)
	if !ok {
		return
	}
	a, err := s.runAssignment(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	req.AssignmentID = a.ID
	updated, err := s.svc.Assignments.ReportExecutionStatus(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// runAssignment loads the path's assignment and confirms it belongs to the
// path's run and project.
func (s *Server) runAssignment(r *http.Request) (*primary.Assignment, error) {
	run, err := s.svc.Runs.GetRun(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		return nil, err
	}
	assignmentID := chi.URLParam(r, "assignmentId")
	a, err := s.svc.Assignments.GetAssignment(r.Context(), assignmentID)
	if err != nil {
		return nil, err
	}
	if a.RunID != run.ID {
		return nil, apperr.NotFound("assignment %s not found", assignmentID)
	}
	return a, nil
}

// resumeBlocked handles POST /projects/{projectId}/orchestration/resume-blocked
func (s *Server) resumeBlocked(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.ResumeBlockedRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	if strings.TrimSpace(req.CardID) == "" {
		writeError(w, http.StatusBadRequest, apperr.ErrValidation.Error(), "card_id is required")
		return
	}
	resp, err := s.svc.Assignments.ResumeBlockedAssignment(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// recordCheck handles POST .../runs/{runId}/checks
func (s *Server) recordCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.RecordCheckRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	req.RunID = chi.URLParam(r, "runId")
	check, err := s.svc.Checks.RecordCheck(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, check)
}

// listChecks handles GET .../runs/{runId}/checks
func (s *Server) listChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.svc.Checks.ListChecks(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// evaluateGates handles GET .../runs/{runId}/gates
func (s *Server) evaluateGates(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Checks.EvaluateGates(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// requestApproval handles POST .../runs/{runId}/approvals
func (s *Server) requestApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.RequestApprovalRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	req.RunID = chi.URLParam(r, "runId")
	a, err := s.svc.Approvals.RequestApproval(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// listApprovals handles GET .../runs/{runId}/approvals
func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := s.svc.Approvals.ListApprovals(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approvals)
}

// resolveApproval handles PATCH .../runs/{runId}/approvals/{approvalId}
func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.ResolveApprovalRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	req.RunID = chi.URLParam(r, "runId")
	req.ApprovalID = chi.URLParam(r, "approvalId")
	a, err := s.svc.Approvals.ResolveApproval(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// createPRCandidate handles POST .../runs/{runId}/pr-candidates
func (s *Server) createPRCandidate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[primary.CreatePRCandidateRequest](w, r)
	if !ok {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectId")
	req.RunID = chi.URLParam(r, "runId")
	pr, err := s.svc.PRCandidates.CreatePRCandidate(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

// listPRCandidates handles GET .../runs/{runId}/pr-candidates
func (s *Server) listPRCandidates(w http.ResponseWriter, r *http.Request) {
	prs, err := s.svc.PRCandidates.ListPRCandidates(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prs)
}

// updatePRCandidate handles PATCH .../runs/{runId}/pr-candidates/{prId}.
// pr_url is recorded before any status change.
func (s *Server) updatePRCandidate(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[updatePRBody](w, r)
	if !ok {
		return
	}
	ref := primary.PRCandidateRef{
		ProjectID: chi.URLParam(r, "projectId"),
		RunID:     chi.URLParam(r, "runId"),
		PRID:      chi.URLParam(r, "prId"),
	}
	if body.Status == "" && body.PRURL == "" {
		writeError(w, http.StatusBadRequest, apperr.ErrValidation.Error(), "status or pr_url is required")
		return
	}

	var (
		pr  *primary.PRCandidate
		err error
	)
	if body.PRURL != "" {
		if pr, err = s.svc.PRCandidates.UpdatePRURL(r.Context(), ref, body.PRURL); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	switch body.Status {
	case "":
	case "open":
		pr, err = s.svc.PRCandidates.OpenPRCandidate(r.Context(), ref)
	case "merged":
		pr, err = s.svc.PRCandidates.MergePRCandidate(r.Context(), ref)
	case "closed":
		pr, err = s.svc.PRCandidates.ClosePRCandidate(r.Context(), ref)
	default:
		err = apperr.Validation("status must be open, merged or closed (got %q)", body.Status).WithDetail("status", "invalid")
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// changedFiles handles GET .../runs/{runId}/changed-files
func (s *Server) changedFiles(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Repositories.RunChangedFiles(r.Context(),
		chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"), r.URL.Query().Get("branch"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !result.Success {
		s.writeDomainError(w, r, apperr.Upstream("%s", result.Error))
		return
	}
	files := result.Files
	if files == nil {
		files = []repo.ChangedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// pushBranch handles POST .../runs/{runId}/push
func (s *Server) pushBranch(w http.ResponseWriter, r *http.Request) {
	var body pushBody
	if r.ContentLength != 0 {
		var ok bool
		if body, ok = readJSON[pushBody](w, r); !ok {
			return
		}
	}
	result, err := s.svc.Repositories.PushRunBranch(r.Context(),
		chi.URLParam(r, "projectId"), chi.URLParam(r, "runId"), body.Branch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	switch result.FailureKind {
	case repo.PushFailureAuth:
		s.writeDomainError(w, r, apperr.Unauthorized("%s", result.Error))
	case repo.PushFailureRemote:
		s.writeDomainError(w, r, apperr.Upstream("%s", result.Error))
	default:
		if !result.Success {
			writeError(w, http.StatusBadRequest, apperr.ErrValidation.Error(), result.Error)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

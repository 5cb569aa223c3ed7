// Package httpapi is the HTTP driving adapter: a chi router whose handlers
// decode requests, call the primary ports and encode their results.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/example/forge/internal/ctxutil"
	"github.com/example/forge/internal/logging"
	"github.com/example/forge/internal/ports/primary"
)

// ActorHeader names the acting user for audit and default initiated_by values.
const ActorHeader = "X-Forge-Actor"

// Services are the primary ports the HTTP API drives.
type Services struct {
	Projects     primary.ProjectService
	Snapshots    primary.SnapshotService
	Actions      primary.ActionService
	Runs         primary.RunService
	Assignments  primary.AssignmentService
	Checks       primary.CheckService
	Approvals    primary.ApprovalService
	PRCandidates primary.PRCandidateService
	Repositories primary.RepositoryService
	Audit        primary.AuditService
}

// Server holds the handlers' dependencies.
type Server struct {
	svc    Services
	logger *zap.Logger
}

// NewServer creates a Server over the given services.
func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{svc: svc, logger: logging.Component(logger, "http")}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(actorFromHeader)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Post("/", s.createProject)

		r.Route("/{projectId}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Get("/snapshot", s.getSnapshot)
			r.Post("/actions", s.applyActions)
			r.Post("/actions/preview", s.previewActions)
			r.Get("/audit", s.listAudit)

			r.Route("/orchestration", func(r chi.Router) {
				r.Post("/resume-blocked", s.resumeBlocked)

				r.Get("/runs", s.listRuns)
				r.Post("/runs", s.createRun)

				r.Route("/runs/{runId}", func(r chi.Router) {
					r.Get("/", s.getRun)
					r.Patch("/", s.transitionRun)

					r.Get("/assignments", s.listAssignments)
					r.Post("/assignments", s.createAssignment)
					r.Get("/assignments/{assignmentId}", s.getAssignment)
					r.Post("/assignments/{assignmentId}/dispatch", s.dispatchAssignment)
					r.Post("/assignments/{assignmentId}/status", s.reportExecutionStatus)

					r.Get("/checks", s.listChecks)
					r.Post("/checks", s.recordCheck)
					r.Get("/gates", s.evaluateGates)

					r.Get("/approvals", s.listApprovals)
					r.Post("/approvals", s.requestApproval)
					r.Patch("/approvals/{approvalId}", s.resolveApproval)

					r.Get("/pr-candidates", s.listPRCandidates)
					r.Post("/pr-candidates", s.createPRCandidate)
					r.Patch("/pr-candidates/{prId}", s.updatePRCandidate)

					r.Get("/changed-files", s.changedFiles)
					r.Post("/push", s.pushBranch)
				})
			})
		})
	})

	return r
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func actorFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get(ActorHeader); actor != "" {
			r = r.WithContext(ctxutil.WithActorID(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

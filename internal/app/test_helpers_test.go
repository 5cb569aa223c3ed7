package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	corerun "github.com/example/forge/internal/core/run"
	"github.com/example/forge/internal/ports/secondary"
)

// ============================================================================
// Fixtures
// ============================================================================

const testProject = "proj-1"

// fixtureState builds proj-1 with wf-1 > act-1 holding card-1 directly and
// card-2 under step-1. card-1 carries an approved requirement, a draft one,
// a proposed and a rejected planned file, and a link to ca-1.
func fixtureState() *planning.ProjectState {
	return &planning.ProjectState{
		Project: planning.Project{ID: testProject, Name: "Shop", RepoURL: "https://github.com/acme/shop", DefaultBranch: "main"},
		Workflows: []*planning.Workflow{{
			ID: "wf-1", ProjectID: testProject, Title: "Checkout",
			Activities: []*planning.Activity{{
				ID: "act-1", WorkflowID: "wf-1", Title: "Browse",
				Steps: []*planning.Step{{
					ID: "step-1", ActivityID: "act-1", Title: "Search",
					Cards: []*planning.Card{{ID: "card-2", ActivityID: "act-1", StepID: "step-1", Title: "Search box", Status: planning.CardStatusTodo}},
				}},
				Cards: []*planning.Card{{
					ID: "card-1", ActivityID: "act-1", Title: "Product list", Description: "List products", Status: planning.CardStatusTodo,
					Knowledge: []*planning.KnowledgeItem{
						{ID: "req-1", CardID: "card-1", ItemType: planning.KnowledgeRequirement, Text: "paginate by 20", Status: planning.KnowledgeApproved},
						{ID: "req-2", CardID: "card-1", ItemType: planning.KnowledgeRequirement, Text: "infinite scroll", Status: planning.KnowledgeDraft, Position: 1},
					},
					PlannedFiles: []*planning.PlannedFile{
						{ID: "pf-1", CardID: "card-1", LogicalFileName: "product_list.go", ArtifactKind: "code", Action: planning.FileActionCreate, Status: planning.PlannedFileProposed},
						{ID: "pf-2", CardID: "card-1", LogicalFileName: "legacy.go", ArtifactKind: "code", Action: planning.FileActionDelete, Status: planning.PlannedFileRejected, Position: 1},
					},
					ContextArtifactIDs: []string{"ca-1"},
				}},
			}},
		}},
		ContextArtifacts: []*planning.ContextArtifact{
			{ID: "ca-1", ProjectID: testProject, Name: "PRD", Type: "doc", Content: "requirements"},
		},
	}
}

func action(id string, typ planning.ActionType, target, payload string) planning.Action {
	a := planning.Action{ID: id, ActionType: typ}
	if target != "" {
		a.TargetRef = json.RawMessage(target)
	}
	if payload != "" {
		a.Payload = json.RawMessage(payload)
	}
	return a
}

func testPolicy() corerun.PolicySnapshot {
	return corerun.FreezePolicy([]string{"dependency", "security", "lint"}, []string{".git/", ".env"})
}

func seedRun(t *testing.T, repo *mockRunRepository, id, status string) *secondary.RunRecord {
	t.Helper()
	policy, err := testPolicy().Encode()
	if err != nil {
		t.Fatalf("encode policy: %v", err)
	}
	r := &secondary.RunRecord{
		ID:                   id,
		ProjectID:            testProject,
		Scope:                corerun.ScopeCard,
		CardID:               "card-1",
		TriggerType:          corerun.TriggerManual,
		InitiatedBy:          "alice",
		RepoURL:              "https://github.com/acme/shop",
		BaseBranch:           "main",
		RunInputSnapshot:     "{}",
		Status:               status,
		SystemPolicySnapshot: policy,
		CreatedAt:            fmt.Sprintf("2026-01-01T00:00:%02dZ", len(repo.order)),
	}
	if err := repo.Create(context.Background(), r); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return r
}

// ============================================================================
// Mock Implementations
// ============================================================================

// mockProjectRepository implements secondary.ProjectRepository for testing.
type mockProjectRepository struct {
	projects  map[string]*secondary.ProjectRecord
	createErr error
}

func newMockProjectRepository() *mockProjectRepository {
	return &mockProjectRepository{
		projects: map[string]*secondary.ProjectRecord{
			testProject: {ID: testProject, Name: "Shop", RepoURL: "https://github.com/acme/shop", DefaultBranch: "main"},
		},
	}
}

func (m *mockProjectRepository) Create(ctx context.Context, p *secondary.ProjectRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	m.projects[p.ID] = p
	return nil
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id string) (*secondary.ProjectRecord, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("project %s not found", id)
}

func (m *mockProjectRepository) List(ctx context.Context) ([]*secondary.ProjectRecord, error) {
	var out []*secondary.ProjectRecord
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := m.projects[id]
	return ok, nil
}

// mockPlanningRepository implements secondary.PlanningRepository over
// in-memory states, applying mutations with the core reducer.
type mockPlanningRepository struct {
	states      map[string]*planning.ProjectState
	applied     []planning.Mutation
	actors      []string
	applyErr    error
	failOnApply int // 1-based call that fails with applyErr; 0 fails every call
	applyCalls  int
	loadErr     error
}

func newMockPlanningRepository() *mockPlanningRepository {
	return &mockPlanningRepository{
		states: map[string]*planning.ProjectState{testProject: fixtureState()},
	}
}

func (m *mockPlanningRepository) LoadProjectState(ctx context.Context, projectID string) (*planning.ProjectState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.states[projectID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *mockPlanningRepository) ApplyMutation(ctx context.Context, projectID, actor string, mut planning.Mutation) error {
	m.applyCalls++
	if m.applyErr != nil && (m.failOnApply == 0 || m.failOnApply == m.applyCalls) {
		return m.applyErr
	}
	m.states[projectID].Apply(mut)
	m.applied = append(m.applied, mut)
	m.actors = append(m.actors, actor)
	return nil
}

func (m *mockPlanningRepository) GetCard(ctx context.Context, cardID string) (*secondary.CardRecord, error) {
	for projectID, s := range m.states {
		if c := s.Card(cardID); c != nil {
			return &secondary.CardRecord{
				ID: c.ID, ProjectID: projectID, WorkflowID: s.WorkflowOfCard(cardID), ActivityID: c.ActivityID,
				StepID: c.StepID, Title: c.Title, Status: c.Status, BuildState: c.BuildState,
			}, nil
		}
	}
	return nil, apperr.NotFound("card %s not found", cardID)
}

func (m *mockPlanningRepository) CardInProject(ctx context.Context, projectID, cardID string) (bool, error) {
	s, ok := m.states[projectID]
	return ok && s.Card(cardID) != nil, nil
}

func (m *mockPlanningRepository) WorkflowInProject(ctx context.Context, projectID, workflowID string) (bool, error) {
	s, ok := m.states[projectID]
	return ok && s.Workflow(workflowID) != nil, nil
}

func (m *mockPlanningRepository) UpdateCardBuild(ctx context.Context, cardID string, update secondary.CardBuildUpdate) error {
	return nil
}

// mockRunRepository implements secondary.RunRepository for testing.
type mockRunRepository struct {
	runs        map[string]*secondary.RunRecord
	order       []string
	transitions []secondary.RunTransition
	resets      map[string]int // runID -> number of assignment resets
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{
		runs:   make(map[string]*secondary.RunRecord),
		resets: make(map[string]int),
	}
}

func (m *mockRunRepository) Create(ctx context.Context, r *secondary.RunRecord) error {
	if r.CreatedAt == "" {
		r.CreatedAt = fmt.Sprintf("2026-01-01T00:01:%02dZ", len(m.order))
	}
	m.runs[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockRunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	if r, ok := m.runs[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, apperr.NotFound("run %s not found", id)
}

// List returns matches newest first.
func (m *mockRunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	var out []*secondary.RunRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.runs[m.order[i]]
		if filters.ProjectID != "" && r.ProjectID != filters.ProjectID {
			continue
		}
		if filters.Scope != "" && r.Scope != filters.Scope {
			continue
		}
		if len(filters.Statuses) > 0 && !contains(filters.Statuses, r.Status) {
			continue
		}
		copied := *r
		out = append(out, &copied)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockRunRepository) Transition(ctx context.Context, change secondary.RunTransition) (bool, error) {
	r, ok := m.runs[change.RunID]
	if !ok || r.Status != change.From {
		return false, nil
	}
	m.transitions = append(m.transitions, change)
	r.Status = change.To
	if change.StartedAt != nil && r.StartedAt == "" {
		r.StartedAt = change.StartedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if change.ClearEnded {
		r.EndedAt = ""
	}
	if change.EndedAt != nil {
		r.EndedAt = change.EndedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if change.ResetAssignments {
		m.resets[r.ID]++
	}
	return true, nil
}

// mockAssignmentRepository implements secondary.AssignmentRepository and
// mirrors card build states the way the storage adapter does.
type mockAssignmentRepository struct {
	assignments   map[string]*secondary.AssignmentRecord
	order         []string
	cardBuild     map[string]string
	lastBuildRef  map[string]string
	finalized     map[string]bool
	transitionErr map[string]error // target status -> error
	markErr       error
}

func newMockAssignmentRepository() *mockAssignmentRepository {
	return &mockAssignmentRepository{
		assignments:   make(map[string]*secondary.AssignmentRecord),
		cardBuild:     make(map[string]string),
		lastBuildRef:  make(map[string]string),
		finalized:     make(map[string]bool),
		transitionErr: make(map[string]error),
	}
}

func (m *mockAssignmentRepository) Create(ctx context.Context, a *secondary.AssignmentRecord) error {
	m.assignments[a.ID] = a
	m.order = append(m.order, a.ID)
	m.cardBuild[a.CardID] = a.Status
	return nil
}

func (m *mockAssignmentRepository) GetByID(ctx context.Context, id string) (*secondary.AssignmentRecord, error) {
	if a, ok := m.assignments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, apperr.NotFound("assignment %s not found", id)
}

func (m *mockAssignmentRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.AssignmentRecord, error) {
	var out []*secondary.AssignmentRecord
	for _, id := range m.order {
		if a := m.assignments[id]; a.RunID == runID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepository) FindForCard(ctx context.Context, runID, cardID, status string) (*secondary.AssignmentRecord, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.assignments[m.order[i]]
		if a.RunID == runID && a.CardID == cardID && a.Status == status {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockAssignmentRepository) MarkDispatched(ctx context.Context, id, executionID, agentExecutionID string) error {
	if m.markErr != nil {
		return m.markErr
	}
	a, ok := m.assignments[id]
	if !ok {
		return apperr.NotFound("assignment %s not found", id)
	}
	if a.Status != "queued" {
		return apperr.Conflict("assignment %s is %s, not dispatchable", id, a.Status)
	}
	a.Status = "dispatched"
	a.ExecutionID = executionID
	a.AgentExecutionID = agentExecutionID
	m.cardBuild[a.CardID] = "running"
	m.lastBuildRef[a.CardID] = a.RunID
	return nil
}

func (m *mockAssignmentRepository) Transition(ctx context.Context, change secondary.AssignmentTransition) (bool, error) {
	if err := m.transitionErr[change.To]; err != nil {
		return false, err
	}
	a, ok := m.assignments[change.AssignmentID]
	if !ok || a.Status != change.From {
		return false, nil
	}
	a.Status = change.To
	a.LastError = change.LastError
	if change.CardBuildState != "" {
		m.cardBuild[a.CardID] = change.CardBuildState
	}
	if change.FinalizeCard {
		m.finalized[a.CardID] = true
	}
	return true, nil
}

// mockCheckRepository implements secondary.CheckRepository for testing.
type mockCheckRepository struct {
	checks []*secondary.CheckRecord
}

func newMockCheckRepository() *mockCheckRepository {
	return &mockCheckRepository{}
}

func (m *mockCheckRepository) Create(ctx context.Context, c *secondary.CheckRecord) error {
	c.CreatedAt = "2026-01-01T00:00:00Z"
	m.checks = append(m.checks, c)
	return nil
}

func (m *mockCheckRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.CheckRecord, error) {
	var out []*secondary.CheckRecord
	for _, c := range m.checks {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCheckRepository) record(runID string, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		m.checks = append(m.checks, &secondary.CheckRecord{
			ID: fmt.Sprintf("chk-%d", len(m.checks)+1), RunID: runID, CheckType: pairs[i], Status: pairs[i+1],
		})
	}
}

// mockApprovalRepository implements secondary.ApprovalRepository for testing.
type mockApprovalRepository struct {
	approvals map[string]*secondary.ApprovalRecord
	order     []string
}

func newMockApprovalRepository() *mockApprovalRepository {
	return &mockApprovalRepository{approvals: make(map[string]*secondary.ApprovalRecord)}
}

func (m *mockApprovalRepository) Create(ctx context.Context, a *secondary.ApprovalRecord) error {
	m.approvals[a.ID] = a
	m.order = append(m.order, a.ID)
	return nil
}

func (m *mockApprovalRepository) GetByID(ctx context.Context, id string) (*secondary.ApprovalRecord, error) {
	if a, ok := m.approvals[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, apperr.NotFound("approval %s not found", id)
}

func (m *mockApprovalRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.ApprovalRecord, error) {
	var out []*secondary.ApprovalRecord
	for _, id := range m.order {
		if a := m.approvals[id]; a.RunID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApprovalRepository) Resolve(ctx context.Context, id, status, resolvedBy, notes string) (bool, error) {
	a, ok := m.approvals[id]
	if !ok || a.Status != "pending" {
		return false, nil
	}
	a.Status = status
	a.ResolvedBy = resolvedBy
	a.Notes = notes
	a.ResolvedAt = "2026-01-02T00:00:00Z"
	return true, nil
}

// mockPRCandidateRepository implements secondary.PRCandidateRepository for testing.
type mockPRCandidateRepository struct {
	prs   map[string]*secondary.PRCandidateRecord
	order []string
}

func newMockPRCandidateRepository() *mockPRCandidateRepository {
	return &mockPRCandidateRepository{prs: make(map[string]*secondary.PRCandidateRecord)}
}

func (m *mockPRCandidateRepository) Create(ctx context.Context, p *secondary.PRCandidateRecord) error {
	m.prs[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockPRCandidateRepository) GetByID(ctx context.Context, id string) (*secondary.PRCandidateRecord, error) {
	if p, ok := m.prs[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, apperr.NotFound("PR candidate %s not found", id)
}

func (m *mockPRCandidateRepository) ListByRun(ctx context.Context, runID string) ([]*secondary.PRCandidateRecord, error) {
	var out []*secondary.PRCandidateRecord
	for _, id := range m.order {
		if p := m.prs[id]; p.RunID == runID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPRCandidateRepository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	p, ok := m.prs[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (m *mockPRCandidateRepository) UpdateURL(ctx context.Context, id, url string) error {
	p, ok := m.prs[id]
	if !ok {
		return apperr.NotFound("PR candidate %s not found", id)
	}
	p.PRURL = url
	return nil
}

// mockAuditRepository implements secondary.AuditRepository for testing.
type mockAuditRepository struct {
	entries []*secondary.AuditRecord
	filters secondary.AuditFilters
}

func (m *mockAuditRepository) Create(ctx context.Context, e *secondary.AuditRecord) error {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	m.filters = filters
	return m.entries, nil
}

// mockExecutionClient implements secondary.ExecutionClient for testing.
type mockExecutionClient struct {
	result   *secondary.DispatchResult
	err      error
	payloads []secondary.DispatchPayload
}

func newMockExecutionClient() *mockExecutionClient {
	return &mockExecutionClient{
		result: &secondary.DispatchResult{Success: true, ExecutionID: "exec-1", AgentExecutionID: "agent-1"},
	}
}

func (m *mockExecutionClient) Dispatch(ctx context.Context, p secondary.DispatchPayload) (*secondary.DispatchResult, error) {
	m.payloads = append(m.payloads, p)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockGitRunner implements secondary.GitRunner, recording every call.
type mockGitRunner struct {
	calls   [][]string
	dirs    []string
	outputs map[string]string // subcommand -> stdout
	errs    map[string]error  // subcommand -> error
	onRun   func(dir string, args []string)
}

func newMockGitRunner() *mockGitRunner {
	return &mockGitRunner{outputs: make(map[string]string), errs: make(map[string]error)}
}

func (m *mockGitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	m.calls = append(m.calls, args)
	m.dirs = append(m.dirs, dir)
	if m.onRun != nil {
		m.onRun(dir, args)
	}
	if len(args) == 0 {
		return "", nil
	}
	if err := m.errs[args[0]]; err != nil {
		return "", err
	}
	return m.outputs[args[0]], nil
}

func (m *mockGitRunner) commandLines() []string {
	lines := make([]string, len(m.calls))
	for i, c := range m.calls {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}

// Ensure mocks implement the interfaces
var (
	_ secondary.ProjectRepository     = (*mockProjectRepository)(nil)
	_ secondary.PlanningRepository    = (*mockPlanningRepository)(nil)
	_ secondary.RunRepository         = (*mockRunRepository)(nil)
	_ secondary.AssignmentRepository  = (*mockAssignmentRepository)(nil)
	_ secondary.CheckRepository       = (*mockCheckRepository)(nil)
	_ secondary.ApprovalRepository    = (*mockApprovalRepository)(nil)
	_ secondary.PRCandidateRepository = (*mockPRCandidateRepository)(nil)
	_ secondary.AuditRepository       = (*mockAuditRepository)(nil)
	_ secondary.ExecutionClient       = (*mockExecutionClient)(nil)
	_ secondary.GitRunner             = (*mockGitRunner)(nil)
)

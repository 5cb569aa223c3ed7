package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/forge/internal/apperr"
	"github.com/example/forge/internal/core/planning"
	"github.com/example/forge/internal/ports/secondary"
)

// PlanningRepository implements secondary.PlanningRepository with SQLite.
type PlanningRepository struct {
	db *sql.DB
}

// NewPlanningRepository creates a new SQLite planning repository.
// Audit entries for applied mutations are written in the mutation's own
// transaction, so no LogWriter is taken.
func NewPlanningRepository(db *sql.DB) *PlanningRepository {
	return &PlanningRepository{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LoadProjectState reads the whole hierarchy of a project in one transaction.
func (r *PlanningRepository) LoadProjectState(ctx context.Context, projectID string) (*planning.ProjectState, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	state := &planning.ProjectState{
		Workflows:        []*planning.Workflow{},
		ContextArtifacts: []*planning.ContextArtifact{},
	}

	var repoURL sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, repo_url, default_branch FROM projects WHERE id = ?`, projectID,
	).Scan(&state.Project.ID, &state.Project.Name, &repoURL, &state.Project.DefaultBranch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	state.Project.RepoURL = repoURL.String

	workflows := map[string]*planning.Workflow{}
	activities := map[string]*planning.Activity{}
	steps := map[string]*planning.Step{}
	cards := map[string]*planning.Card{}

	if err := loadWorkflows(ctx, tx, projectID, state, workflows); err != nil {
		return nil, err
	}
	if err := loadActivities(ctx, tx, projectID, workflows, activities); err != nil {
		return nil, err
	}
	if err := loadSteps(ctx, tx, projectID, activities, steps); err != nil {
		return nil, err
	}
	if err := loadCards(ctx, tx, projectID, activities, steps, cards); err != nil {
		return nil, err
	}
	if err := loadKnowledge(ctx, tx, projectID, cards); err != nil {
		return nil, err
	}
	if err := loadPlannedFiles(ctx, tx, projectID, cards); err != nil {
		return nil, err
	}
	if err := loadContextArtifacts(ctx, tx, projectID, state, cards); err != nil {
		return nil, err
	}

	state.SortByPosition()
	return state, nil
}

func loadWorkflows(ctx context.Context, tx *sql.Tx, projectID string, state *planning.ProjectState, out map[string]*planning.Workflow) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, title, description, position, build_state FROM workflows WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var description sql.NullString
		w := &planning.Workflow{ProjectID: projectID, Activities: []*planning.Activity{}}
		if err := rows.Scan(&w.ID, &w.Title, &description, &w.Position, &w.BuildState); err != nil {
			return fmt.Errorf("failed to scan workflow: %w", err)
		}
		w.Description = description.String
		state.Workflows = append(state.Workflows, w)
		out[w.ID] = w
	}
	return rows.Err()
}

func loadActivities(ctx context.Context, tx *sql.Tx, projectID string, workflows map[string]*planning.Workflow, out map[string]*planning.Activity) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, workflow_id, title, color, position FROM activities WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &planning.Activity{Steps: []*planning.Step{}, Cards: []*planning.Card{}}
		if err := rows.Scan(&a.ID, &a.WorkflowID, &a.Title, &a.Color, &a.Position); err != nil {
			return fmt.Errorf("failed to scan activity: %w", err)
		}
		if w, ok := workflows[a.WorkflowID]; ok {
			w.Activities = append(w.Activities, a)
			out[a.ID] = a
		}
	}
	return rows.Err()
}

func loadSteps(ctx context.Context, tx *sql.Tx, projectID string, activities map[string]*planning.Activity, out map[string]*planning.Step) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, activity_id, title, position FROM steps WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		st := &planning.Step{Cards: []*planning.Card{}}
		if err := rows.Scan(&st.ID, &st.ActivityID, &st.Title, &st.Position); err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}
		if a, ok := activities[st.ActivityID]; ok {
			a.Steps = append(a.Steps, st)
			out[st.ID] = st
		}
	}
	return rows.Err()
}

func loadCards(ctx context.Context, tx *sql.Tx, projectID string, activities map[string]*planning.Activity, steps map[string]*planning.Step, out map[string]*planning.Card) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, activity_id, step_id, title, description, status, priority, position, build_state, last_build_ref, finalized_at
		FROM cards WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stepID       sql.NullString
			description  sql.NullString
			lastBuildRef sql.NullString
			finalizedAt  sql.NullTime
		)
		c := &planning.Card{
			Knowledge:          []*planning.KnowledgeItem{},
			PlannedFiles:       []*planning.PlannedFile{},
			ContextArtifactIDs: []string{},
		}
		if err := rows.Scan(&c.ID, &c.ActivityID, &stepID, &c.Title, &description, &c.Status, &c.Priority,
			&c.Position, &c.BuildState, &lastBuildRef, &finalizedAt); err != nil {
			return fmt.Errorf("failed to scan card: %w", err)
		}
		c.StepID = stepID.String
		c.Description = description.String
		c.LastBuildRef = lastBuildRef.String
		if finalizedAt.Valid {
			t := finalizedAt.Time
			c.FinalizedAt = &t
		}

		if c.StepID != "" {
			st, ok := steps[c.StepID]
			if !ok {
				continue
			}
			st.Cards = append(st.Cards, c)
		} else {
			a, ok := activities[c.ActivityID]
			if !ok {
				continue
			}
			a.Cards = append(a.Cards, c)
		}
		out[c.ID] = c
	}
	return rows.Err()
}

func loadKnowledge(ctx context.Context, tx *sql.Tx, projectID string, cards map[string]*planning.Card) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, card_id, item_type, text, status, confidence, position
		FROM card_knowledge_items WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list knowledge items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var confidence sql.NullFloat64
		k := &planning.KnowledgeItem{}
		if err := rows.Scan(&k.ID, &k.CardID, &k.ItemType, &k.Text, &k.Status, &confidence, &k.Position); err != nil {
			return fmt.Errorf("failed to scan knowledge item: %w", err)
		}
		if confidence.Valid {
			v := confidence.Float64
			k.Confidence = &v
		}
		if c, ok := cards[k.CardID]; ok {
			c.Knowledge = append(c.Knowledge, k)
		}
	}
	return rows.Err()
}

func loadPlannedFiles(ctx context.Context, tx *sql.Tx, projectID string, cards map[string]*planning.Card) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, card_id, logical_file_name, module_hint, artifact_kind, action, intent_summary, contract_notes, status, position
		FROM card_planned_files WHERE project_id = ? ORDER BY position, rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list planned files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var moduleHint, intentSummary, contractNotes sql.NullString
		f := &planning.PlannedFile{}
		if err := rows.Scan(&f.ID, &f.CardID, &f.LogicalFileName, &moduleHint, &f.ArtifactKind, &f.Action,
			&intentSummary, &contractNotes, &f.Status, &f.Position); err != nil {
			return fmt.Errorf("failed to scan planned file: %w", err)
		}
		f.ModuleHint = moduleHint.String
		f.IntentSummary = intentSummary.String
		f.ContractNotes = contractNotes.String
		if c, ok := cards[f.CardID]; ok {
			c.PlannedFiles = append(c.PlannedFiles, f)
		}
	}
	return rows.Err()
}

func loadContextArtifacts(ctx context.Context, tx *sql.Tx, projectID string, state *planning.ProjectState, cards map[string]*planning.Card) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, type, content, uri, integration_ref FROM context_artifacts WHERE project_id = ? ORDER BY rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list context artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var content, uri, integrationRef sql.NullString
		ca := &planning.ContextArtifact{ProjectID: projectID}
		if err := rows.Scan(&ca.ID, &ca.Name, &ca.Type, &content, &uri, &integrationRef); err != nil {
			return fmt.Errorf("failed to scan context artifact: %w", err)
		}
		ca.Content = content.String
		ca.URI = uri.String
		ca.IntegrationRef = integrationRef.String
		state.ContextArtifacts = append(state.ContextArtifacts, ca)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	links, err := tx.QueryContext(ctx,
		`SELECT card_id, context_artifact_id FROM card_context_artifacts WHERE project_id = ? ORDER BY rowid`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to list context artifact links: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var cardID, artifactID string
		if err := links.Scan(&cardID, &artifactID); err != nil {
			return fmt.Errorf("failed to scan context artifact link: %w", err)
		}
		if c, ok := cards[cardID]; ok {
			c.ContextArtifactIDs = append(c.ContextArtifactIDs, artifactID)
		}
	}
	return links.Err()
}

// ApplyMutation persists one accepted action and its audit entry atomically.
func (r *PlanningRepository) ApplyMutation(ctx context.Context, projectID, actor string, m planning.Mutation) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		entityType, entityID, action, detail, err := applyMutation(ctx, tx, projectID, m)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, projectID, actor, entityType, entityID, action, detail)
	})
}

func applyMutation(ctx context.Context, tx *sql.Tx, projectID string, m planning.Mutation) (entityType, entityID, action, detail string, err error) {
	switch m := m.(type) {
	case planning.CreateWorkflow:
		w := m.Workflow
		_, err = tx.ExecContext(ctx,
			`INSERT INTO workflows (id, project_id, title, description, position, build_state) VALUES (?, ?, ?, ?, ?, ?)`,
			w.ID, projectID, w.Title, nullString(w.Description), w.Position, w.BuildState)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to create workflow: %w", err)
		}
		return "workflow", w.ID, "create", "", nil

	case planning.CreateActivity:
		a := m.Activity
		_, err = tx.ExecContext(ctx,
			`INSERT INTO activities (id, project_id, workflow_id, title, color, position) VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, projectID, a.WorkflowID, a.Title, a.Color, a.Position)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to create activity: %w", err)
		}
		return "activity", a.ID, "create", "", nil

	case planning.CreateStep:
		st := m.Step
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (id, project_id, activity_id, title, position) VALUES (?, ?, ?, ?, ?)`,
			st.ID, projectID, st.ActivityID, st.Title, st.Position)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to create step: %w", err)
		}
		return "step", st.ID, "create", "", nil

	case planning.CreateCard:
		c := m.Card
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cards (id, project_id, activity_id, step_id, title, description, status, priority, position, build_state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, projectID, c.ActivityID, nullString(c.StepID), c.Title, nullString(c.Description),
			c.Status, c.Priority, c.Position, c.BuildState)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to create card: %w", err)
		}
		return "card", c.ID, "create", "", nil

	case planning.UpdateCard:
		if err = updateCard(ctx, tx, projectID, m); err != nil {
			return "", "", "", "", err
		}
		return "card", m.CardID, "update", strings.Join(m.Changes.Fields(), ","), nil

	case planning.ReorderCards:
		for _, p := range m.Placements {
			res, execErr := tx.ExecContext(ctx,
				`UPDATE cards SET activity_id = ?, step_id = ?, position = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND project_id = ?`,
				p.ActivityID, nullString(p.StepID), p.Position, p.CardID, projectID)
			if execErr != nil {
				return "", "", "", "", fmt.Errorf("failed to reorder card: %w", execErr)
			}
			if err = requireOneRow(res, "card", p.CardID); err != nil {
				return "", "", "", "", err
			}
		}
		return "card", m.CardID, "reorder", strings.Join(m.ReorderedIDs(), ","), nil

	case planning.LinkContextArtifact:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO card_context_artifacts (card_id, context_artifact_id, project_id) VALUES (?, ?, ?)`,
			m.CardID, m.ContextArtifactID, projectID)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to link context artifact: %w", err)
		}
		return "card", m.CardID, "link", m.ContextArtifactID, nil

	case planning.UpsertPlannedFile:
		f := m.File
		if m.Created {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO card_planned_files (id, project_id, card_id, logical_file_name, module_hint, artifact_kind, action,
				intent_summary, contract_notes, status, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.ID, projectID, f.CardID, f.LogicalFileName, nullString(f.ModuleHint), f.ArtifactKind, f.Action,
				nullString(f.IntentSummary), nullString(f.ContractNotes), f.Status, f.Position)
			if err != nil {
				return "", "", "", "", fmt.Errorf("failed to create planned file: %w", err)
			}
			return "planned_file", f.ID, "create", "", nil
		}
		res, execErr := tx.ExecContext(ctx,
			`UPDATE card_planned_files SET logical_file_name = ?, module_hint = ?, artifact_kind = ?, action = ?,
			intent_summary = ?, contract_notes = ?, status = ?, position = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND card_id = ?`,
			f.LogicalFileName, nullString(f.ModuleHint), f.ArtifactKind, f.Action,
			nullString(f.IntentSummary), nullString(f.ContractNotes), f.Status, f.Position, f.ID, f.CardID)
		if execErr != nil {
			return "", "", "", "", fmt.Errorf("failed to update planned file: %w", execErr)
		}
		if err = requireOneRow(res, "planned file", f.ID); err != nil {
			return "", "", "", "", err
		}
		return "planned_file", f.ID, "update", "", nil

	case planning.SetPlannedFileStatus:
		res, execErr := tx.ExecContext(ctx,
			`UPDATE card_planned_files SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND card_id = ?`,
			m.Status, m.PlannedFileID, m.CardID)
		if execErr != nil {
			return "", "", "", "", fmt.Errorf("failed to set planned file status: %w", execErr)
		}
		if err = requireOneRow(res, "planned file", m.PlannedFileID); err != nil {
			return "", "", "", "", err
		}
		return "planned_file", m.PlannedFileID, "status", m.Status, nil

	case planning.UpsertKnowledgeItem:
		k := m.Item
		var confidence sql.NullFloat64
		if k.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *k.Confidence, Valid: true}
		}
		if m.Created {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO card_knowledge_items (id, project_id, card_id, item_type, text, status, confidence, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				k.ID, projectID, k.CardID, k.ItemType, k.Text, k.Status, confidence, k.Position)
			if err != nil {
				return "", "", "", "", fmt.Errorf("failed to create knowledge item: %w", err)
			}
			return k.ItemType, k.ID, "create", "", nil
		}
		res, execErr := tx.ExecContext(ctx,
			`UPDATE card_knowledge_items SET text = ?, status = ?, confidence = ?, position = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND card_id = ? AND item_type = ?`,
			k.Text, k.Status, confidence, k.Position, k.ID, k.CardID, k.ItemType)
		if execErr != nil {
			return "", "", "", "", fmt.Errorf("failed to update knowledge item: %w", execErr)
		}
		if err = requireOneRow(res, "knowledge item", k.ID); err != nil {
			return "", "", "", "", err
		}
		return k.ItemType, k.ID, "update", "", nil

	case planning.SetKnowledgeStatus:
		res, execErr := tx.ExecContext(ctx,
			`UPDATE card_knowledge_items SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND card_id = ? AND item_type = ?`,
			m.Status, m.ItemID, m.CardID, m.ItemType)
		if execErr != nil {
			return "", "", "", "", fmt.Errorf("failed to set knowledge status: %w", execErr)
		}
		if err = requireOneRow(res, "knowledge item", m.ItemID); err != nil {
			return "", "", "", "", err
		}
		return m.ItemType, m.ItemID, "status", m.Status, nil

	case planning.CreateContextArtifact:
		ca := m.Artifact
		_, err = tx.ExecContext(ctx,
			`INSERT INTO context_artifacts (id, project_id, name, type, content, uri, integration_ref) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ca.ID, projectID, ca.Name, ca.Type, nullString(ca.Content), nullString(ca.URI), nullString(ca.IntegrationRef))
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to create context artifact: %w", err)
		}
		return "context_artifact", ca.ID, "create", "", nil
	}

	return "", "", "", "", fmt.Errorf("unsupported mutation %T", m)
}

func updateCard(ctx context.Context, tx *sql.Tx, projectID string, m planning.UpdateCard) error {
	sets := []string{}
	args := []any{}
	if m.Changes.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *m.Changes.Title)
	}
	if m.Changes.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*m.Changes.Description))
	}
	if m.Changes.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *m.Changes.Status)
	}
	if m.Changes.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *m.Changes.Priority)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, m.CardID, projectID)

	res, err := tx.ExecContext(ctx,
		"UPDATE cards SET "+strings.Join(sets, ", ")+" WHERE id = ? AND project_id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return requireOneRow(res, "card", m.CardID)
}

func requireOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("%s %s not found", entity, id)
	}
	return nil
}

// GetCard retrieves a card with its owning project and workflow.
func (r *PlanningRepository) GetCard(ctx context.Context, cardID string) (*secondary.CardRecord, error) {
	var (
		stepID       sql.NullString
		description  sql.NullString
		lastBuildRef sql.NullString
		finalizedAt  sql.NullTime
	)

	record := &secondary.CardRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.project_id, a.workflow_id, c.activity_id, c.step_id, c.title, c.description, c.status,
			c.build_state, c.last_build_ref, c.finalized_at
		FROM cards c JOIN activities a ON a.id = c.activity_id
		WHERE c.id = ?`,
		cardID,
	).Scan(&record.ID, &record.ProjectID, &record.WorkflowID, &record.ActivityID, &stepID, &record.Title, &description,
		&record.Status, &record.BuildState, &lastBuildRef, &finalizedAt)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("card %s not found", cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	record.StepID = stepID.String
	record.Description = description.String
	record.LastBuildRef = lastBuildRef.String
	record.FinalizedAt = formatNullTime(finalizedAt)
	return record, nil
}

// CardInProject checks whether a card belongs to a project.
func (r *PlanningRepository) CardInProject(ctx context.Context, projectID, cardID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cards WHERE id = ? AND project_id = ?", cardID, projectID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check card: %w", err)
	}
	return count > 0, nil
}

// WorkflowInProject checks whether a workflow belongs to a project.
func (r *PlanningRepository) WorkflowInProject(ctx context.Context, projectID, workflowID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflows WHERE id = ? AND project_id = ?", workflowID, projectID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check workflow: %w", err)
	}
	return count > 0, nil
}

// UpdateCardBuild sets a card's build progress.
func (r *PlanningRepository) UpdateCardBuild(ctx context.Context, cardID string, update secondary.CardBuildUpdate) error {
	return updateCardBuild(ctx, r.db, cardID, update)
}

func updateCardBuild(ctx context.Context, ex execer, cardID string, update secondary.CardBuildUpdate) error {
	var finalizedAt sql.NullTime
	if update.Finalize {
		finalizedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE cards SET
			build_state = ?,
			last_build_ref = COALESCE(?, last_build_ref),
			finalized_at = COALESCE(finalized_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		update.BuildState, nullString(update.LastBuildRef), finalizedAt, cardID)
	if err != nil {
		return fmt.Errorf("failed to update card build state: %w", err)
	}
	return requireOneRow(res, "card", cardID)
}

// setWorkflowBuildState mirrors a workflow-scoped run's status onto its workflow.
func setWorkflowBuildState(ctx context.Context, ex execer, workflowID, buildState string) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE workflows SET build_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, buildState, workflowID)
	if err != nil {
		return fmt.Errorf("failed to update workflow build state: %w", err)
	}
	return requireOneRow(res, "workflow", workflowID)
}

// Ensure PlanningRepository implements the interface
var _ secondary.PlanningRepository = (*PlanningRepository)(nil)

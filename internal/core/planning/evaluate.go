package planning

import (
	"fmt"
	"strings"
)

// Batch evaluates actions in submitted order against a state that absorbs
// every accepted action's mutation, so later actions see earlier effects.
type Batch struct {
	ProjectID string
	State     *ProjectState
	Table     ResolutionTable
}

// NewBatch starts a batch over state. The state is mutated as actions are
// accepted; pass a Clone to keep the original intact.
func NewBatch(state *ProjectState) *Batch {
	return &Batch{
		ProjectID: state.Project.ID,
		State:     state,
		Table:     ResolutionTable{},
	}
}

// Outcome is the evaluation of one action. Mutation is nil when rejected.
type Outcome struct {
	Result   Result
	Mutation Mutation
	Summary  string
}

type effect struct {
	mutation  Mutation
	created   []string
	updated   []string
	reordered []string
	summary   string
}

// ActionID returns the id an action is evaluated under. Callers assign ids
// before evaluation; positional ids keep a bare pure call deterministic.
func ActionID(a ParsedAction) string {
	if a.ID != "" {
		return a.ID
	}
	return fmt.Sprintf("action-%d", a.Ordinal)
}

// Evaluate resolves the action's references, checks its business rules and,
// when accepted, applies its mutation to the batch state and registers any
// created id in the resolution table.
func (b *Batch) Evaluate(a ParsedAction) Outcome {
	actionID := ActionID(a)
	result := Result{
		ActionID:     actionID,
		ActionType:   a.ActionType,
		CreatedIDs:   []string{},
		UpdatedIDs:   []string{},
		ReorderedIDs: []string{},
	}

	eff, err := b.evaluate(a, actionID)
	if err != nil {
		result.ValidationStatus = StatusRejected
		result.Reason = err.Error()
		return Outcome{Result: result, Summary: fmt.Sprintf("Rejected %s: %s", a.ActionType, err.Error())}
	}

	result.ValidationStatus = StatusAccepted
	result.CreatedIDs = append(result.CreatedIDs, eff.created...)
	result.UpdatedIDs = append(result.UpdatedIDs, eff.updated...)
	result.ReorderedIDs = append(result.ReorderedIDs, eff.reordered...)

	b.State.Apply(eff.mutation)
	if len(eff.created) > 0 {
		b.Table.Register(a.TempID(), eff.created[0])
		b.Table.Register(actionID, eff.created[0])
	}

	return Outcome{Result: result, Mutation: eff.mutation, Summary: eff.summary}
}

func (b *Batch) evaluate(a ParsedAction, actionID string) (effect, error) {
	switch a.ActionType {
	case ActionCreateWorkflow:
		return b.createWorkflow(a.Body.(CreateWorkflowPayload), actionID)
	case ActionCreateActivity:
		return b.createActivity(a.Target.(WorkflowRef), a.Body.(CreateActivityPayload), actionID)
	case ActionCreateStep:
		return b.createStep(a.Target.(ActivityRef), a.Body.(CreateStepPayload), actionID)
	case ActionCreateCard:
		return b.createCard(a.Target.(CreateCardTarget), a.Body.(CreateCardPayload), actionID)
	case ActionUpdateCard:
		return b.updateCard(a.Target.(CardRef), a.Body.(CardUpdate))
	case ActionReorderCard:
		return b.reorderCard(a.Target.(CardRef), a.Body.(ReorderCardPayload))
	case ActionLinkContextArtifact:
		return b.linkContextArtifact(a.Target.(CardRef), a.Body.(LinkContextArtifactPayload))
	case ActionUpsertCardPlannedFile:
		return b.upsertPlannedFile(a.Target.(CardRef), a.Body.(UpsertPlannedFilePayload), actionID)
	case ActionApproveCardPlannedFile:
		return b.approvePlannedFile(a.Target.(PlannedFileRef), a.Body.(ApprovePlannedFilePayload))
	case ActionUpsertCardKnowledgeItem:
		return b.upsertKnowledgeItem(a.Target.(CardRef), a.Body.(UpsertKnowledgeItemPayload), actionID)
	case ActionSetCardKnowledgeStatus:
		return b.setKnowledgeStatus(a.Target.(KnowledgeItemRef), a.Body.(SetKnowledgeStatusPayload))
	case ActionCreateContextArtifact:
		return b.createContextArtifact(a.Body.(CreateContextArtifactPayload), actionID)
	}
	return effect{}, fmt.Errorf("unknown action_type %q", string(a.ActionType))
}

// newID derives the id for an action's created entity and rejects replays.
func (b *Batch) newID(actionID string) (string, error) {
	id := DeriveID(b.ProjectID, actionID, 0)
	if b.State.HasEntity(id) {
		return "", fmt.Errorf("action %s was already applied (entity %s exists)", actionID, id)
	}
	return id, nil
}

func (b *Batch) card(ref string) (*Card, error) {
	id := b.Table.Resolve(ref)
	c := b.State.Card(id)
	if c == nil {
		return nil, fmt.Errorf("card %s not found in project %s", id, b.ProjectID)
	}
	return c, nil
}

func positionOr(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}

func stringOr(p *string, fallback string) string {
	if p != nil {
		return *p
	}
	return fallback
}

func (b *Batch) createWorkflow(p CreateWorkflowPayload, actionID string) (effect, error) {
	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	w := Workflow{
		ID:          id,
		ProjectID:   b.ProjectID,
		Title:       p.Title,
		Description: stringOr(p.Description, ""),
		Position:    positionOr(p.Position, len(b.State.Workflows)),
	}
	return effect{
		mutation: CreateWorkflow{Workflow: w},
		created:  []string{id},
		summary:  fmt.Sprintf("Create workflow %q at position %d", w.Title, w.Position),
	}, nil
}

func (b *Batch) createActivity(t WorkflowRef, p CreateActivityPayload, actionID string) (effect, error) {
	workflowID := b.Table.Resolve(t.WorkflowID)
	w := b.State.Workflow(workflowID)
	if w == nil {
		return effect{}, fmt.Errorf("workflow %s not found in project %s", workflowID, b.ProjectID)
	}
	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	a := Activity{
		ID:         id,
		WorkflowID: w.ID,
		Title:      p.Title,
		Color:      stringOr(p.Color, ""),
		Position:   positionOr(p.Position, len(w.Activities)),
	}
	return effect{
		mutation: CreateActivity{Activity: a},
		created:  []string{id},
		summary:  fmt.Sprintf("Create activity %q in workflow %q", a.Title, w.Title),
	}, nil
}

func (b *Batch) createStep(t ActivityRef, p CreateStepPayload, actionID string) (effect, error) {
	activityID := b.Table.Resolve(t.ActivityID)
	a := b.State.Activity(activityID)
	if a == nil {
		return effect{}, fmt.Errorf("activity %s not found in project %s", activityID, b.ProjectID)
	}
	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	st := Step{
		ID:         id,
		ActivityID: a.ID,
		Title:      p.Title,
		Position:   positionOr(p.Position, len(a.Steps)),
	}
	return effect{
		mutation: CreateStep{Step: st},
		created:  []string{id},
		summary:  fmt.Sprintf("Create step %q in activity %q", st.Title, a.Title),
	}, nil
}

func (b *Batch) createCard(t CreateCardTarget, p CreateCardPayload, actionID string) (effect, error) {
	workflowID := b.Table.Resolve(t.WorkflowID)
	w := b.State.Workflow(workflowID)
	if w == nil {
		return effect{}, fmt.Errorf("workflow %s not found in project %s", workflowID, b.ProjectID)
	}
	activityID := b.Table.Resolve(t.ActivityID)
	a := b.State.Activity(activityID)
	if a == nil {
		return effect{}, fmt.Errorf("activity %s not found in project %s", activityID, b.ProjectID)
	}
	if a.WorkflowID != w.ID {
		return effect{}, fmt.Errorf("activity %s does not belong to workflow %s", a.ID, w.ID)
	}

	siblings := len(a.Cards)
	stepID := ""
	if t.StepID != "" {
		stepID = b.Table.Resolve(t.StepID)
		st := b.State.Step(stepID)
		if st == nil {
			return effect{}, fmt.Errorf("step %s not found in project %s", stepID, b.ProjectID)
		}
		if st.ActivityID != a.ID {
			return effect{}, fmt.Errorf("step %s does not belong to activity %s", st.ID, a.ID)
		}
		siblings = len(st.Cards)
	}

	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	c := Card{
		ID:          id,
		ActivityID:  a.ID,
		StepID:      stepID,
		Title:       p.Title,
		Description: stringOr(p.Description, ""),
		Status:      stringOr(p.Status, CardStatusTodo),
		Priority:    positionOr(p.Priority, 0),
		Position:    positionOr(p.Position, siblings),
	}
	return effect{
		mutation: CreateCard{Card: c},
		created:  []string{id},
		summary:  fmt.Sprintf("Create card %q in activity %q at position %d", c.Title, a.Title, c.Position),
	}, nil
}

func (b *Batch) updateCard(t CardRef, p CardUpdate) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}
	return effect{
		mutation: UpdateCard{CardID: c.ID, Changes: p},
		updated:  []string{c.ID},
		summary:  fmt.Sprintf("Update card %q: %s", c.Title, strings.Join(p.Fields(), ", ")),
	}, nil
}

func (b *Batch) reorderCard(t CardRef, p ReorderCardPayload) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}

	activityID, stepID := c.ActivityID, c.StepID
	if p.ActivityID != nil {
		activityID = b.Table.Resolve(*p.ActivityID)
		stepID = ""
		a := b.State.Activity(activityID)
		if a == nil {
			return effect{}, fmt.Errorf("activity %s not found in project %s", activityID, b.ProjectID)
		}
	}
	if p.StepID != nil {
		stepID = b.Table.Resolve(*p.StepID)
		if stepID != "" {
			st := b.State.Step(stepID)
			if st == nil {
				return effect{}, fmt.Errorf("step %s not found in project %s", stepID, b.ProjectID)
			}
			if p.ActivityID == nil {
				activityID = st.ActivityID
			} else if st.ActivityID != activityID {
				return effect{}, fmt.Errorf("step %s does not belong to activity %s", st.ID, activityID)
			}
		}
	}

	m := PlanReorder(b.State, c, activityID, stepID, *p.NewPosition)
	var pos int
	for _, pl := range m.Placements {
		if pl.CardID == c.ID {
			pos = pl.Position
		}
	}
	parent := "activity " + activityID
	if stepID != "" {
		parent = "step " + stepID
	}
	return effect{
		mutation:  m,
		reordered: m.ReorderedIDs(),
		summary:   fmt.Sprintf("Move card %q to position %d in %s", c.Title, pos, parent),
	}, nil
}

func (b *Batch) linkContextArtifact(t CardRef, p LinkContextArtifactPayload) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}
	artifactID := b.Table.Resolve(p.ContextArtifactID)
	ca := b.State.ContextArtifact(artifactID)
	if ca == nil {
		return effect{}, fmt.Errorf("context artifact %s not found in project %s", artifactID, b.ProjectID)
	}
	if contains(c.ContextArtifactIDs, ca.ID) {
		return effect{}, fmt.Errorf("context artifact %s is already linked to card %s", ca.ID, c.ID)
	}
	return effect{
		mutation: LinkContextArtifact{CardID: c.ID, ContextArtifactID: ca.ID},
		updated:  []string{c.ID},
		summary:  fmt.Sprintf("Link context artifact %q to card %q", ca.Name, c.Title),
	}, nil
}

func (b *Batch) upsertPlannedFile(t CardRef, p UpsertPlannedFilePayload, actionID string) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}

	if p.ID != "" {
		fileID := b.Table.Resolve(p.ID)
		existing := b.State.PlannedFile(fileID)
		if existing == nil {
			return effect{}, fmt.Errorf("planned file %s not found in project %s", fileID, b.ProjectID)
		}
		if existing.CardID != c.ID {
			return effect{}, fmt.Errorf("planned file %s does not belong to card %s", fileID, c.ID)
		}
		f := *existing
		f.LogicalFileName = p.LogicalFileName
		f.ArtifactKind = p.ArtifactKind
		f.Action = p.Action
		f.ModuleHint = stringOr(p.ModuleHint, f.ModuleHint)
		f.IntentSummary = stringOr(p.IntentSummary, f.IntentSummary)
		f.ContractNotes = stringOr(p.ContractNotes, f.ContractNotes)
		f.Status = stringOr(p.Status, f.Status)
		f.Position = positionOr(p.Position, f.Position)
		return effect{
			mutation: UpsertPlannedFile{File: f},
			updated:  []string{f.ID},
			summary:  fmt.Sprintf("Update planned file %s on card %q", f.LogicalFileName, c.Title),
		}, nil
	}

	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	f := PlannedFile{
		ID:              id,
		CardID:          c.ID,
		LogicalFileName: p.LogicalFileName,
		ModuleHint:      stringOr(p.ModuleHint, ""),
		ArtifactKind:    p.ArtifactKind,
		Action:          p.Action,
		IntentSummary:   stringOr(p.IntentSummary, ""),
		ContractNotes:   stringOr(p.ContractNotes, ""),
		Status:          stringOr(p.Status, PlannedFileProposed),
		Position:        positionOr(p.Position, len(c.PlannedFiles)),
	}
	return effect{
		mutation: UpsertPlannedFile{File: f, Created: true},
		created:  []string{id},
		summary:  fmt.Sprintf("Plan to %s %s on card %q", f.Action, f.LogicalFileName, c.Title),
	}, nil
}

func (b *Batch) approvePlannedFile(t PlannedFileRef, p ApprovePlannedFilePayload) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}
	fileID := b.Table.Resolve(t.PlannedFileID)
	f := b.State.PlannedFile(fileID)
	if f == nil {
		return effect{}, fmt.Errorf("planned file %s not found in project %s", fileID, b.ProjectID)
	}
	if f.CardID != c.ID {
		return effect{}, fmt.Errorf("planned file %s does not belong to card %s", fileID, c.ID)
	}
	status := stringOr(p.Status, PlannedFileApproved)
	return effect{
		mutation: SetPlannedFileStatus{CardID: c.ID, PlannedFileID: f.ID, Status: status},
		updated:  []string{f.ID},
		summary:  fmt.Sprintf("Mark planned file %s as %s", f.LogicalFileName, status),
	}, nil
}

func (b *Batch) upsertKnowledgeItem(t CardRef, p UpsertKnowledgeItemPayload, actionID string) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}

	if p.ID != "" {
		itemID := b.Table.Resolve(p.ID)
		existing := b.State.KnowledgeItem(itemID)
		if existing == nil {
			return effect{}, fmt.Errorf("knowledge item %s not found in project %s", itemID, b.ProjectID)
		}
		if existing.CardID != c.ID {
			return effect{}, fmt.Errorf("knowledge item %s does not belong to card %s", itemID, c.ID)
		}
		if existing.ItemType != p.ItemType {
			return effect{}, fmt.Errorf("knowledge item %s is a %s, not a %s", itemID, existing.ItemType, p.ItemType)
		}
		k := *existing
		k.Text = p.Text
		k.Status = stringOr(p.Status, k.Status)
		if p.Confidence != nil {
			v := *p.Confidence
			k.Confidence = &v
		}
		k.Position = positionOr(p.Position, k.Position)
		return effect{
			mutation: UpsertKnowledgeItem{Item: k},
			updated:  []string{k.ID},
			summary:  fmt.Sprintf("Update %s on card %q", k.ItemType, c.Title),
		}, nil
	}

	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	sameType := 0
	for _, k := range c.Knowledge {
		if k.ItemType == p.ItemType {
			sameType++
		}
	}
	k := KnowledgeItem{
		ID:         id,
		CardID:     c.ID,
		ItemType:   p.ItemType,
		Text:       p.Text,
		Status:     stringOr(p.Status, KnowledgeDraft),
		Confidence: p.Confidence,
		Position:   positionOr(p.Position, sameType),
	}
	return effect{
		mutation: UpsertKnowledgeItem{Item: k, Created: true},
		created:  []string{id},
		summary:  fmt.Sprintf("Add %s to card %q", k.ItemType, c.Title),
	}, nil
}

func (b *Batch) setKnowledgeStatus(t KnowledgeItemRef, p SetKnowledgeStatusPayload) (effect, error) {
	c, err := b.card(t.CardID)
	if err != nil {
		return effect{}, err
	}
	itemID := b.Table.Resolve(t.KnowledgeItemID)
	k := b.State.KnowledgeItem(itemID)
	if k == nil {
		return effect{}, fmt.Errorf("knowledge item %s not found in project %s", itemID, b.ProjectID)
	}
	if k.CardID != c.ID {
		return effect{}, fmt.Errorf("knowledge item %s does not belong to card %s", itemID, c.ID)
	}
	if k.ItemType != p.ItemType {
		return effect{}, fmt.Errorf("knowledge item %s is a %s, not a %s", itemID, k.ItemType, p.ItemType)
	}
	return effect{
		mutation: SetKnowledgeStatus{CardID: c.ID, ItemID: k.ID, ItemType: k.ItemType, Status: p.Status},
		updated:  []string{k.ID},
		summary:  fmt.Sprintf("Mark %s %s as %s", k.ItemType, k.ID, p.Status),
	}, nil
}

func (b *Batch) createContextArtifact(p CreateContextArtifactPayload, actionID string) (effect, error) {
	id, err := b.newID(actionID)
	if err != nil {
		return effect{}, err
	}
	ca := ContextArtifact{
		ID:             id,
		ProjectID:      b.ProjectID,
		Name:           p.Name,
		Type:           p.Type,
		Content:        stringOr(p.Content, ""),
		URI:            stringOr(p.URI, ""),
		IntegrationRef: stringOr(p.IntegrationRef, ""),
	}
	return effect{
		mutation: CreateContextArtifact{Artifact: ca},
		created:  []string{id},
		summary:  fmt.Sprintf("Create %s context artifact %q", ca.Type, ca.Name),
	}, nil
}

package planning

import "encoding/json"

// ActionType names one member of the closed set of planning actions.
type ActionType string

const (
	ActionCreateWorkflow          ActionType = "createWorkflow"
	ActionCreateActivity          ActionType = "createActivity"
	ActionCreateStep              ActionType = "createStep"
	ActionCreateCard              ActionType = "createCard"
	ActionUpdateCard              ActionType = "updateCard"
	ActionReorderCard             ActionType = "reorderCard"
	ActionLinkContextArtifact     ActionType = "linkContextArtifact"
	ActionUpsertCardPlannedFile   ActionType = "upsertCardPlannedFile"
	ActionApproveCardPlannedFile  ActionType = "approveCardPlannedFile"
	ActionUpsertCardKnowledgeItem ActionType = "upsertCardKnowledgeItem"
	ActionSetCardKnowledgeStatus  ActionType = "setCardKnowledgeStatus"
	ActionCreateContextArtifact   ActionType = "createContextArtifact"
)

// ActionTypes lists every supported action type in protocol order.
var ActionTypes = []ActionType{
	ActionCreateWorkflow,
	ActionCreateActivity,
	ActionCreateStep,
	ActionCreateCard,
	ActionUpdateCard,
	ActionReorderCard,
	ActionLinkContextArtifact,
	ActionUpsertCardPlannedFile,
	ActionApproveCardPlannedFile,
	ActionUpsertCardKnowledgeItem,
	ActionSetCardKnowledgeStatus,
	ActionCreateContextArtifact,
}

// Action is the envelope of a single planning mutation.
type Action struct {
	ID         string          `json:"id,omitempty"`
	ProjectID  string          `json:"project_id,omitempty"`
	ActionType ActionType      `json:"action_type"`
	TargetRef  json.RawMessage `json:"target_ref,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ValidationStatus is the per-action verdict.
type ValidationStatus string

const (
	StatusAccepted ValidationStatus = "accepted"
	StatusRejected ValidationStatus = "rejected"
)

// Result reports what one action did (or why it was rejected).
type Result struct {
	ActionID         string           `json:"action_id"`
	ActionType       ActionType       `json:"action_type"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Reason           string           `json:"reason,omitempty"`
	CreatedIDs       []string         `json:"created_ids"`
	UpdatedIDs       []string         `json:"updated_ids"`
	ReorderedIDs     []string         `json:"reordered_ids"`
}

// Accepted reports whether the action was accepted.
func (r Result) Accepted() bool { return r.ValidationStatus == StatusAccepted }

// Target refs.

type CreateWorkflowTarget struct{}

type WorkflowRef struct {
	WorkflowID string `json:"workflow_id"`
}

type ActivityRef struct {
	ActivityID string `json:"activity_id"`
}

type CreateCardTarget struct {
	WorkflowID string `json:"workflow_id"`
	ActivityID string `json:"activity_id"`
	StepID     string `json:"step_id,omitempty"`
}

type CardRef struct {
	CardID string `json:"card_id"`
}

type PlannedFileRef struct {
	CardID        string `json:"card_id"`
	PlannedFileID string `json:"planned_file_id"`
}

type KnowledgeItemRef struct {
	CardID          string `json:"card_id"`
	KnowledgeItemID string `json:"knowledge_item_id"`
}

type CreateContextArtifactTarget struct{}

// Payloads. Pointer fields are optional; nil means "not provided".

type CreateWorkflowPayload struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Position    *int    `json:"position,omitempty"`
	TempID      string  `json:"temp_id,omitempty"`
}

type CreateActivityPayload struct {
	Title    string  `json:"title"`
	Color    *string `json:"color,omitempty"`
	Position *int    `json:"position,omitempty"`
	TempID   string  `json:"temp_id,omitempty"`
}

type CreateStepPayload struct {
	Title    string `json:"title"`
	Position *int   `json:"position,omitempty"`
	TempID   string `json:"temp_id,omitempty"`
}

type CreateCardPayload struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Position    *int    `json:"position,omitempty"`
	TempID      string  `json:"temp_id,omitempty"`
}

// CardUpdate is a partial card update. A nil field means no change.
type CardUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
}

// Fields names the fields the update sets, in declaration order.
func (u CardUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Status != nil {
		fields = append(fields, "status")
	}
	if u.Priority != nil {
		fields = append(fields, "priority")
	}
	return fields
}

type ReorderCardPayload struct {
	NewPosition *int    `json:"new_position"`
	ActivityID  *string `json:"activity_id,omitempty"`
	StepID      *string `json:"step_id,omitempty"`
}

type LinkContextArtifactPayload struct {
	ContextArtifactID string `json:"context_artifact_id"`
}

type UpsertPlannedFilePayload struct {
	ID              string  `json:"id,omitempty"`
	LogicalFileName string  `json:"logical_file_name"`
	ArtifactKind    string  `json:"artifact_kind"`
	Action          string  `json:"action"`
	ModuleHint      *string `json:"module_hint,omitempty"`
	IntentSummary   *string `json:"intent_summary,omitempty"`
	ContractNotes   *string `json:"contract_notes,omitempty"`
	Status          *string `json:"status,omitempty"`
	Position        *int    `json:"position,omitempty"`
	TempID          string  `json:"temp_id,omitempty"`
}

type ApprovePlannedFilePayload struct {
	Status *string `json:"status,omitempty"`
}

type UpsertKnowledgeItemPayload struct {
	ItemType   string   `json:"item_type"`
	ID         string   `json:"id,omitempty"`
	Text       string   `json:"text"`
	Status     *string  `json:"status,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Position   *int     `json:"position,omitempty"`
	TempID     string   `json:"temp_id,omitempty"`
}

type SetKnowledgeStatusPayload struct {
	ItemType string `json:"item_type"`
	Status   string `json:"status"`
}

type CreateContextArtifactPayload struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Content        *string `json:"content,omitempty"`
	URI            *string `json:"uri,omitempty"`
	IntegrationRef *string `json:"integration_ref,omitempty"`
	TempID         string  `json:"temp_id,omitempty"`
}

// ParsedAction is an action whose target ref and payload decoded into their
// typed shapes.
type ParsedAction struct {
	Action
	Target  any
	Body    any
	Ordinal int
}

// TempID returns the payload's temp_id, if the action type carries one.
func (p ParsedAction) TempID() string {
	switch b := p.Body.(type) {
	case CreateWorkflowPayload:
		return b.TempID
	case CreateActivityPayload:
		return b.TempID
	case CreateStepPayload:
		return b.TempID
	case CreateCardPayload:
		return b.TempID
	case UpsertPlannedFilePayload:
		return b.TempID
	case UpsertKnowledgeItemPayload:
		return b.TempID
	case CreateContextArtifactPayload:
		return b.TempID
	}
	return ""
}

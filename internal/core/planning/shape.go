package planning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Problem is one shape violation inside a batch.
type Problem struct {
	Index    int    `json:"index"`
	ActionID string `json:"action_id,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ShapeError rejects a whole batch. Nothing from a batch carrying one is applied.
type ShapeError struct {
	Problems []Problem
}

func (e *ShapeError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid action batch"
	}
	first := e.Problems[0]
	msg := first.Message
	if first.Index >= 0 {
		msg = fmt.Sprintf("action %d: %s", first.Index, first.Message)
	}
	if len(e.Problems) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e.Problems)-1)
	}
	return msg
}

// Details returns the problems keyed by field path, e.g. "actions[2].payload.title".
func (e *ShapeError) Details() map[string]string {
	details := make(map[string]string, len(e.Problems))
	for _, p := range e.Problems {
		key := p.Field
		if p.Index >= 0 {
			key = fmt.Sprintf("actions[%d].%s", p.Index, p.Field)
		}
		details[key] = p.Message
	}
	return details
}

type shapeChecker struct {
	index    int
	actionID string
	problems []Problem
}

func (c *shapeChecker) fail(field, format string, args ...any) {
	c.problems = append(c.problems, Problem{
		Index:    c.index,
		ActionID: c.actionID,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *shapeChecker) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.fail(field, "%s is required", field)
	}
}

func (c *shapeChecker) oneOf(field, value string, allowed []string) {
	if !contains(allowed, value) {
		c.fail(field, "%s must be one of %s (got %q)", field, strings.Join(allowed, ", "), value)
	}
}

func (c *shapeChecker) optionalOneOf(field string, value *string, allowed []string) {
	if value != nil {
		c.oneOf(field, *value, allowed)
	}
}

func (c *shapeChecker) position(field string, value *int) {
	if value != nil && *value < 0 {
		c.fail(field, "%s must be >= 0", field)
	}
}

func (c *shapeChecker) decode(field string, raw json.RawMessage, into any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		c.fail(field, "%s is malformed: %v", field, err)
		return false
	}
	return true
}

// ValidateShape checks every action's envelope, target ref and payload and
// decodes them into typed shapes. Any problem rejects the whole batch.
func ValidateShape(projectID string, actions []Action) ([]ParsedAction, error) {
	if len(actions) == 0 {
		return nil, &ShapeError{Problems: []Problem{{Index: -1, Field: "actions", Message: "actions must be a non-empty array"}}}
	}

	var problems []Problem
	parsed := make([]ParsedAction, 0, len(actions))
	for i, a := range actions {
		c := &shapeChecker{index: i, actionID: a.ID}
		if a.ProjectID != "" && a.ProjectID != projectID {
			c.fail("project_id", "project_id %s does not match project %s", a.ProjectID, projectID)
		}
		target, body := parseAction(c, a)
		problems = append(problems, c.problems...)
		parsed = append(parsed, ParsedAction{Action: a, Target: target, Body: body, Ordinal: i})
	}

	if len(problems) > 0 {
		return nil, &ShapeError{Problems: problems}
	}
	return parsed, nil
}

func parseAction(c *shapeChecker, a Action) (any, any) {
	switch a.ActionType {
	case ActionCreateWorkflow:
		var t CreateWorkflowTarget
		var p CreateWorkflowPayload
		c.decode("target_ref", a.TargetRef, &t)
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.title", p.Title)
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionCreateActivity:
		var t WorkflowRef
		var p CreateActivityPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.workflow_id", t.WorkflowID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.title", p.Title)
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionCreateStep:
		var t ActivityRef
		var p CreateStepPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.activity_id", t.ActivityID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.title", p.Title)
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionCreateCard:
		var t CreateCardTarget
		var p CreateCardPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.workflow_id", t.WorkflowID)
			c.required("target_ref.activity_id", t.ActivityID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.title", p.Title)
			c.optionalOneOf("payload.status", p.Status, cardStatuses)
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionUpdateCard:
		var t CardRef
		var p CardUpdate
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
		}
		if c.decode("payload", a.Payload, &p) {
			if len(p.Fields()) == 0 {
				c.fail("payload", "payload must set at least one of title, description, status, priority")
			}
			if p.Title != nil {
				c.required("payload.title", *p.Title)
			}
			c.optionalOneOf("payload.status", p.Status, cardStatuses)
		}
		return t, p

	case ActionReorderCard:
		var t CardRef
		var p ReorderCardPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
		}
		if c.decode("payload", a.Payload, &p) {
			if p.NewPosition == nil {
				c.fail("payload.new_position", "payload.new_position is required")
			}
			c.position("payload.new_position", p.NewPosition)
		}
		return t, p

	case ActionLinkContextArtifact:
		var t CardRef
		var p LinkContextArtifactPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.context_artifact_id", p.ContextArtifactID)
		}
		return t, p

	case ActionUpsertCardPlannedFile:
		var t CardRef
		var p UpsertPlannedFilePayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.logical_file_name", p.LogicalFileName)
			c.required("payload.artifact_kind", p.ArtifactKind)
			c.oneOf("payload.action", p.Action, plannedFileActions)
			c.optionalOneOf("payload.status", p.Status, plannedFileStatuses)
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionApproveCardPlannedFile:
		var t PlannedFileRef
		var p ApprovePlannedFilePayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
			c.required("target_ref.planned_file_id", t.PlannedFileID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.optionalOneOf("payload.status", p.Status, plannedFileStatuses)
		}
		return t, p

	case ActionUpsertCardKnowledgeItem:
		var t CardRef
		var p UpsertKnowledgeItemPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.oneOf("payload.item_type", p.ItemType, knowledgeTypes)
			c.required("payload.text", p.Text)
			c.optionalOneOf("payload.status", p.Status, knowledgeStatuses)
			if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
				c.fail("payload.confidence", "payload.confidence must be between 0 and 1")
			}
			c.position("payload.position", p.Position)
		}
		return t, p

	case ActionSetCardKnowledgeStatus:
		var t KnowledgeItemRef
		var p SetKnowledgeStatusPayload
		if c.decode("target_ref", a.TargetRef, &t) {
			c.required("target_ref.card_id", t.CardID)
			c.required("target_ref.knowledge_item_id", t.KnowledgeItemID)
		}
		if c.decode("payload", a.Payload, &p) {
			c.oneOf("payload.item_type", p.ItemType, knowledgeTypes)
			c.oneOf("payload.status", p.Status, knowledgeStatuses)
		}
		return t, p

	case ActionCreateContextArtifact:
		var t CreateContextArtifactTarget
		var p CreateContextArtifactPayload
		c.decode("target_ref", a.TargetRef, &t)
		if c.decode("payload", a.Payload, &p) {
			c.required("payload.name", p.Name)
			c.oneOf("payload.type", p.Type, contextArtifactTypes)
			if isBlank(p.Content) && isBlank(p.URI) {
				c.fail("payload.content", "payload.content or payload.uri is required")
			}
		}
		return t, p

	default:
		c.fail("action_type", "unknown action_type %q", string(a.ActionType))
		return nil, nil
	}
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Package planning contains the pure business logic for the planning hierarchy
// (workflows, activities, steps, cards and card knowledge) and the action
// protocol that mutates it.
// This is part of the Functional Core - no I/O, only pure functions.
package planning

import (
	"sort"
	"time"
)

// Card statuses.
const (
	CardStatusTodo       = "todo"
	CardStatusActive     = "active"
	CardStatusQuestions  = "questions"
	CardStatusReview     = "review"
	CardStatusProduction = "production"
)

// Knowledge item types. All four share one contract.
const (
	KnowledgeRequirement = "requirement"
	KnowledgeFact        = "fact"
	KnowledgeAssumption  = "assumption"
	KnowledgeQuestion    = "question"
)

// Knowledge item statuses.
const (
	KnowledgeDraft    = "draft"
	KnowledgeApproved = "approved"
	KnowledgeRejected = "rejected"
)

// Planned file statuses and actions.
const (
	PlannedFileProposed = "proposed"
	PlannedFileApproved = "approved"
	PlannedFileRejected = "rejected"

	FileActionCreate = "create"
	FileActionModify = "modify"
	FileActionDelete = "delete"
)

var (
	cardStatuses         = []string{CardStatusTodo, CardStatusActive, CardStatusQuestions, CardStatusReview, CardStatusProduction}
	knowledgeTypes       = []string{KnowledgeRequirement, KnowledgeFact, KnowledgeAssumption, KnowledgeQuestion}
	knowledgeStatuses    = []string{KnowledgeDraft, KnowledgeApproved, KnowledgeRejected}
	plannedFileStatuses  = []string{PlannedFileProposed, PlannedFileApproved, PlannedFileRejected}
	plannedFileActions   = []string{FileActionCreate, FileActionModify, FileActionDelete}
	contextArtifactTypes = []string{"doc", "spec", "design", "code", "link", "other"}
)

// Project is the root of the planning hierarchy.
type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url,omitempty"`
	DefaultBranch string `json:"default_branch"`
}

type Workflow struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Position    int         `json:"position"`
	BuildState  string      `json:"build_state,omitempty"`
	Activities  []*Activity `json:"activities"`
}

type Activity struct {
	ID         string  `json:"id"`
	WorkflowID string  `json:"workflow_id"`
	Title      string  `json:"title"`
	Color      string  `json:"color,omitempty"`
	Position   int     `json:"position"`
	Steps      []*Step `json:"steps"`
	Cards      []*Card `json:"cards"` // attached directly, no step
}

type Step struct {
	ID         string  `json:"id"`
	ActivityID string  `json:"activity_id"`
	Title      string  `json:"title"`
	Position   int     `json:"position"`
	Cards      []*Card `json:"cards"`
}

type Card struct {
	ID                 string           `json:"id"`
	ActivityID         string           `json:"activity_id"`
	StepID             string           `json:"step_id,omitempty"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Status             string           `json:"status"`
	Priority           int              `json:"priority"`
	Position           int              `json:"position"`
	BuildState         string           `json:"build_state,omitempty"`
	LastBuildRef       string           `json:"last_build_ref,omitempty"`
	FinalizedAt        *time.Time       `json:"finalized_at,omitempty"`
	Knowledge          []*KnowledgeItem `json:"knowledge_items"`
	PlannedFiles       []*PlannedFile   `json:"planned_files"`
	ContextArtifactIDs []string         `json:"context_artifact_ids"`
}

// KnowledgeItem is a requirement, fact, assumption or question attached to a card.
type KnowledgeItem struct {
	ID         string   `json:"id"`
	CardID     string   `json:"card_id"`
	ItemType   string   `json:"item_type"`
	Text       string   `json:"text"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
	Position   int      `json:"position"`
}

type PlannedFile struct {
	ID              string `json:"id"`
	CardID          string `json:"card_id"`
	LogicalFileName string `json:"logical_file_name"`
	ModuleHint      string `json:"module_hint,omitempty"`
	ArtifactKind    string `json:"artifact_kind"`
	Action          string `json:"action"`
	IntentSummary   string `json:"intent_summary,omitempty"`
	ContractNotes   string `json:"contract_notes,omitempty"`
	Status          string `json:"status"`
	Position        int    `json:"position"`
}

type ContextArtifact struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	URI            string `json:"uri,omitempty"`
	IntegrationRef string `json:"integration_ref,omitempty"`
}

// ProjectState is a complete, consistent view of one project's hierarchy.
type ProjectState struct {
	Project          Project            `json:"project"`
	Workflows        []*Workflow        `json:"workflows"`
	ContextArtifacts []*ContextArtifact `json:"context_artifacts"`

	idx *index
}

type index struct {
	workflows    map[string]*Workflow
	activities   map[string]*Activity
	steps        map[string]*Step
	cards        map[string]*Card
	knowledge    map[string]*KnowledgeItem
	plannedFiles map[string]*PlannedFile
	artifacts    map[string]*ContextArtifact
}

func (s *ProjectState) lookup() *index {
	if s.idx != nil {
		return s.idx
	}
	idx := &index{
		workflows:    map[string]*Workflow{},
		activities:   map[string]*Activity{},
		steps:        map[string]*Step{},
		cards:        map[string]*Card{},
		knowledge:    map[string]*KnowledgeItem{},
		plannedFiles: map[string]*PlannedFile{},
		artifacts:    map[string]*ContextArtifact{},
	}
	addCards := func(cards []*Card) {
		for _, c := range cards {
			idx.cards[c.ID] = c
			for _, k := range c.Knowledge {
				idx.knowledge[k.ID] = k
			}
			for _, f := range c.PlannedFiles {
				idx.plannedFiles[f.ID] = f
			}
		}
	}
	for _, w := range s.Workflows {
		idx.workflows[w.ID] = w
		for _, a := range w.Activities {
			idx.activities[a.ID] = a
			addCards(a.Cards)
			for _, st := range a.Steps {
				idx.steps[st.ID] = st
				addCards(st.Cards)
			}
		}
	}
	for _, ca := range s.ContextArtifacts {
		idx.artifacts[ca.ID] = ca
	}
	s.idx = idx
	return idx
}

func (s *ProjectState) invalidate() { s.idx = nil }

// Workflow returns the workflow with id, or nil.
func (s *ProjectState) Workflow(id string) *Workflow { return s.lookup().workflows[id] }

// Activity returns the activity with id, or nil.
func (s *ProjectState) Activity(id string) *Activity { return s.lookup().activities[id] }

// Step returns the step with id, or nil.
func (s *ProjectState) Step(id string) *Step { return s.lookup().steps[id] }

// Card returns the card with id, or nil.
func (s *ProjectState) Card(id string) *Card { return s.lookup().cards[id] }

// KnowledgeItem returns the knowledge item with id, or nil.
func (s *ProjectState) KnowledgeItem(id string) *KnowledgeItem { return s.lookup().knowledge[id] }

// PlannedFile returns the planned file with id, or nil.
func (s *ProjectState) PlannedFile(id string) *PlannedFile { return s.lookup().plannedFiles[id] }

// ContextArtifact returns the context artifact with id, or nil.
func (s *ProjectState) ContextArtifact(id string) *ContextArtifact { return s.lookup().artifacts[id] }

// HasEntity reports whether any entity in the project already uses id.
func (s *ProjectState) HasEntity(id string) bool {
	idx := s.lookup()
	if _, ok := idx.workflows[id]; ok {
		return true
	}
	if _, ok := idx.activities[id]; ok {
		return true
	}
	if _, ok := idx.steps[id]; ok {
		return true
	}
	if _, ok := idx.cards[id]; ok {
		return true
	}
	if _, ok := idx.knowledge[id]; ok {
		return true
	}
	if _, ok := idx.plannedFiles[id]; ok {
		return true
	}
	_, ok := idx.artifacts[id]
	return ok
}

// WorkflowOfCard returns the workflow id a card belongs to through its activity.
func (s *ProjectState) WorkflowOfCard(cardID string) string {
	c := s.Card(cardID)
	if c == nil {
		return ""
	}
	if a := s.Activity(c.ActivityID); a != nil {
		return a.WorkflowID
	}
	return ""
}

// CardCount returns the number of cards in the project.
func (s *ProjectState) CardCount() int { return len(s.lookup().cards) }

// cardsIn returns the container slice holding cards for a parent.
func (s *ProjectState) cardsIn(activityID, stepID string) *[]*Card {
	if stepID != "" {
		if st := s.Step(stepID); st != nil {
			return &st.Cards
		}
		return nil
	}
	if a := s.Activity(activityID); a != nil {
		return &a.Cards
	}
	return nil
}

// Clone returns a deep copy of the state.
func (s *ProjectState) Clone() *ProjectState {
	if s == nil {
		return nil
	}
	out := &ProjectState{Project: s.Project}
	for _, w := range s.Workflows {
		wc := *w
		wc.Activities = nil
		for _, a := range w.Activities {
			ac := *a
			ac.Cards = cloneCards(a.Cards)
			ac.Steps = nil
			for _, st := range a.Steps {
				sc := *st
				sc.Cards = cloneCards(st.Cards)
				ac.Steps = append(ac.Steps, &sc)
			}
			wc.Activities = append(wc.Activities, &ac)
		}
		out.Workflows = append(out.Workflows, &wc)
	}
	for _, ca := range s.ContextArtifacts {
		c := *ca
		out.ContextArtifacts = append(out.ContextArtifacts, &c)
	}
	return out
}

func cloneCards(cards []*Card) []*Card {
	var out []*Card
	for _, c := range cards {
		cc := *c
		if c.FinalizedAt != nil {
			t := *c.FinalizedAt
			cc.FinalizedAt = &t
		}
		cc.Knowledge = nil
		for _, k := range c.Knowledge {
			kc := *k
			if k.Confidence != nil {
				v := *k.Confidence
				kc.Confidence = &v
			}
			cc.Knowledge = append(cc.Knowledge, &kc)
		}
		cc.PlannedFiles = nil
		for _, f := range c.PlannedFiles {
			fc := *f
			cc.PlannedFiles = append(cc.PlannedFiles, &fc)
		}
		cc.ContextArtifactIDs = append([]string(nil), c.ContextArtifactIDs...)
		out = append(out, &cc)
	}
	return out
}

// SortByPosition orders every level by position. The sort is stable, so ties
// keep their existing (insertion) order.
func (s *ProjectState) SortByPosition() {
	sort.SliceStable(s.Workflows, func(i, j int) bool { return s.Workflows[i].Position < s.Workflows[j].Position })
	for _, w := range s.Workflows {
		sort.SliceStable(w.Activities, func(i, j int) bool { return w.Activities[i].Position < w.Activities[j].Position })
		for _, a := range w.Activities {
			sortCards(a.Cards)
			sort.SliceStable(a.Steps, func(i, j int) bool { return a.Steps[i].Position < a.Steps[j].Position })
			for _, st := range a.Steps {
				sortCards(st.Cards)
			}
		}
	}
}

func sortCards(cards []*Card) {
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].Position < cards[j].Position })
	for _, c := range cards {
		sort.SliceStable(c.Knowledge, func(i, j int) bool { return c.Knowledge[i].Position < c.Knowledge[j].Position })
		sort.SliceStable(c.PlannedFiles, func(i, j int) bool { return c.PlannedFiles[i].Position < c.PlannedFiles[j].Position })
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

package planning

// Mutation is the single logical change an accepted action makes. The same
// value is applied to the in-memory state (preview, later actions in a batch)
// and persisted by the storage adapter (apply).
type Mutation interface {
	isMutation()
}

type CreateWorkflow struct{ Workflow Workflow }

type CreateActivity struct{ Activity Activity }

type CreateStep struct{ Step Step }

type CreateCard struct{ Card Card }

type UpdateCard struct {
	CardID  string
	Changes CardUpdate
}

// CardPlacement is a card's final parent and position after a reorder.
type CardPlacement struct {
	CardID     string
	ActivityID string
	StepID     string
	Position   int
}

// ReorderCards moves one card and renumbers the affected siblings. Placements
// lists every card whose parent or position changes.
type ReorderCards struct {
	CardID     string
	Placements []CardPlacement
}

type LinkContextArtifact struct {
	CardID            string
	ContextArtifactID string
}

type UpsertPlannedFile struct {
	File    PlannedFile
	Created bool
}

type SetPlannedFileStatus struct {
	CardID        string
	PlannedFileID string
	Status        string
}

type UpsertKnowledgeItem struct {
	Item    KnowledgeItem
	Created bool
}

type SetKnowledgeStatus struct {
	CardID   string
	ItemID   string
	ItemType string
	Status   string
}

type CreateContextArtifact struct{ Artifact ContextArtifact }

func (CreateWorkflow) isMutation()        {}
func (CreateActivity) isMutation()        {}
func (CreateStep) isMutation()            {}
func (CreateCard) isMutation()            {}
func (UpdateCard) isMutation()            {}
func (ReorderCards) isMutation()          {}
func (LinkContextArtifact) isMutation()   {}
func (UpsertPlannedFile) isMutation()     {}
func (SetPlannedFileStatus) isMutation()  {}
func (UpsertKnowledgeItem) isMutation()   {}
func (SetKnowledgeStatus) isMutation()    {}
func (CreateContextArtifact) isMutation() {}

// Apply mutates the state in place. Mutations come from Evaluate, which has
// already checked every reference, so missing parents are ignored.
func (s *ProjectState) Apply(m Mutation) {
	defer s.invalidate()

	switch m := m.(type) {
	case CreateWorkflow:
		w := m.Workflow
		s.Workflows = append(s.Workflows, &w)

	case CreateActivity:
		if w := s.Workflow(m.Activity.WorkflowID); w != nil {
			a := m.Activity
			w.Activities = append(w.Activities, &a)
		}

	case CreateStep:
		if a := s.Activity(m.Step.ActivityID); a != nil {
			st := m.Step
			a.Steps = append(a.Steps, &st)
		}

	case CreateCard:
		if cards := s.cardsIn(m.Card.ActivityID, m.Card.StepID); cards != nil {
			c := m.Card
			*cards = append(*cards, &c)
		}

	case UpdateCard:
		c := s.Card(m.CardID)
		if c == nil {
			return
		}
		if m.Changes.Title != nil {
			c.Title = *m.Changes.Title
		}
		if m.Changes.Description != nil {
			c.Description = *m.Changes.Description
		}
		if m.Changes.Status != nil {
			c.Status = *m.Changes.Status
		}
		if m.Changes.Priority != nil {
			c.Priority = *m.Changes.Priority
		}

	case ReorderCards:
		s.applyReorder(m)

	case LinkContextArtifact:
		if c := s.Card(m.CardID); c != nil {
			c.ContextArtifactIDs = append(c.ContextArtifactIDs, m.ContextArtifactID)
		}

	case UpsertPlannedFile:
		c := s.Card(m.File.CardID)
		if c == nil {
			return
		}
		f := m.File
		if m.Created {
			c.PlannedFiles = append(c.PlannedFiles, &f)
		} else if existing := s.PlannedFile(f.ID); existing != nil {
			*existing = f
		}

	case SetPlannedFileStatus:
		if f := s.PlannedFile(m.PlannedFileID); f != nil {
			f.Status = m.Status
		}

	case UpsertKnowledgeItem:
		c := s.Card(m.Item.CardID)
		if c == nil {
			return
		}
		k := m.Item
		if m.Created {
			c.Knowledge = append(c.Knowledge, &k)
		} else if existing := s.KnowledgeItem(k.ID); existing != nil {
			*existing = k
		}

	case SetKnowledgeStatus:
		if k := s.KnowledgeItem(m.ItemID); k != nil {
			k.Status = m.Status
		}

	case CreateContextArtifact:
		ca := m.Artifact
		s.ContextArtifacts = append(s.ContextArtifacts, &ca)
	}

	s.SortByPosition()
}

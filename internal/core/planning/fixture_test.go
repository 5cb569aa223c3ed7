package planning

import "encoding/json"

const testProject = "proj-1"

// fixtureState builds:
//
//	wf-1 Checkout
//	  act-1 Browse
//	    step-1 Search: card-3
//	    direct: card-1 (req-1, q-1, pf-1), card-2
//	  act-2 Pay
//	wf-2 Admin
//	  act-3 Reports
//	context artifacts: ca-1 (linked to card-2), ca-2
func fixtureState() *ProjectState {
	conf := 0.8
	return &ProjectState{
		Project: Project{ID: testProject, Name: "Shop", DefaultBranch: "main"},
		Workflows: []*Workflow{
			{
				ID: "wf-1", ProjectID: testProject, Title: "Checkout", Position: 0,
				Activities: []*Activity{
					{
						ID: "act-1", WorkflowID: "wf-1", Title: "Browse", Position: 0,
						Steps: []*Step{
							{ID: "step-1", ActivityID: "act-1", Title: "Search", Position: 0, Cards: []*Card{
								{ID: "card-3", ActivityID: "act-1", StepID: "step-1", Title: "Search box", Status: CardStatusTodo, Position: 0},
							}},
						},
						Cards: []*Card{
							{
								ID: "card-1", ActivityID: "act-1", Title: "Product list", Status: CardStatusTodo, Position: 0,
								Knowledge: []*KnowledgeItem{
									{ID: "req-1", CardID: "card-1", ItemType: KnowledgeRequirement, Text: "paginate", Status: KnowledgeDraft, Position: 0},
									{ID: "q-1", CardID: "card-1", ItemType: KnowledgeQuestion, Text: "page size?", Status: KnowledgeDraft, Confidence: &conf, Position: 0},
								},
								PlannedFiles: []*PlannedFile{
									{ID: "pf-1", CardID: "card-1", LogicalFileName: "product_list.go", ArtifactKind: "code", Action: FileActionCreate, Status: PlannedFileProposed},
								},
							},
							{ID: "card-2", ActivityID: "act-1", Title: "Product detail", Status: CardStatusActive, Position: 1, ContextArtifactIDs: []string{"ca-1"}},
						},
					},
					{ID: "act-2", WorkflowID: "wf-1", Title: "Pay", Position: 1},
				},
			},
			{
				ID: "wf-2", ProjectID: testProject, Title: "Admin", Position: 1,
				Activities: []*Activity{{ID: "act-3", WorkflowID: "wf-2", Title: "Reports"}},
			},
		},
		ContextArtifacts: []*ContextArtifact{
			{ID: "ca-1", ProjectID: testProject, Name: "PRD", Type: "doc", Content: "requirements"},
			{ID: "ca-2", ProjectID: testProject, Name: "Mockups", Type: "design", URI: "https://example.com/mock"},
		},
	}
}

func act(id string, typ ActionType, target, payload string) Action {
	a := Action{ID: id, ActionType: typ}
	if target != "" {
		a.TargetRef = json.RawMessage(target)
	}
	if payload != "" {
		a.Payload = json.RawMessage(payload)
	}
	return a
}

// evaluateAll shape-validates and evaluates actions against state in order.
func evaluateAll(state *ProjectState, actions ...Action) ([]Outcome, error) {
	parsed, err := ValidateShape(state.Project.ID, actions)
	if err != nil {
		return nil, err
	}
	b := NewBatch(state)
	var out []Outcome
	for _, a := range parsed {
		out = append(out, b.Evaluate(a))
	}
	return out, nil
}

func cardIDs(cards []*Card) []string {
	var ids []string
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

package planning

import "fmt"

// Preview is a Result plus a human-readable description of its effect.
type Preview struct {
	Result
	Summary string `json:"summary"`
}

// PreviewActionBatch evaluates actions against a copy of snapshot with the
// same resolution and effect logic used to apply them. It returns nil when no
// preview is possible: an empty batch, a nil snapshot, or a batch that fails
// shape validation. A non-nil empty result never occurs for a non-empty batch.
// Missing action ids are assigned with AssignActionIDs.
func PreviewActionBatch(actions []Action, snapshot *ProjectState) []Preview {
	if len(actions) == 0 || snapshot == nil {
		return nil
	}
	parsed, err := ValidateShape(snapshot.Project.ID, AssignActionIDs(actions, snapshot))
	if err != nil {
		return nil
	}

	batch := NewBatch(snapshot.Clone())
	previews := make([]Preview, 0, len(parsed))
	for _, a := range parsed {
		out := batch.Evaluate(a)
		previews = append(previews, Preview{Result: out.Result, Summary: out.Summary})
	}
	return previews
}

// Tally counts outcomes across a batch.
type Tally struct {
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Reordered int `json:"reordered"`
}

// TallyResults summarizes a set of results.
func TallyResults(results []Result) Tally {
	var t Tally
	for _, r := range results {
		if r.Accepted() {
			t.Accepted++
		} else {
			t.Rejected++
		}
		t.Created += len(r.CreatedIDs)
		t.Updated += len(r.UpdatedIDs)
		t.Reordered += len(r.ReorderedIDs)
	}
	return t
}

func (t Tally) String() string {
	return fmt.Sprintf("%d accepted, %d rejected (%d created, %d updated, %d reordered)",
		t.Accepted, t.Rejected, t.Created, t.Updated, t.Reordered)
}

// PreviewResults extracts the results from previews.
func PreviewResults(previews []Preview) []Result {
	results := make([]Result, 0, len(previews))
	for _, p := range previews {
		results = append(results, p.Result)
	}
	return results
}

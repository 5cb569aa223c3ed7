package planning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes derived planning ids.
var idNamespace = uuid.MustParse("6f1c8a52-3d0e-5b7a-9c41-2e8f0d6a7b13")

// DeriveID returns the id of the ordinal-th entity created by an action.
// The same (project, action, ordinal) always yields the same id, so a preview
// predicts apply's ids exactly and a replayed action collides with its own
// earlier result.
func DeriveID(projectID, actionID string, ordinal int) string {
	name := fmt.Sprintf("%s/%s/%d", projectID, actionID, ordinal)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// AssignActionIDs returns a copy of actions where every action carries an id.
// A missing id is derived from the project, the ids present in state, the
// action's position and its body, so evaluating the same batch against the
// same snapshot always yields the same ids. Once the batch has been applied
// the snapshot differs, and resubmitting it creates new entities.
func AssignActionIDs(actions []Action, state *ProjectState) []Action {
	out := make([]Action, len(actions))
	var fingerprint string
	for i, a := range actions {
		if a.ID == "" {
			if fingerprint == "" {
				fingerprint = state.Fingerprint()
			}
			name := fmt.Sprintf("action/%s/%s/%d/%s", state.Project.ID, fingerprint, i, canonicalAction(a))
			a.ID = uuid.NewSHA1(idNamespace, []byte(name)).String()
		}
		out[i] = a
	}
	return out
}

func canonicalAction(a Action) string {
	var b strings.Builder
	b.WriteString(string(a.ActionType))
	for _, raw := range []json.RawMessage{a.TargetRef, a.Payload} {
		b.WriteByte('|')
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			b.Write(raw)
			continue
		}
		b.Write(compact.Bytes())
	}
	return b.String()
}

// Fingerprint identifies the set of entity ids in the project.
func (s *ProjectState) Fingerprint() string {
	idx := s.lookup()
	ids := make([]string, 0, len(idx.workflows)+len(idx.cards))
	for id := range idx.workflows {
		ids = append(ids, id)
	}
	for id := range idx.activities {
		ids = append(ids, id)
	}
	for id := range idx.steps {
		ids = append(ids, id)
	}
	for id := range idx.cards {
		ids = append(ids, id)
	}
	for id := range idx.knowledge {
		ids = append(ids, id)
	}
	for id := range idx.plannedFiles {
		ids = append(ids, id)
	}
	for id := range idx.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(ids, ","))).String()
}

// ResolutionTable maps references introduced earlier in a batch (temp ids and
// creating action ids) to the real ids they produced.
type ResolutionTable map[string]string

// Register records that ref now names realID. Empty refs are ignored.
func (t ResolutionTable) Register(ref, realID string) {
	if ref == "" || ref == realID {
		return
	}
	t[ref] = realID
}

// Resolve maps ref to a real id. Unknown refs are returned unchanged and are
// then looked up as real ids.
func (t ResolutionTable) Resolve(ref string) string {
	if real, ok := t[ref]; ok {
		return real
	}
	return ref
}

// ResolveOptional resolves a pointer ref, keeping nil as nil.
func (t ResolutionTable) ResolveOptional(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := t.Resolve(*ref)
	return &v
}

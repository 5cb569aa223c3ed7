package planning

import (
	"reflect"
	"testing"
)

func TestReorderCard(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		card          string
		wantDirect    []string // act-1 direct cards after the move
		wantStep      []string // step-1 cards after the move
		wantReordered []string
	}{
		{
			name:          "move up within parent",
			card:          "card-2",
			payload:       `{"new_position":0}`,
			wantDirect:    []string{"card-2", "card-1"},
			wantStep:      []string{"card-3"},
			wantReordered: []string{"card-2", "card-1"},
		},
		{
			name:          "position is clamped to end",
			card:          "card-1",
			payload:       `{"new_position":99}`,
			wantDirect:    []string{"card-2", "card-1"},
			wantStep:      []string{"card-3"},
			wantReordered: []string{"card-1", "card-2"},
		},
		{
			name:          "move into step compacts source",
			card:          "card-1",
			payload:       `{"new_position":0,"step_id":"step-1"}`,
			wantDirect:    []string{"card-2"},
			wantStep:      []string{"card-1", "card-3"},
			wantReordered: []string{"card-1", "card-3", "card-2"},
		},
		{
			name:          "move out of step to activity",
			card:          "card-3",
			payload:       `{"new_position":1,"activity_id":"act-1"}`,
			wantDirect:    []string{"card-1", "card-3", "card-2"},
			wantStep:      nil,
			wantReordered: []string{"card-3", "card-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := fixtureState()
			outcomes, err := evaluateAll(state, act("r1", ActionReorderCard, `{"card_id":"`+tt.card+`"}`, tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			res := outcomes[0].Result
			if !res.Accepted() {
				t.Fatalf("rejected: %s", res.Reason)
			}
			if !reflect.DeepEqual(res.ReorderedIDs, tt.wantReordered) {
				t.Errorf("reordered ids = %v, want %v", res.ReorderedIDs, tt.wantReordered)
			}
			if got := cardIDs(state.Activity("act-1").Cards); !reflect.DeepEqual(got, tt.wantDirect) {
				t.Errorf("act-1 cards = %v, want %v", got, tt.wantDirect)
			}
			if got := cardIDs(state.Step("step-1").Cards); !reflect.DeepEqual(got, tt.wantStep) {
				t.Errorf("step-1 cards = %v, want %v", got, tt.wantStep)
			}
			for _, cards := range [][]*Card{state.Activity("act-1").Cards, state.Step("step-1").Cards} {
				for i, c := range cards {
					if c.Position != i {
						t.Errorf("card %s has position %d, want %d", c.ID, c.Position, i)
					}
				}
			}
		})
	}
}

func TestReorderCard_ChangesParentAtomically(t *testing.T) {
	state := fixtureState()
	card := state.Card("card-1")
	m := PlanReorder(state, card, "act-2", "", 0)

	if len(m.Placements) != 2 {
		t.Fatalf("expected placements for moved card and compacted sibling, got %+v", m.Placements)
	}
	if m.Placements[0] != (CardPlacement{CardID: "card-1", ActivityID: "act-2", Position: 0}) {
		t.Errorf("unexpected moved placement %+v", m.Placements[0])
	}

	state.Apply(m)
	moved := state.Card("card-1")
	if moved.ActivityID != "act-2" || moved.Position != 0 {
		t.Errorf("card not moved: %+v", moved)
	}
	if got := cardIDs(state.Activity("act-1").Cards); !reflect.DeepEqual(got, []string{"card-2"}) {
		t.Errorf("source not compacted: %v", got)
	}
	if state.Card("card-2").Position != 0 {
		t.Errorf("expected card-2 at position 0, got %d", state.Card("card-2").Position)
	}
}

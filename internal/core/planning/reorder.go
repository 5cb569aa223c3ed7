package planning

// PlanReorder computes the placements that move card to index newPosition in
// the parent (toActivityID, toStepID). Siblings in the target parent are
// renumbered 0..n-1 around the moved card; when the card changes parent the
// source parent is compacted too. newPosition is clamped to the target's bounds.
func PlanReorder(s *ProjectState, card *Card, toActivityID, toStepID string, newPosition int) ReorderCards {
	sameParent := card.ActivityID == toActivityID && card.StepID == toStepID

	var target []*Card
	if cards := s.cardsIn(toActivityID, toStepID); cards != nil {
		for _, c := range *cards {
			if c.ID != card.ID {
				target = append(target, c)
			}
		}
	}

	idx := newPosition
	if idx < 0 {
		idx = 0
	}
	if idx > len(target) {
		idx = len(target)
	}
	ordered := make([]*Card, 0, len(target)+1)
	ordered = append(ordered, target[:idx]...)
	ordered = append(ordered, card)
	ordered = append(ordered, target[idx:]...)

	m := ReorderCards{CardID: card.ID}
	for i, c := range ordered {
		if c.ID == card.ID || c.Position != i {
			m.Placements = append(m.Placements, CardPlacement{
				CardID:     c.ID,
				ActivityID: toActivityID,
				StepID:     toStepID,
				Position:   i,
			})
		}
	}

	if !sameParent {
		if cards := s.cardsIn(card.ActivityID, card.StepID); cards != nil {
			i := 0
			for _, c := range *cards {
				if c.ID == card.ID {
					continue
				}
				if c.Position != i {
					m.Placements = append(m.Placements, CardPlacement{
						CardID:     c.ID,
						ActivityID: c.ActivityID,
						StepID:     c.StepID,
						Position:   i,
					})
				}
				i++
			}
		}
	}

	return m
}

// ReorderedIDs lists the cards a reorder touches, moved card first.
func (m ReorderCards) ReorderedIDs() []string {
	ids := []string{m.CardID}
	for _, p := range m.Placements {
		if p.CardID != m.CardID {
			ids = append(ids, p.CardID)
		}
	}
	return ids
}

func (s *ProjectState) applyReorder(m ReorderCards) {
	card := s.Card(m.CardID)
	if card == nil {
		return
	}

	var dest CardPlacement
	for _, p := range m.Placements {
		if p.CardID == m.CardID {
			dest = p
		}
	}

	if card.ActivityID != dest.ActivityID || card.StepID != dest.StepID {
		if src := s.cardsIn(card.ActivityID, card.StepID); src != nil {
			kept := (*src)[:0]
			for _, c := range *src {
				if c.ID != card.ID {
					kept = append(kept, c)
				}
			}
			*src = kept
		}
		if dst := s.cardsIn(dest.ActivityID, dest.StepID); dst != nil {
			*dst = append(*dst, card)
		}
		card.ActivityID = dest.ActivityID
		card.StepID = dest.StepID
	}

	byID := s.lookup().cards
	for _, p := range m.Placements {
		if c := byID[p.CardID]; c != nil {
			c.Position = p.Position
		}
	}
}

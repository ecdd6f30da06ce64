package session

import (
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/recommend"
)

// CardView is one exercise as presented to the user.
type CardView struct {
	Exercise            models.Exercise `json:"exercise"`
	Rows                []models.SetRow `json:"rows"`
	Target              string          `json:"target"`
	NeedsStartingWeight bool            `json:"needs_starting_weight"`
}

// View is a consistent copy of the controller's presentation state.
type View struct {
	State    string          `json:"state"`
	Session  *models.Session `json:"session,omitempty"`
	Cards    []CardView      `json:"cards"`
	Missing  []int           `json:"missing_sequences,omitempty"`
	Failures []int64         `json:"recommendation_failures,omitempty"`
	Skip     bool            `json:"skip"`
	CanSave  bool            `json:"can_save"`
}

// View returns the grid with targets and starting-weight prompts resolved.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{State: c.st.String(), Skip: c.skip}
	if c.session != nil {
		s := *c.session
		v.Session = &s
	}
	if c.recs != nil {
		v.Missing = append([]int(nil), c.recs.Missing...)
		v.Failures = append([]int64(nil), c.recs.Failures...)
	}
	readOnly := c.session != nil && c.session.ReadOnly
	for _, card := range cloneCards(c.cards) {
		cv := CardView{Exercise: card.Exercise, Rows: card.Rows}
		if !readOnly {
			rec := c.recs.Lookup(card.Exercise.ExerciseID)
			cv.Target = recommend.TargetLabel(card.Exercise, rec)
			cv.NeedsStartingWeight = recommend.NeedsStartingWeight(card.Exercise, rec)
		}
		v.Cards = append(v.Cards, cv)
	}
	v.CanSave = c.session != nil && !readOnly && c.st == StateReady && len(v.Missing) == 0
	return v
}

// Cards returns a copy of the current grid.
func (c *Controller) Cards() []models.ExerciseCard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneCards(c.cards)
}

package session

import (
	"fmt"

	"github.com/claude/liftcoach/internal/logbook"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
)

// mutate applies fn to the grid under the lock and snapshots the result.
// Only a ready, writable session accepts edits.
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.session.ReadOnly {
		c.mu.Unlock()
		return ErrReadOnly
	}
	if c.st != StateReady {
		st := c.st
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotReady, st)
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	sess := *c.session
	cards := cloneCards(c.cards)
	c.mu.Unlock()

	c.persist(&sess, cards)
	return nil
}

func (c *Controller) card(i int) (*models.ExerciseCard, error) {
	if i < 0 || i >= len(c.cards) {
		return nil, fmt.Errorf("session: no exercise at position %d", i)
	}
	return &c.cards[i], nil
}

// AddSet appends a default row to the exercise at position i.
func (c *Controller) AddSet(i int) error {
	return c.mutate(func() error {
		card, err := c.card(i)
		if err != nil {
			return err
		}
		card.Rows = append(card.Rows, defaultRow(card.Exercise))
		return nil
	})
}

// UpdateRow edits row j of the exercise at position i in place.
func (c *Controller) UpdateRow(i, j int, fn func(*models.SetRow)) error {
	return c.mutate(func() error {
		card, err := c.card(i)
		if err != nil {
			return err
		}
		if j < 0 || j >= len(card.Rows) {
			return fmt.Errorf("session: %s has no set row %d", card.Exercise.Name, j+1)
		}
		before := cloneRow(card.Rows[j])
		row := &card.Rows[j]
		fn(row)
		if row.WeightDefaulted && !sameInput(before, *row) {
			row.WeightDefaulted = false
		}
		return nil
	})
}

// sameInput reports whether two rows hold identical values.
func sameInput(a, b models.SetRow) bool {
	return sameFloat(a.Weight, b.Weight) && sameFloat(a.Reps, b.Reps) &&
		sameFloat(a.RPE, b.RPE) && sameFloat(a.RestSeconds, b.RestSeconds) &&
		a.ManualAudit == b.ManualAudit && a.SetComplete == b.SetComplete
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RemoveRow deletes row j of the exercise at position i. The last row stays.
func (c *Controller) RemoveRow(i, j int) error {
	return c.mutate(func() error {
		card, err := c.card(i)
		if err != nil {
			return err
		}
		if j < 0 || j >= len(card.Rows) {
			return fmt.Errorf("session: %s has no set row %d", card.Exercise.Name, j+1)
		}
		if len(card.Rows) == 1 {
			card.Rows[0] = models.SetRow{}
			return nil
		}
		card.Rows = append(card.Rows[:j], card.Rows[j+1:]...)
		return nil
	})
}

// SetSkip engages or releases the skip confirmation. While engaged, Save
// records the session as skipped with no sets.
func (c *Controller) SetSkip(confirmed bool) error {
	return c.mutate(func() error {
		c.skip = confirmed
		return nil
	})
}

// SetStartingWeight stores a user-entered starting weight for the exercise at
// position i. It is kept in its own record so plan fetches reapply it, and
// written into the cached plan. Untouched prefilled rows and rows added
// afterward take it.
func (c *Controller) SetStartingWeight(i int, weight float64) error {
	if weight < 0 {
		return fmt.Errorf("session: starting weight must not be negative")
	}
	return c.mutate(func() error {
		card, err := c.card(i)
		if err != nil {
			return err
		}
		card.Exercise.StartingWeight = &weight
		for k := range card.Rows {
			if r := &card.Rows[k]; logbook.IsRowEmpty(*r) {
				*r = defaultRow(card.Exercise)
			}
		}
		for k := range c.workout.Exercises {
			if c.workout.Exercises[k].Sequence == card.Exercise.Sequence {
				c.workout.Exercises[k].StartingWeight = &weight
			}
		}

		planID := c.session.PlanID
		if c.plan != nil {
			planID = c.plan.ID
		}
		if err := c.state.SetStartingWeight(planID, c.workout.DayIndex, card.Exercise.Sequence, weight); err != nil {
			c.log.Warn("persisting starting weight failed", "plan_id", planID, "error", err)
		}
		if c.plan != nil && plan.SetStartingWeight(c.plan, c.workout.DayIndex, card.Exercise.Sequence, weight) {
			if err := c.state.SetCurrentPlan(c.plan); err != nil {
				c.log.Warn("caching plan with starting weight failed", "plan_id", c.plan.ID, "error", err)
			}
		}
		return nil
	})
}

// Package logbook turns grid rows into set log entries, validates them and
// classifies how much of the workout was performed.
package logbook

import (
	"errors"
	"fmt"
	"math"

	"github.com/claude/liftcoach/internal/models"
)

// ErrNothingLogged blocks a save with no logged sets and no confirmed skip.
var ErrNothingLogged = errors.New("no sets logged: log at least one set or mark the session as skipped")

// ValidationError reports the first invalid field found in the collected sets.
type ValidationError struct {
	Exercise  string
	SetNumber int
	Field     string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s for %s set %d: %s", e.Field, e.Exercise, e.SetNumber, e.Message)
}

// Input limits.
const (
	MinReps = 0
	MaxReps = 100
	MinRPE  = 0
	MaxRPE  = 10
)

// IsRowEmpty reports whether a row carries no input at all. A prefilled weight
// the user never touched is not input.
func IsRowEmpty(r models.SetRow) bool {
	return (r.Weight == nil || r.WeightDefaulted) && r.Reps == nil && r.RPE == nil && r.RestSeconds == nil &&
		!r.ManualAudit && !r.SetComplete
}

// Collection is the result of reading the grid.
type Collection struct {
	Entries     []models.SetLogEntry
	ManualAudit bool
	// Logged is parallel to the cards and reports whether each contributed a set.
	Logged []bool
}

// Collect gathers the non-empty rows of every card. Set numbers are dense per
// exercise: empty rows take no number. Only the first logged set of an
// initial-load slot is flagged as initial load.
func Collect(cards []models.ExerciseCard) Collection {
	c := Collection{Logged: make([]bool, len(cards))}
	for i, card := range cards {
		setNumber := 0
		for _, r := range card.Rows {
			if IsRowEmpty(r) {
				continue
			}
			setNumber++
			if r.ManualAudit {
				c.ManualAudit = true
			}
			c.Entries = append(c.Entries, models.SetLogEntry{
				ExerciseID:    card.Exercise.ExerciseID,
				SetNumber:     setNumber,
				Weight:        r.Weight,
				Reps:          r.Reps,
				RPE:           r.RPE,
				RestSeconds:   r.RestSeconds,
				IsInitialLoad: card.Exercise.IsInitialLoad && setNumber == 1,
				Exercise:      card.Exercise,
			})
		}
		c.Logged[i] = setNumber > 0
	}
	return c
}

// Validate checks entries in order and stops at the first violation.
// Per entry the order is reps, rpe, rest, weight.
func Validate(entries []models.SetLogEntry) error {
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func validateEntry(e models.SetLogEntry) error {
	fail := func(field, msg string) error {
		return &ValidationError{Exercise: e.Exercise.Name, SetNumber: e.SetNumber, Field: field, Message: msg}
	}

	if e.Reps == nil || !finite(*e.Reps) {
		return fail("reps", "required")
	}
	if *e.Reps != math.Trunc(*e.Reps) {
		return fail("reps", "must be a whole number")
	}
	if *e.Reps < MinReps || *e.Reps > MaxReps {
		return fail("reps", fmt.Sprintf("must be %d-%d", MinReps, MaxReps))
	}

	if e.RPE != nil && (!finite(*e.RPE) || *e.RPE < MinRPE || *e.RPE > MaxRPE) {
		return fail("rpe", fmt.Sprintf("must be %d-%d", MinRPE, MaxRPE))
	}

	if e.RestSeconds != nil && (!finite(*e.RestSeconds) || *e.RestSeconds < 0) {
		return fail("rest_seconds", "must not be negative")
	}

	// Bodyweight slots log 0; any non-negative weight is accepted for every slot.
	if e.Weight == nil || !finite(*e.Weight) {
		return fail("weight", "required")
	}
	if *e.Weight < 0 {
		return fail("weight", "must not be negative")
	}
	return nil
}

// Classify derives the completion status from which exercises were logged.
// A confirmed skip wins over any input. Without it, nothing logged is an error.
func Classify(logged []bool, skipConfirmed bool) (models.CompletionStatus, error) {
	if skipConfirmed {
		return models.StatusSkipped, nil
	}
	count := 0
	for _, l := range logged {
		if l {
			count++
		}
	}
	switch {
	case count == 0:
		return "", ErrNothingLogged
	case count == len(logged):
		return models.StatusCompleted, nil
	default:
		return models.StatusPartial, nil
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

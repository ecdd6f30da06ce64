package plan

import "github.com/claude/liftcoach/internal/models"

const (
	ReasonMissingWorkouts = "missing workouts"
	ReasonNextMissing     = "next workout missing"
)

// NoSessionError means no workout can be offered for the plan.
type NoSessionError struct {
	Reason string
}

func (e *NoSessionError) Error() string {
	return "no session available: " + e.Reason
}

// SelectNextWorkout advances the rotation one slot past the last completed
// workout. Rotation is driven by completion only, never by the calendar. A nil
// or unknown lastCompleted restarts at the first workout.
func SelectNextWorkout(p *models.Plan, lastCompleted *int) (models.Workout, error) {
	if p == nil || len(p.Workouts) == 0 {
		return models.Workout{}, &NoSessionError{Reason: ReasonMissingWorkouts}
	}

	lastIndex := -1
	if lastCompleted != nil {
		for i, w := range p.Workouts {
			if w.DayIndex == *lastCompleted {
				lastIndex = i
				break
			}
		}
	}

	next := 0
	if lastIndex >= 0 {
		next = (lastIndex + 1) % len(p.Workouts)
	}
	if next < 0 || next >= len(p.Workouts) {
		return models.Workout{}, &NoSessionError{Reason: ReasonNextMissing}
	}
	return p.Workouts[next], nil
}

// FindWorkout returns the workout at the given rotation slot.
func FindWorkout(p *models.Plan, dayIndex int) (*models.Workout, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Workouts {
		if p.Workouts[i].DayIndex == dayIndex {
			return &p.Workouts[i], true
		}
	}
	return nil, false
}

// SetStartingWeight records a user-entered starting weight on the slot
// (dayIndex, sequence) so later sessions see it. It reports whether the slot exists.
func SetStartingWeight(p *models.Plan, dayIndex, sequence int, weight float64) bool {
	w, ok := FindWorkout(p, dayIndex)
	if !ok {
		return false
	}
	for i := range w.Exercises {
		if w.Exercises[i].Sequence == sequence {
			v := weight
			w.Exercises[i].StartingWeight = &v
			return true
		}
	}
	return false
}

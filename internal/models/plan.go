package models

import (
	"strconv"
	"strings"
)

// Plan is the canonical training plan shape every backend payload is normalized into.
type Plan struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	StartDate          string    `json:"start_date,omitempty"`
	Weeks              *int      `json:"weeks,omitempty"`
	ScheduleDays       int       `json:"schedule_days"`
	TrainingDaysOfWeek []int     `json:"training_days_of_week"`
	Workouts           []Workout `json:"workouts"`
}

// OnboardingComplete reports whether the weekday schedule matches the
// declared number of training days.
func (p *Plan) OnboardingComplete() bool {
	return p.ScheduleDays > 0 && len(p.TrainingDaysOfWeek) == p.ScheduleDays
}

// Workout is one slot in the plan rotation. DayIndex identifies the position
// in the rotation, not a day of the week.
type Workout struct {
	DayIndex    int        `json:"day_index"`
	SessionType string     `json:"session_type"`
	Exercises   []Exercise `json:"exercises"`
}

// Exercise is a planned slot within a workout. Sequence is stable across swaps.
// A nil ExerciseID marks a slot without catalog linkage that cannot be logged.
type Exercise struct {
	ExerciseID     *int64   `json:"exercise_id"`
	Name           string   `json:"name"`
	Sequence       int      `json:"sequence"`
	TargetSets     *int     `json:"target_sets"`
	TargetRepsMin  *int     `json:"target_reps_min"`
	TargetRepsMax  *int     `json:"target_reps_max"`
	Category       string   `json:"category,omitempty"`
	StartingWeight *float64 `json:"starting_weight"`
	IsInitialLoad  bool     `json:"is_initial_load"`
}

// IsBodyweight reports whether the slot is a bodyweight movement.
func (e Exercise) IsBodyweight() bool {
	return strings.EqualFold(strings.TrimSpace(e.Category), "bodyweight")
}

// StartingWeights holds the starting weights a user entered for one plan,
// keyed by SlotKey. They outlive plan fetches.
type StartingWeights map[string]float64

// SlotKey addresses a plan slot by day index and sequence.
func SlotKey(dayIndex, sequence int) string {
	return strconv.Itoa(dayIndex) + "/" + strconv.Itoa(sequence)
}

// Recommendation is a coaching target for one exercise. It is fetched per
// session load and never persisted.
type Recommendation struct {
	ExerciseID int64    `json:"exercise_id"`
	Action     string   `json:"action,omitempty"`
	RepRange   []int    `json:"rep_range"`
	NextWeight *float64 `json:"next_weight"`
	Reason     string   `json:"reason,omitempty"`
}

// Reps returns the recommended rep range when the backend sent a complete pair.
func (r Recommendation) Reps() (min, max int, ok bool) {
	if len(r.RepRange) != 2 {
		return 0, 0, false
	}
	return r.RepRange[0], r.RepRange[1], true
}

// SwapOption is a catalog exercise eligible to replace a planned slot.
type SwapOption struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MovementPattern string `json:"movement_pattern"`
	PrimaryMuscle   string `json:"primary_muscle"`
	Category        string `json:"category,omitempty"`
	EquipmentID     string `json:"equipment_id,omitempty"`
}

// SwapRequest is the body of the swap PATCH call.
type SwapRequest struct {
	PlanID     int64 `json:"plan_id"`
	DayIndex   int   `json:"day_index"`
	Sequence   int   `json:"sequence"`
	ExerciseID int64 `json:"exercise_id"`
}

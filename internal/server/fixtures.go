package server

import (
	"fmt"
	"time"

	"github.com/claude/liftcoach/internal/models"
)

type catalogEntry struct {
	Name     string
	Category string
	Sets     int
	RepsMin  int
	RepsMax  int
}

// catalog is the fixed exercise pool plans and swap options are drawn from.
var catalog = []catalogEntry{
	{"Back Squat", "Lower", 4, 5, 8},
	{"Bench Press", "Upper", 4, 6, 10},
	{"Romanian Deadlift", "Lower", 3, 8, 12},
	{"Lat Pulldown", "Upper", 3, 8, 12},
	{"Dumbbell Shoulder Press", "Upper", 3, 8, 12},
	{"Split Squat", "Lower", 3, 10, 12},
	{"Cable Row", "Upper", 3, 8, 12},
	{"Plank", "Core", 3, 30, 60},
}

const (
	exercisesPerWorkout = 4
	swapOptionBaseID    = 1000
	defaultScheduleDays = 3
	defaultNextWeight   = 95.0
)

// PlanRequest is the questionnaire body that generates a plan.
type PlanRequest struct {
	UserID             int    `json:"user_id"`
	ScheduleDays       int    `json:"schedule_days,omitempty"`
	TrainingDaysOfWeek []int  `json:"training_days_of_week"`
	Goals              string `json:"goals,omitempty"`
	ExperienceLevel    string `json:"experience_level,omitempty"`
}

func sessionTypes(scheduleDays int) []string {
	switch {
	case scheduleDays <= 2:
		return []string{"Full Body A", "Full Body B"}
	case scheduleDays == 3:
		return []string{"Full Body A", "Full Body B", "Full Body C"}
	case scheduleDays == 4:
		return []string{"Upper", "Lower", "Upper", "Lower"}
	case scheduleDays == 5:
		return []string{"Push", "Pull", "Legs", "Upper", "Lower"}
	}
	types := make([]string, scheduleDays)
	for i := range types {
		types[i] = fmt.Sprintf("Session %d", i+1)
	}
	return types
}

func exercisesFor(slot int) []models.Exercise {
	out := make([]models.Exercise, 0, exercisesPerWorkout)
	for i := 0; i < exercisesPerWorkout; i++ {
		base := catalog[(slot+i)%len(catalog)]
		id := int64(slot*100 + i + 1)
		sets, lo, hi := base.Sets, base.RepsMin, base.RepsMax
		out = append(out, models.Exercise{
			ExerciseID:    &id,
			Name:          base.Name,
			Category:      base.Category,
			Sequence:      i + 1,
			TargetSets:    &sets,
			TargetRepsMin: &lo,
			TargetRepsMax: &hi,
		})
	}
	return out
}

// buildPlan generates a plan with one workout per training day. Each workout's
// day index is the weekday it is scheduled on, falling back to its position.
func buildPlan(req PlanRequest, now time.Time) models.Plan {
	days := req.ScheduleDays
	if days <= 0 {
		days = defaultScheduleDays
	}
	weekdays := req.TrainingDaysOfWeek
	if len(weekdays) == 0 {
		weekdays = make([]int, days)
		for i := range weekdays {
			weekdays[i] = i
		}
	}
	if len(weekdays) > days {
		weekdays = weekdays[:days]
	}

	types := sessionTypes(days)
	weeks := 4
	p := models.Plan{
		Name:               "Generated Plan",
		StartDate:          now.Format("2006-01-02"),
		Weeks:              &weeks,
		ScheduleDays:       days,
		TrainingDaysOfWeek: append([]int(nil), weekdays...),
	}
	for i := 0; i < days; i++ {
		w := models.Workout{DayIndex: i, SessionType: "Session", Exercises: exercisesFor(i)}
		if i < len(weekdays) {
			w.DayIndex = weekdays[i]
		}
		if i < len(types) {
			w.SessionType = types[i]
		}
		p.Workouts = append(p.Workouts, w)
	}
	return p
}

func swapOptions() []models.SwapOption {
	opts := make([]models.SwapOption, 0, len(catalog))
	for i, base := range catalog {
		opts = append(opts, models.SwapOption{
			ID:              int64(swapOptionBaseID + i),
			Name:            base.Name,
			MovementPattern: base.Category,
			PrimaryMuscle:   base.Category,
			Category:        base.Category,
		})
	}
	return opts
}

func swapOption(id int64) (models.SwapOption, bool) {
	for _, o := range swapOptions() {
		if o.ID == id {
			return o, true
		}
	}
	return models.SwapOption{}, false
}

// recommendationFor derives a target from the catalog entry the id maps onto.
func recommendationFor(exerciseID int64) models.Recommendation {
	idx := exerciseID % int64(len(catalog))
	if idx < 0 {
		idx = -idx
	}
	base := catalog[idx]
	w := defaultNextWeight
	return models.Recommendation{
		ExerciseID: exerciseID,
		Action:     "increase",
		RepRange:   []int{base.RepsMin, base.RepsMax},
		NextWeight: &w,
	}
}

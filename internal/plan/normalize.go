package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/claude/liftcoach/internal/models"
)

// ErrUnrecognizedShape is returned when no workout list can be derived from a payload.
var ErrUnrecognizedShape = errors.New("plan: unrecognized payload shape")

const (
	defaultPlanName     = "Generated Plan"
	defaultSessionType  = "Session"
	defaultExerciseName = "Unnamed Exercise"
)

type rawPlan struct {
	ID                *int64  `json:"id"`
	PlanID            *int64  `json:"plan_id"`
	PlanIDCamel       *int64  `json:"planId"`
	Name              *string `json:"name"`
	StartDate         *string `json:"start_date"`
	StartDateCamel    *string `json:"startDate"`
	Weeks             *int    `json:"weeks"`
	ScheduleDays      *int    `json:"schedule_days"`
	ScheduleDaysCamel *int    `json:"scheduleDays"`
	TrainingDays      []int   `json:"training_days_of_week"`
	TrainingDaysCamel []int   `json:"trainingDaysOfWeek"`
}

type rawWorkout struct {
	DayIndex         *int          `json:"day_index"`
	DayIndexCamel    *int          `json:"dayIndex"`
	SessionType      *string       `json:"session_type"`
	SessionTypeCamel *string       `json:"sessionType"`
	Exercises        []rawExercise `json:"exercises"`
	PlannedExercises []rawExercise `json:"planned_exercises"`
}

type rawCatalogRef struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

// rawExercise lists every field name a planned slot has been sent under.
// Day fields are only used by the flat planned_exercises shape.
type rawExercise struct {
	ExerciseID          *int64         `json:"exercise_id"`
	ExerciseIDCamel     *int64         `json:"exerciseId"`
	Name                *string        `json:"name"`
	ExerciseName        *string        `json:"exercise_name"`
	ExerciseNameCamel   *string        `json:"exerciseName"`
	Exercise            *rawCatalogRef `json:"exercise"`
	Sequence            *int           `json:"sequence"`
	Order               *int           `json:"order"`
	Position            *int           `json:"position"`
	TargetSets          *int           `json:"target_sets"`
	TargetSetsCamel     *int           `json:"targetSets"`
	TargetRepsMin       *int           `json:"target_reps_min"`
	TargetRepsMinCamel  *int           `json:"targetRepsMin"`
	TargetRepsMax       *int           `json:"target_reps_max"`
	TargetRepsMaxCamel  *int           `json:"targetRepsMax"`
	Category            *string        `json:"category"`
	StartingWeight      *float64       `json:"starting_weight"`
	StartingWeightCamel *float64       `json:"startingWeight"`
	IsInitialLoad       *bool          `json:"is_initial_load"`

	DayIndex         *int    `json:"day_index"`
	DayIndexCamel    *int    `json:"dayIndex"`
	Day              *int    `json:"day"`
	SessionType      *string `json:"session_type"`
	SessionTypeCamel *string `json:"sessionType"`
}

// Normalize converts any known backend plan payload into the canonical Plan.
// It returns ErrUnrecognizedShape when the payload carries no workout list.
func Normalize(raw json.RawMessage) (*models.Plan, error) {
	shape, list := detect(raw)
	if shape == ShapeUnrecognized {
		return nil, ErrUnrecognizedShape
	}

	meta, err := decodeMeta(raw)
	if err != nil {
		return nil, err
	}

	var workouts []models.Workout
	switch shape {
	case ShapePlannedExercises:
		workouts, err = normalizeFlat(list)
	case ShapeWorkouts, ShapeSessions, ShapeDays, ShapePlanWorkouts:
		workouts, err = normalizeNested(list)
	}
	if err != nil {
		return nil, fmt.Errorf("plan: normalizing %s: %w", shape, err)
	}

	p := &models.Plan{
		Name:               deref(meta.Name, defaultPlanName),
		StartDate:          deref(first(meta.StartDate, meta.StartDateCamel), ""),
		Weeks:              meta.Weeks,
		TrainingDaysOfWeek: meta.TrainingDays,
		Workouts:           workouts,
	}
	if p.TrainingDaysOfWeek == nil {
		p.TrainingDaysOfWeek = meta.TrainingDaysCamel
	}
	if p.TrainingDaysOfWeek == nil {
		p.TrainingDaysOfWeek = []int{}
	}
	if id := first(meta.ID, meta.PlanID, meta.PlanIDCamel); id != nil {
		p.ID = *id
	}
	if days := first(meta.ScheduleDays, meta.ScheduleDaysCamel); days != nil {
		p.ScheduleDays = *days
	} else {
		p.ScheduleDays = len(p.TrainingDaysOfWeek)
	}
	return p, nil
}

// decodeMeta reads plan metadata from the "plan" wrapper when present, else the top level.
func decodeMeta(raw json.RawMessage) (rawPlan, error) {
	var wrapper struct {
		Plan json.RawMessage `json:"plan"`
	}
	src := raw
	if err := json.Unmarshal(raw, &wrapper); err == nil && isObject(wrapper.Plan) {
		src = wrapper.Plan
	}
	var meta rawPlan
	if err := json.Unmarshal(src, &meta); err != nil {
		return rawPlan{}, fmt.Errorf("plan: decoding metadata: %w", err)
	}
	return meta, nil
}

func normalizeNested(list json.RawMessage) ([]models.Workout, error) {
	var raws []rawWorkout
	if err := json.Unmarshal(list, &raws); err != nil {
		return nil, err
	}
	workouts := make([]models.Workout, 0, len(raws))
	for i, rw := range raws {
		exercises := rw.Exercises
		if exercises == nil {
			exercises = rw.PlannedExercises
		}
		w := models.Workout{
			DayIndex:    derefInt(first(rw.DayIndex, rw.DayIndexCamel), i),
			SessionType: deref(first(rw.SessionType, rw.SessionTypeCamel), defaultSessionType),
			Exercises:   make([]models.Exercise, 0, len(exercises)),
		}
		for j, re := range exercises {
			w.Exercises = append(w.Exercises, re.toExercise(j+1))
		}
		workouts = append(workouts, w)
	}
	return workouts, nil
}

// normalizeFlat groups a flat exercise list into workouts by day, ordered by day index.
func normalizeFlat(list json.RawMessage) ([]models.Workout, error) {
	var raws []rawExercise
	if err := json.Unmarshal(list, &raws); err != nil {
		return nil, err
	}
	byDay := make(map[int]int)
	var workouts []models.Workout
	for _, re := range raws {
		day := derefInt(first(re.DayIndex, re.DayIndexCamel, re.Day), 0)
		idx, ok := byDay[day]
		if !ok {
			idx = len(workouts)
			byDay[day] = idx
			workouts = append(workouts, models.Workout{
				DayIndex:    day,
				SessionType: deref(first(re.SessionType, re.SessionTypeCamel), defaultSessionType),
				Exercises:   []models.Exercise{},
			})
		}
		w := &workouts[idx]
		w.Exercises = append(w.Exercises, re.toExercise(len(w.Exercises)+1))
	}
	sort.SliceStable(workouts, func(i, j int) bool {
		return workouts[i].DayIndex < workouts[j].DayIndex
	})
	if workouts == nil {
		workouts = []models.Workout{}
	}
	return workouts, nil
}

func (re rawExercise) toExercise(fallbackSequence int) models.Exercise {
	var ref rawCatalogRef
	if re.Exercise != nil {
		ref = *re.Exercise
	}
	return models.Exercise{
		ExerciseID:     first(re.ExerciseID, re.ExerciseIDCamel, ref.ID),
		Name:           deref(first(re.Name, re.ExerciseName, re.ExerciseNameCamel, ref.Name), defaultExerciseName),
		Sequence:       derefInt(first(re.Sequence, re.Order, re.Position), fallbackSequence),
		TargetSets:     first(re.TargetSets, re.TargetSetsCamel),
		TargetRepsMin:  first(re.TargetRepsMin, re.TargetRepsMinCamel),
		TargetRepsMax:  first(re.TargetRepsMax, re.TargetRepsMaxCamel),
		Category:       deref(re.Category, ""),
		StartingWeight: first(re.StartingWeight, re.StartingWeightCamel),
		IsInitialLoad:  re.IsInitialLoad != nil && *re.IsInitialLoad,
	}
}

// first returns the first non-nil pointer.
func first[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func derefInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

package plan

import (
	"bytes"
	"encoding/json"
)

// Shape identifies which historical backend layout a plan payload uses.
type Shape int

const (
	ShapeUnrecognized     Shape = iota // No workout list can be derived
	ShapeWorkouts                      // {"workouts": [...]}
	ShapeSessions                      // {"sessions": [...]}
	ShapeDays                          // {"days": [...]}
	ShapePlanWorkouts                  // {"plan_workouts": [...]}
	ShapePlannedExercises              // {"planned_exercises": [...]} flat, grouped by day
)

func (s Shape) String() string {
	switch s {
	case ShapeWorkouts:
		return "workouts"
	case ShapeSessions:
		return "sessions"
	case ShapeDays:
		return "days"
	case ShapePlanWorkouts:
		return "plan_workouts"
	case ShapePlannedExercises:
		return "planned_exercises"
	default:
		return "unrecognized"
	}
}

// shapeKeys is the probe order. The first key holding an array wins.
var shapeKeys = []Shape{
	ShapeWorkouts,
	ShapeSessions,
	ShapeDays,
	ShapePlanWorkouts,
	ShapePlannedExercises,
}

// DetectShape probes a raw plan payload for its workout container. A payload
// wrapped under "plan" is probed at the top level first, then inside the wrapper.
func DetectShape(raw json.RawMessage) Shape {
	shape, _ := detect(raw)
	return shape
}

// detect returns the shape and the raw array holding the workouts.
func detect(raw json.RawMessage) (Shape, json.RawMessage) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || probe == nil {
		return ShapeUnrecognized, nil
	}
	if shape, list := probeKeys(probe); shape != ShapeUnrecognized {
		return shape, list
	}
	if inner, ok := probe["plan"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil && nested != nil {
			return probeKeys(nested)
		}
	}
	return ShapeUnrecognized, nil
}

func probeKeys(probe map[string]json.RawMessage) (Shape, json.RawMessage) {
	for _, shape := range shapeKeys {
		if v, ok := probe[shape.String()]; ok && isArray(v) {
			return shape, v
		}
	}
	return ShapeUnrecognized, nil
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func isObject(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '{'
}

package models

import "time"

// CompletionStatus classifies how much of a workout was actually logged.
type CompletionStatus string

const (
	StatusCompleted CompletionStatus = "completed"
	StatusPartial   CompletionStatus = "partial"
	StatusSkipped   CompletionStatus = "skipped"
)

// Session is an in-progress or reopened workout. It lives in working memory
// plus the draft until it is submitted.
type Session struct {
	ID         string    `json:"id"`
	PlanID     int64     `json:"plan_id"`
	DayIndex   int       `json:"day_index"`
	TemplateID *int64    `json:"template_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	ReadOnly   bool      `json:"read_only,omitempty"`

	// Logged holds the recorded sets of a reopened historical session.
	Logged []LoggedSet `json:"logged,omitempty"`
}

// SetRow is one row of the logging grid. Nil fields are unset inputs.
// The same shape is persisted in the draft.
//
// WeightDefaulted marks a weight that was prefilled rather than entered. Such
// a row holds no input until the user edits it.
type SetRow struct {
	Weight          *float64 `json:"weight"`
	Reps            *float64 `json:"reps"`
	RPE             *float64 `json:"rpe"`
	RestSeconds     *float64 `json:"rest_seconds"`
	ManualAudit     bool     `json:"manual_audit_flag"`
	SetComplete     bool     `json:"set_complete"`
	WeightDefaulted bool     `json:"weight_defaulted,omitempty"`
}

// ExerciseCard is a rendered exercise in the logging grid with its rows.
type ExerciseCard struct {
	Exercise Exercise `json:"exercise"`
	Rows     []SetRow `json:"rows"`
}

// Draft is the durable snapshot of unsaved grid input, keyed by exercise id.
type Draft struct {
	SessionID string              `json:"session_id"`
	Exercises map[string][]SetRow `json:"exercises"`
}

// SetLogEntry is a collected, non-empty row ready for validation and submission.
// SetNumber is dense per exercise and counts only non-empty rows.
type SetLogEntry struct {
	ExerciseID    *int64   `json:"exercise_id"`
	SetNumber     int      `json:"set_number"`
	Weight        *float64 `json:"weight"`
	Reps          *float64 `json:"reps"`
	RPE           *float64 `json:"rpe"`
	RestSeconds   *float64 `json:"rest_seconds"`
	IsInitialLoad bool     `json:"is_initial_load"`

	// Exercise is the slot the entry was collected from. Not sent.
	Exercise Exercise `json:"-"`
}

// SessionPayload is the body persisted by the session POST call.
type SessionPayload struct {
	UserID           int              `json:"user_id"`
	PerformedAt      string           `json:"performed_at"`
	DurationMinutes  *int             `json:"duration_minutes"`
	Notes            *string          `json:"notes"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	TemplateID       *int64           `json:"template_id"`
	PlanID           int64            `json:"plan_id"`
	DayIndex         int              `json:"day_index"`
	SetLogs          []SetLogEntry    `json:"set_logs"`
	ManualAuditFlag  bool             `json:"manual_audit_flag"`
}

// StartRequest is the body of the call that opens a new session.
type StartRequest struct {
	PlanID    int64  `json:"plan_id"`
	DayIndex  int    `json:"day_index"`
	StartedAt string `json:"started_at"`
}

// SessionRecord is a stored session as returned by the history endpoint.
type SessionRecord struct {
	ID               int64            `json:"id"`
	PerformedAt      string           `json:"performed_at"`
	DurationMinutes  *int             `json:"duration_minutes"`
	Notes            *string          `json:"notes"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	ManualAuditFlag  bool             `json:"manual_audit_flag"`
	PlanID           int64            `json:"plan_id,omitempty"`
	DayIndex         *int             `json:"day_index,omitempty"`
	SetLogs          []LoggedSet      `json:"set_logs"`
}

// LoggedSet is one persisted set in a session record.
type LoggedSet struct {
	ExerciseID    int64    `json:"exercise_id"`
	ExerciseName  string   `json:"exercise_name,omitempty"`
	SetNumber     int      `json:"set_number"`
	Reps          *float64 `json:"reps"`
	Weight        *float64 `json:"weight"`
	RPE           *float64 `json:"rpe"`
	RestSeconds   *float64 `json:"rest_seconds"`
	IsInitialLoad bool     `json:"is_initial_load"`
}

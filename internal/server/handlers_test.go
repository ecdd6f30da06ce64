package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/liftcoach/internal/backend"
	"github.com/claude/liftcoach/internal/models"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	return New(opts, slog.Default())
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestQuestionnaireCreatesPlan verifies plan generation from the questionnaire.
func TestQuestionnaireCreatesPlan(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/questionnaire", PlanRequest{ScheduleDays: 4, TrainingDaysOfWeek: []int{0, 1, 3, 4}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var created struct {
		PlanID int64 `json:"plan_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = do(t, s, http.MethodGet, "/plans/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get plan status = %d", rec.Code)
	}
	var p models.Plan
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if p.ID != created.PlanID {
		t.Errorf("id = %d, want %d", p.ID, created.PlanID)
	}
	if len(p.Workouts) != 4 {
		t.Fatalf("workouts = %d, want 4", len(p.Workouts))
	}
	if p.Workouts[2].DayIndex != 3 || p.Workouts[2].SessionType != "Upper" {
		t.Errorf("workout 3 = %+v", p.Workouts[2])
	}
	if got := *p.Workouts[1].Exercises[0].ExerciseID; got != 101 {
		t.Errorf("exercise id = %d, want 101", got)
	}
}

// TestQuestionnaireScheduleDays verifies that an explicit schedule outside
// 1-7 is rejected and an omitted one takes the default.
func TestQuestionnaireScheduleDays(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero", `{"schedule_days": 0}`, http.StatusBadRequest},
		{"eight", `{"schedule_days": 8}`, http.StatusBadRequest},
		{"negative", `{"schedule_days": -1}`, http.StatusBadRequest},
		{"omitted", `{"goals": "strength"}`, http.StatusOK},
		{"seven", `{"schedule_days": 7}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Options{})
			req := httptest.NewRequest(http.MethodPost, "/questionnaire", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	s := newTestServer(t, Options{})
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/questionnaire", bytes.NewBufferString(`{}`)))
	var p models.Plan
	rec := do(t, s, http.MethodGet, "/plans/1", nil)
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if p.ScheduleDays != defaultScheduleDays {
		t.Errorf("schedule_days = %d, want default %d", p.ScheduleDays, defaultScheduleDays)
	}
}

// TestGetPlanErrors verifies bad and unknown plan ids.
func TestGetPlanErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	if rec := do(t, s, http.MethodGet, "/plans/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/plans/9", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

// TestApplySwapReplacesSlot verifies the swapped exercise takes over the slot.
func TestApplySwapReplacesSlot(t *testing.T) {
	s := newTestServer(t, Options{SeedPlan: 3})
	rec := do(t, s, http.MethodPatch, "/plans/1/swap", models.SwapRequest{PlanID: 1, DayIndex: 0, Sequence: 2, ExerciseID: 1007})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var p models.Plan
	json.NewDecoder(do(t, s, http.MethodGet, "/plans/1", nil).Body).Decode(&p)
	ex := p.Workouts[0].Exercises[1]
	if ex.Name != "Plank" || *ex.ExerciseID != 1007 || ex.Sequence != 2 {
		t.Errorf("swapped slot = %+v", ex)
	}

	if rec := do(t, s, http.MethodPatch, "/plans/1/swap", models.SwapRequest{DayIndex: 0, Sequence: 2, ExerciseID: 5}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown option status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPatch, "/plans/1/swap", models.SwapRequest{DayIndex: 6, Sequence: 2, ExerciseID: 1000}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown slot status = %d, want 404", rec.Code)
	}
}

// TestRecommendationFailureInjection verifies configured ids answer 503.
func TestRecommendationFailureInjection(t *testing.T) {
	s := newTestServer(t, Options{FailRecommendations: []int64{2}})

	rec := do(t, s, http.MethodGet, "/progression/recommendations?user_id=1&exercise_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var r models.Recommendation
	json.NewDecoder(rec.Body).Decode(&r)
	if lo, hi, ok := r.Reps(); !ok || lo != 6 || hi != 10 {
		t.Errorf("rep range = %v", r.RepRange)
	}

	if rec := do(t, s, http.MethodGet, "/progression/recommendations?exercise_id=2", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing id status = %d, want 503", rec.Code)
	}
}

// TestSaveRejectsEmptyCompletedSession verifies completed and partial saves need sets.
func TestSaveRejectsEmptyCompletedSession(t *testing.T) {
	s := newTestServer(t, Options{SeedPlan: 3})
	rec := do(t, s, http.MethodPost, "/workouts/sessions", models.SessionPayload{
		UserID: 1, PlanID: 1, CompletionStatus: models.StatusCompleted, SetLogs: []models.SetLogEntry{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/workouts/sessions", models.SessionPayload{
		UserID: 1, PlanID: 1, CompletionStatus: "finished", SetLogs: []models.SetLogEntry{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}
}

// TestClientRoundTrip drives the stub through the backend client: start,
// save, last completed and history.
func TestClientRoundTrip(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, Options{SeedPlan: 3}))
	defer ts.Close()
	c := backend.NewClient(ts.URL, ts.Client())
	ctx := context.Background()

	day, err := c.LastCompletedDay(ctx, 1, 1)
	if err != nil || day != nil {
		t.Fatalf("last completed = %v, %v; want nil, nil", day, err)
	}

	sess, err := c.StartSession(ctx, models.StartRequest{PlanID: 1, DayIndex: 1, StartedAt: "2026-01-05T10:00:00Z"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.ID == "" {
		t.Error("expected a session id")
	}

	exID := int64(101)
	reps, weight := 8.0, 100.0
	id, err := c.SaveSession(ctx, models.SessionPayload{
		UserID:           1,
		PerformedAt:      "2026-01-05T11:00:00Z",
		CompletionStatus: models.StatusPartial,
		PlanID:           1,
		DayIndex:         1,
		SetLogs:          []models.SetLogEntry{{ExerciseID: &exID, SetNumber: 1, Reps: &reps, Weight: &weight, IsInitialLoad: true}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id != 1 {
		t.Errorf("record id = %d, want 1", id)
	}

	if _, err := c.SaveSession(ctx, models.SessionPayload{
		UserID: 1, CompletionStatus: models.StatusSkipped, PlanID: 1, DayIndex: 2, SetLogs: []models.SetLogEntry{},
	}); err != nil {
		t.Fatalf("save skipped: %v", err)
	}

	day, err = c.LastCompletedDay(ctx, 1, 1)
	if err != nil {
		t.Fatalf("last completed: %v", err)
	}
	if day == nil || *day != 1 {
		t.Errorf("last completed = %v, want 1 (skips do not count)", day)
	}

	records, err := c.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].CompletionStatus != models.StatusSkipped {
		t.Errorf("newest status = %q, want skipped", records[0].CompletionStatus)
	}
	got := records[1].SetLogs
	if len(got) != 1 || got[0].ExerciseName != "Bench Press" {
		t.Errorf("set logs = %+v", got)
	}

	other, err := c.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user records = %d, want 0", len(other))
	}
}

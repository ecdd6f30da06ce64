package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/liftcoach/internal/models"
)

func (s *Server) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	// schedule_days is optional, but a value that is sent must be a real schedule.
	var body struct {
		PlanRequest
		ScheduleDays *int `json:"schedule_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := body.PlanRequest
	if body.ScheduleDays != nil {
		if *body.ScheduleDays < 1 || *body.ScheduleDays > 7 {
			writeError(w, http.StatusBadRequest, "schedule_days must be between 1 and 7")
			return
		}
		req.ScheduleDays = *body.ScheduleDays
	}
	id, p := s.createPlan(req)
	s.log.Info("plan created", "plan_id", id, "schedule_days", p.ScheduleDays)
	writeJSON(w, http.StatusOK, map[string]int64{"plan_id": id})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.plans[id]
	if !found {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleLastCompleted reports the day index of the user's newest non-skipped
// session for the plan. It answers 404 when there is none.
func (s *Server) handleLastCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	userID := userIDFromContext(r)

	s.mu.Lock()
	var day *int
	for i := len(s.sessions) - 1; i >= 0; i-- {
		ss := s.sessions[i]
		if ss.userID != userID || ss.record.PlanID != id || ss.record.DayIndex == nil {
			continue
		}
		if ss.record.CompletionStatus == models.StatusSkipped {
			continue
		}
		d := *ss.record.DayIndex
		day = &d
		break
	}
	s.mu.Unlock()

	if day == nil {
		writeError(w, http.StatusNotFound, "no completed workout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"day_index": *day})
}

func (s *Server) handleSwapOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.plans[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, swapOptions())
}

func (s *Server) handleApplySwap(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	var req models.SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opt, known := swapOption(req.ExerciseID)
	if !known {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown exercise %d", req.ExerciseID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.plans[id]
	if !found {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	for i := range p.Workouts {
		wk := &p.Workouts[i]
		if wk.DayIndex != req.DayIndex {
			continue
		}
		for j := range wk.Exercises {
			ex := &wk.Exercises[j]
			if ex.Sequence != req.Sequence {
				continue
			}
			newID := opt.ID
			ex.ExerciseID = &newID
			ex.Name = opt.Name
			ex.Category = opt.Category
			ex.StartingWeight = nil
			s.log.Info("exercise swapped", "plan_id", id, "day_index", req.DayIndex,
				"sequence", req.Sequence, "exercise_id", newID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "slot not found")
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("exercise_id")
	exerciseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exercise_id")
		return
	}
	s.mu.Lock()
	fail := s.failing[exerciseID]
	s.mu.Unlock()
	if fail {
		writeError(w, http.StatusServiceUnavailable, "recommendation service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, recommendationFor(exerciseID))
}

// handleCreateSession serves both session calls on the same route: a body
// without completion_status opens a session, one with it persists a log.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := probe["completion_status"]; !ok {
		s.startSession(w, body)
		return
	}

	var payload models.SessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID <= 0 {
		payload.UserID = userIDFromContext(r)
	}
	id, err := s.saveSession(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("session saved", "record_id", id, "status", payload.CompletionStatus, "sets", len(payload.SetLogs))
	writeJSON(w, http.StatusOK, map[string]int64{"session_id": id})
}

func (s *Server) startSession(w http.ResponseWriter, body json.RawMessage) {
	var req models.StartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         uuid.NewString(),
		"plan_id":    req.PlanID,
		"day_index":  req.DayIndex,
		"started_at": req.StartedAt,
	})
}

var errInvalidStatus = errors.New("invalid completion_status")

func (s *Server) saveSession(p models.SessionPayload) (int64, error) {
	switch p.CompletionStatus {
	case models.StatusCompleted, models.StatusPartial:
		if len(p.SetLogs) == 0 {
			return 0, fmt.Errorf("%s session has no set_logs", p.CompletionStatus)
		}
	case models.StatusSkipped:
	default:
		return 0, fmt.Errorf("%w: %q", errInvalidStatus, p.CompletionStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[int64]string)
	if pl, ok := s.plans[p.PlanID]; ok {
		for _, wk := range pl.Workouts {
			for _, ex := range wk.Exercises {
				if ex.ExerciseID != nil {
					names[*ex.ExerciseID] = ex.Name
				}
			}
		}
	}

	day := p.DayIndex
	rec := models.SessionRecord{
		ID:               s.nextRecordID,
		PerformedAt:      p.PerformedAt,
		DurationMinutes:  p.DurationMinutes,
		Notes:            p.Notes,
		CompletionStatus: p.CompletionStatus,
		ManualAuditFlag:  p.ManualAuditFlag,
		PlanID:           p.PlanID,
		DayIndex:         &day,
		SetLogs:          []models.LoggedSet{},
	}
	for _, e := range p.SetLogs {
		if e.ExerciseID == nil {
			return 0, fmt.Errorf("set %d has no exercise_id", e.SetNumber)
		}
		rec.SetLogs = append(rec.SetLogs, models.LoggedSet{
			ExerciseID:    *e.ExerciseID,
			ExerciseName:  names[*e.ExerciseID],
			SetNumber:     e.SetNumber,
			Reps:          e.Reps,
			Weight:        e.Weight,
			RPE:           e.RPE,
			RestSeconds:   e.RestSeconds,
			IsInitialLoad: e.IsInitialLoad,
		})
	}
	s.nextRecordID++
	s.sessions = append(s.sessions, storedSession{userID: p.UserID, record: rec})
	return rec.ID, nil
}

// handleListSessions returns the user's sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)

	s.mu.Lock()
	out := []models.SessionRecord{}
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if s.sessions[i].userID == userID {
			out = append(out, s.sessions[i].record)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func planID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

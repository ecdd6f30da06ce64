package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftcoach/internal/draft"
	"github.com/claude/liftcoach/internal/logbook"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
	"github.com/claude/liftcoach/internal/store"
)

func ptr[T any](v T) *T { return &v }

type fakeBackend struct {
	mu       sync.Mutex
	recs     map[int64]*models.Recommendation
	recErr   map[int64]error
	startID  string
	saveErr  error
	saveGate chan struct{}
	saved    []models.SessionPayload
}

func (f *fakeBackend) Recommendation(_ context.Context, _ int, id int64) (*models.Recommendation, error) {
	if err := f.recErr[id]; err != nil {
		return nil, err
	}
	return f.recs[id], nil
}

func (f *fakeBackend) StartSession(_ context.Context, req models.StartRequest) (*models.Session, error) {
	return &models.Session{ID: f.startID, PlanID: req.PlanID, DayIndex: req.DayIndex}, nil
}

func (f *fakeBackend) SaveSession(_ context.Context, p models.SessionPayload) (int64, error) {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, p)
	return int64(len(f.saved)), nil
}

type planBackend struct{ raw []byte }

func (b planBackend) GetPlan(context.Context, int64) (json.RawMessage, error) { return b.raw, nil }

func (planBackend) LastCompletedDay(context.Context, int64, int) (*int, error) {
	day := 0
	return &day, nil
}

func testPlan() *models.Plan {
	return &models.Plan{
		ID: 1,
		Workouts: []models.Workout{
			{DayIndex: 0, SessionType: "Upper", Exercises: []models.Exercise{
				{ExerciseID: ptr(int64(10)), Name: "Bench", Sequence: 1, StartingWeight: ptr(95.0), TargetRepsMin: ptr(6), TargetRepsMax: ptr(8)},
				{ExerciseID: ptr(int64(20)), Name: "Pull-up", Sequence: 2, Category: "bodyweight"},
			}},
			{DayIndex: 1, SessionType: "Lower", Exercises: []models.Exercise{
				{ExerciseID: ptr(int64(30)), Name: "Squat", Sequence: 1},
				{ExerciseID: nil, Name: "Mystery", Sequence: 2},
			}},
		},
	}
}

type harness struct {
	ctrl    *Controller
	backend *fakeBackend
	kv      *store.Store
	drafts  *draft.Store
}

func newHarness(t *testing.T, b *fakeBackend) *harness {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	drafts := draft.New(kv, log)
	c := New(b, kv, drafts, 1, log)
	c.now = func() time.Time { return time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC) }
	return &harness{ctrl: c, backend: b, kv: kv, drafts: drafts}
}

func (h *harness) start(t *testing.T, p *models.Plan, day int) {
	t.Helper()
	if _, err := h.ctrl.Start(context.Background(), p, p.Workouts[day]); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func logSet(weight, reps float64) func(*models.SetRow) {
	return func(r *models.SetRow) {
		r.Weight = ptr(weight)
		r.Reps = ptr(reps)
	}
}

// TestStartRendersDefaults verifies one default row per exercise: the stored
// starting weight, or 0 for bodyweight.
func TestStartRendersDefaults(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)

	cards := h.ctrl.Cards()
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	if w := cards[0].Rows[0].Weight; w == nil || *w != 95 {
		t.Errorf("bench default weight = %v, want 95", w)
	}
	if w := cards[1].Rows[0].Weight; w == nil || *w != 0 {
		t.Errorf("pull-up default weight = %v, want 0", w)
	}
	if h.ctrl.State() != StateReady {
		t.Errorf("state = %v, want ready", h.ctrl.State())
	}
	active, err := h.kv.ActiveSession()
	if err != nil || active == nil || active.ID != "s1" {
		t.Errorf("active session = %+v err = %v", active, err)
	}
}

// TestStartAssignsLocalID verifies that a session without a backend id gets one.
func TestStartAssignsLocalID(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	h.start(t, testPlan(), 0)
	if s := h.ctrl.Session(); s == nil || s.ID == "" {
		t.Fatalf("session = %+v, want generated id", s)
	}
}

// TestResumeAppliesDraft verifies that edits survive a restart through the draft.
func TestResumeAppliesDraft(t *testing.T) {
	b := &fakeBackend{startID: "s1"}
	h := newHarness(t, b)
	p := testPlan()
	h.start(t, p, 0)
	if err := h.ctrl.UpdateRow(0, 0, logSet(100, 5)); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.AddSet(0); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	restarted := New(b, h.kv, h.drafts, 1, log)
	if _, err := restarted.Resume(context.Background(), p); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	cards := restarted.Cards()
	if len(cards[0].Rows) != 2 {
		t.Fatalf("bench rows = %d, want 2 from draft", len(cards[0].Rows))
	}
	if r := cards[0].Rows[0]; *r.Weight != 100 || *r.Reps != 5 {
		t.Errorf("bench row 1 = %+v", r)
	}
}

// TestDraftFromOtherSessionIgnored verifies that a draft for another session
// does not override the defaults.
func TestDraftFromOtherSessionIgnored(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "new"})
	p := testPlan()
	stale := []models.ExerciseCard{{Exercise: p.Workouts[0].Exercises[0], Rows: []models.SetRow{{Reps: ptr(3.0)}, {Reps: ptr(3.0)}}}}
	if err := h.drafts.Snapshot(&models.Session{ID: "old"}, stale); err != nil {
		t.Fatal(err)
	}
	h.start(t, p, 0)
	if rows := h.ctrl.Cards()[0].Rows; len(rows) != 1 || rows[0].Reps != nil {
		t.Errorf("rows = %+v, want single default row", rows)
	}
}

// TestSaveCompleted verifies the payload for a fully logged workout and the
// cleanup that follows a successful save.
func TestSaveCompleted(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)
	var events []Event
	unsubscribe := h.ctrl.Subscribe(func(e Event) { events = append(events, e) })
	defer unsubscribe()

	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))
	must(t, h.ctrl.UpdateRow(1, 0, func(r *models.SetRow) { r.Reps = ptr(8.0); r.ManualAudit = true }))

	res, err := h.ctrl.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Status != models.StatusCompleted || res.Sets != 2 {
		t.Errorf("result = %+v", res)
	}
	p := h.backend.saved[0]
	if !p.ManualAuditFlag || p.PlanID != 1 || p.DayIndex != 0 || p.UserID != 1 {
		t.Errorf("payload = %+v", p)
	}
	if p.PerformedAt != "2026-03-04T18:00:00Z" {
		t.Errorf("performed_at = %q", p.PerformedAt)
	}

	if h.ctrl.Session() != nil || h.ctrl.State() != StateSaved {
		t.Errorf("session not released: state %v", h.ctrl.State())
	}
	if d, _ := h.drafts.Load(&models.Session{ID: "s1"}); d != nil {
		t.Error("draft should be cleared after save")
	}
	if active, _ := h.kv.ActiveSession(); active != nil {
		t.Error("active session should be cleared after save")
	}
	last := events[len(events)-1]
	if last.Kind != EventSaved || last.Status != models.StatusCompleted {
		t.Errorf("last event = %+v", last)
	}
}

// TestSavePartial verifies that logging only one of two exercises is partial
// when the other keeps its untouched prefilled bodyweight row.
func TestSavePartial(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))

	res, err := h.ctrl.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusPartial || res.Sets != 1 {
		t.Errorf("result = %+v, want partial with 1 set", res)
	}
	if logs := h.backend.saved[0].SetLogs; len(logs) != 1 || *logs[0].ExerciseID != 10 {
		t.Errorf("set logs = %+v, want bench only", logs)
	}
}

// TestPrefilledWeightAcceptedOnEdit verifies that entering reps on a
// prefilled row keeps the prefilled weight as the logged weight.
func TestPrefilledWeightAcceptedOnEdit(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, func(r *models.SetRow) { r.Reps = ptr(6.0) }))

	if r := h.ctrl.Cards()[0].Rows[0]; r.WeightDefaulted {
		t.Error("edited row should no longer be marked as prefilled")
	}
	res, err := h.ctrl.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w := h.backend.saved[0].SetLogs[0].Weight; res.Sets != 1 || w == nil || *w != 95 {
		t.Errorf("sets = %d weight = %v, want 1 set at 95", res.Sets, w)
	}
}

// TestSaveNothingLogged verifies that an untouched grid without skip is
// rejected and a confirmed skip is sent with no sets.
func TestSaveNothingLogged(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)

	if _, err := h.ctrl.Save(context.Background()); !errors.Is(err, logbook.ErrNothingLogged) {
		t.Fatalf("err = %v, want ErrNothingLogged", err)
	}
	if len(h.backend.saved) != 0 {
		t.Fatal("nothing should be sent")
	}

	must(t, h.ctrl.SetSkip(true))
	res, err := h.ctrl.Save(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusSkipped || len(h.backend.saved[0].SetLogs) != 0 {
		t.Errorf("skip result = %+v payload = %+v", res, h.backend.saved[0])
	}
}

// TestSaveMissingExerciseID verifies that a slot without an exercise id blocks
// the save with a DataIntegrityError even when other sets are valid.
func TestSaveMissingExerciseID(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 1)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(135, 5)))

	_, err := h.ctrl.Save(context.Background())
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("err = %v, want DataIntegrityError", err)
	}
	if len(die.Sequences) != 1 || die.Sequences[0] != 2 {
		t.Errorf("sequences = %v, want [2]", die.Sequences)
	}
	if h.ctrl.View().CanSave {
		t.Error("view should not allow saving")
	}
}

// TestSaveValidationError verifies that invalid input blocks the save and keeps the state.
func TestSaveValidationError(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 101)))

	_, err := h.ctrl.Save(context.Background())
	var ve *logbook.ValidationError
	if !errors.As(err, &ve) || ve.Field != "reps" {
		t.Fatalf("err = %v, want reps ValidationError", err)
	}
	if h.ctrl.State() != StateReady || h.ctrl.Session() == nil {
		t.Error("validation failure must leave the session ready")
	}
}

// TestSaveFailureKeepsDraft verifies that a failed save returns to ready with
// the grid and draft intact.
func TestSaveFailureKeepsDraft(t *testing.T) {
	b := &fakeBackend{startID: "s1", saveErr: errors.New("500")}
	h := newHarness(t, b)
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))
	must(t, h.ctrl.UpdateRow(1, 0, logSet(0, 8)))

	if _, err := h.ctrl.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if h.ctrl.State() != StateReady {
		t.Errorf("state = %v, want ready", h.ctrl.State())
	}
	d, err := h.drafts.Load(&models.Session{ID: "s1"})
	if err != nil || d == nil || *d.Exercises["10"][0].Reps != 5 {
		t.Fatalf("draft after failure = %+v err = %v", d, err)
	}

	b.saveErr = nil
	if _, err := h.ctrl.Save(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

// TestSaveInFlightNoop verifies that a second save during an outstanding one does nothing.
func TestSaveInFlightNoop(t *testing.T) {
	b := &fakeBackend{startID: "s1", saveGate: make(chan struct{})}
	h := newHarness(t, b)
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))
	must(t, h.ctrl.UpdateRow(1, 0, logSet(0, 8)))

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Save(context.Background())
		done <- err
	}()
	for h.ctrl.State() != StateSaving {
		time.Sleep(time.Millisecond)
	}

	res, err := h.ctrl.Save(context.Background())
	if res != nil || err != nil {
		t.Errorf("second save = %+v, %v; want no-op", res, err)
	}
	close(b.saveGate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(b.saved) != 1 {
		t.Errorf("saved %d times, want 1", len(b.saved))
	}
}

// TestTeardownDuringSave verifies that a save result for a discarded session is dropped.
func TestTeardownDuringSave(t *testing.T) {
	b := &fakeBackend{startID: "s1", saveGate: make(chan struct{})}
	h := newHarness(t, b)
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))
	must(t, h.ctrl.UpdateRow(1, 0, logSet(0, 8)))

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Save(context.Background())
		done <- err
	}()
	for h.ctrl.State() != StateSaving {
		time.Sleep(time.Millisecond)
	}
	must(t, h.ctrl.Teardown())
	close(b.saveGate)

	if err := <-done; !errors.Is(err, ErrStaleSession) {
		t.Errorf("err = %v, want ErrStaleSession", err)
	}
}

// TestRecommendationFailureStillSaveable verifies that a failed target fetch
// shows unavailable for that exercise only and does not block saving.
func TestRecommendationFailureStillSaveable(t *testing.T) {
	b := &fakeBackend{
		startID: "s1",
		recs:    map[int64]*models.Recommendation{20: {RepRange: []int{6, 10}, NextWeight: ptr(0.0)}},
		recErr:  map[int64]error{10: errors.New("timeout")},
	}
	h := newHarness(t, b)
	h.start(t, testPlan(), 0)

	v := h.ctrl.View()
	if v.Cards[0].Target != "Target: unavailable (sync required)" {
		t.Errorf("bench target = %q", v.Cards[0].Target)
	}
	if v.Cards[1].Target != "Target: 0 lb x 6-10" {
		t.Errorf("pull-up target = %q", v.Cards[1].Target)
	}
	if !v.CanSave || len(v.Failures) != 1 {
		t.Errorf("view = %+v", v)
	}

	must(t, h.ctrl.UpdateRow(0, 0, logSet(100, 5)))
	must(t, h.ctrl.UpdateRow(1, 0, logSet(0, 8)))
	if _, err := h.ctrl.Save(context.Background()); err != nil {
		t.Fatalf("save with failed recommendation: %v", err)
	}
}

// TestReopenReadOnly verifies that a historical session rebuilds its rows and
// rejects every mutation without touching the draft.
func TestReopenReadOnly(t *testing.T) {
	h := newHarness(t, &fakeBackend{})
	record := models.SessionRecord{
		ID: 5, PerformedAt: "2026-02-01T10:00:00Z", CompletionStatus: models.StatusPartial,
		PlanID: 1, DayIndex: ptr(0),
		SetLogs: []models.LoggedSet{
			{ExerciseID: 10, SetNumber: 1, Weight: ptr(100.0), Reps: ptr(5.0)},
			{ExerciseID: 10, SetNumber: 2, Weight: ptr(100.0), Reps: ptr(4.0)},
		},
	}
	sess := h.ctrl.Reopen(record, testPlan())
	if !sess.ReadOnly || h.ctrl.State() != StateReadOnly {
		t.Fatalf("session = %+v state = %v", sess, h.ctrl.State())
	}
	if rows := h.ctrl.Cards()[0].Rows; len(rows) != 2 {
		t.Errorf("bench rows = %d, want 2", len(rows))
	}
	if err := h.ctrl.AddSet(0); !errors.Is(err, ErrReadOnly) {
		t.Errorf("AddSet err = %v, want ErrReadOnly", err)
	}
	if _, err := h.ctrl.Save(context.Background()); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Save err = %v, want ErrReadOnly", err)
	}
	if d, _ := h.drafts.Load(sess); d != nil {
		t.Error("read-only session must not write a draft")
	}
}

// TestSetStartingWeightWritesPlan verifies that the weight reaches the cached
// plan and new rows default to it.
func TestSetStartingWeightWritesPlan(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	p := testPlan()
	h.start(t, p, 1)

	must(t, h.ctrl.SetStartingWeight(0, 135))
	must(t, h.ctrl.AddSet(0))

	if w := h.ctrl.Cards()[0].Rows[1].Weight; w == nil || *w != 135 {
		t.Errorf("new row weight = %v, want 135", w)
	}
	cached, err := h.kv.CurrentPlan()
	if err != nil || cached == nil {
		t.Fatalf("cached plan = %v err = %v", cached, err)
	}
	if w := cached.Workouts[1].Exercises[0].StartingWeight; w == nil || *w != 135 {
		t.Errorf("cached starting weight = %v, want 135", w)
	}
	if h.ctrl.View().Cards[0].NeedsStartingWeight {
		t.Error("prompt should clear once a starting weight is stored")
	}
}

// TestStartingWeightSurvivesPlanFetch verifies that an entered starting
// weight is still on the plan after the next plan fetch replaces the cache.
func TestStartingWeightSurvivesPlanFetch(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	p := testPlan()
	h.start(t, p, 1)
	must(t, h.ctrl.SetStartingWeight(0, 135))

	raw, err := json.Marshal(testPlan())
	if err != nil {
		t.Fatal(err)
	}
	loader := plan.NewLoader(planBackend{raw: raw}, h.kv, h.kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fetched, w, err := loader.Next(context.Background(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if w.DayIndex != 1 {
		t.Fatalf("next day = %d, want 1", w.DayIndex)
	}
	if sw := w.Exercises[0].StartingWeight; sw == nil || *sw != 135 {
		t.Errorf("squat starting weight after fetch = %v, want 135", sw)
	}
	cached, _ := h.kv.CurrentPlan()
	if sw := cached.Workouts[1].Exercises[0].StartingWeight; sw == nil || *sw != 135 {
		t.Errorf("cached starting weight after fetch = %v, want 135", sw)
	}
	if fetched.Workouts[0].Exercises[0].StartingWeight == nil {
		t.Error("payload starting weight of bench should be kept")
	}
}

// TestStartingWeightFillsUntouchedRows verifies that untouched prefilled rows
// take a newly entered starting weight and remain empty.
func TestStartingWeightFillsUntouchedRows(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	h.start(t, testPlan(), 0)
	must(t, h.ctrl.SetStartingWeight(0, 105))

	r := h.ctrl.Cards()[0].Rows[0]
	if r.Weight == nil || *r.Weight != 105 || !r.WeightDefaulted {
		t.Errorf("row = %+v, want prefilled 105", r)
	}
	if _, err := h.ctrl.Save(context.Background()); !errors.Is(err, logbook.ErrNothingLogged) {
		t.Errorf("err = %v, want ErrNothingLogged", err)
	}
}

// TestUnsubscribe verifies that a removed observer receives no further events.
func TestUnsubscribe(t *testing.T) {
	h := newHarness(t, &fakeBackend{startID: "s1"})
	calls := 0
	unsubscribe := h.ctrl.Subscribe(func(Event) { calls++ })
	unsubscribe()
	h.start(t, testPlan(), 0)
	if calls != 0 {
		t.Errorf("observer called %d times after unsubscribe", calls)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

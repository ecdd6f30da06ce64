// Package session drives one workout session from load to submission:
// recommendations, default rows, draft persistence, validation and save.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftcoach/internal/draft"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
	"github.com/claude/liftcoach/internal/recommend"
)

// State is the lifecycle position of the controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSaving
	StateSaved
	StateSaveFailed
	StateReadOnly
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateSaveFailed:
		return "save_failed"
	case StateReadOnly:
		return "read_only"
	default:
		return "idle"
	}
}

var (
	ErrNoSession = errors.New("session: no active session")
	ErrReadOnly  = errors.New("session: read-only view, session locked")
	ErrNotReady  = errors.New("session: not ready for edits")
	// ErrStaleSession marks a result that arrived for a session that is no longer active.
	ErrStaleSession = errors.New("session: result belongs to a session that is no longer active")
)

// DataIntegrityError blocks a save because slots lack a catalog exercise id.
type DataIntegrityError struct {
	Sequences []int
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("exercise id missing for slot sequence %v: sync required", e.Sequences)
}

// Backend is the subset of the backend API the controller calls.
type Backend interface {
	recommend.Fetcher
	StartSession(ctx context.Context, req models.StartRequest) (*models.Session, error)
	SaveSession(ctx context.Context, payload models.SessionPayload) (int64, error)
}

// StateStore holds the active session, the cached plan and entered starting
// weights across restarts.
type StateStore interface {
	ActiveSession() (*models.Session, error)
	SetActiveSession(sess *models.Session) error
	ClearActiveSession() error
	SetCurrentPlan(p *models.Plan) error
	SetStartingWeight(planID int64, dayIndex, sequence int, weight float64) error
}

// DraftStore persists unsaved grid input.
type DraftStore interface {
	Snapshot(sess *models.Session, cards []models.ExerciseCard) error
	Load(sess *models.Session) (*models.Draft, error)
	Clear() error
}

// Controller owns the plan, session and grid for one screen visit. Every
// mutation goes through its methods. Network calls run without the lock held
// and their results are dropped when the session changed meanwhile.
type Controller struct {
	backend Backend
	state   StateStore
	drafts  DraftStore
	userID  int
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	st      State
	plan    *models.Plan
	session *models.Session
	workout models.Workout
	cards   []models.ExerciseCard
	recs    *recommend.Result
	skip    bool
	saving  bool

	observers map[int]Observer
	nextObs   int
}

func New(backend Backend, state StateStore, drafts DraftStore, userID int, log *slog.Logger) *Controller {
	return &Controller{
		backend:   backend,
		state:     state,
		drafts:    drafts,
		userID:    userID,
		log:       log,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Session returns a copy of the active session, or nil.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Start opens a new session for the workout, remembers it as the active
// session and loads it. A backend that assigns no id gets a local one.
func (c *Controller) Start(ctx context.Context, p *models.Plan, w models.Workout) (*models.Session, error) {
	if p == nil {
		return nil, fmt.Errorf("session: start requires a plan")
	}
	now := c.now().UTC()
	sess, err := c.backend.StartSession(ctx, models.StartRequest{
		PlanID:    p.ID,
		DayIndex:  w.DayIndex,
		StartedAt: now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = now
	}
	sess.ReadOnly = false

	if err := c.state.SetActiveSession(sess); err != nil {
		c.log.Warn("persisting active session failed", "session_id", sess.ID, "error", err)
	}
	c.activate(p, w, sess)
	c.log.Info("session started", "session_id", sess.ID, "plan_id", p.ID, "day_index", w.DayIndex)

	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c.Session(), nil
}

// Resume reactivates the persisted active session against the given plan,
// typically after a restart. Its draft is applied by Load.
func (c *Controller) Resume(ctx context.Context, p *models.Plan) (*models.Session, error) {
	sess, err := c.state.ActiveSession()
	if err != nil {
		return nil, fmt.Errorf("reading active session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	if p == nil || p.ID != sess.PlanID {
		return nil, fmt.Errorf("session %s belongs to plan %d: %w", sess.ID, sess.PlanID, ErrNoSession)
	}
	w, ok := plan.FindWorkout(p, sess.DayIndex)
	if !ok {
		return nil, fmt.Errorf("session %s: day %d not in plan %d: %w", sess.ID, sess.DayIndex, p.ID, ErrNoSession)
	}

	c.activate(p, *w, sess)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c.Session(), nil
}

func (c *Controller) activate(p *models.Plan, w models.Workout, sess *models.Session) {
	c.mu.Lock()
	c.plan = p
	c.workout = w
	c.session = sess
	c.cards = nil
	c.recs = nil
	c.skip = false
	c.saving = false
	c.st = StateLoading
	c.mu.Unlock()
	c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateLoading})
}

// Load fetches recommendations, applies the matching draft and renders the
// grid. Rows come from the draft when one exists for the exercise, else one
// default row is added.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.session.ReadOnly {
		c.mu.Unlock()
		return nil
	}
	sess := *c.session
	w := c.workout
	c.st = StateLoading
	c.mu.Unlock()

	recs := recommend.Load(ctx, c.backend, w, c.userID, c.log)

	d, err := c.drafts.Load(&sess)
	if err != nil {
		c.log.Warn("draft unreadable, starting from defaults", "session_id", sess.ID, "error", err)
		d = nil
	}

	c.mu.Lock()
	if c.session == nil || c.session.ID != sess.ID {
		c.mu.Unlock()
		c.log.Debug("dropping load for inactive session", "session_id", sess.ID)
		return ErrStaleSession
	}
	c.recs = recs
	c.cards = buildCards(w, d)
	c.st = StateReady
	cards := cloneCards(c.cards)
	c.mu.Unlock()

	if len(recs.Missing) > 0 {
		c.log.Warn("workout has slots without exercise id", "session_id", sess.ID, "sequences", recs.Missing)
	}
	c.persist(&sess, cards)
	c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateReady})
	return nil
}

func buildCards(w models.Workout, d *models.Draft) []models.ExerciseCard {
	cards := make([]models.ExerciseCard, 0, len(w.Exercises))
	for _, ex := range w.Exercises {
		card := models.ExerciseCard{Exercise: ex}
		if rows := draftRows(d, ex); len(rows) > 0 {
			card.Rows = rows
		} else {
			card.Rows = []models.SetRow{defaultRow(ex)}
		}
		cards = append(cards, card)
	}
	return cards
}

func draftRows(d *models.Draft, ex models.Exercise) []models.SetRow {
	if d == nil || ex.ExerciseID == nil {
		return nil
	}
	return d.Exercises[draft.Key(*ex.ExerciseID)]
}

// defaultRow prefills the stored starting weight, or 0 for bodyweight slots.
// The prefill is flagged so an untouched row still counts as empty.
func defaultRow(ex models.Exercise) models.SetRow {
	var row models.SetRow
	switch {
	case ex.StartingWeight != nil:
		w := *ex.StartingWeight
		row.Weight = &w
	case ex.IsBodyweight():
		w := 0.0
		row.Weight = &w
	}
	row.WeightDefaulted = row.Weight != nil
	return row
}

// Reopen shows a stored session read-only. Rows are rebuilt from the logged
// sets and nothing is written to the draft or the active session.
func (c *Controller) Reopen(record models.SessionRecord, p *models.Plan) *models.Session {
	sess := &models.Session{
		ID:       fmt.Sprintf("history-%d", record.ID),
		PlanID:   record.PlanID,
		ReadOnly: true,
		Logged:   record.SetLogs,
	}
	if record.DayIndex != nil {
		sess.DayIndex = *record.DayIndex
	}
	if t, err := time.Parse(time.RFC3339, record.PerformedAt); err == nil {
		sess.StartedAt = t
	}

	var w models.Workout
	if record.DayIndex != nil {
		if found, ok := plan.FindWorkout(p, *record.DayIndex); ok {
			w = *found
		}
	}

	c.mu.Lock()
	c.plan = p
	c.workout = w
	c.session = sess
	c.cards = historyCards(w, record.SetLogs)
	c.recs = nil
	c.skip = false
	c.saving = false
	c.st = StateReadOnly
	c.mu.Unlock()

	c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateReadOnly})
	out := *sess
	return &out
}

func historyCards(w models.Workout, logged []models.LoggedSet) []models.ExerciseCard {
	var cards []models.ExerciseCard
	index := make(map[int64]int)
	for _, ex := range w.Exercises {
		if ex.ExerciseID != nil {
			index[*ex.ExerciseID] = len(cards)
		}
		cards = append(cards, models.ExerciseCard{Exercise: ex})
	}
	for _, s := range logged {
		i, ok := index[s.ExerciseID]
		if !ok {
			id := s.ExerciseID
			i = len(cards)
			index[id] = i
			cards = append(cards, models.ExerciseCard{Exercise: models.Exercise{
				ExerciseID: &id,
				Name:       s.ExerciseName,
				Sequence:   len(cards) + 1,
			}})
		}
		cards[i].Rows = append(cards[i].Rows, models.SetRow{
			Weight:      s.Weight,
			Reps:        s.Reps,
			RPE:         s.RPE,
			RestSeconds: s.RestSeconds,
			SetComplete: true,
		})
	}
	return cards
}

// Teardown abandons the active session: the draft and the persisted active
// session are removed and the controller returns to idle.
func (c *Controller) Teardown() error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.cards = nil
	c.recs = nil
	c.skip = false
	c.saving = false
	c.st = StateIdle
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	if sess.ReadOnly {
		c.notify(Event{Kind: EventStateChanged, SessionID: sess.ID, State: StateIdle})
		return nil
	}

	var errs []error
	if err := c.drafts.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := c.state.ClearActiveSession(); err != nil {
		errs = append(errs, fmt.Errorf("clearing active session: %w", err))
	}
	c.log.Info("session discarded", "session_id", sess.ID)
	c.notify(Event{Kind: EventDiscarded, SessionID: sess.ID, State: StateIdle})
	return errors.Join(errs...)
}

// persist snapshots the grid. Draft write failures are logged, never fatal.
func (c *Controller) persist(sess *models.Session, cards []models.ExerciseCard) {
	if err := c.drafts.Snapshot(sess, cards); err != nil {
		c.log.Warn("draft snapshot failed", "session_id", sess.ID, "error", err)
	}
}

func cloneCards(cards []models.ExerciseCard) []models.ExerciseCard {
	out := make([]models.ExerciseCard, len(cards))
	for i, card := range cards {
		rows := make([]models.SetRow, len(card.Rows))
		for j, r := range card.Rows {
			rows[j] = cloneRow(r)
		}
		out[i] = models.ExerciseCard{Exercise: card.Exercise, Rows: rows}
	}
	return out
}

func cloneRow(r models.SetRow) models.SetRow {
	r.Weight = cloneFloat(r.Weight)
	r.Reps = cloneFloat(r.Reps)
	r.RPE = cloneFloat(r.RPE)
	r.RestSeconds = cloneFloat(r.RestSeconds)
	return r
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

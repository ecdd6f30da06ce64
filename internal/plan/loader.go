package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/claude/liftcoach/internal/models"
)

// Backend is the subset of the backend API the loader calls.
type Backend interface {
	GetPlan(ctx context.Context, planID int64) (json.RawMessage, error)
	LastCompletedDay(ctx context.Context, planID int64, userID int) (*int, error)
}

// Cache receives every freshly loaded plan. The previous plan is replaced wholesale.
type Cache interface {
	SetCurrentPlan(p *models.Plan) error
	SetActivePlanID(id int64) error
}

// Weights holds starting weights entered on this device. Fetched plans are
// overlaid with them since the backend does not store them.
type Weights interface {
	StartingWeights(planID int64) (models.StartingWeights, error)
	ClearStartingWeight(planID int64, dayIndex, sequence int) error
}

// Loader fetches and normalizes plans and resolves the next workout.
type Loader struct {
	backend Backend
	cache   Cache
	weights Weights
	log     *slog.Logger
}

// NewLoader creates a Loader. A nil cache makes the loader read-only: plans
// are fetched but neither cached nor made active. weights may be nil.
func NewLoader(backend Backend, cache Cache, weights Weights, log *slog.Logger) *Loader {
	return &Loader{backend: backend, cache: cache, weights: weights, log: log}
}

// Load fetches the plan, caches it and makes it the active plan.
func (l *Loader) Load(ctx context.Context, planID int64) (*models.Plan, error) {
	p, err := l.Fetch(ctx, planID)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if err := l.cache.SetCurrentPlan(p); err != nil {
			l.log.Warn("caching plan failed", "plan_id", p.ID, "error", err)
		}
		if err := l.cache.SetActivePlanID(p.ID); err != nil {
			l.log.Warn("remembering active plan failed", "plan_id", p.ID, "error", err)
		}
	}
	return p, nil
}

// Fetch fetches and normalizes the plan and applies entered starting weights,
// without touching local state. A payload with no id takes planID.
func (l *Loader) Fetch(ctx context.Context, planID int64) (*models.Plan, error) {
	raw, err := l.backend.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("fetching plan %d: %w", planID, err)
	}
	p, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", planID, err)
	}
	if p.ID == 0 {
		p.ID = planID
	}
	if !p.OnboardingComplete() {
		l.log.Debug("plan schedule incomplete", "plan_id", p.ID,
			"schedule_days", p.ScheduleDays, "training_days", len(p.TrainingDaysOfWeek))
	}
	l.applyWeights(p)
	return p, nil
}

// applyWeights overlays entered starting weights. An unreadable record is
// logged and the plan is returned as fetched.
func (l *Loader) applyWeights(p *models.Plan) {
	if l.weights == nil {
		return
	}
	weights, err := l.weights.StartingWeights(p.ID)
	if err != nil {
		l.log.Warn("reading starting weights failed", "plan_id", p.ID, "error", err)
		return
	}
	for i := range p.Workouts {
		w := &p.Workouts[i]
		for j := range w.Exercises {
			if v, ok := weights[models.SlotKey(w.DayIndex, w.Exercises[j].Sequence)]; ok {
				w.Exercises[j].StartingWeight = &v
			}
		}
	}
}

// ForgetStartingWeight drops the entered weight of a slot whose exercise was
// replaced.
func (l *Loader) ForgetStartingWeight(planID int64, dayIndex, sequence int) error {
	if l.weights == nil {
		return nil
	}
	return l.weights.ClearStartingWeight(planID, dayIndex, sequence)
}

// ReloadPlan refetches the plan after an out-of-band change such as a swap.
func (l *Loader) ReloadPlan(ctx context.Context, planID int64) error {
	_, err := l.Load(ctx, planID)
	return err
}

// Next loads the plan and returns the workout following the last completed one.
// A failed completion lookup is treated as no completion yet.
func (l *Loader) Next(ctx context.Context, planID int64, userID int) (*models.Plan, models.Workout, error) {
	p, err := l.Load(ctx, planID)
	if err != nil {
		return nil, models.Workout{}, err
	}
	return l.next(ctx, p, planID, userID)
}

// PeekNext resolves the next workout like Next but leaves local state alone.
func (l *Loader) PeekNext(ctx context.Context, planID int64, userID int) (*models.Plan, models.Workout, error) {
	p, err := l.Fetch(ctx, planID)
	if err != nil {
		return nil, models.Workout{}, err
	}
	return l.next(ctx, p, planID, userID)
}

func (l *Loader) next(ctx context.Context, p *models.Plan, planID int64, userID int) (*models.Plan, models.Workout, error) {
	last, err := l.backend.LastCompletedDay(ctx, planID, userID)
	if err != nil {
		l.log.Warn("last completed day unavailable, starting rotation at first workout",
			"plan_id", planID, "user_id", userID, "error", err)
		last = nil
	}

	w, err := SelectNextWorkout(p, last)
	if err != nil {
		return p, models.Workout{}, err
	}
	l.log.Info("next workout selected", "plan_id", p.ID, "day_index", w.DayIndex, "session_type", w.SessionType)
	return p, w, nil
}

// Package recommend fetches per-exercise coaching targets for a workout.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/claude/liftcoach/internal/models"
)

// Fetcher returns the recommendation for one user and exercise. A nil
// recommendation with a nil error means the backend sent an empty body.
type Fetcher interface {
	Recommendation(ctx context.Context, userID int, exerciseID int64) (*models.Recommendation, error)
}

// Result is the outcome of one fan-out. It is built per load and never merged
// with an earlier one.
type Result struct {
	Recommendations map[int64]models.Recommendation
	// Missing holds the sequences of slots without an exercise id. Nothing was fetched for them.
	Missing []int
	// Failures holds exercise ids whose fetch failed. They are absent from Recommendations.
	Failures []int64
}

// Lookup returns the recommendation for a slot, or nil when none is available.
func (r *Result) Lookup(exerciseID *int64) *models.Recommendation {
	if r == nil || exerciseID == nil {
		return nil
	}
	rec, ok := r.Recommendations[*exerciseID]
	if !ok {
		return nil
	}
	return &rec
}

// Load fetches a recommendation for every linked slot concurrently and waits
// for all of them. A failed fetch is recorded and never cancels its siblings.
func Load(ctx context.Context, f Fetcher, w models.Workout, userID int, log *slog.Logger) *Result {
	res := &Result{Recommendations: make(map[int64]models.Recommendation)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	seen := make(map[int64]bool)
	for _, ex := range w.Exercises {
		if ex.ExerciseID == nil {
			res.Missing = append(res.Missing, ex.Sequence)
			continue
		}
		id := *ex.ExerciseID
		if seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			rec, err := f.Recommendation(ctx, userID, id)
			if err == nil && rec == nil {
				err = fmt.Errorf("empty recommendation")
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("recommendation unavailable", "exercise_id", id, "error", err)
				res.Failures = append(res.Failures, id)
				return nil
			}
			rec.ExerciseID = id
			res.Recommendations[id] = *rec
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(res.Missing)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i] < res.Failures[j] })
	return res
}

// TargetLabel renders the coaching target for a slot. rec is nil when no
// recommendation was fetched.
func TargetLabel(ex models.Exercise, rec *models.Recommendation) string {
	if rec == nil {
		return "Target: unavailable (sync required)"
	}
	weight := rec.NextWeight
	if weight == nil {
		weight = ex.StartingWeight
	}
	if weight == nil {
		return "Target: unavailable"
	}
	return fmt.Sprintf("Target: %s lb x %s", strconv.FormatFloat(*weight, 'f', -1, 64), repsLabel(ex, rec))
}

func repsLabel(ex models.Exercise, rec *models.Recommendation) string {
	if lo, hi, ok := rec.Reps(); ok && lo > 0 && hi > 0 {
		if lo == hi {
			return strconv.Itoa(lo)
		}
		return fmt.Sprintf("%d-%d", lo, hi)
	}
	if ex.TargetRepsMin != nil && ex.TargetRepsMax != nil {
		return fmt.Sprintf("%d-%d", *ex.TargetRepsMin, *ex.TargetRepsMax)
	}
	return "-"
}

// NeedsStartingWeight reports whether the user must enter a starting weight:
// nothing is stored and the slot is an initial load or has no recommended weight.
func NeedsStartingWeight(ex models.Exercise, rec *models.Recommendation) bool {
	if ex.StartingWeight != nil {
		return false
	}
	return ex.IsInitialLoad || rec == nil || rec.NextWeight == nil
}

// Package swap substitutes the exercise at a fixed plan slot and refreshes the
// plan from the backend afterward.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/liftcoach/internal/models"
)

var (
	ErrPlanMissing     = errors.New("swap: plan id is required")
	ErrDayIndexMissing = errors.New("swap: day index is required")
	ErrSequenceMissing = errors.New("swap: sequence must be a positive integer")
	ErrExerciseMissing = errors.New("swap: replacement exercise id is required")
)

// Failure wraps a swap request that reached the backend and failed. The plan
// is left untouched and the request is not retried.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("swap %s failed: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Backend is the subset of the backend API the coordinator calls.
type Backend interface {
	SwapOptions(ctx context.Context, planID int64, dayIndex, sequence int) ([]models.SwapOption, error)
	ApplySwap(ctx context.Context, req models.SwapRequest) error
}

// PlanReloader refetches a plan after the backend changed it. The replaced
// slot's entered starting weight belongs to the old exercise and is dropped.
type PlanReloader interface {
	ForgetStartingWeight(planID int64, dayIndex, sequence int) error
	ReloadPlan(ctx context.Context, planID int64) error
}

type Coordinator struct {
	backend  Backend
	reloader PlanReloader
	log      *slog.Logger
}

func NewCoordinator(backend Backend, reloader PlanReloader, log *slog.Logger) *Coordinator {
	return &Coordinator{backend: backend, reloader: reloader, log: log}
}

// checkSlot validates a slot address. dayIndex is a pointer so an absent
// value is distinguishable from day 0.
func checkSlot(planID int64, dayIndex *int, sequence int) error {
	switch {
	case planID <= 0:
		return ErrPlanMissing
	case dayIndex == nil || *dayIndex < 0:
		return ErrDayIndexMissing
	case sequence <= 0:
		return ErrSequenceMissing
	}
	return nil
}

// Options lists the catalog exercises that may replace the slot.
func (c *Coordinator) Options(ctx context.Context, planID int64, dayIndex *int, sequence int) ([]models.SwapOption, error) {
	if err := checkSlot(planID, dayIndex, sequence); err != nil {
		return nil, err
	}
	opts, err := c.backend.SwapOptions(ctx, planID, *dayIndex, sequence)
	if err != nil {
		return nil, &Failure{Op: "options", Err: err}
	}
	return opts, nil
}

// Apply replaces the exercise at the slot. On success the plan is reloaded
// from the backend rather than patched locally.
func (c *Coordinator) Apply(ctx context.Context, planID int64, dayIndex *int, sequence int, exerciseID int64) error {
	if err := checkSlot(planID, dayIndex, sequence); err != nil {
		return err
	}
	if exerciseID <= 0 {
		return ErrExerciseMissing
	}

	req := models.SwapRequest{PlanID: planID, DayIndex: *dayIndex, Sequence: sequence, ExerciseID: exerciseID}
	if err := c.backend.ApplySwap(ctx, req); err != nil {
		return &Failure{Op: "apply", Err: err}
	}
	c.log.Info("exercise swapped", "plan_id", planID, "day_index", *dayIndex, "sequence", sequence, "exercise_id", exerciseID)

	if c.reloader != nil {
		if err := c.reloader.ForgetStartingWeight(planID, *dayIndex, sequence); err != nil {
			c.log.Warn("dropping starting weight of swapped slot failed", "plan_id", planID,
				"day_index", *dayIndex, "sequence", sequence, "error", err)
		}
		if err := c.reloader.ReloadPlan(ctx, planID); err != nil {
			return fmt.Errorf("reloading plan after swap: %w", err)
		}
	}
	return nil
}

package mcp

import (
	"context"

	"github.com/claude/liftcoach/internal/backend"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
	"github.com/claude/liftcoach/internal/recommend"
)

// DataSource is the backend surface the MCP tools read from.
type DataSource interface {
	recommend.Fetcher
	ListSessions(ctx context.Context, userID int) ([]models.SessionRecord, error)
}

// Compile-time check: *backend.Client satisfies DataSource.
var _ DataSource = (*backend.Client)(nil)

// PlanSource reads plans and picks the next workout in the rotation. Neither
// call may change the cached or active plan.
type PlanSource interface {
	Fetch(ctx context.Context, planID int64) (*models.Plan, error)
	PeekNext(ctx context.Context, planID int64, userID int) (*models.Plan, models.Workout, error)
}

var _ PlanSource = (*plan.Loader)(nil)

// SwapSource lists replacement candidates for a plan slot.
type SwapSource interface {
	Options(ctx context.Context, planID int64, dayIndex *int, sequence int) ([]models.SwapOption, error)
}

// LocalState is the on-device state exposed as resources.
type LocalState interface {
	ActivePlanID() (int64, error)
	CurrentPlan() (*models.Plan, error)
	ActiveSession() (*models.Session, error)
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
	"github.com/claude/liftcoach/internal/recommend"
)

// --- Tool definitions ---

var toolGetNextWorkout = mcp.NewTool("get_next_workout",
	mcp.WithDescription("Return the next workout in the plan rotation: the slot after the most recently completed one, or the first slot when nothing is completed yet."),
	mcp.WithString("plan_id", mcp.Description("Plan id. Defaults to the active plan on this device.")),
)

var toolGetRecommendations = mcp.NewTool("get_recommendations",
	mcp.WithDescription("Per-exercise coaching targets (weight and rep range) for a workout. Exercises whose recommendation could not be fetched are listed under recommendation_failures."),
	mcp.WithString("plan_id", mcp.Description("Plan id. Defaults to the active plan on this device.")),
	mcp.WithString("day_index", mcp.Description("Rotation slot of the workout. Defaults to the next workout.")),
)

var toolListSwapOptions = mcp.NewTool("list_swap_options",
	mcp.WithDescription("List catalog exercises that can replace the exercise at a plan slot."),
	mcp.WithString("day_index", mcp.Required(), mcp.Description("Rotation slot of the workout")),
	mcp.WithString("sequence", mcp.Required(), mcp.Description("Position of the exercise within the workout, starting at 1")),
	mcp.WithString("plan_id", mcp.Description("Plan id. Defaults to the active plan on this device.")),
)

var toolGetSessionHistory = mcp.NewTool("get_session_history",
	mcp.WithDescription("Logged workout sessions, newest first, with their sets and completion status."),
	mcp.WithString("limit", mcp.Description("Maximum number of sessions. Defaults to 10.")),
	mcp.WithString("status", mcp.Description("Only sessions with this completion status."), mcp.Enum("completed", "partial", "skipped")),
)

const defaultHistoryLimit = 10

// exerciseTarget is one exercise of a workout with its resolved target.
type exerciseTarget struct {
	Sequence            int                    `json:"sequence"`
	ExerciseID          *int64                 `json:"exercise_id"`
	Name                string                 `json:"name"`
	Target              string                 `json:"target"`
	NeedsStartingWeight bool                   `json:"needs_starting_weight"`
	Recommendation      *models.Recommendation `json:"recommendation,omitempty"`
}

// --- Tool handlers ---

func (h *handlers) getNextWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := h.planID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, w, err := h.Plans.PeekNext(ctx, planID, h.user(ctx))
	if err != nil {
		h.log.Error("mcp get_next_workout", "plan_id", planID, "error", err)
		return mcp.NewToolResultError("loading next workout failed: " + err.Error()), nil
	}

	return jsonResult(map[string]any{
		"plan_id":   p.ID,
		"plan_name": p.Name,
		"workout":   w,
	})
}

func (h *handlers) getRecommendations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := h.planID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uid := h.user(ctx)

	var w models.Workout
	if raw := req.GetString("day_index", ""); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid day_index: " + raw), nil
		}
		p, err := h.Plans.Fetch(ctx, planID)
		if err != nil {
			h.log.Error("mcp get_recommendations", "plan_id", planID, "error", err)
			return mcp.NewToolResultError("loading plan failed: " + err.Error()), nil
		}
		found, ok := plan.FindWorkout(p, day)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("plan %d has no workout at day_index %d", planID, day)), nil
		}
		w = *found
	} else {
		if _, w, err = h.Plans.PeekNext(ctx, planID, uid); err != nil {
			h.log.Error("mcp get_recommendations", "plan_id", planID, "error", err)
			return mcp.NewToolResultError("loading next workout failed: " + err.Error()), nil
		}
	}

	res := recommend.Load(ctx, h.Source, w, uid, h.log)
	targets := make([]exerciseTarget, 0, len(w.Exercises))
	for _, ex := range w.Exercises {
		rec := res.Lookup(ex.ExerciseID)
		targets = append(targets, exerciseTarget{
			Sequence:            ex.Sequence,
			ExerciseID:          ex.ExerciseID,
			Name:                ex.Name,
			Target:              recommend.TargetLabel(ex, rec),
			NeedsStartingWeight: recommend.NeedsStartingWeight(ex, rec),
			Recommendation:      rec,
		})
	}

	return jsonResult(map[string]any{
		"day_index":               w.DayIndex,
		"session_type":            w.SessionType,
		"exercises":               targets,
		"missing_sequences":       res.Missing,
		"recommendation_failures": res.Failures,
	})
}

func (h *handlers) listSwapOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawDay, err := req.RequireString("day_index")
	if err != nil {
		return mcp.NewToolResultError("day_index parameter is required"), nil
	}
	day, err := strconv.Atoi(rawDay)
	if err != nil {
		return mcp.NewToolResultError("invalid day_index: " + rawDay), nil
	}
	rawSeq, err := req.RequireString("sequence")
	if err != nil {
		return mcp.NewToolResultError("sequence parameter is required"), nil
	}
	seq, err := strconv.Atoi(rawSeq)
	if err != nil {
		return mcp.NewToolResultError("invalid sequence: " + rawSeq), nil
	}
	planID, err := h.planID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts, err := h.Swaps.Options(ctx, planID, &day, seq)
	if err != nil {
		h.log.Error("mcp list_swap_options", "plan_id", planID, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(opts)
}

func (h *handlers) getSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := defaultHistoryLimit
	if raw := req.GetString("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return mcp.NewToolResultError("limit must be a positive integer"), nil
		}
		limit = n
	}
	status := models.CompletionStatus(req.GetString("status", ""))

	records, err := h.Source.ListSessions(ctx, h.user(ctx))
	if err != nil {
		h.log.Error("mcp get_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := make([]models.SessionRecord, 0, limit)
	for _, r := range records {
		if status != "" && r.CompletionStatus != status {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return jsonResult(out)
}

var errNoPlan = errors.New("plan_id is required: no active plan on this device")

// planID reads the plan_id argument, falling back to the active plan.
func (h *handlers) planID(req mcp.CallToolRequest) (int64, error) {
	if raw := req.GetString("plan_id", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid plan_id: %s", raw)
		}
		return id, nil
	}
	if h.State == nil {
		return 0, errNoPlan
	}
	id, err := h.State.ActivePlanID()
	if err != nil {
		return 0, fmt.Errorf("reading active plan: %w", err)
	}
	if id <= 0 {
		return 0, errNoPlan
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

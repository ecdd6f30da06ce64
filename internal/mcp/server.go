package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts a user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok && id > 0
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Deps are the engine components the tools are served from.
type Deps struct {
	Source DataSource
	Plans  PlanSource
	Swaps  SwapSource
	State  LocalState
	UserID int
}

// New creates an MCP server with all tools and resources registered.
func New(deps Deps, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftCoach training plan server. Look up the next workout in the plan rotation, per-exercise targets, swap candidates and logged session history. Tools are read-only."),
	)

	h := &handlers{Deps: deps, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetNextWorkout, Handler: h.getNextWorkout},
		server.ServerTool{Tool: toolGetRecommendations, Handler: h.getRecommendations},
		server.ServerTool{Tool: toolListSwapOptions, Handler: h.listSwapOptions},
		server.ServerTool{Tool: toolGetSessionHistory, Handler: h.getSessionHistory},
	)

	s.AddResources(
		server.ServerResource{Resource: resCurrentPlan, Handler: h.currentPlan},
		server.ServerResource{Resource: resActiveSession, Handler: h.activeSession},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	Deps
	log *slog.Logger
}

func (h *handlers) user(ctx context.Context) int {
	if id, ok := UserIDFromContext(ctx); ok {
		return id
	}
	return h.UserID
}

// --- Resource definitions ---

var resCurrentPlan = mcp.NewResource(
	"liftcoach://current_plan",
	"Current Plan",
	mcp.WithResourceDescription("The normalized training plan cached on this device"),
	mcp.WithMIMEType("application/json"),
)

var resActiveSession = mcp.NewResource(
	"liftcoach://active_session",
	"Active Session",
	mcp.WithResourceDescription("The workout session currently in progress, if any"),
	mcp.WithMIMEType("application/json"),
)

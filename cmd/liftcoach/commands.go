package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/claude/liftcoach/internal/mcp"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
)

var (
	planFlag     int64
	startDay     int
	historyLimit int
)

// --- next ---

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next workout in the plan rotation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			id, err := a.planID(planFlag)
			if err != nil {
				return err
			}
			p, w, err := a.plans.Next(ctx, id, a.cfg.User.ID)
			if err != nil {
				return err
			}
			printWorkout(p, w)
			return nil
		})
	},
}

// --- start ---

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the next workout, or the one at --day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			active, err := a.state.ActiveSession()
			if err != nil {
				return fmt.Errorf("reading active session: %w", err)
			}
			if active != nil {
				return fmt.Errorf("session %s is in progress: save or discard it first", active.ID)
			}

			id, err := a.planID(planFlag)
			if err != nil {
				return err
			}

			var (
				p *models.Plan
				w models.Workout
			)
			if cmd.Flags().Changed("day") {
				if p, err = a.plans.Load(ctx, id); err != nil {
					return err
				}
				found, ok := plan.FindWorkout(p, startDay)
				if !ok {
					return fmt.Errorf("plan %d has no workout at day %d", id, startDay)
				}
				w = *found
			} else if p, w, err = a.plans.Next(ctx, id, a.cfg.User.ID); err != nil {
				return err
			}

			if _, err := a.ctrl.Start(ctx, p, w); err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

// --- plan ---

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Select and inspect the active plan",
}

var planUseCmd = &cobra.Command{
	Use:   "use [plan-id]",
	Short: "Fetch a plan and make it the active plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.plans.Load(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Active plan: %s (#%d), %d workouts\n", p.Name, p.ID, len(p.Workouts))
			return nil
		})
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			p, err := a.state.CurrentPlan()
			if err != nil {
				return err
			}
			if p == nil {
				return errNoPlan
			}
			printPlan(p)
			return nil
		})
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			records, err := a.client.ListSessions(ctx, a.cfg.User.ID)
			if err != nil {
				return err
			}
			if len(records) > historyLimit && historyLimit > 0 {
				records = records[:historyLimit]
			}
			printHistory(records)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Reopen a logged session read-only",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		return withApp(func(ctx context.Context, a *app) error {
			records, err := a.client.ListSessions(ctx, a.cfg.User.ID)
			if err != nil {
				return err
			}
			for _, r := range records {
				if r.ID != id {
					continue
				}
				var p *models.Plan
				if r.PlanID > 0 {
					if p, err = a.planFor(ctx, r.PlanID); err != nil {
						a.log.Warn("plan for logged session unavailable", "plan_id", r.PlanID, "error", err)
					}
				}
				a.ctrl.Reopen(r, p)
				printView(a.ctrl.View())
				return nil
			}
			return fmt.Errorf("no logged session %d", id)
		})
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve plan, recommendation and history tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			s := mcp.New(mcp.Deps{
				Source: a.client,
				Plans:  a.plans,
				Swaps:  a.swaps,
				State:  a.state,
				UserID: a.cfg.User.ID,
			}, Version, a.log)
			a.log.Info("mcp server starting", "transport", "stdio")
			return server.ServeStdio(s)
		})
	},
}

func init() {
	nextCmd.Flags().Int64Var(&planFlag, "plan", 0, "plan id (defaults to the active plan)")
	startCmd.Flags().Int64Var(&planFlag, "plan", 0, "plan id (defaults to the active plan)")
	startCmd.Flags().IntVar(&startDay, "day", 0, "day index of the workout to start instead of the next one")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of sessions to list")

	planCmd.AddCommand(planUseCmd, planShowCmd)
	historyCmd.AddCommand(historyShowCmd)
}

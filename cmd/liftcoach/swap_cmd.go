package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Replace the exercise at a plan slot",
}

var swapOptionsCmd = &cobra.Command{
	Use:   "options [day] [sequence]",
	Short: "List exercises that can replace the slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, seq, err := slot(args[0], args[1])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			id, err := a.planID(planFlag)
			if err != nil {
				return err
			}
			opts, err := a.swaps.Options(ctx, id, &day, seq)
			if err != nil {
				return err
			}
			printSwapOptions(opts)
			return nil
		})
	},
}

var swapApplyCmd = &cobra.Command{
	Use:   "apply [day] [sequence] [exercise-id]",
	Short: "Swap the slot to another catalog exercise and refresh the plan",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, seq, err := slot(args[0], args[1])
		if err != nil {
			return err
		}
		exerciseID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid exercise id %q", args[2])
		}
		return withApp(func(ctx context.Context, a *app) error {
			id, err := a.planID(planFlag)
			if err != nil {
				return err
			}
			if err := a.swaps.Apply(ctx, id, &day, seq, exerciseID); err != nil {
				return err
			}
			fmt.Printf("Swapped day %d slot %d to exercise %d\n", day, seq, exerciseID)
			return nil
		})
	},
}

// slot parses a day index and a 1-based sequence. Range checks belong to the coordinator.
func slot(dayArg, seqArg string) (int, int, error) {
	day, err := strconv.Atoi(dayArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid day %q", dayArg)
	}
	seq, err := strconv.Atoi(seqArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sequence %q", seqArg)
	}
	return day, seq, nil
}

func init() {
	swapCmd.PersistentFlags().Int64Var(&planFlag, "plan", 0, "plan id (defaults to the active plan)")
	swapCmd.AddCommand(swapOptionsCmd, swapApplyCmd)
}

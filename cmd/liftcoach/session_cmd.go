package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/claude/liftcoach/internal/logbook"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/session"
	"github.com/claude/liftcoach/internal/store"
)

var (
	setWeight float64
	setReps   float64
	setRPE    float64
	setRest   float64
	setDone   bool
	setAudit  bool
	skipUndo  bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Log sets against the session in progress",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the logging grid with targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app) error {
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionSetCmd = &cobra.Command{
	Use:   "set [exercise] [set]",
	Short: "Fill in one set row; exercise and set are 1-based positions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, row, err := positions(args[0], args[1])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		return withSession(func(ctx context.Context, a *app) error {
			err := a.ctrl.UpdateRow(ex, row, func(r *models.SetRow) {
				if flags.Changed("weight") {
					r.Weight = float64p(setWeight)
				}
				if flags.Changed("reps") {
					r.Reps = float64p(setReps)
				}
				if flags.Changed("rpe") {
					r.RPE = float64p(setRPE)
				}
				if flags.Changed("rest") {
					r.RestSeconds = float64p(setRest)
				}
				if flags.Changed("done") {
					r.SetComplete = setDone
				}
				if flags.Changed("audit") {
					r.ManualAudit = setAudit
				}
			})
			if err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionAddSetCmd = &cobra.Command{
	Use:   "add-set [exercise]",
	Short: "Append a set row to an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := position(args[0])
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, a *app) error {
			if err := a.ctrl.AddSet(ex); err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionRemoveSetCmd = &cobra.Command{
	Use:   "remove-set [exercise] [set]",
	Short: "Remove a set row; the last row is cleared instead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, row, err := positions(args[0], args[1])
		if err != nil {
			return err
		}
		return withSession(func(ctx context.Context, a *app) error {
			if err := a.ctrl.RemoveRow(ex, row); err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionWeightCmd = &cobra.Command{
	Use:   "weight [exercise] [weight]",
	Short: "Record a starting weight for an exercise without one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := position(args[0])
		if err != nil {
			return err
		}
		w, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid weight %q", args[1])
		}
		return withSession(func(ctx context.Context, a *app) error {
			if err := a.ctrl.SetStartingWeight(ex, w); err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Confirm skipping the workout; the next save records it as skipped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app) error {
			if err := a.ctrl.SetSkip(!skipUndo); err != nil {
				return err
			}
			printView(a.ctrl.View())
			return nil
		})
	},
}

var sessionSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Validate and submit the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, a *app) error {
			res, err := a.ctrl.Save(ctx)
			if err != nil {
				return explainSaveError(err)
			}
			if res == nil {
				fmt.Println("A save is already in progress.")
				return nil
			}
			fmt.Printf("Saved session %s as %s (%d sets, record #%d)\n", res.SessionID, res.Status, res.Sets, res.RecordID)
			return nil
		})
	},
}

var sessionDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Abandon the session in progress and its draft",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			// Resume may fail offline; the persisted session is cleared either way.
			if err := a.resume(ctx); err != nil {
				a.log.Debug("discarding without resume", "error", err)
				if err := a.state.Delete(store.KeyDraft); err != nil {
					return err
				}
				return a.state.ClearActiveSession()
			}
			if err := a.ctrl.Teardown(); err != nil {
				return err
			}
			fmt.Println("Session discarded.")
			return nil
		})
	},
}

func explainSaveError(err error) error {
	var ve *logbook.ValidationError
	var die *session.DataIntegrityError
	switch {
	case errors.Is(err, logbook.ErrNothingLogged):
		return errors.New("nothing logged: fill in a set or run 'liftcoach session skip'")
	case errors.As(err, &ve):
		return fmt.Errorf("fix %s set %d: %s", ve.Exercise, ve.SetNumber, ve.Message)
	case errors.As(err, &die):
		return fmt.Errorf("cannot save: exercises at positions %v have no catalog id; swap them first", die.Sequences)
	}
	return err
}

func position(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q: positions start at 1", s)
	}
	return n - 1, nil
}

func positions(ex, row string) (int, int, error) {
	i, err := position(ex)
	if err != nil {
		return 0, 0, err
	}
	j, err := position(row)
	if err != nil {
		return 0, 0, err
	}
	return i, j, nil
}

func float64p(v float64) *float64 { return &v }

func init() {
	f := sessionSetCmd.Flags()
	f.Float64Var(&setWeight, "weight", 0, "weight lifted")
	f.Float64Var(&setReps, "reps", 0, "repetitions performed")
	f.Float64Var(&setRPE, "rpe", 0, "rate of perceived exertion, 0-10")
	f.Float64Var(&setRest, "rest", 0, "rest before the set, in seconds")
	f.BoolVar(&setDone, "done", false, "mark the set complete")
	f.BoolVar(&setAudit, "audit", false, "flag the row for manual review")
	sessionSkipCmd.Flags().BoolVar(&skipUndo, "undo", false, "withdraw the skip confirmation")

	sessionCmd.AddCommand(sessionShowCmd, sessionSetCmd, sessionAddSetCmd, sessionRemoveSetCmd,
		sessionWeightCmd, sessionSkipCmd, sessionSaveCmd, sessionDiscardCmd)
}

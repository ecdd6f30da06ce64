package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"tailscale.com/tsnet"

	"github.com/claude/liftcoach/internal/backend"
	"github.com/claude/liftcoach/internal/config"
	"github.com/claude/liftcoach/internal/draft"
	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/plan"
	"github.com/claude/liftcoach/internal/session"
	"github.com/claude/liftcoach/internal/store"
	"github.com/claude/liftcoach/internal/swap"
)

// app holds the engine wired for one invocation.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	state  *store.Store
	client *backend.Client
	plans  *plan.Loader
	ctrl   *session.Controller
	swaps  *swap.Coordinator
	ts     *tsnet.Server
}

// openApp loads config and wires every component. Logs go to stderr so
// stdout stays clean for command output and the MCP transport.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	a := &app{cfg: cfg, log: log}

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout()}
	if cfg.Tailscale.Enabled {
		a.ts = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(string, ...any) {},
		}
		if err := a.ts.Start(); err != nil {
			return nil, fmt.Errorf("tsnet start: %w", err)
		}
		httpClient = a.ts.HTTPClient()
		httpClient.Timeout = cfg.Backend.Timeout()
		log.Debug("backend reached over tailnet", "hostname", cfg.Tailscale.Hostname)
	}

	st, err := store.Open(cfg.State.Dir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening state: %w", err)
	}
	a.state = st

	a.client = backend.NewClient(cfg.Backend.URL, httpClient)
	a.plans = plan.NewLoader(a.client, st, st, log)
	a.ctrl = session.New(a.client, st, draft.New(st, log), cfg.User.ID, log)
	a.swaps = swap.NewCoordinator(a.client, a.plans, log)
	return a, nil
}

func (a *app) Close() {
	if a.state != nil {
		if err := a.state.Close(); err != nil {
			a.log.Warn("closing state failed", "error", err)
		}
	}
	if a.ts != nil {
		a.ts.Close()
	}
}

var errNoPlan = errors.New("no active plan: pass --plan or run 'liftcoach plan use <id>'")

// planID returns the flag value or, when unset, the remembered active plan.
func (a *app) planID(flagValue int64) (int64, error) {
	if flagValue > 0 {
		return flagValue, nil
	}
	id, err := a.state.ActivePlanID()
	if err != nil {
		return 0, fmt.Errorf("reading active plan: %w", err)
	}
	if id <= 0 {
		return 0, errNoPlan
	}
	return id, nil
}

// planFor returns the plan a persisted session belongs to. The cached plan is
// preferred since it carries starting weights entered on this device.
func (a *app) planFor(ctx context.Context, planID int64) (*models.Plan, error) {
	cached, err := a.state.CurrentPlan()
	if err != nil {
		a.log.Warn("cached plan unreadable", "error", err)
	}
	if cached != nil && cached.ID == planID {
		return cached, nil
	}
	return a.plans.Load(ctx, planID)
}

// resume reactivates the persisted session so it can be edited or saved.
func (a *app) resume(ctx context.Context) error {
	sess, err := a.state.ActiveSession()
	if err != nil {
		return fmt.Errorf("reading active session: %w", err)
	}
	if sess == nil {
		return errors.New("no session in progress: run 'liftcoach start'")
	}
	p, err := a.planFor(ctx, sess.PlanID)
	if err != nil {
		return err
	}
	if _, err := a.ctrl.Resume(ctx, p); err != nil {
		return fmt.Errorf("resuming session %s: %w", sess.ID, err)
	}
	return nil
}

// withApp opens the app for the duration of fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

// withSession opens the app and resumes the active session before fn.
func withSession(fn func(ctx context.Context, a *app) error) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.resume(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}

// Package server is an in-memory stand-in for the coaching backend. It serves
// the plan, swap, recommendation and session routes the client consumes so
// the engine can run end to end without the real service.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftcoach/internal/models"
)

// Options tune the stub's behavior.
type Options struct {
	// SeedPlan, when positive, creates a plan with that many training days at startup.
	SeedPlan int
	// FailRecommendations lists exercise ids whose recommendation call answers 503.
	FailRecommendations []int64
}

type storedSession struct {
	userID int
	record models.SessionRecord
}

// Server holds the in-memory backend state.
type Server struct {
	mu           sync.Mutex
	plans        map[int64]*models.Plan
	sessions     []storedSession
	nextPlanID   int64
	nextRecordID int64
	failing      map[int64]bool

	log    *slog.Logger
	router chi.Router
	now    func() time.Time
}

// New creates a Server with all routes configured.
func New(opts Options, log *slog.Logger) *Server {
	s := &Server{
		plans:        make(map[int64]*models.Plan),
		nextPlanID:   1,
		nextRecordID: 1,
		failing:      make(map[int64]bool),
		log:          log,
		router:       chi.NewRouter(),
		now:          time.Now,
	}
	for _, id := range opts.FailRecommendations {
		s.failing[id] = true
	}
	if opts.SeedPlan > 0 {
		id, _ := s.createPlan(PlanRequest{ScheduleDays: opts.SeedPlan})
		log.Info("seeded plan", "plan_id", id, "schedule_days", opts.SeedPlan)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(UserIdentity)

	s.router.Post("/questionnaire", s.handleQuestionnaire)

	s.router.Route("/plans/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetPlan)
		r.Get("/last-completed", s.handleLastCompleted)
		r.Get("/swap-options", s.handleSwapOptions)
		r.Patch("/swap", s.handleApplySwap)
	})

	s.router.Get("/progression/recommendations", s.handleRecommendation)

	s.router.Post("/workouts/sessions", s.handleCreateSession)
	s.router.Get("/workouts/sessions", s.handleListSessions)
}

func (s *Server) createPlan(req PlanRequest) (int64, models.Plan) {
	p := buildPlan(req, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPlanID
	s.nextPlanID++
	s.plans[p.ID] = &p
	return p.ID, p
}

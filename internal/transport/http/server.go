package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"hustle/internal/app"
)

// Options tunes the HTTP surface.
type Options struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Server exposes the team, Round 2 and Round 3 use cases over HTTP.
type Server struct {
	rounds   *app.RoundService
	teams    *app.TeamService
	validate *validator.Validate
	ws       *WSHandler
	opts     Options
	router   *chi.Mux
}

func NewServer(rounds *app.RoundService, teams *app.TeamService, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		rounds:   rounds,
		teams:    teams,
		validate: validator.New(),
		ws:       NewWSHandler(rounds),
		opts:     opts,
	}
	s.setupRouter()
	return s
}

// allowsAnyOrigin reports a wildcard entry; browsers refuse credentials
// with a wildcard origin.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(s.opts.AllowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Long-lived; must not sit behind the request timeout.
		r.Get("/round2/scores/live", s.ws.ServeLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/admin/login", s.handleAdminLogin)
			r.With(s.requireTeam).Get("/auth/profile", s.handleProfile)

			r.Get("/round2/apt/{step}", s.handleAptitudeQuestion)
			r.Get("/round2/scores", s.handleRound2Scores)
			r.With(s.requireAdmin).Get("/round2/admin/overview", s.handleAdminOverview)
			r.Group(func(r chi.Router) {
				r.Use(s.requireTeam)
				r.Post("/round2/progress", s.handleCreateProgress)
				r.Get("/round2/progress", s.handleGetProgress)
				r.Post("/round2/aptitude/answer", s.handleAptitudeAnswer)
				r.Post("/round2/coding/submit", s.handleCodingSubmit)
				r.Post("/round2/coding/autosave", s.handleCodingAutosave)
				r.Get("/round2/submissions", s.handleSubmissions)
				r.Post("/round3/submit", s.handleRound3Submit)
			})
			r.Get("/round3/scores", s.handleRound3Scores)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/admin/teams", s.handleListTeams)
				r.Put("/admin/teams/{id}/status", s.handleUpdateTeamStatus)
			})
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

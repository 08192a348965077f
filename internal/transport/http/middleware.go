package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"hustle/internal/domain"
)

type contextKey string

const (
	teamContextKey  contextKey = "team"
	adminContextKey contextKey = "admin"
)

// TeamFromContext returns the authenticated team, if any.
func TeamFromContext(ctx context.Context) (domain.Team, bool) {
	team, ok := ctx.Value(teamContextKey).(domain.Team)
	return team, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// requireTeam resolves the bearer token to an active team.
func (s *Server) requireTeam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		team, err := s.teams.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			slog.Warn("team auth rejected", "error", err, "remote_addr", r.RemoteAddr)
			respondDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), teamContextKey, team)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := s.teams.AuthenticateAdmin(r.Context(), bearerToken(r))
		if err != nil {
			slog.Warn("admin auth rejected", "error", err, "remote_addr", r.RemoteAddr)
			respondDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), adminContextKey, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests using slog
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

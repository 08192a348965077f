package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"hustle/internal/auth"
	"hustle/internal/domain"
)

// TeamRepository stores registered teams. Create fails with
// domain.ErrTeamExists when the team name is taken and stores the team at
// version 1. Update fails with domain.ErrConflict when t.Version is no longer
// the stored version, and returns the team at its new version.
type TeamRepository interface {
	Create(ctx context.Context, t domain.Team) error
	Get(ctx context.Context, id string) (domain.Team, error)
	GetByName(ctx context.Context, name string) (domain.Team, error)
	Update(ctx context.Context, t domain.Team) (domain.Team, error)
	List(ctx context.Context) ([]domain.Team, error)
}

// RegisterInput is a new team's registration form.
type RegisterInput struct {
	TeamName    string
	Members     domain.Members
	Leader      string
	LeaderPhone string
	Password    string
}

// AdminCredentials is the single configured administrator.
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

// StatusUpdate changes a team's competition status and/or round scores.
type StatusUpdate struct {
	Status *domain.CompetitionStatus
	Scores *domain.RoundScores
}

// TeamService owns team identity: registration, login and the per-round
// results recorded on a team.
type TeamService struct {
	teams      TeamRepository
	tokens     *auth.Tokens
	admin      AdminCredentials
	now        func() time.Time
	logger     *slog.Logger
	maxRetries int
}

func NewTeamService(teams TeamRepository, tokens *auth.Tokens, admin AdminCredentials) *TeamService {
	return NewTeamServiceWithClock(teams, tokens, admin, time.Now)
}

// NewTeamServiceWithClock allows deterministic timestamps in tests.
func NewTeamServiceWithClock(teams TeamRepository, tokens *auth.Tokens, admin AdminCredentials, now func() time.Time) *TeamService {
	return &TeamService{teams: teams, tokens: tokens, admin: admin, now: now, logger: slog.Default(), maxRetries: 3}
}

// Register creates a team and returns its public profile and a session token.
func (s *TeamService) Register(ctx context.Context, in RegisterInput) (domain.Team, string, error) {
	in.TeamName = strings.TrimSpace(in.TeamName)
	if err := validateRegistration(in); err != nil {
		return domain.Team{}, "", err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Team{}, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	in.Members.Member1.Email = strings.ToLower(strings.TrimSpace(in.Members.Member1.Email))
	in.Members.Member2.Email = strings.ToLower(strings.TrimSpace(in.Members.Member2.Email))
	team := domain.Team{
		ID:           uuid.NewString(),
		TeamName:     in.TeamName,
		Members:      in.Members,
		Leader:       in.Leader,
		LeaderPhone:  strings.TrimSpace(in.LeaderPhone),
		PasswordHash: hash,
		IsActive:     true,
		Status:       domain.StatusRegistered,
		RegisteredAt: now,
		UpdatedAt:    now,
		Version:      1,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return domain.Team{}, "", err
	}
	token, err := s.tokens.Issue(team.ID, auth.RoleTeam)
	if err != nil {
		return domain.Team{}, "", err
	}
	s.logger.Info("team registered", "team_id", team.ID, "team_name", team.TeamName)
	return team.Public(), token, nil
}

func validateRegistration(in RegisterInput) error {
	if n := utf8.RuneCountInString(in.TeamName); n < 3 || n > 50 {
		return fmt.Errorf("%w: team name must be 3-50 characters", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	// bcrypt only hashes the first 72 bytes
	if len(in.Password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, auth.MaxPasswordBytes)
	}
	m1, m2 := in.Members.Member1, in.Members.Member2
	if strings.TrimSpace(m1.Name) == "" || strings.TrimSpace(m2.Name) == "" {
		return fmt.Errorf("%w: both members need a name", domain.ErrInvalidInput)
	}
	if strings.EqualFold(strings.TrimSpace(m1.Email), strings.TrimSpace(m2.Email)) {
		return fmt.Errorf("%w: member emails must be different", domain.ErrInvalidInput)
	}
	if in.Leader != "member1" && in.Leader != "member2" {
		return fmt.Errorf("%w: leader must be member1 or member2", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.LeaderPhone) == "" {
		return fmt.Errorf("%w: leader phone required", domain.ErrInvalidInput)
	}
	return nil
}

// Login checks a team's password and issues a token.
func (s *TeamService) Login(ctx context.Context, teamName, password string) (domain.Team, string, error) {
	team, err := s.teams.GetByName(ctx, strings.TrimSpace(teamName))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Team{}, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Team{}, "", err
	}
	if !auth.CheckPassword(team.PasswordHash, password) {
		return domain.Team{}, "", domain.ErrInvalidCredentials
	}
	if !team.IsActive {
		return domain.Team{}, "", fmt.Errorf("%w: team is inactive", domain.ErrForbidden)
	}

	now := s.now()
	updated, err := s.mutateTeam(ctx, team.ID, func(t *domain.Team) {
		t.LastLogin = &now
		t.UpdatedAt = now
	})
	if err != nil {
		s.logger.Warn("record last login failed", "team_id", team.ID, "error", err)
		team.LastLogin = &now
	} else {
		team = updated
	}
	token, err := s.tokens.Issue(team.ID, auth.RoleTeam)
	if err != nil {
		return domain.Team{}, "", err
	}
	return team.Public(), token, nil
}

// AdminLogin checks the configured administrator credentials.
func (s *TeamService) AdminLogin(_ context.Context, username, password string) (string, error) {
	if s.admin.Username == "" || s.admin.PasswordHash == "" {
		return "", fmt.Errorf("%w: admin login disabled", domain.ErrForbidden)
	}
	if username != s.admin.Username || !auth.CheckPassword(s.admin.PasswordHash, password) {
		return "", domain.ErrInvalidCredentials
	}
	return s.tokens.Issue(username, auth.RoleAdmin)
}

// Authenticate resolves a team token to an active team.
func (s *TeamService) Authenticate(ctx context.Context, token string) (domain.Team, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Team{}, err
	}
	if claims.Role != auth.RoleTeam {
		return domain.Team{}, fmt.Errorf("%w: team token required", domain.ErrForbidden)
	}
	team, err := s.teams.Get(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Team{}, fmt.Errorf("%w: team no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.Team{}, err
	}
	if !team.IsActive {
		return domain.Team{}, fmt.Errorf("%w: team is inactive", domain.ErrForbidden)
	}
	return team.Public(), nil
}

// AuthenticateAdmin accepts only admin tokens and returns the admin name.
func (s *TeamService) AuthenticateAdmin(_ context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.Role != auth.RoleAdmin {
		return "", fmt.Errorf("%w: admin token required", domain.ErrForbidden)
	}
	return claims.Subject, nil
}

func (s *TeamService) Profile(ctx context.Context, teamID string) (domain.Team, error) {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	return team.Public(), nil
}

// ListTeams returns active teams, newest registration first.
func (s *TeamService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	all, err := s.teams.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Team, 0, len(all))
	for _, t := range all {
		if t.IsActive {
			out = append(out, t.Public())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

// UpdateStatus applies an admin status/score change. Total is recomputed.
func (s *TeamService) UpdateStatus(ctx context.Context, teamID string, upd StatusUpdate) (domain.Team, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Team{}, fmt.Errorf("%w: competition status %q", domain.ErrInvalidInput, *upd.Status)
	}
	team, err := s.mutateTeam(ctx, teamID, func(t *domain.Team) {
		if upd.Status != nil {
			t.Status = *upd.Status
		}
		if upd.Scores != nil {
			t.Scores = upd.Scores.WithTotal()
		}
		t.UpdatedAt = s.now()
	})
	if err != nil {
		return domain.Team{}, err
	}
	s.logger.Info("team status updated", "team_id", teamID, "status", team.Status)
	return team.Public(), nil
}

// RecordRound2 stores a finished Round 2 total on the team.
func (s *TeamService) RecordRound2(ctx context.Context, teamID string, score float64) error {
	_, err := s.mutateTeam(ctx, teamID, func(t *domain.Team) {
		t.Scores.Round2 = score
		t.Scores = t.Scores.WithTotal()
		if t.Status == domain.StatusRegistered || t.Status == domain.StatusRound1Completed {
			t.Status = domain.StatusRound2Completed
		}
		t.UpdatedAt = s.now()
	})
	return err
}

// SubmitRound3 stores a Round 3 result on the team, replacing any earlier one.
func (s *TeamService) SubmitRound3(ctx context.Context, teamID string, result domain.Round3Result) (domain.Team, error) {
	if result.Score < 0 || result.TimeTakenSeconds < 0 {
		return domain.Team{}, fmt.Errorf("%w: negative score or time", domain.ErrInvalidInput)
	}
	now := s.now()
	result.SubmittedAt = now
	team, err := s.mutateTeam(ctx, teamID, func(t *domain.Team) {
		r := result
		t.Round3 = &r
		t.Scores.Round3 = result.Score
		t.Scores = t.Scores.WithTotal()
		t.UpdatedAt = now
	})
	if err != nil {
		return domain.Team{}, err
	}
	s.logger.Info("round 3 submitted", "team_id", teamID, "score", result.Score, "time_taken", result.TimeTakenSeconds)
	return team.Public(), nil
}

// mutateTeam re-reads the team and reapplies apply until the versioned
// update lands or the retry budget runs out.
func (s *TeamService) mutateTeam(ctx context.Context, teamID string, apply func(*domain.Team)) (domain.Team, error) {
	for attempt := 0; ; attempt++ {
		team, err := s.teams.Get(ctx, teamID)
		if err != nil {
			return domain.Team{}, err
		}
		apply(&team)
		saved, err := s.teams.Update(ctx, team)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= s.maxRetries {
			return domain.Team{}, err
		}
		s.logger.Warn("team write conflict, retrying", "team_id", teamID, "attempt", attempt+1)
		if err := ctx.Err(); err != nil {
			return domain.Team{}, err
		}
	}
}

// Round3Scores lists teams with a Round 3 result by score desc, time asc.
func (s *TeamService) Round3Scores(ctx context.Context) ([]domain.Round3Entry, error) {
	all, err := s.teams.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Round3Entry, 0, len(all))
	for _, t := range all {
		if t.Round3 == nil {
			continue
		}
		out = append(out, domain.Round3Entry{
			TeamID:            t.ID,
			TeamName:          t.TeamName,
			Score:             t.Round3.Score,
			TimeTakenSeconds:  t.Round3.TimeTakenSeconds,
			QuestionOrderName: t.Round3.QuestionOrderName,
			SubmittedAt:       t.Round3.SubmittedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].TimeTakenSeconds != out[j].TimeTakenSeconds {
			return out[i].TimeTakenSeconds < out[j].TimeTakenSeconds
		}
		return out[i].TeamName < out[j].TeamName
	})
	return out, nil
}

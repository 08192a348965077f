package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"hustle/internal/domain"
	"hustle/internal/engine"
)

// ProgressRepository stores one Round 2 record per team. Save must be atomic
// per team: it fails with domain.ErrConflict when p.Version is stale and
// returns the stored record with its new version otherwise.
type ProgressRepository interface {
	Get(ctx context.Context, teamID string) (domain.Progress, error)
	// Create inserts p unless a record for p.TeamID exists, in which case the
	// existing record is returned with created=false.
	Create(ctx context.Context, p domain.Progress) (stored domain.Progress, created bool, err error)
	Save(ctx context.Context, p domain.Progress) (domain.Progress, error)
	List(ctx context.Context) ([]domain.Progress, error)
}

// SubmissionLog is the append-only audit trail of answers, submits and autosaves.
type SubmissionLog interface {
	Append(ctx context.Context, s domain.Submission) error
	ListByTeam(ctx context.Context, teamID string) ([]domain.Submission, error)
}

// LeaderboardCache serves the public leaderboard (in-memory, Redis, etc).
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context) (domain.Leaderboard, error)
	Invalidate(ctx context.Context) error
}

// LeaderboardLoader computes the leaderboard from the backing store on cache miss.
type LeaderboardLoader interface {
	LoadLeaderboard(ctx context.Context) (domain.Leaderboard, error)
}

// TeamRecorder is told when a team finishes Round 2.
type TeamRecorder interface {
	RecordRound2(ctx context.Context, teamID string, score float64) error
}

// LeaderboardNotifier announces a scoring write to every instance. Each
// instance answers by calling RefreshFeed on its own RoundService.
type LeaderboardNotifier interface {
	NotifyLeaderboardChanged(ctx context.Context) error
}

// RoundService translates Round 2 requests into engine transitions and
// persistence calls. It keeps no authoritative state of its own.
type RoundService struct {
	engine      *engine.Engine
	progress    ProgressRepository
	submissions SubmissionLog
	leaderboard LeaderboardCache
	hub         *LeaderboardHub
	notifier    LeaderboardNotifier
	teams       TeamRecorder
	maxRetries  int
	logger      *slog.Logger
}

// RoundOption customises a RoundService.
type RoundOption func(*RoundService)

// WithHub publishes a fresh leaderboard to hub subscribers after scoring writes.
// The hub only reaches websocket clients connected to this process; pair it
// with WithNotifier when several instances serve the feed.
func WithHub(hub *LeaderboardHub) RoundOption {
	return func(s *RoundService) { s.hub = hub }
}

// WithNotifier routes feed refreshes through n so that subscribers on every
// instance see each scoring write.
func WithNotifier(n LeaderboardNotifier) RoundOption {
	return func(s *RoundService) { s.notifier = n }
}

// WithTeamRecorder records the Round 2 total on the team when a round completes.
func WithTeamRecorder(r TeamRecorder) RoundOption {
	return func(s *RoundService) { s.teams = r }
}

// WithMaxRetries bounds read-modify-write retries after a conflict.
func WithMaxRetries(n int) RoundOption {
	return func(s *RoundService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithLogger(l *slog.Logger) RoundOption {
	return func(s *RoundService) { s.logger = l }
}

func NewRoundService(e *engine.Engine, progress ProgressRepository, submissions SubmissionLog, leaderboard LeaderboardCache, opts ...RoundOption) *RoundService {
	s := &RoundService{
		engine:      e,
		progress:    progress,
		submissions: submissions,
		leaderboard: leaderboard,
		maxRetries:  3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the progression engine (and through it the catalog).
func (s *RoundService) Engine() *engine.Engine {
	return s.engine
}

// CreateProgress returns the team's record, creating it on first entry.
// Repeated calls return the same record.
func (s *RoundService) CreateProgress(ctx context.Context, teamID, teamName string) (domain.Progress, bool, error) {
	if teamID == "" {
		return domain.Progress{}, false, domain.ErrInvalidInput
	}
	existing, err := s.progress.Get(ctx, teamID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Progress{}, false, err
	}
	p, created, err := s.progress.Create(ctx, s.engine.Start(teamID, teamName))
	if err != nil {
		return domain.Progress{}, false, err
	}
	if created {
		s.logger.Info("round 2 progress created", "team_id", teamID, "progress_id", p.ID)
	}
	return p, created, nil
}

// GetProgress fetches the team's record.
func (s *RoundService) GetProgress(ctx context.Context, teamID string) (domain.Progress, error) {
	return s.progress.Get(ctx, teamID)
}

// SubmitAptitudeAnswer applies an aptitude answer under the per-team
// optimistic version check, retrying from a fresh read on conflict.
func (s *RoundService) SubmitAptitudeAnswer(ctx context.Context, teamID string, slot domain.Slot, answer int) (domain.AptitudeOutcome, error) {
	var res engine.AptitudeResult
	saved, err := s.mutate(ctx, teamID, func(p domain.Progress) (domain.Progress, error) {
		var err error
		res, err = s.engine.SubmitAptitude(p, slot, answer)
		return res.Progress, err
	})
	if err != nil {
		return domain.AptitudeOutcome{}, err
	}
	s.appendCommitted(ctx, res.Submission)
	s.afterScoring(ctx, saved, false)
	return res.Outcome, nil
}

// SubmitCodingSolution records a coding solution. Autosaves only append to the
// submission log and never write the progress record.
func (s *RoundService) SubmitCodingSolution(ctx context.Context, teamID string, kind domain.SlotKind, code string, timeTakenSeconds int, autosave bool) (domain.CodingOutcome, error) {
	if autosave {
		p, err := s.progress.Get(ctx, teamID)
		if err != nil {
			return domain.CodingOutcome{}, err
		}
		res, err := s.engine.SubmitCoding(p, kind, code, timeTakenSeconds, true)
		if err != nil {
			return domain.CodingOutcome{}, err
		}
		if err := s.submissions.Append(ctx, res.Submission); err != nil {
			return domain.CodingOutcome{}, err
		}
		return res.Outcome, nil
	}

	var res engine.CodingResult
	var wasComplete bool
	saved, err := s.mutate(ctx, teamID, func(p domain.Progress) (domain.Progress, error) {
		var err error
		wasComplete = p.IsComplete
		res, err = s.engine.SubmitCoding(p, kind, code, timeTakenSeconds, false)
		return res.Progress, err
	})
	if err != nil {
		return domain.CodingOutcome{}, err
	}
	s.appendCommitted(ctx, res.Submission)
	s.afterScoring(ctx, saved, saved.IsComplete && !wasComplete)
	return res.Outcome, nil
}

// Submissions lists the team's audit trail, oldest first.
func (s *RoundService) Submissions(ctx context.Context, teamID string) ([]domain.Submission, error) {
	return s.submissions.ListByTeam(ctx, teamID)
}

// Leaderboard returns completed teams ranked by score, then elapsed time.
func (s *RoundService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	return s.leaderboard.GetLeaderboard(ctx)
}

// AdminOverview lists every record, ranked like the leaderboard, with stats.
func (s *RoundService) AdminOverview(ctx context.Context) (domain.AdminOverview, error) {
	records, err := s.progress.List(ctx)
	if err != nil {
		return domain.AdminOverview{}, err
	}
	sortByRank(records)

	stats := domain.OverviewStats{TotalTeams: len(records)}
	var sum float64
	for _, p := range records {
		if p.IsComplete {
			stats.CompletedTeams++
		}
		sum += p.TotalScore
	}
	if len(records) > 0 {
		stats.AverageScore = sum / float64(len(records))
	}
	return domain.AdminOverview{Teams: records, Stats: stats}, nil
}

// Subscribe streams leaderboard updates. The caller must invoke cancel.
func (s *RoundService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	if s.hub == nil {
		return nil, nil, errors.New("leaderboard feed not configured")
	}
	initial, err := s.leaderboard.GetLeaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(initial)
	return ch, cancel, nil
}

// mutate runs a read-modify-write against the progress store.
func (s *RoundService) mutate(ctx context.Context, teamID string, apply func(domain.Progress) (domain.Progress, error)) (domain.Progress, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.progress.Get(ctx, teamID)
		if err != nil {
			return domain.Progress{}, err
		}
		next, err := apply(current)
		if err != nil {
			return domain.Progress{}, err
		}
		saved, err := s.progress.Save(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= s.maxRetries {
			return domain.Progress{}, err
		}
		s.logger.Warn("progress write conflict, retrying", "team_id", teamID, "attempt", attempt+1)
		if err := ctx.Err(); err != nil {
			return domain.Progress{}, err
		}
	}
}

// appendCommitted logs a submission whose transition is already committed;
// a log failure cannot be surfaced without inviting a double-apply retry.
func (s *RoundService) appendCommitted(ctx context.Context, sub domain.Submission) {
	if err := s.submissions.Append(ctx, sub); err != nil {
		s.logger.Error("append submission failed", "team_id", sub.TeamID, "slot", sub.Slot.String(), "error", err)
	}
}

func (s *RoundService) afterScoring(ctx context.Context, saved domain.Progress, justCompleted bool) {
	if err := s.leaderboard.Invalidate(ctx); err != nil {
		s.logger.Error("invalidate leaderboard failed", "error", err)
	}
	if justCompleted {
		s.logger.Info("round 2 completed", "team_id", saved.TeamID, "total_score", saved.TotalScore,
			"elapsed_seconds", saved.TotalTimeElapsedSeconds)
		if s.teams != nil {
			if err := s.teams.RecordRound2(ctx, saved.TeamID, saved.TotalScore); err != nil {
				s.logger.Error("record round 2 on team failed", "team_id", saved.TeamID, "error", err)
			}
		}
	}
	if s.notifier != nil {
		err := s.notifier.NotifyLeaderboardChanged(ctx)
		if err == nil {
			return
		}
		s.logger.Error("notify leaderboard change failed", "error", err)
	}
	s.RefreshFeed(ctx)
}

// RefreshFeed pushes the current leaderboard to this instance's subscribers.
func (s *RoundService) RefreshFeed(ctx context.Context) {
	if s.hub == nil || s.hub.Subscribers() == 0 {
		return
	}
	lb, err := s.leaderboard.GetLeaderboard(ctx)
	if err != nil {
		s.logger.Error("refresh leaderboard failed", "error", err)
		return
	}
	s.hub.Publish(lb)
}

// ProgressLeaderboard computes the leaderboard straight from a ProgressRepository.
type ProgressLeaderboard struct {
	progress ProgressRepository
	now      func() time.Time
}

func NewProgressLeaderboard(progress ProgressRepository) *ProgressLeaderboard {
	return &ProgressLeaderboard{progress: progress, now: time.Now}
}

func (l *ProgressLeaderboard) LoadLeaderboard(ctx context.Context) (domain.Leaderboard, error) {
	records, err := l.progress.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(records, l.now()), nil
}

// BuildLeaderboard ranks completed records by score desc, elapsed time asc,
// then team name.
func BuildLeaderboard(records []domain.Progress, now time.Time) domain.Leaderboard {
	done := make([]domain.Progress, 0, len(records))
	for _, p := range records {
		if p.IsComplete {
			done = append(done, p)
		}
	}
	sortByRank(done)

	entries := make([]domain.LeaderboardEntry, 0, len(done))
	for i, p := range done {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:                    i + 1,
			TeamID:                  p.TeamID,
			TeamName:                p.TeamName,
			TotalScore:              p.TotalScore,
			TotalTimeElapsedSeconds: p.TotalTimeElapsedSeconds,
			EndTime:                 p.EndTime,
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: now}
}

func sortByRank(records []domain.Progress) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.TotalTimeElapsedSeconds != b.TotalTimeElapsedSeconds {
			return a.TotalTimeElapsedSeconds < b.TotalTimeElapsedSeconds
		}
		return a.TeamName < b.TeamName
	})
}

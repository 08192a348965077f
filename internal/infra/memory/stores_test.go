package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hustle/internal/domain"
)

func TestProgressStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	created, ok, err := store.Create(ctx, domain.NewProgress("p1", "team-1", "T", now))
	if err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	again, ok, err := store.Create(ctx, domain.NewProgress("p2", "team-1", "T", now))
	if err != nil || ok || again.ID != "p1" {
		t.Fatalf("second create should return existing record, got %+v ok=%v err=%v", again, ok, err)
	}

	next := created.Clone()
	next.Scores[domain.SlotAptitude1] = 10
	saved, err := store.Save(ctx, next)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}

	// created still carries version 1
	if _, err := store.Save(ctx, created); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale save, got %v", err)
	}

	got, err := store.Get(ctx, "team-1")
	if err != nil || got.Scores[domain.SlotAptitude1] != 10 {
		t.Fatalf("get: %+v %v", got, err)
	}
	got.Scores[domain.SlotAptitude1] = 99
	again, _ = store.Get(ctx, "team-1")
	if again.Scores[domain.SlotAptitude1] != 10 {
		t.Fatalf("store leaked internal map")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProgressStoreConcurrentSavesOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	base, _, _ := store.Create(ctx, domain.NewProgress("p1", "team-1", "T", time.Now()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Save(ctx, base.Clone()); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning save, got %d", wins)
	}
}

func TestSubmissionLogOrder(t *testing.T) {
	ctx := context.Background()
	log := NewSubmissionLog()
	for i := 1; i <= 3; i++ {
		if err := log.Append(ctx, domain.Submission{ID: string(rune('a' + i)), TeamID: "team-1", AttemptNumber: i}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = log.Append(ctx, domain.Submission{ID: "other", TeamID: "team-2"})

	got, _ := log.ListByTeam(ctx, "team-1")
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, s := range got {
		if s.AttemptNumber != i+1 {
			t.Fatalf("entries out of order: %+v", got)
		}
	}
	if empty, _ := log.ListByTeam(ctx, "nobody"); len(empty) != 0 {
		t.Fatalf("expected no entries, got %v", empty)
	}
}

func TestTeamStoreUniqueNames(t *testing.T) {
	ctx := context.Background()
	store := NewTeamStore()
	if err := store.Create(ctx, domain.Team{ID: "t1", TeamName: "Null Pointers"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.Team{ID: "t2", TeamName: "null pointers "}); !errors.Is(err, domain.ErrTeamExists) {
		t.Fatalf("expected team exists, got %v", err)
	}
	got, err := store.GetByName(ctx, "NULL POINTERS")
	if err != nil || got.ID != "t1" {
		t.Fatalf("get by name: %+v %v", got, err)
	}
	if _, err := store.Update(ctx, domain.Team{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTeamStoreVersionedUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewTeamStore()
	_ = store.Create(ctx, domain.Team{ID: "t1", TeamName: "Null Pointers"})

	stale, _ := store.Get(ctx, "t1")
	if stale.Version != 1 {
		t.Fatalf("expected version 1 after create, got %d", stale.Version)
	}
	next := stale
	next.Scores.Round2 = 75
	saved, err := store.Update(ctx, next)
	if err != nil || saved.Version != 2 {
		t.Fatalf("update: %+v %v", saved, err)
	}

	stale.LastLogin = &time.Time{}
	if _, err := store.Update(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale update, got %v", err)
	}
	got, _ := store.Get(ctx, "t1")
	if got.Scores.Round2 != 75 || got.LastLogin != nil {
		t.Fatalf("stale update overwrote the team: %+v", got)
	}
}

func TestLeaderboardCacheLoadsOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewLeaderboardCache(loader, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cache.GetLeaderboard(ctx); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected one load, got %d", loader.calls)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetLeaderboard(ctx); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.calls)
	}
}

func TestLeaderboardCacheExpires(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewLeaderboardCache(loader, time.Second)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetLeaderboard(ctx)
	now = now.Add(2 * time.Second)
	_, _ = cache.GetLeaderboard(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, got %d", loader.calls)
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadLeaderboard(context.Context) (domain.Leaderboard, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return domain.Leaderboard{Entries: []domain.LeaderboardEntry{{Rank: 1, TeamName: "T", TotalScore: float64(l.calls)}}}, nil
}

package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"hustle/internal/catalog"
	"hustle/internal/domain"
)

const (
	debugFix    = "for (int i = 0; i < 5; i++) { sum += arr[i]; }"
	traceAnswer = "mystery(4) = mystery(3) + mystery(2) = 2 + 1 = 3, so it prints Result: 3"
	programFib  = "int fib(int n) { return n < 2 ? n : fib(n-1) + fib(n-2); }"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return NewWithClock(c, DefaultPolicy(), clock.now), clock
}

func checkInvariants(t *testing.T, p domain.Progress) {
	t.Helper()
	if p.TotalScore != p.SumScores() {
		t.Fatalf("total score %v != sum %v", p.TotalScore, p.SumScores())
	}
	if p.IsComplete != p.AllCompleted() {
		t.Fatalf("isComplete=%v but allCompleted=%v", p.IsComplete, p.AllCompleted())
	}
	for _, slot := range domain.AptitudeSlots {
		if p.AptitudeAttempts[slot] > 2 {
			t.Fatalf("attempts for %s exceed limit: %d", slot, p.AptitudeAttempts[slot])
		}
	}
}

func checkMonotonic(t *testing.T, before, after domain.Progress) {
	t.Helper()
	for _, slot := range domain.AllSlots {
		if before.Completed[slot] && !after.Completed[slot] {
			t.Fatalf("slot %s reverted from completed", slot)
		}
	}
}

func TestStartUnlocksOnlyFirstSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	p := e.Start("team-1", "Null Pointers")

	if p.ID == "" || p.TeamID != "team-1" || p.TeamName != "Null Pointers" {
		t.Fatalf("unexpected identity fields: %+v", p)
	}
	for _, slot := range domain.AllSlots {
		if want := slot == domain.SlotAptitude1; p.Unlocked[slot] != want {
			t.Fatalf("slot %s unlocked=%v want %v", slot, p.Unlocked[slot], want)
		}
		if p.Completed[slot] {
			t.Fatalf("slot %s should start incomplete", slot)
		}
	}
	if p.StartTime != nil || p.EndTime != nil || p.IsComplete {
		t.Fatalf("fresh record must have no timing or completion")
	}
	checkInvariants(t, p)
}

func TestAptitudeScoring(t *testing.T) {
	cases := []struct {
		name          string
		answers       []int
		wantScore     float64
		wantCorrect   bool
		wantRemaining int
	}{
		{"correct first try", []int{1}, 10, true, 1},
		{"correct second try", []int{0, 1}, 5, true, 0},
		{"wrong twice", []int{0, 2}, 2.5, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			p := e.Start("team-1", "T")
			var res AptitudeResult
			var err error
			for _, a := range tc.answers {
				before := p
				res, err = e.SubmitAptitude(p, domain.SlotAptitude1, a)
				if err != nil {
					t.Fatalf("submit %d: %v", a, err)
				}
				checkMonotonic(t, before, res.Progress)
				checkInvariants(t, res.Progress)
				p = res.Progress
			}
			if res.Outcome.Score != tc.wantScore || res.Outcome.Correct != tc.wantCorrect {
				t.Fatalf("got score=%v correct=%v", res.Outcome.Score, res.Outcome.Correct)
			}
			if res.Outcome.AttemptsRemaining != tc.wantRemaining {
				t.Fatalf("attempts remaining %d want %d", res.Outcome.AttemptsRemaining, tc.wantRemaining)
			}
			if !p.Completed[domain.SlotAptitude1] || p.Scores[domain.SlotAptitude1] != tc.wantScore {
				t.Fatalf("slot 1 not settled: %+v", p)
			}
			if !reflect.DeepEqual(res.Outcome.NewlyUnlocked, []domain.Slot{domain.SlotDebug}) {
				t.Fatalf("expected exactly q4 unlocked, got %v", res.Outcome.NewlyUnlocked)
			}
			for _, slot := range []domain.Slot{domain.SlotAptitude2, domain.SlotAptitude3, domain.SlotTrace, domain.SlotProgram} {
				if p.Unlocked[slot] {
					t.Fatalf("slot %s must remain locked", slot)
				}
			}
			if res.Submission.AttemptNumber != len(tc.answers) || res.Submission.Kind != domain.KindAptitude {
				t.Fatalf("unexpected submission %+v", res.Submission)
			}
		})
	}
}

func TestWrongFirstAttemptAllowsRetry(t *testing.T) {
	e, _ := newTestEngine(t)
	p := e.Start("team-1", "T")

	res, err := e.SubmitAptitude(p, domain.SlotAptitude1, 3)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome.Correct || res.Outcome.Score != 0 || res.Outcome.AttemptsRemaining != 1 {
		t.Fatalf("unexpected outcome %+v", res.Outcome)
	}
	if res.Progress.Completed[domain.SlotAptitude1] || res.Progress.Unlocked[domain.SlotDebug] {
		t.Fatalf("wrong first attempt must not complete or unlock")
	}
	if len(res.Outcome.NewlyUnlocked) != 0 {
		t.Fatalf("expected no unlocks, got %v", res.Outcome.NewlyUnlocked)
	}
	if p.AptitudeAttempts[domain.SlotAptitude1] != 0 {
		t.Fatalf("input record must not be mutated")
	}
}

func TestStartTimeSetOnFirstAnswer(t *testing.T) {
	e, clock := newTestEngine(t)
	p := e.Start("team-1", "T")
	clock.advance(time.Minute)
	want := clock.now()

	res, err := e.SubmitAptitude(p, domain.SlotAptitude1, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Progress.StartTime == nil || !res.Progress.StartTime.Equal(want) {
		t.Fatalf("start time %v want %v", res.Progress.StartTime, want)
	}

	clock.advance(time.Minute)
	res2, err := e.SubmitAptitude(res.Progress, domain.SlotAptitude1, 1)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res2.Progress.StartTime.Equal(want) {
		t.Fatalf("start time must not move on retry")
	}
}

func TestLockedSlotsRejectedWithoutMutation(t *testing.T) {
	e, _ := newTestEngine(t)
	p := e.Start("team-1", "T")
	snapshot := p.Clone()

	if _, err := e.SubmitAptitude(p, domain.SlotAptitude2, 1); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	for _, kind := range domain.CodingKinds {
		if _, err := e.SubmitCoding(p, kind, debugFix, 10, false); !errors.Is(err, domain.ErrLocked) {
			t.Fatalf("%s: expected locked, got %v", kind, err)
		}
		if _, err := e.SubmitCoding(p, kind, debugFix, 10, true); !errors.Is(err, domain.ErrLocked) {
			t.Fatalf("%s autosave: expected locked, got %v", kind, err)
		}
	}
	if !reflect.DeepEqual(p, snapshot) {
		t.Fatalf("record mutated by rejected submissions")
	}
}

func TestThirdAttemptRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	p := e.Start("team-1", "T")
	for _, a := range []int{0, 0} {
		res, err := e.SubmitAptitude(p, domain.SlotAptitude1, a)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		p = res.Progress
	}
	snapshot := p.Clone()

	if _, err := e.SubmitAptitude(p, domain.SlotAptitude1, 1); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected attempts exhausted, got %v", err)
	}
	if !reflect.DeepEqual(p, snapshot) {
		t.Fatalf("record mutated by rejected attempt")
	}
}

func TestResubmitCompletedAptitude(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.SubmitAptitude(e.Start("team-1", "T"), domain.SlotAptitude1, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.SubmitAptitude(res.Progress, domain.SlotAptitude1, 1); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestInvalidInputs(t *testing.T) {
	e, _ := newTestEngine(t)
	p := e.Start("team-1", "T")

	if _, err := e.SubmitAptitude(p, domain.SlotDebug, 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("coding slot as aptitude: %v", err)
	}
	if _, err := e.SubmitAptitude(p, domain.Slot(9), 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown slot: %v", err)
	}
	if _, err := e.SubmitAptitude(p, domain.SlotAptitude1, 7); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("answer out of range: %v", err)
	}
	if _, err := e.SubmitCoding(p, "essay", "text", 1, false); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown kind: %v", err)
	}

	unlocked := completeAptitude(t, e, p, domain.SlotAptitude1)
	if _, err := e.SubmitCoding(unlocked, domain.KindDebug, debugFix, -1, false); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("negative time: %v", err)
	}
	if _, err := e.SubmitCoding(unlocked, domain.KindDebug, "   ", 1, false); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty code: %v", err)
	}
}

func TestAutosaveNeverScores(t *testing.T) {
	e, _ := newTestEngine(t)
	p := completeAptitude(t, e, e.Start("team-1", "T"), domain.SlotAptitude1)
	snapshot := p.Clone()

	res, err := e.SubmitCoding(p, domain.KindDebug, debugFix, 42, true)
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if res.Changed {
		t.Fatalf("autosave must not request a progress write")
	}
	if !reflect.DeepEqual(res.Progress, snapshot) {
		t.Fatalf("autosave changed the record")
	}
	sub := res.Submission
	if !sub.Autosave || sub.Score != 0 || sub.Correct || sub.Slot != domain.SlotDebug || sub.Answer != debugFix {
		t.Fatalf("unexpected autosave submission %+v", sub)
	}
	if !res.Outcome.Autosave || res.Outcome.Score != 0 {
		t.Fatalf("unexpected autosave outcome %+v", res.Outcome)
	}
}

func TestCodingTimeIsClamped(t *testing.T) {
	e, _ := newTestEngine(t)
	p := completeAptitude(t, e, e.Start("team-1", "T"), domain.SlotAptitude1)

	res, err := e.SubmitCoding(p, domain.KindDebug, debugFix, 4000, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Submission.TimeTakenSeconds != 300 {
		t.Fatalf("time taken %d want 300", res.Submission.TimeTakenSeconds)
	}

	auto, err := e.SubmitCoding(p, domain.KindDebug, debugFix, 301, true)
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if auto.Submission.TimeTakenSeconds != 300 {
		t.Fatalf("autosave time %d want 300", auto.Submission.TimeTakenSeconds)
	}
}

func TestFailedCodingStillCompletesAndUnlocks(t *testing.T) {
	e, _ := newTestEngine(t)
	p := completeAptitude(t, e, e.Start("team-1", "T"), domain.SlotAptitude1)

	res, err := e.SubmitCoding(p, domain.KindDebug, "for (int i = 0; i <= 5; i++)", 60, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome.Correct || res.Outcome.Score != 0 {
		t.Fatalf("expected failing grade, got %+v", res.Outcome)
	}
	if !res.Progress.Completed[domain.SlotDebug] || !res.Progress.Unlocked[domain.SlotAptitude2] {
		t.Fatalf("failed submit must still complete q4 and unlock q2")
	}
	if _, err := e.SubmitCoding(res.Progress, domain.KindDebug, debugFix, 60, false); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed on resubmit, got %v", err)
	}
}

func TestFullRoundScenario(t *testing.T) {
	e, clock := newTestEngine(t)
	p := e.Start("team-1", "Null Pointers")
	var awarded float64

	type step struct {
		aptitude domain.Slot
		kind     domain.SlotKind
		code     string
		unlocks  domain.Slot
	}
	steps := []step{
		{domain.SlotAptitude1, domain.KindDebug, debugFix, domain.SlotAptitude2},
		{domain.SlotAptitude2, domain.KindTrace, traceAnswer, domain.SlotAptitude3},
		{domain.SlotAptitude3, domain.KindProgram, programFib, 0},
	}

	var start time.Time
	for i, st := range steps {
		before := p
		apt, err := e.SubmitAptitude(p, st.aptitude, 1)
		if err != nil {
			t.Fatalf("aptitude %s: %v", st.aptitude, err)
		}
		if apt.Outcome.Score != 10 {
			t.Fatalf("aptitude %s score %v", st.aptitude, apt.Outcome.Score)
		}
		if i == 0 {
			start = *apt.Progress.StartTime
		}
		awarded += apt.Outcome.Score
		checkMonotonic(t, before, apt.Progress)
		checkInvariants(t, apt.Progress)
		p = apt.Progress

		codingSlot, _ := st.kind.CodingSlot()
		if !p.Unlocked[codingSlot] {
			t.Fatalf("%s should be unlocked after %s", codingSlot, st.aptitude)
		}

		clock.advance(2 * time.Minute)
		before = p
		code, err := e.SubmitCoding(p, st.kind, st.code, 120, false)
		if err != nil {
			t.Fatalf("coding %s: %v", st.kind, err)
		}
		if !code.Outcome.Correct || code.Outcome.Score != 15 {
			t.Fatalf("coding %s outcome %+v", st.kind, code.Outcome)
		}
		awarded += code.Outcome.Score
		checkMonotonic(t, before, code.Progress)
		checkInvariants(t, code.Progress)
		p = code.Progress

		if st.unlocks != 0 && !p.Unlocked[st.unlocks] {
			t.Fatalf("%s should unlock %s", st.kind, st.unlocks)
		}
		if i < len(steps)-1 && p.IsComplete {
			t.Fatalf("round completed early after %s", st.kind)
		}
	}

	if !p.IsComplete || p.EndTime == nil {
		t.Fatalf("round should be complete: %+v", p)
	}
	if p.TotalScore != awarded || awarded != 75 {
		t.Fatalf("total %v awarded %v", p.TotalScore, awarded)
	}
	if want := int64(p.EndTime.Sub(start) / time.Second); p.TotalTimeElapsedSeconds != want || want != 360 {
		t.Fatalf("elapsed %d want %d", p.TotalTimeElapsedSeconds, want)
	}
}

func TestCustomPolicy(t *testing.T) {
	c, _ := catalog.Default()
	policy := Policy{
		AptitudeFirstTry:    10,
		AptitudeSecondTry:   10,
		AptitudeConsolation: 0,
		CodingSuccess:       10,
		MaxAptitudeAttempts: 2,
	}
	e := NewWithClock(c, policy, time.Now)
	p := e.Start("team-1", "T")
	res, err := e.SubmitAptitude(p, domain.SlotAptitude1, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err = e.SubmitAptitude(res.Progress, domain.SlotAptitude1, 1)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Outcome.Score != 10 {
		t.Fatalf("flat policy should award 10, got %v", res.Outcome.Score)
	}

	long := strings.Repeat("z", 10000)
	p = res.Progress
	code, err := e.SubmitCoding(p, domain.KindDebug, long, 100000, false)
	if err != nil {
		t.Fatalf("coding: %v", err)
	}
	if code.Submission.TimeTakenSeconds != 100000 {
		t.Fatalf("zero cap must leave time untouched, got %d", code.Submission.TimeTakenSeconds)
	}
}

func completeAptitude(t *testing.T, e *Engine, p domain.Progress, slot domain.Slot) domain.Progress {
	t.Helper()
	q, err := e.Catalog().Aptitude(slot)
	if err != nil {
		t.Fatalf("aptitude %s: %v", slot, err)
	}
	res, err := e.SubmitAptitude(p, slot, q.Correct)
	if err != nil {
		t.Fatalf("complete %s: %v", slot, err)
	}
	return res.Progress
}

// Package engine holds the Round 2 progression rules. Every operation takes
// the current record and returns a new one; callers own persistence.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hustle/internal/catalog"
	"hustle/internal/domain"
)

// Policy holds the scoring constants.
type Policy struct {
	AptitudeFirstTry    float64
	AptitudeSecondTry   float64
	AptitudeConsolation float64
	CodingSuccess       float64
	CodingFailure       float64
	MaxAptitudeAttempts int
	CodingTimeCap       time.Duration
}

// DefaultPolicy is 10/5/2.5 for aptitude, 15/0 for coding, two attempts, five minutes.
func DefaultPolicy() Policy {
	return Policy{
		AptitudeFirstTry:    10,
		AptitudeSecondTry:   5,
		AptitudeConsolation: 2.5,
		CodingSuccess:       15,
		CodingFailure:       0,
		MaxAptitudeAttempts: 2,
		CodingTimeCap:       300 * time.Second,
	}
}

// Engine applies answers and submissions to progress records.
type Engine struct {
	catalog *catalog.Catalog
	policy  Policy
	now     func() time.Time
	newID   func() string
}

func New(c *catalog.Catalog, policy Policy) *Engine {
	return NewWithClock(c, policy, time.Now)
}

// NewWithClock allows deterministic timestamps in tests.
func NewWithClock(c *catalog.Catalog, policy Policy, now func() time.Time) *Engine {
	if policy.MaxAptitudeAttempts <= 0 {
		policy.MaxAptitudeAttempts = 2
	}
	return &Engine{catalog: c, policy: policy, now: now, newID: uuid.NewString}
}

// Catalog exposes the question set the engine grades against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Policy returns the active scoring constants.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Start builds the initial record for a team entering Round 2.
func (e *Engine) Start(teamID, teamName string) domain.Progress {
	return domain.NewProgress(e.newID(), teamID, teamName, e.now())
}

// AptitudeResult is the outcome of SubmitAptitude.
type AptitudeResult struct {
	Progress   domain.Progress
	Outcome    domain.AptitudeOutcome
	Submission domain.Submission
}

// SubmitAptitude grades an answer (an option index) for an aptitude slot.
//
// The first attempt may be retried once when wrong. A correct answer completes
// the slot with full or half credit; a second wrong answer completes it with
// the consolation score. Either way the paired coding slot unlocks.
func (e *Engine) SubmitAptitude(p domain.Progress, slot domain.Slot, answer int) (AptitudeResult, error) {
	if !slot.IsAptitude() {
		return AptitudeResult{}, fmt.Errorf("%w: %d is not an aptitude slot", domain.ErrInvalidInput, int(slot))
	}
	q, err := e.catalog.Aptitude(slot)
	if err != nil {
		return AptitudeResult{}, err
	}
	if !q.ValidAnswer(answer) {
		return AptitudeResult{}, fmt.Errorf("%w: answer %d out of range", domain.ErrInvalidInput, answer)
	}
	if !p.Unlocked[slot] {
		return AptitudeResult{}, domain.ErrLocked
	}
	if p.AptitudeAttempts[slot] >= e.policy.MaxAptitudeAttempts {
		return AptitudeResult{}, domain.ErrAttemptsExhausted
	}
	if p.Completed[slot] {
		return AptitudeResult{}, domain.ErrAlreadyCompleted
	}

	now := e.now()
	next := p.Clone()
	if slot == domain.SlotAptitude1 && next.StartTime == nil {
		next.StartTime = &now
	}

	next.AptitudeAttempts[slot]++
	attempt := next.AptitudeAttempts[slot]
	correct := q.IsCorrect(answer)

	var score float64
	done := false
	switch {
	case correct && attempt == 1:
		score, done = e.policy.AptitudeFirstTry, true
	case correct:
		score, done = e.policy.AptitudeSecondTry, true
	case attempt >= e.policy.MaxAptitudeAttempts:
		score, done = e.policy.AptitudeConsolation, true
	}

	var unlocked []domain.Slot
	if done {
		next.Scores[slot] = score
		next.Completed[slot] = true
		unlocked = unlockAfter(&next, slot)
	}
	e.settle(&next, now)

	sub := domain.Submission{
		ID:            e.newID(),
		TeamID:        next.TeamID,
		ProgressID:    next.ID,
		Slot:          slot,
		Kind:          domain.KindAptitude,
		Step:          slot.Step(),
		Prompt:        q.Prompt,
		Answer:        strconv.Itoa(answer),
		AttemptNumber: attempt,
		Correct:       correct,
		Score:         score,
		SubmittedAt:   now,
	}

	return AptitudeResult{
		Progress: next,
		Outcome: domain.AptitudeOutcome{
			Slot:              slot,
			Correct:           correct,
			Score:             score,
			AttemptsRemaining: e.policy.MaxAptitudeAttempts - attempt,
			NewlyUnlocked:     unlocked,
			Unlocked:          next.Clone().Unlocked,
			TotalScore:        next.TotalScore,
		},
		Submission: sub,
	}, nil
}

// CodingResult is the outcome of SubmitCoding. Changed is false for autosaves,
// which must not be written back to the progress store.
type CodingResult struct {
	Progress   domain.Progress
	Outcome    domain.CodingOutcome
	Submission domain.Submission
	Changed    bool
}

// SubmitCoding records a coding solution. Autosaves only produce a submission;
// a final submit grades the code, completes the slot and unlocks the next
// aptitude slot, ending the round after the program challenge.
func (e *Engine) SubmitCoding(p domain.Progress, kind domain.SlotKind, code string, timeTakenSeconds int, autosave bool) (CodingResult, error) {
	slot, ok := kind.CodingSlot()
	if !ok {
		return CodingResult{}, fmt.Errorf("%w: challenge type %q", domain.ErrInvalidInput, kind)
	}
	ch, err := e.catalog.Challenge(kind)
	if err != nil {
		return CodingResult{}, err
	}
	if timeTakenSeconds < 0 {
		return CodingResult{}, fmt.Errorf("%w: negative time taken", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(code) == "" {
		return CodingResult{}, fmt.Errorf("%w: empty solution", domain.ErrInvalidInput)
	}
	if !p.Unlocked[slot] {
		return CodingResult{}, domain.ErrLocked
	}

	now := e.now()
	sub := domain.Submission{
		ID:               e.newID(),
		TeamID:           p.TeamID,
		ProgressID:       p.ID,
		Slot:             slot,
		Kind:             kind,
		Step:             slot.Step(),
		Prompt:           ch.Prompt,
		Answer:           code,
		TimeTakenSeconds: e.clampTime(timeTakenSeconds),
		AttemptNumber:    1,
		Autosave:         autosave,
		SubmittedAt:      now,
	}

	if autosave {
		return CodingResult{
			Progress: p,
			Outcome: domain.CodingOutcome{
				Slot:       slot,
				Autosave:   true,
				IsComplete: p.IsComplete,
				TotalScore: p.TotalScore,
			},
			Submission: sub,
		}, nil
	}

	if p.Completed[slot] {
		return CodingResult{}, domain.ErrAlreadyCompleted
	}

	correct := ch.Rubric.Grade(code)
	score := e.policy.CodingFailure
	if correct {
		score = e.policy.CodingSuccess
	}

	next := p.Clone()
	next.Scores[slot] = score
	next.Completed[slot] = true
	unlocked := unlockAfter(&next, slot)
	e.settle(&next, now)

	sub.Correct = correct
	sub.Score = score

	return CodingResult{
		Progress: next,
		Outcome: domain.CodingOutcome{
			Slot:          slot,
			Correct:       correct,
			Score:         score,
			NewlyUnlocked: unlocked,
			IsComplete:    next.IsComplete,
			TotalScore:    next.TotalScore,
		},
		Submission: sub,
		Changed:    true,
	}, nil
}

func (e *Engine) clampTime(seconds int) int {
	limit := int(e.policy.CodingTimeCap / time.Second)
	if limit > 0 && seconds > limit {
		return limit
	}
	return seconds
}

// settle recomputes derived fields after a mutation.
func (e *Engine) settle(p *domain.Progress, now time.Time) {
	p.TotalScore = p.SumScores()
	p.UpdatedAt = now
	if p.IsComplete || !p.AllCompleted() {
		return
	}
	p.IsComplete = true
	p.EndTime = &now
	start := p.CreatedAt
	if p.StartTime != nil {
		start = *p.StartTime
	}
	p.TotalTimeElapsedSeconds = int64(now.Sub(start) / time.Second)
}

func unlockAfter(p *domain.Progress, slot domain.Slot) []domain.Slot {
	next, ok := slot.Next()
	if !ok || p.Unlocked[next] {
		return nil
	}
	p.Unlocked[next] = true
	return []domain.Slot{next}
}

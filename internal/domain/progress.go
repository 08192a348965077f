package domain

import "time"

// Progress is a team's Round 2 progression record. It is only ever mutated
// through the engine; stores persist whole documents guarded by Version.
type Progress struct {
	ID                      string           `json:"id"`
	TeamID                  string           `json:"teamId"`
	TeamName                string           `json:"teamName"`
	Version                 int64            `json:"version"`
	StartTime               *time.Time       `json:"startTime"`
	EndTime                 *time.Time       `json:"endTime"`
	TotalTimeElapsedSeconds int64            `json:"totalTimeElapsedSeconds"`
	AptitudeAttempts        map[Slot]int     `json:"aptitudeAttempts"`
	Scores                  map[Slot]float64 `json:"scores"`
	Unlocked                map[Slot]bool    `json:"unlockedQuestions"`
	Completed               map[Slot]bool    `json:"completedQuestions"`
	TotalScore              float64          `json:"totalScore"`
	IsComplete              bool             `json:"isComplete"`
	CreatedAt               time.Time        `json:"createdAt"`
	UpdatedAt               time.Time        `json:"updatedAt"`
}

// NewProgress builds a fresh record with only the first aptitude slot unlocked.
func NewProgress(id, teamID, teamName string, now time.Time) Progress {
	p := Progress{
		ID:               id,
		TeamID:           teamID,
		TeamName:         teamName,
		AptitudeAttempts: make(map[Slot]int, len(AptitudeSlots)),
		Scores:           make(map[Slot]float64, SlotCount),
		Unlocked:         make(map[Slot]bool, SlotCount),
		Completed:        make(map[Slot]bool, SlotCount),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, slot := range AllSlots {
		p.Scores[slot] = 0
		p.Unlocked[slot] = slot == SlotAptitude1
		p.Completed[slot] = false
	}
	for _, slot := range AptitudeSlots {
		p.AptitudeAttempts[slot] = 0
	}
	return p
}

// Clone returns a deep copy so callers can derive a new record without
// touching the one they loaded.
func (p Progress) Clone() Progress {
	out := p
	out.AptitudeAttempts = make(map[Slot]int, len(p.AptitudeAttempts))
	for k, v := range p.AptitudeAttempts {
		out.AptitudeAttempts[k] = v
	}
	out.Scores = make(map[Slot]float64, len(p.Scores))
	for k, v := range p.Scores {
		out.Scores[k] = v
	}
	out.Unlocked = make(map[Slot]bool, len(p.Unlocked))
	for k, v := range p.Unlocked {
		out.Unlocked[k] = v
	}
	out.Completed = make(map[Slot]bool, len(p.Completed))
	for k, v := range p.Completed {
		out.Completed[k] = v
	}
	if p.StartTime != nil {
		t := *p.StartTime
		out.StartTime = &t
	}
	if p.EndTime != nil {
		t := *p.EndTime
		out.EndTime = &t
	}
	return out
}

// SumScores adds up the per-slot scores.
func (p Progress) SumScores() float64 {
	var total float64
	for _, slot := range AllSlots {
		total += p.Scores[slot]
	}
	return total
}

// AllCompleted reports whether every slot is done.
func (p Progress) AllCompleted() bool {
	for _, slot := range AllSlots {
		if !p.Completed[slot] {
			return false
		}
	}
	return true
}

// UnlockedSlots lists unlocked slots in slot order.
func (p Progress) UnlockedSlots() []Slot {
	out := make([]Slot, 0, SlotCount)
	for _, slot := range AllSlots {
		if p.Unlocked[slot] {
			out = append(out, slot)
		}
	}
	return out
}

// Submission is an append-only audit entry, one per answer, submit or autosave.
type Submission struct {
	ID               string    `json:"id"`
	TeamID           string    `json:"teamId"`
	ProgressID       string    `json:"progressId"`
	Slot             Slot      `json:"questionNumber"`
	Kind             SlotKind  `json:"questionType"`
	Step             int       `json:"step"`
	Prompt           string    `json:"originalQuestion"`
	Answer           string    `json:"userSolution"`
	TimeTakenSeconds int       `json:"timeTaken"`
	AttemptNumber    int       `json:"attemptNumber"`
	Correct          bool      `json:"isCorrect"`
	Score            float64   `json:"score"`
	Autosave         bool      `json:"isAutoSaved"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// AptitudeOutcome is returned to the team after an aptitude answer.
type AptitudeOutcome struct {
	Slot              Slot          `json:"questionNumber"`
	Correct           bool          `json:"correct"`
	Score             float64       `json:"score"`
	AttemptsRemaining int           `json:"attemptsLeft"`
	NewlyUnlocked     []Slot        `json:"newlyUnlocked"`
	Unlocked          map[Slot]bool `json:"unlockedQuestions"`
	TotalScore        float64       `json:"totalScore"`
}

// CodingOutcome is returned after a coding submit or autosave.
type CodingOutcome struct {
	Slot          Slot    `json:"questionNumber"`
	Correct       bool    `json:"isCorrect"`
	Score         float64 `json:"score"`
	Autosave      bool    `json:"isAutoSaved"`
	NewlyUnlocked []Slot  `json:"newlyUnlocked"`
	IsComplete    bool    `json:"isQuizCompleted"`
	TotalScore    float64 `json:"totalScore"`
}

// LeaderboardEntry is one ranked row of the Round 2 scores.
type LeaderboardEntry struct {
	Rank                    int        `json:"rank"`
	TeamID                  string     `json:"teamId"`
	TeamName                string     `json:"teamName"`
	TotalScore              float64    `json:"totalScore"`
	TotalTimeElapsedSeconds int64      `json:"totalTimeElapsedSeconds"`
	EndTime                 *time.Time `json:"endTime,omitempty"`
}

// Leaderboard captures the ordered Round 2 scores.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// OverviewStats aggregates all progress records for the admin dashboard.
type OverviewStats struct {
	TotalTeams     int     `json:"totalTeams"`
	CompletedTeams int     `json:"completedTeams"`
	AverageScore   float64 `json:"averageScore"`
}

// AdminOverview lists every progress record with aggregate stats.
type AdminOverview struct {
	Teams []Progress    `json:"teams"`
	Stats OverviewStats `json:"stats"`
}

package domain

import "time"

// CompetitionStatus tracks how far a team has progressed overall.
type CompetitionStatus string

const (
	StatusRegistered      CompetitionStatus = "registered"
	StatusRound1Completed CompetitionStatus = "round1_completed"
	StatusRound2Completed CompetitionStatus = "round2_completed"
	StatusRound3Completed CompetitionStatus = "round3_completed"
	StatusDisqualified    CompetitionStatus = "disqualified"
)

// Valid reports whether s is a known status.
func (s CompetitionStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusRound1Completed, StatusRound2Completed, StatusRound3Completed, StatusDisqualified:
		return true
	}
	return false
}

// Member is one of the two people on a team.
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Members struct {
	Member1 Member `json:"member1"`
	Member2 Member `json:"member2"`
}

// RoundScores holds per-round totals; Total is always the sum of the rounds.
type RoundScores struct {
	Round1 float64 `json:"round1"`
	Round2 float64 `json:"round2"`
	Round3 float64 `json:"round3"`
	Total  float64 `json:"total"`
}

// WithTotal recomputes Total.
func (s RoundScores) WithTotal() RoundScores {
	s.Total = s.Round1 + s.Round2 + s.Round3
	return s
}

// Team is the registered identity that owns a Round 2 record.
type Team struct {
	ID           string            `json:"id"`
	TeamName     string            `json:"teamName"`
	Members      Members           `json:"members"`
	Leader       string            `json:"leader"`
	LeaderPhone  string            `json:"leaderPhone"`
	PasswordHash string            `json:"passwordHash,omitempty"`
	IsActive     bool              `json:"isActive"`
	Status       CompetitionStatus `json:"competitionStatus"`
	Scores       RoundScores       `json:"scores"`
	Round3       *Round3Result     `json:"round3,omitempty"`
	RegisteredAt time.Time         `json:"registrationDate"`
	LastLogin    *time.Time        `json:"lastLogin,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	// Version increments on every stored update and guards concurrent writes.
	Version      int64             `json:"version"`
}

// Public strips the credential hash before a team leaves the service.
func (t Team) Public() Team {
	t.PasswordHash = ""
	return t
}

// Round3Result is the final timed puzzle result recorded on a team.
type Round3Result struct {
	Score             float64                `json:"score"`
	TimeTakenSeconds  int                    `json:"timeTaken"`
	SelectedProgram   string                 `json:"selectedProgram"`
	QuestionOrder     *int                   `json:"questionOrder,omitempty"`
	QuestionOrderName string                 `json:"questionOrderName"`
	QuestionResults   []Round3QuestionResult `json:"questionResults"`
	IndividualScores  []Round3QuestionScore  `json:"individualQuestionScores"`
	SubmittedAt       time.Time              `json:"submittedAt"`
}

type Round3QuestionResult struct {
	QuestionIndex  int    `json:"questionIndex"`
	BlockIndex     int    `json:"blockIndex"`
	SelectedAnswer string `json:"selectedAnswer"`
	Correct        bool   `json:"isCorrect"`
	TimeTaken      int    `json:"timeTaken"`
}

type Round3QuestionScore struct {
	QuestionIndex int     `json:"questionIndex"`
	Score         float64 `json:"score"`
	TimeTaken     int     `json:"timeTaken"`
}

// Round3Entry is one row of the Round 3 scores.
type Round3Entry struct {
	TeamID            string    `json:"teamId"`
	TeamName          string    `json:"teamName"`
	Score             float64   `json:"round3Score"`
	TimeTakenSeconds  int       `json:"round3Time"`
	QuestionOrderName string    `json:"round3QuestionOrderName"`
	SubmittedAt       time.Time `json:"round3SubmittedAt"`
}

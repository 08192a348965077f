package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hustle/internal/app"
	"hustle/internal/domain"
)

type registerRequest struct {
	TeamName     string `json:"teamName" validate:"required,min=3,max=50"`
	Member1Name  string `json:"member1Name" validate:"required,max=50"`
	Member1Email string `json:"member1Email" validate:"required,email"`
	Member2Name  string `json:"member2Name" validate:"required,max=50"`
	Member2Email string `json:"member2Email" validate:"required,email,nefield=Member1Email"`
	Leader       string `json:"leader" validate:"required,oneof=member1 member2"`
	LeaderPhone  string `json:"leaderPhone" validate:"required,min=7,max=20"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	TeamName string `json:"teamName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type adminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Team  *domain.Team `json:"team,omitempty"`
	Token string       `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	team, token, err := s.teams.Register(r.Context(), app.RegisterInput{
		TeamName: req.TeamName,
		Members: domain.Members{
			Member1: domain.Member{Name: req.Member1Name, Email: req.Member1Email},
			Member2: domain.Member{Name: req.Member2Name, Email: req.Member2Email},
		},
		Leader:      req.Leader,
		LeaderPhone: req.LeaderPhone,
		Password:    req.Password,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Team: &team, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	team, token, err := s.teams.Login(r.Context(), req.TeamName, req.Password)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Team: &team, Token: token})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	token, err := s.teams.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	team, _ := TeamFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"team": team})
}

// Round 2

type aptitudeAnswerRequest struct {
	QuestionIndex *int `json:"questionIndex" validate:"required"`
	Answer        *int `json:"answer" validate:"required"`
}

type codingRequest struct {
	ChallengeType string `json:"challengeType" validate:"required"`
	Solution      string `json:"solution" validate:"required"`
	TimeTaken     int    `json:"timeTaken" validate:"gte=0"`
	IsAutoSave    bool   `json:"isAutoSave"`
}

func (s *Server) handleAptitudeQuestion(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "step must be a number")
		return
	}
	q, err := s.rounds.Engine().Catalog().Aptitude(domain.Slot(step + 1))
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "question not found")
		return
	}
	respondJSON(w, http.StatusOK, q.Public())
}

func (s *Server) handleCreateProgress(w http.ResponseWriter, r *http.Request) {
	team, _ := TeamFromContext(r.Context())
	p, created, err := s.rounds.CreateProgress(r.Context(), team.ID, team.TeamName)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, p)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	team, _ := TeamFromContext(r.Context())
	p, err := s.rounds.GetProgress(r.Context(), team.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleAptitudeAnswer(w http.ResponseWriter, r *http.Request) {
	var req aptitudeAnswerRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if *req.QuestionIndex < 0 || *req.QuestionIndex >= len(domain.AptitudeSlots) {
		respondDomainError(w, r, fmt.Errorf("%w: questionIndex %d", domain.ErrInvalidInput, *req.QuestionIndex))
		return
	}
	team, _ := TeamFromContext(r.Context())
	out, err := s.rounds.SubmitAptitudeAnswer(r.Context(), team.ID, domain.AptitudeSlots[*req.QuestionIndex], *req.Answer)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCodingSubmit(w http.ResponseWriter, r *http.Request) {
	s.handleCoding(w, r, false)
}

func (s *Server) handleCodingAutosave(w http.ResponseWriter, r *http.Request) {
	s.handleCoding(w, r, true)
}

func (s *Server) handleCoding(w http.ResponseWriter, r *http.Request, autosave bool) {
	var req codingRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	kind, err := domain.ParseChallengeKind(req.ChallengeType)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	team, _ := TeamFromContext(r.Context())
	out, err := s.rounds.SubmitCodingSolution(r.Context(), team.ID, kind, req.Solution, req.TimeTaken, autosave || req.IsAutoSave)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	team, _ := TeamFromContext(r.Context())
	subs, err := s.rounds.Submissions(r.Context(), team.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (s *Server) handleRound2Scores(w http.ResponseWriter, r *http.Request) {
	lb, err := s.rounds.Leaderboard(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lb)
}

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.rounds.AdminOverview(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ov)
}

// Round 3

type round3Request struct {
	Score             float64                       `json:"score" validate:"gte=0"`
	TimeTaken         int                           `json:"timeTaken" validate:"gte=0"`
	SelectedProgram   string                        `json:"selectedProgram"`
	QuestionOrder     *int                          `json:"questionOrder"`
	QuestionOrderName string                        `json:"questionOrderName"`
	QuestionResults   []domain.Round3QuestionResult `json:"questionResults" validate:"dive"`
	IndividualScores  []domain.Round3QuestionScore  `json:"individualQuestionScores" validate:"dive"`
}

func (s *Server) handleRound3Submit(w http.ResponseWriter, r *http.Request) {
	var req round3Request
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	team, _ := TeamFromContext(r.Context())
	updated, err := s.teams.SubmitRound3(r.Context(), team.ID, domain.Round3Result{
		Score:             req.Score,
		TimeTakenSeconds:  req.TimeTaken,
		SelectedProgram:   req.SelectedProgram,
		QuestionOrder:     req.QuestionOrder,
		QuestionOrderName: req.QuestionOrderName,
		QuestionResults:   req.QuestionResults,
		IndividualScores:  req.IndividualScores,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"team": updated})
}

func (s *Server) handleRound3Scores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.teams.Round3Scores(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scores)
}

// Admin

type statusRequest struct {
	CompetitionStatus *domain.CompetitionStatus `json:"competitionStatus"`
	Scores            *domain.RoundScores       `json:"scores"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.teams.ListTeams(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

func (s *Server) handleUpdateTeamStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	team, err := s.teams.UpdateStatus(r.Context(), chi.URLParam(r, "id"), app.StatusUpdate{
		Status: req.CompetitionStatus,
		Scores: req.Scores,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"team": team})
}

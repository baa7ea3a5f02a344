package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"careerforge/internal/guard"
	"careerforge/internal/quiz"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

type ResolveSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	SeedTitle string `json:"seed_title,omitempty"`
}

type SessionResponse struct {
	Session *types.Session `json:"session"`
}

type AppendMessagesRequest struct {
	Messages []types.NewMessage `json:"messages"`
}

// POST /api/sessions/resolve
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) {
	var req ResolveSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}

	var session *types.Session
	err := s.withRetry(r.Context(), func() error {
		var err error
		session, err = s.deps.Sessions.ResolveOrCreateSession(r.Context(), principal(r), req.SessionID, req.SeedTitle)
		return err
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// GET /api/sessions/{id}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Sessions.GetSession(r.Context(), r.PathValue("id"), principal(r))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// DELETE /api/sessions/{id}
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	var session *types.Session
	err := s.withRetry(r.Context(), func() error {
		var err error
		session, err = s.deps.Sessions.EndSession(r.Context(), r.PathValue("id"), principal(r))
		return err
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// POST /api/sessions/{id}/messages
// FUNCTIONAL DISCOVERY: Concurrent appends to one session contend for the same guard key;
// the loser backs off and retries instead of surfacing a 409 to the client
func (s *Server) appendMessages(w http.ResponseWriter, r *http.Request) {
	var req AppendMessagesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}

	var session *types.Session
	err := s.withRetry(r.Context(), func() error {
		var err error
		session, err = s.deps.Sessions.AppendMessages(r.Context(), r.PathValue("id"), principal(r), req.Messages)
		return err
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Session: session})
}

type QuizResponse struct {
	Quiz     *types.QuizSession `json:"quiz"`
	Progress quiz.Progress      `json:"progress"`
}

type RecordAnswerRequest struct {
	Stage      types.Stage `json:"stage"`
	QuestionID string      `json:"question_id"`
	Value      string      `json:"value"`
}

type ProgressResponse struct {
	Progress quiz.Progress `json:"progress"`
}

// POST /api/quizzes
func (s *Server) startQuiz(w http.ResponseWriter, r *http.Request) {
	var q *types.QuizSession
	err := s.withRetry(r.Context(), func() error {
		var err error
		q, err = s.deps.Quizzes.StartQuiz(r.Context(), principal(r).UserID)
		return err
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, QuizResponse{Quiz: q, Progress: quiz.ProgressOf(q)})
}

// ownedQuiz loads a quiz visible to the caller; foreign quizzes look absent
func (s *Server) ownedQuiz(r *http.Request) (*types.QuizSession, error) {
	q, err := s.deps.Quizzes.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	p := principal(r)
	if q.UserID != p.UserID && p.Role != types.RoleAdmin {
		return nil, interfaces.ErrQuizNotFound
	}
	return q, nil
}

// GET /api/quizzes/{id}
func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := s.ownedQuiz(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, QuizResponse{Quiz: q, Progress: quiz.ProgressOf(q)})
}

// POST /api/quizzes/{id}/answers
// FUNCTIONAL DISCOVERY: Not retried; a contended answer may land on a stage that has since
// advanced, so the client decides after seeing 409
func (s *Server) recordAnswer(w http.ResponseWriter, r *http.Request) {
	var req RecordAnswerRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}

	q, err := s.ownedQuiz(r)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	progress, err := s.deps.Quizzes.RecordAnswer(r.Context(), q.ID, req.Stage, types.Answer{
		QuestionID: req.QuestionID,
		Value:      req.Value,
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	if progress.Completed && s.deps.Notifier != nil {
		event := types.OutboundEvent{Event: types.EventQuizCompleted, Data: progress}
		if err := s.deps.Notifier.NotifyUser(r.Context(), q.UserID, event); err != nil {
			s.log.Warn("quiz completion notification failed", "quiz_id", q.ID, "user_id", q.UserID, "error", err)
		}
	}
	s.sendJSON(w, http.StatusOK, ProgressResponse{Progress: progress})
}

type MatchRequest struct {
	quiz.MatchInput
	Industry string `json:"industry,omitempty"`
}

type MatchResponse struct {
	Matches []types.CareerMatch `json:"matches"`
}

// POST /api/match
func (s *Server) computeMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendError(w, r, err)
		return
	}

	catalog := s.deps.Quizzes.Catalog()
	profiles := catalog.Profiles()
	if industry := strings.TrimSpace(req.Industry); industry != "" {
		var err error
		if profiles, err = catalog.ByIndustry(industry); err != nil {
			s.sendError(w, r, err)
			return
		}
	}

	resp := MatchResponse{Matches: make([]types.CareerMatch, 0, len(profiles))}
	for _, p := range profiles {
		resp.Matches = append(resp.Matches, types.CareerMatch{
			Title:    p.Title,
			Industry: p.Industry,
			Score:    quiz.ComputeMatch(req.MatchInput, p),
		})
	}
	sort.SliceStable(resp.Matches, func(i, j int) bool {
		return resp.Matches[i].Score > resp.Matches[j].Score
	})
	s.sendJSON(w, http.StatusOK, resp)
}

type OperationsResponse struct {
	Operations []guard.ActiveOperation `json:"operations"`
}

// GET /api/operations lists in-progress guard markers
func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	if principal(r).Role != types.RoleAdmin {
		s.sendError(w, r, ErrAdminOnly)
		return
	}

	ops, err := s.deps.Guard.ListActive(r.Context())
	if err != nil {
		s.sendError(w, r, fmt.Errorf("list active operations: %w", err))
		return
	}
	if ops == nil {
		ops = []guard.ActiveOperation{}
	}
	s.sendJSON(w, http.StatusOK, OperationsResponse{Operations: ops})
}

package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"careerforge/internal/guard"
	"careerforge/internal/logger"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// Progress is the outcome of a recorded answer
type Progress struct {
	QuizID    string             `json:"quiz_id"`
	Stage     types.Stage        `json:"stage"`
	Percent   int                `json:"progress_percent"`
	Completed bool               `json:"completed"`
	Results   *types.QuizResults `json:"results,omitempty"`
}

// ProgressOf summarises a quiz session
func ProgressOf(q *types.QuizSession) Progress {
	return Progress{
		QuizID:    q.ID,
		Stage:     q.CurrentStage,
		Percent:   ProgressPercent(q.Answers),
		Completed: q.CurrentStage == types.StageCompleted,
		Results:   q.Results,
	}
}

// Machine drives quiz sessions through the stage order
// ARCHITECTURAL DISCOVERY: Every mutation is a guarded read-modify-write against the
// repository; the machine holds no quiz state of its own
type Machine struct {
	repo    interfaces.QuizRepository
	guard   guard.Guard
	catalog *Catalog
	log     *logger.Logger
	now     func() time.Time
}

// NewMachine creates a quiz machine; a nil catalog selects DefaultCatalog
func NewMachine(repo interfaces.QuizRepository, g guard.Guard, catalog *Catalog, log *logger.Logger) *Machine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Machine{
		repo:    repo,
		guard:   g,
		catalog: catalog,
		log:     log.With("component", "quiz"),
		now:     time.Now,
	}
}

// Catalog exposes the reference data used for scoring
func (m *Machine) Catalog() *Catalog {
	return m.catalog
}

// StartQuiz returns the user's unfinished quiz or creates one at the first stage
func (m *Machine) StartQuiz(ctx context.Context, userID string) (*types.QuizSession, error) {
	if !types.IsValidUserID(userID) {
		return nil, types.ErrInvalidUserID
	}

	var quiz *types.QuizSession
	err := guard.Run(ctx, m.guard, guard.Key{Operation: guard.OpStartQuiz, ResourceID: userID}, func(ctx context.Context) error {
		existing, err := m.repo.FindActiveQuiz(ctx, userID)
		if err == nil {
			quiz = existing
			return nil
		}
		if !errors.Is(err, interfaces.ErrQuizNotFound) {
			return err
		}

		now := m.now().UTC()
		quiz = &types.QuizSession{
			ID:           uuid.NewString(),
			UserID:       userID,
			CurrentStage: types.StageSkillsAssessment,
			Answers:      make(map[types.Stage][]types.Answer),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := m.repo.CreateQuiz(ctx, quiz); err != nil {
			return err
		}
		m.log.Info("quiz started", "quiz_id", quiz.ID, "user_id", userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

// GetQuiz loads a quiz session
func (m *Machine) GetQuiz(ctx context.Context, quizID string) (*types.QuizSession, error) {
	return m.repo.GetQuiz(ctx, quizID)
}

// RecordAnswer appends an answer to the current stage and advances when the stage is satisfied
// FUNCTIONAL DISCOVERY: A completed quiz reports ErrQuizCompleted before any stage comparison,
// so late answers for CAREER_GOALS are not misreported as a mismatch. Any other stage,
// including an unknown one, is a mismatch.
func (m *Machine) RecordAnswer(ctx context.Context, quizID string, stage types.Stage, answer types.Answer) (Progress, error) {
	if err := answer.Validate(); err != nil {
		return Progress{}, err
	}

	var progress Progress
	err := guard.Run(ctx, m.guard, guard.Key{Operation: guard.OpQuizAnswer, ResourceID: quizID}, func(ctx context.Context) error {
		quiz, err := m.repo.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}

		if quiz.CurrentStage == types.StageCompleted {
			return interfaces.ErrQuizCompleted
		}
		if stage != quiz.CurrentStage {
			return fmt.Errorf("%w: submitted %s, current %s", interfaces.ErrStageMismatch, stage, quiz.CurrentStage)
		}

		now := m.now().UTC()
		if answer.AnsweredAt.IsZero() {
			answer.AnsweredAt = now
		}
		if quiz.Answers == nil {
			quiz.Answers = make(map[types.Stage][]types.Answer)
		}
		quiz.Answers[stage] = append(quiz.Answers[stage], answer)

		if len(quiz.Answers[stage]) >= Required(stage) {
			quiz.CurrentStage = Next(stage)
			m.log.Debug("quiz stage advanced", "quiz_id", quiz.ID, "from", stage, "to", quiz.CurrentStage)

			if quiz.CurrentStage == types.StageCompleted {
				completedAt := now
				quiz.CompletedAt = &completedAt
				quiz.Results = m.score(quiz.Answers)
				m.log.Info("quiz completed", "quiz_id", quiz.ID, "user_id", quiz.UserID)
			}
		}
		quiz.UpdatedAt = now

		if err := m.repo.UpdateQuiz(ctx, quiz); err != nil {
			return err
		}
		progress = ProgressOf(quiz)
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return progress, nil
}

// score matches the answers against every catalog profile, best first, ties in catalog order
func (m *Machine) score(answers map[types.Stage][]types.Answer) *types.QuizResults {
	input := InputFromAnswers(answers)
	profiles := m.catalog.Profiles()

	matches := make([]types.CareerMatch, 0, len(profiles))
	for _, p := range profiles {
		matches = append(matches, types.CareerMatch{
			Title:    p.Title,
			Industry: p.Industry,
			Score:    ComputeMatch(input, p),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return &types.QuizResults{Matches: matches}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/progress"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizStore interface {
	List(ctx context.Context, search string) ([]model.Quiz, error)
	FindByID(ctx context.Context, id string) (*model.Quiz, error)
	Create(ctx context.Context, quiz *model.Quiz) error
}

type AttemptStore interface {
	Create(ctx context.Context, attempt *model.QuizAttempt) error
	FindByID(ctx context.Context, id string) (*model.QuizAttempt, error)
	Save(ctx context.Context, attempt *model.QuizAttempt) error
}

type Evaluator interface {
	EvaluateAttempt(ctx context.Context, quiz *model.Quiz, answers map[string]string) (*model.EvaluationResult, error)
}

type QuizService struct {
	quizzes   QuizStore
	attempts  AttemptStore
	evaluator Evaluator
}

func NewQuizService(quizzes QuizStore, attempts AttemptStore, evaluator Evaluator) *QuizService {
	return &QuizService{quizzes: quizzes, attempts: attempts, evaluator: evaluator}
}

type QuizStats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	TotalQuestions int `json:"totalQuestions"`
	TotalMarks     int `json:"totalMarks"`
}

type QuizList struct {
	Quizzes []model.Quiz `json:"quizzes"`
	Stats   QuizStats    `json:"stats"`
}

// QuizResultView 测验结果页
type QuizResultView struct {
	Quiz       *model.Quiz            `json:"quiz"`
	Attempt    *model.QuizAttempt     `json:"attempt"`
	Evaluation model.EvaluationResult `json:"evaluation"`
	Score      int                    `json:"score"`
	TotalMarks int                    `json:"totalMarks"`
	Percentage int                    `json:"percentage"`
	Grade      string                 `json:"grade"`
}

type QuizQuestionInput struct {
	Prompt string `json:"prompt" binding:"required" yaml:"prompt"`
	Marks  int    `json:"marks" yaml:"marks"`
}

type QuizInput struct {
	Title       string              `json:"title" binding:"required" yaml:"title"`
	Topic       string              `json:"topic" yaml:"topic"`
	Description string              `json:"description" yaml:"description"`
	PdfURL      string              `json:"pdfUrl" yaml:"pdfUrl"`
	Questions   []QuizQuestionInput `json:"questions" yaml:"questions"`
}

// Grade 百分比对应的等级
func Grade(percentage int) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "F"
	}
}

func (s *QuizService) ListQuizzes(ctx context.Context, search string) (*QuizList, error) {
	quizzes, err := s.quizzes.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return &QuizList{
		Quizzes: quizzes,
		Stats: QuizStats{
			TotalQuizzes: len(quizzes),
			TotalQuestions: lo.SumBy(quizzes, func(q model.Quiz) int {
				return q.TotalQuestions
			}),
			TotalMarks: lo.SumBy(quizzes, func(q model.Quiz) int {
				return q.TotalMarks
			}),
		},
	}, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	quiz, err := s.quizzes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizService) CreateQuiz(ctx context.Context, input QuizInput) (*model.Quiz, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, util.NewValidationError("Quiz title is required")
	}

	quiz := &model.Quiz{
		Title:       strings.TrimSpace(input.Title),
		Topic:       strings.TrimSpace(input.Topic),
		Description: input.Description,
		PdfURL:      input.PdfURL,
	}
	for i, q := range input.Questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{
			Position: i,
			Prompt:   q.Prompt,
			Marks:    marks,
		})
	}
	quiz.TotalQuestions = len(quiz.Questions)
	quiz.TotalMarks = lo.SumBy(quiz.Questions, func(q model.QuizQuestion) int { return q.Marks })

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizService) StartAttempt(ctx context.Context, userID uint, quizID string) (*model.QuizAttempt, error) {
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempt := &model.QuizAttempt{
		QuizID:     quiz.ID,
		UserID:     userID,
		Answers:    datatypes.NewJSONType(map[string]string{}),
		TotalMarks: quiz.TotalMarks,
		StartedAt:  time.Now(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return attempt, nil
}

func (s *QuizService) loadAttempt(ctx context.Context, userID uint, attemptID string) (*model.QuizAttempt, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	return attempt, nil
}

// SubmitAttempt 保存答案并评估。评估失败只记录日志，尝试保持未评估状态
func (s *QuizService) SubmitAttempt(ctx context.Context, userID uint, quizID, attemptID string, answers map[string]string) (*model.QuizAttempt, error) {
	attempt, err := s.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.QuizID != quizID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.CompletedAt != nil {
		return nil, util.ErrAlreadySubmitted
	}

	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	// 只保留属于该测验的题目
	questionIDs := lo.SliceToMap(quiz.Questions, func(q model.QuizQuestion) (string, struct{}) {
		return q.ID, struct{}{}
	})
	answers = lo.PickBy(answers, func(id string, _ string) bool {
		_, ok := questionIDs[id]
		return ok
	})

	now := time.Now()
	attempt.Answers = datatypes.NewJSONType(answers)
	attempt.CompletedAt = &now
	attempt.TotalMarks = quiz.TotalMarks

	if s.evaluator != nil {
		evaluation, err := s.evaluator.EvaluateAttempt(ctx, quiz, answers)
		if err != nil {
			logger.Log.Error("Quiz evaluation failed",
				zap.String("attemptId", attempt.ID), zap.String("quizId", quiz.ID), zap.Error(err))
		} else {
			evaluation.Score = min(max(evaluation.Score, 0), quiz.TotalMarks)
			attempt.SetEvaluation(*evaluation)
		}
	}

	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	return attempt, nil
}

// GetResult 未评估的尝试视为结果不存在
func (s *QuizService) GetResult(ctx context.Context, userID uint, attemptID string) (*QuizResultView, error) {
	attempt, err := s.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.resultView(ctx, attempt)
}

// GetQuizResult 结果页按 /quizzes/:id/attempts/:attemptId 访问，尝试必须属于该测验
func (s *QuizService) GetQuizResult(ctx context.Context, userID uint, quizID, attemptID string) (*QuizResultView, error) {
	attempt, err := s.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.QuizID != quizID {
		return nil, util.ErrAttemptNotFound
	}
	return s.resultView(ctx, attempt)
}

func (s *QuizService) resultView(ctx context.Context, attempt *model.QuizAttempt) (*QuizResultView, error) {
	evaluation, ok := attempt.Evaluation()
	if !ok {
		return nil, util.ErrResultNotReady
	}

	quiz, err := s.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	totalMarks := attempt.TotalMarks
	if totalMarks <= 0 {
		totalMarks = quiz.TotalMarks
	}
	percentage := progress.Percentage(evaluation.Score, totalMarks)

	return &QuizResultView{
		Quiz:       quiz,
		Attempt:    attempt,
		Evaluation: evaluation,
		Score:      evaluation.Score,
		TotalMarks: totalMarks,
		Percentage: percentage,
		Grade:      Grade(percentage),
	}, nil
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	Title          string         `gorm:"size:255;not null" json:"title"`
	Topic          string         `gorm:"size:255" json:"topic"`
	Description    string         `gorm:"type:text" json:"description"`
	TotalQuestions int            `gorm:"default:0" json:"totalQuestions"`
	TotalMarks     int            `gorm:"default:0" json:"totalMarks"`
	PdfURL         string         `gorm:"size:512" json:"pdfUrl,omitempty"`
	Questions      []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	UUIDBase
	QuizID   string `gorm:"type:varchar(36);index;not null" json:"quizId"`
	Position int    `gorm:"default:0" json:"position"`
	Prompt   string `gorm:"type:text;not null" json:"prompt"`
	Marks    int    `gorm:"default:1" json:"marks"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// EvaluationResult AI 生成的评分与反馈
type EvaluationResult struct {
	Score            int      `json:"score"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailedFeedback"`
}

// QuizAttempt Answers 以题目 ID 为键；评估完成前 EvaluationResult 为空
// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	QuizID           string                                `gorm:"type:varchar(36);index;not null" json:"quizId"`
	UserID           uint                                  `gorm:"index" json:"userId"`
	Answers          datatypes.JSONType[map[string]string] `gorm:"type:json" json:"answers"`
	TotalMarks       int                                   `json:"totalMarks"`
	StartedAt        time.Time                             `json:"startedAt"`
	CompletedAt      *time.Time                            `json:"completedAt,omitempty"`
	EvaluationResult *datatypes.JSONType[EvaluationResult] `gorm:"type:json" json:"evaluationResult"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Evaluation 返回评估结果，未评估时 ok 为 false
func (a *QuizAttempt) Evaluation() (EvaluationResult, bool) {
	if a.EvaluationResult == nil {
		return EvaluationResult{}, false
	}
	return a.EvaluationResult.Data(), true
}

func (a *QuizAttempt) SetEvaluation(result EvaluationResult) {
	v := datatypes.NewJSONType(result)
	a.EvaluationResult = &v
}

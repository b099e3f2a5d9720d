package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/tracing"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// AIService OpenAI 兼容的对话接口，用于测验评估
type AIService struct {
	mu         sync.RWMutex
	config     config.AIConfig
	httpClient *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	s := &AIService{}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig 配置热更新
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.httpClient = &http.Client{Timeout: timeout}
}

func (s *AIService) snapshot() (config.AIConfig, *http.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.httpClient
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *AIService) Chat(ctx context.Context, systemPrompt, prompt string) (string, error) {
	cfg, client := s.snapshot()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return "", &util.ConfigMissingError{Message: "AI evaluation is not configured."}
	}

	reqBody := ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", &util.NetworkError{Service: "AI", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result ChatCompletionResponse
	jsonErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK {
		message := ""
		if jsonErr == nil && result.Error != nil {
			message = result.Error.Message
		}
		return "", &util.RemoteError{Service: "AI", Status: resp.StatusCode, Message: message}
	}
	if jsonErr != nil {
		return "", fmt.Errorf("decode ai response: %w", jsonErr)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

const evaluationSystemPrompt = "You are a strict but encouraging examiner. " +
	"Grade the student's answers and reply with a single JSON object only, using the keys " +
	`"score" (integer marks awarded), "strengths", "weaknesses", "improvements" (arrays of short strings) ` +
	`and "detailedFeedback" (a paragraph).`

// EvaluateAttempt 让模型按题目分值评分，返回的分数未做范围限制
func (s *AIService) EvaluateAttempt(ctx context.Context, quiz *model.Quiz, answers map[string]string) (result *model.EvaluationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ai.evaluate_attempt", attribute.String("quiz.id", quiz.ID))
	defer func() { tracing.EndSpan(span, err) }()

	content, err := s.Chat(ctx, evaluationSystemPrompt, buildEvaluationPrompt(quiz, answers))
	if err != nil {
		return nil, err
	}
	return parseEvaluation(content)
}

func buildEvaluationPrompt(quiz *model.Quiz, answers map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quiz: %s\nTopic: %s\nTotal marks: %d\n\n", quiz.Title, quiz.Topic, quiz.TotalMarks)
	for i, q := range quiz.Questions {
		answer := strings.TrimSpace(answers[q.ID])
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Question %d (%d marks): %s\nStudent answer: %s\n\n", i+1, q.Marks, q.Prompt, answer)
	}
	return b.String()
}

func extractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "{}"
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return trimmed[start : end+1]
	}
	return trimmed
}

func parseEvaluation(content string) (*model.EvaluationResult, error) {
	var parsed struct {
		Score            json.Number `json:"score"`
		Strengths        []string    `json:"strengths"`
		Weaknesses       []string    `json:"weaknesses"`
		Improvements     []string    `json:"improvements"`
		DetailedFeedback string      `json:"detailedFeedback"`
	}
	if err := json.Unmarshal([]byte(extractJSONPayload(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse evaluation: %w", err)
	}

	score, err := parsed.Score.Float64()
	if err != nil {
		return nil, fmt.Errorf("parse evaluation score: %w", err)
	}

	return &model.EvaluationResult{
		Score:            int(score + 0.5),
		Strengths:        parsed.Strengths,
		Weaknesses:       parsed.Weaknesses,
		Improvements:     parsed.Improvements,
		DetailedFeedback: parsed.DetailedFeedback,
	}, nil
}

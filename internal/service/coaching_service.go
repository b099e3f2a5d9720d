package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSessionNotJoined = errors.New("call session is not joined")

type ConversationCreator interface {
	CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error)
}

type QuizResultReader interface {
	GetResult(ctx context.Context, userID uint, attemptID string) (*QuizResultView, error)
}

type CourseFinder interface {
	FindByID(ctx context.Context, id string) (*model.Course, error)
}

type SessionKind string

const (
	SessionAgent      SessionKind = "agent"
	SessionQuizResult SessionKind = "quiz_result"
)

type Delivery string

const (
	DeliveryInBand    Delivery = "in_band"
	DeliveryClipboard Delivery = "clipboard"
)

type LaunchResult struct {
	ConversationID  string `json:"conversationId"`
	ConversationURL string `json:"conversationUrl"`
	Joined          bool   `json:"joined"`
}

type SendResult struct {
	Delivery Delivery `json:"delivery"`
	Text     string   `json:"text"`
}

type coachingSession struct {
	id        string
	url       string
	userID    uint
	kind      SessionKind
	call      CallSession
}

// CoachingService 创建视频教练会话并管理已加入的通话
type CoachingService struct {
	courses CourseFinder
	results QuizResultReader
	joiner  CallJoiner

	cfgMu          sync.RWMutex
	tavus          ConversationCreator
	coachReplicaID string

	mu       sync.Mutex
	sessions map[string]*coachingSession
}

func NewCoachingService(courses CourseFinder, results QuizResultReader, tavus ConversationCreator, coachReplicaID string, joiner CallJoiner) *CoachingService {
	return &CoachingService{
		courses:        courses,
		results:        results,
		joiner:         joiner,
		tavus:          tavus,
		coachReplicaID: coachReplicaID,
		sessions:       make(map[string]*coachingSession),
	}
}

// UpdateTavus 配置热更新时替换客户端
func (s *CoachingService) UpdateTavus(tavus ConversationCreator, coachReplicaID string) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.tavus = tavus
	s.coachReplicaID = coachReplicaID
}

func (s *CoachingService) tavusConfig() (ConversationCreator, string) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.tavus, s.coachReplicaID
}

func recordLaunch(kind SessionKind, err error) {
	outcome := "success"
	if err != nil {
		var configMissing *util.ConfigMissingError
		var network *util.NetworkError
		var remote *util.RemoteError
		switch {
		case errors.As(err, &configMissing):
			outcome = "config_missing"
		case errors.As(err, &network):
			outcome = "network_error"
		case errors.As(err, &remote):
			outcome = "remote_error"
		default:
			outcome = "error"
		}
	}
	monitoring.CoachingSessions.WithLabelValues(string(kind), outcome).Inc()
}

// LaunchAgentSession 章节智能体，只返回会话地址由前端在新标签页打开
func (s *CoachingService) LaunchAgentSession(ctx context.Context, userID uint, courseID, agentID string) (result *LaunchResult, err error) {
	defer func() { recordLaunch(SessionAgent, err) }()

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}

	var agent *model.Agent
	for ci := range course.Chapters {
		for ai := range course.Chapters[ci].Agents {
			if course.Chapters[ci].Agents[ai].ID == agentID {
				agent = &course.Chapters[ci].Agents[ai]
			}
		}
	}
	if agent == nil {
		return nil, util.ErrContentNotFound
	}

	if strings.TrimSpace(agent.ReplicaID) == "" {
		return nil, &util.ConfigMissingError{
			Message: "AI assistant configuration incomplete: Replica ID missing. Please contact support.",
		}
	}
	if strings.TrimSpace(agent.ConversationalContext) == "" {
		return nil, &util.ConfigMissingError{
			Message: "AI assistant configuration incomplete: Conversational context missing. Please contact support.",
		}
	}

	tavus, _ := s.tavusConfig()
	conv, err := tavus.CreateConversation(ctx, CreateConversationRequest{
		ReplicaID:             agent.ReplicaID,
		ConversationalContext: agent.ConversationalContext,
		ConversationName:      agent.Title,
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Agent conversation created",
		zap.String("courseId", courseID), zap.String("agentId", agentID), zap.String("conversationId", conv.ConversationID))

	return &LaunchResult{ConversationID: conv.ConversationID, ConversationURL: conv.ConversationURL}, nil
}

// QuizCoachContext 测验结果教练的对话背景
func QuizCoachContext(result *QuizResultView) string {
	return fmt.Sprintf("You are a quiz result coach helping a student understand their performance. "+
		"The student scored %d/%d marks (%d%%) on \"%s\". "+
		"Provide encouraging feedback and guidance for improvement.",
		result.Score, result.TotalMarks, result.Percentage, result.Quiz.Title)
}

// LaunchQuizCoach 创建会话后尝试加入通话，加入失败时会话仍可用
func (s *CoachingService) LaunchQuizCoach(ctx context.Context, userID uint, attemptID string) (result *LaunchResult, err error) {
	defer func() { recordLaunch(SessionQuizResult, err) }()

	tavus, replicaID := s.tavusConfig()
	if strings.TrimSpace(replicaID) == "" {
		return nil, &util.ConfigMissingError{
			Message: "Tavus configuration missing. Please check environment variables.",
		}
	}

	view, err := s.results.GetResult(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	conv, err := tavus.CreateConversation(ctx, CreateConversationRequest{
		ReplicaID:             replicaID,
		ConversationalContext: QuizCoachContext(view),
		ConversationName:      "Quiz Result Coaching - " + view.Quiz.Title,
	})
	if err != nil {
		return nil, err
	}

	result = &LaunchResult{ConversationID: conv.ConversationID, ConversationURL: conv.ConversationURL}
	if s.joiner == nil {
		return result, nil
	}

	// 只登记加入了通话的会话，onLeft 负责移除；先登记再加入，避免通话立即断开时漏删
	session := &coachingSession{
		id:     conv.ConversationID,
		url:    conv.ConversationURL,
		userID: userID,
		kind:   SessionQuizResult,
	}
	s.register(session)

	call, joinErr := s.joiner.Join(ctx, conv.ConversationURL, func() { s.forget(conv.ConversationID) })
	if joinErr != nil {
		s.forget(conv.ConversationID)
		logger.Log.Warn("Failed to join coaching call, falling back to link only",
			zap.String("conversationId", conv.ConversationID), zap.Error(joinErr))
		return result, nil
	}

	s.mu.Lock()
	session.call = call
	s.mu.Unlock()
	result.Joined = true
	return result, nil
}

// CoachMessage 发给教练的文本
func CoachMessage(label string, items []string) string {
	return fmt.Sprintf("Here are my %s: %s", strings.ToLower(label), strings.Join(items, ", "))
}

// SendToCoach 已加入通话时走 app-message，否则返回文本由前端复制到剪贴板
func (s *CoachingService) SendToCoach(ctx context.Context, userID uint, conversationID, label string, items []string) (*SendResult, error) {
	items = lo.Filter(lo.Map(items, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}), func(item string, _ int) bool {
		return item != ""
	})
	if len(items) == 0 {
		return nil, util.ErrEmptyMessage
	}

	text := CoachMessage(label, items)
	fallback := &SendResult{Delivery: DeliveryClipboard, Text: text}

	s.mu.Lock()
	session, ok := s.sessions[conversationID]
	var call CallSession
	if ok && session.userID == userID {
		call = session.call
	}
	s.mu.Unlock()

	if call == nil {
		monitoring.CoachingSessions.WithLabelValues("message", string(DeliveryClipboard)).Inc()
		return fallback, nil
	}

	payload := map[string]interface{}{
		"message_type":    "conversation",
		"event_type":      "conversation.respond",
		"conversation_id": conversationID,
		"properties": map[string]interface{}{
			"text": text,
		},
	}
	if err := call.SendAppMessage(ctx, payload); err != nil {
		logger.Log.Warn("Failed to send in-band coach message, falling back to clipboard",
			zap.String("conversationId", conversationID), zap.Error(err))
		monitoring.CoachingSessions.WithLabelValues("message", string(DeliveryClipboard)).Inc()
		return fallback, nil
	}

	monitoring.CoachingSessions.WithLabelValues("message", string(DeliveryInBand)).Inc()
	return &SendResult{Delivery: DeliveryInBand, Text: text}, nil
}

// EndSession 离开通话并移出登记表
func (s *CoachingService) EndSession(userID uint, conversationID string) error {
	s.mu.Lock()
	session, ok := s.sessions[conversationID]
	if !ok || session.userID != userID {
		s.mu.Unlock()
		return util.ErrSessionNotFound
	}
	delete(s.sessions, conversationID)
	s.mu.Unlock()

	// Leave 会触发 onLeft，必须在释放锁之后调用
	if session.call != nil {
		if err := session.call.Leave(); err != nil {
			logger.Log.Warn("Failed to leave coaching call", zap.String("conversationId", conversationID), zap.Error(err))
		}
	}
	return nil
}

func (s *CoachingService) register(session *coachingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.id] = session
}

func (s *CoachingService) forget(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
}

// Shutdown 退出时离开所有通话
func (s *CoachingService) Shutdown() {
	s.mu.Lock()
	calls := make([]CallSession, 0, len(s.sessions))
	for id, session := range s.sessions {
		if session.call != nil {
			calls = append(calls, session.call)
		}
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, call := range calls {
		call.Leave()
	}
}

func (s *CoachingService) activeSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

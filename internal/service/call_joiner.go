package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"learnhub_backend/pkg/logger"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	callWriteWait  = 10 * time.Second
	callPongWait   = 60 * time.Second
	callPingPeriod = (callPongWait * 9) / 10
)

var ErrCallUnavailable = errors.New("call gateway is not configured")

// CallJoiner 加入已创建的会话房间，离开时回调 onLeft
type CallJoiner interface {
	Join(ctx context.Context, sessionURL string, onLeft func()) (CallSession, error)
}

type CallSession interface {
	SendAppMessage(ctx context.Context, payload interface{}) error
	Leave() error
}

// WebsocketCallJoiner 通过呼叫网关的 websocket 接入会话
type WebsocketCallJoiner struct {
	GatewayURL string
	Dialer     *websocket.Dialer
}

func NewWebsocketCallJoiner(gatewayURL string) *WebsocketCallJoiner {
	return &WebsocketCallJoiner{
		GatewayURL: gatewayURL,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: callWriteWait,
		},
	}
}

type callEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

func (j *WebsocketCallJoiner) Join(ctx context.Context, sessionURL string, onLeft func()) (CallSession, error) {
	if j.GatewayURL == "" {
		return nil, ErrCallUnavailable
	}

	u, err := url.Parse(j.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("parse call gateway url: %w", err)
	}
	q := u.Query()
	q.Set("url", sessionURL)
	u.RawQuery = q.Encode()

	conn, _, err := j.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("join call: %w", err)
	}

	s := &websocketCallSession{
		conn:   conn,
		onLeft: onLeft,
		done:   make(chan struct{}),
	}
	if err := s.write(callEnvelope{Type: "join"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join call: %w", err)
	}

	go s.readPump()
	go s.pingPump()
	return s, nil
}

type websocketCallSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	onLeft    func()
	leaveOnce sync.Once
	done      chan struct{}
}

func (s *websocketCallSession) write(msg callEnvelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(callWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *websocketCallSession) SendAppMessage(ctx context.Context, payload interface{}) error {
	select {
	case <-s.done:
		return ErrSessionNotJoined
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.write(callEnvelope{Type: "app-message", Data: payload})
}

func (s *websocketCallSession) Leave() error {
	var err error
	s.leaveOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(callWriteWait))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
		close(s.done)
		if s.onLeft != nil {
			s.onLeft()
		}
	})
	return err
}

func (s *websocketCallSession) readPump() {
	defer s.Leave()
	s.conn.SetReadDeadline(time.Now().Add(callPongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(callPongWait))
		return nil
	})
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("Call connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		var msg callEnvelope
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "left-meeting" {
			return
		}
	}
}

func (s *websocketCallSession) pingPump() {
	ticker := time.NewTicker(callPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(callWriteWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
